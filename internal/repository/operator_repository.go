package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rutadirecta/boleteria/internal/model"
)

// OperatorRepo provides the lookup needed to authenticate counter and
// dispatch staff.  Operator provisioning happens outside this service.
type OperatorRepo struct {
	db *sql.DB
}

// NewOperatorRepo constructs an OperatorRepo with the given DB handle.
func NewOperatorRepo(db *sql.DB) *OperatorRepo { return &OperatorRepo{db: db} }

// GetByUsername retrieves an active operator by username.  Returns
// ErrNotFound for unknown or deactivated accounts; login treats both the
// same so probing cannot distinguish them.
func (r *OperatorRepo) GetByUsername(ctx context.Context, username string) (*model.Operator, error) {
	const q = `SELECT id, username, password_hash, role, is_active, created_at
	           FROM operators WHERE username = ? AND is_active = 1`
	var op model.Operator
	err := r.db.QueryRowContext(ctx, q, username).Scan(
		&op.ID, &op.Username, &op.PasswordHash, &op.Role, &op.IsActive, &op.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}
