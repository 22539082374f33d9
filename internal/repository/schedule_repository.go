package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rutadirecta/boleteria/internal/model"
)

// ScheduleRepo manages the schedule catalog: recurring (route, hour)
// templates with express pricing.  Templates never carry calendar dates;
// assignments bind them to one.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo constructs a ScheduleRepo with the given DB handle.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// TemplateWithRoute pairs a template with its route row.  The sellable
// resolver and the generator both need the pair, so repositories return
// it pre-joined.
type TemplateWithRoute struct {
	Template model.ScheduleTemplate `json:"template"`
	Route    model.Route            `json:"route"`
}

const templateRouteColumns = `t.id, t.route_id, t.hour, t.is_express, t.express_multiplier, t.active, t.created_at, t.updated_at,
	                r.id, r.origin, r.destination, r.base_price_cents, r.estimated_duration_min, r.is_active, r.created_at, r.updated_at`

func scanTemplateWithRoute(rows *sql.Rows) (TemplateWithRoute, error) {
	var tr TemplateWithRoute
	err := rows.Scan(
		&tr.Template.ID, &tr.Template.RouteID, &tr.Template.Hour, &tr.Template.IsExpress,
		&tr.Template.ExpressMultiplier, &tr.Template.Active, &tr.Template.CreatedAt, &tr.Template.UpdatedAt,
		&tr.Route.ID, &tr.Route.Origin, &tr.Route.Destination, &tr.Route.BasePriceCents,
		&tr.Route.EstimatedDurationMin, &tr.Route.IsActive, &tr.Route.CreatedAt, &tr.Route.UpdatedAt,
	)
	return tr, err
}

// ListActiveWithRoutes returns every active template joined with its
// route, ordered by route then hour.  Inactive routes are still returned
// so callers can record a skip reason instead of silently dropping them.
func (r *ScheduleRepo) ListActiveWithRoutes(ctx context.Context) ([]TemplateWithRoute, error) {
	const q = `SELECT ` + templateRouteColumns + `
	           FROM schedule_templates t
	           JOIN routes r ON r.id = t.route_id
	           WHERE t.active = 1
	           ORDER BY r.id, t.hour`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]TemplateWithRoute, 0)
	for rows.Next() {
		tr, err := scanTemplateWithRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// GetByID retrieves a template by its ID.  Returns ErrNotFound when no
// template exists.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uint64) (*model.ScheduleTemplate, error) {
	const q = `SELECT id, route_id, hour, is_express, express_multiplier, active, created_at, updated_at
	           FROM schedule_templates WHERE id = ?`
	var t model.ScheduleTemplate
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.RouteID, &t.Hour, &t.IsExpress, &t.ExpressMultiplier, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetActive flips a template's active flag.  Existing trips are
// untouched; the edit affects future generation and listings only.
func (r *ScheduleRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	const q = `UPDATE schedule_templates SET active = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, active, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetExpressMultiplier updates the express multiplier for future
// generation runs.  Already-generated trips keep their frozen price.
func (r *ScheduleRepo) SetExpressMultiplier(ctx context.Context, id uint64, multiplier float64) error {
	if multiplier < 1 {
		return ErrNoChange
	}
	const q = `UPDATE schedule_templates SET express_multiplier = ? WHERE id = ? AND is_express = 1`
	res, err := r.db.ExecContext(ctx, q, multiplier, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
