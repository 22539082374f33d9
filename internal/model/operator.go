package model

import "time"

// Operator is a counter or dispatch employee allowed to call protected
// endpoints.  Operators are provisioned directly in the database by the
// back office; this service only authenticates them.
type Operator struct {
	ID           uint64    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // bcrypt, never serialized
	Role         string    `json:"role"` // OPERATOR, DISPATCHER
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Operator roles used by route guards.
const (
	RoleOperator   = "OPERATOR"
	RoleDispatcher = "DISPATCHER"
)
