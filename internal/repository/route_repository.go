package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rutadirecta/boleteria/internal/model"
)

// RouteRepo provides read access to routes and their stops.  Route and
// fare editing belongs to back-office tooling; this service only consumes
// routes during generation and listing.
type RouteRepo struct {
	db *sql.DB
}

// NewRouteRepo constructs a RouteRepo with the given DB handle.
func NewRouteRepo(db *sql.DB) *RouteRepo { return &RouteRepo{db: db} }

// GetByID retrieves a route by its ID.  Returns ErrNotFound when the
// route does not exist.
func (r *RouteRepo) GetByID(ctx context.Context, id uint64) (*model.Route, error) {
	const q = `SELECT id, origin, destination, base_price_cents, estimated_duration_min, is_active, created_at, updated_at
	           FROM routes WHERE id = ?`
	var rt model.Route
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&rt.ID, &rt.Origin, &rt.Destination, &rt.BasePriceCents,
		&rt.EstimatedDurationMin, &rt.IsActive, &rt.CreatedAt, &rt.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// StopsByRoute returns the ordered intermediate stops for a route.  An
// empty slice means the route runs origin→destination nonstop.
func (r *RouteRepo) StopsByRoute(ctx context.Context, routeID uint64) ([]model.RouteStop, error) {
	const q = `SELECT id, route_id, name, position FROM route_stops WHERE route_id = ? ORDER BY position`
	rows, err := r.db.QueryContext(ctx, q, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stops := make([]model.RouteStop, 0)
	for rows.Next() {
		var s model.RouteStop
		if err := rows.Scan(&s.ID, &s.RouteID, &s.Name, &s.Position); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// StopsByRoutes loads stops for many routes in one query, keyed by route
// ID.  Used by the sellable listing to avoid a query per template.
func (r *RouteRepo) StopsByRoutes(ctx context.Context, routeIDs []uint64) (map[uint64][]model.RouteStop, error) {
	out := make(map[uint64][]model.RouteStop, len(routeIDs))
	if len(routeIDs) == 0 {
		return out, nil
	}
	query := `SELECT id, route_id, name, position FROM route_stops WHERE route_id IN (`
	args := make([]interface{}, 0, len(routeIDs))
	for i, id := range routeIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, id)
	}
	query += `) ORDER BY route_id, position`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.RouteStop
		if err := rows.Scan(&s.ID, &s.RouteID, &s.Name, &s.Position); err != nil {
			return nil, err
		}
		out[s.RouteID] = append(out[s.RouteID], s)
	}
	return out, rows.Err()
}
