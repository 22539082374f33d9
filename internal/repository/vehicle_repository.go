package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rutadirecta/boleteria/internal/model"
)

// VehicleRepo provides read access to vehicles and their seat maps.
type VehicleRepo struct {
	db *sql.DB
}

// NewVehicleRepo constructs a VehicleRepo with the given DB handle.
func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{db: db} }

// GetByID retrieves a vehicle by its ID.  Returns ErrNotFound when the
// vehicle does not exist.
func (r *VehicleRepo) GetByID(ctx context.Context, id uint64) (*model.Vehicle, error) {
	const q = `SELECT id, plate, capacity, is_active, created_at, updated_at FROM vehicles WHERE id = ?`
	var v model.Vehicle
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&v.ID, &v.Plate, &v.Capacity, &v.IsActive, &v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// SeatsByVehicle returns the full seat map of a vehicle ordered by layout
// position, including non-purchasable fixtures (aisles, stairs, ...) so
// kiosks can render the bus faithfully.
func (r *VehicleRepo) SeatsByVehicle(ctx context.Context, vehicleID uint64) ([]model.Seat, error) {
	const q = `SELECT id, vehicle_id, number, row_index, col_index, seat_type, is_active, created_at, updated_at
	           FROM seats WHERE vehicle_id = ? ORDER BY row_index, col_index`
	rows, err := r.db.QueryContext(ctx, q, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.Seat, 0)
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.VehicleID, &s.Number, &s.Row, &s.Col, &s.SeatType, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// GetSeat retrieves a single seat by ID.  Returns ErrNotFound when the
// seat does not exist.
func (r *VehicleRepo) GetSeat(ctx context.Context, seatID uint64) (*model.Seat, error) {
	const q = `SELECT id, vehicle_id, number, row_index, col_index, seat_type, is_active, created_at, updated_at
	           FROM seats WHERE id = ?`
	var s model.Seat
	err := r.db.QueryRowContext(ctx, q, seatID).Scan(
		&s.ID, &s.VehicleID, &s.Number, &s.Row, &s.Col, &s.SeatType, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
