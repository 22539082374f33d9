package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rutadirecta/boleteria/internal/model"
)

// TripRepo manages concrete trips.  The table carries a unique key on
// (route_id, vehicle_id, departure_at) — the trip's natural signature —
// which is what makes generation idempotent and safe to run concurrently
// for the same date.  Seat counters are only ever changed through the
// single-statement atomic updates below; no caller reads a count and
// writes it back.
type TripRepo struct {
	db *sql.DB
}

// NewTripRepo constructs a TripRepo with the given DB handle.
func NewTripRepo(db *sql.DB) *TripRepo { return &TripRepo{db: db} }

const tripColumns = `id, route_id, vehicle_id, departure_at, arrival_estimate, status, total_seats, available_seats, price_cents, created_at, updated_at`

func scanTrip(row rowScanner) (*model.Trip, error) {
	var t model.Trip
	var arrival sql.NullTime
	err := row.Scan(&t.ID, &t.RouteID, &t.VehicleID, &t.DepartureAt, &arrival, &t.Status,
		&t.TotalSeats, &t.AvailableSeats, &t.PriceCents, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if arrival.Valid {
		at := arrival.Time.UTC()
		t.ArrivalEstimate = &at
	}
	t.DepartureAt = t.DepartureAt.UTC()
	return &t, nil
}

// Create inserts a new trip.  Returns ErrDuplicateTrip when a trip with
// the same (route, vehicle, departure) signature already exists, which
// both re-runs and concurrent generation rely on to stay idempotent.
func (r *TripRepo) Create(ctx context.Context, t *model.Trip) error {
	const q = `INSERT INTO trips (route_id, vehicle_id, departure_at, arrival_estimate, status, total_seats, available_seats, price_cents)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var arrival interface{}
	if t.ArrivalEstimate != nil {
		arrival = t.ArrivalEstimate.UTC()
	}
	res, err := r.db.ExecContext(ctx, q, t.RouteID, t.VehicleID, t.DepartureAt.UTC(), arrival,
		t.Status, t.TotalSeats, t.AvailableSeats, t.PriceCents)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateTrip
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM trips WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, t.ID).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// GetByID retrieves a trip by its ID.  Returns ErrNotFound when no trip
// exists.
func (r *TripRepo) GetByID(ctx context.Context, id uint64) (*model.Trip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips WHERE id = ?`
	t, err := scanTrip(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListSellableByDate returns trips whose departure falls on the given
// UTC calendar date and whose status still admits sales.  The sellable
// resolver re-derives the template match from these rows.
func (r *TripRepo) ListSellableByDate(ctx context.Context, date time.Time) ([]model.Trip, error) {
	day := date.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	const q = `SELECT ` + tripColumns + `
	           FROM trips
	           WHERE departure_at >= ? AND departure_at < ? AND status IN ('SCHEDULED','BOARDING')
	           ORDER BY departure_at, id`
	rows, err := r.db.QueryContext(ctx, q, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Trip, 0)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// DecrementSeatTx atomically takes one seat from a sellable trip.  The
// WHERE clause is the whole correctness story: the decrement only lands
// when a seat remains and the trip is still sellable, so concurrent
// bookings can never drive the counter negative or oversell a closing
// trip.  Returns ErrTripNotSellable when the guard rejects the update.
func (r *TripRepo) DecrementSeatTx(ctx context.Context, tx *sql.Tx, tripID uint64) error {
	const q = `UPDATE trips SET available_seats = available_seats - 1
	           WHERE id = ? AND available_seats > 0 AND status IN ('SCHEDULED','BOARDING')`
	res, err := tx.ExecContext(ctx, q, tripID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTripNotSellable
	}
	return nil
}

// RestoreSeatTx atomically returns one seat to a trip, capped at the
// frozen total.  Used on payment failure and cancellation; each call must
// correspond to exactly one previously committed decrement.
func (r *TripRepo) RestoreSeatTx(ctx context.Context, tx *sql.Tx, tripID uint64) error {
	const q = `UPDATE trips SET available_seats = available_seats + 1
	           WHERE id = ? AND available_seats < total_seats`
	res, err := tx.ExecContext(ctx, q, tripID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoChange
	}
	return nil
}

// UpdateStatus transitions a trip between lifecycle states.  The allowed
// transitions are enforced in SQL so racing operators cannot resurrect a
// cancelled trip.
func (r *TripRepo) UpdateStatus(ctx context.Context, tripID uint64, status string) error {
	var q string
	switch status {
	case model.TripStatusBoarding:
		q = `UPDATE trips SET status = 'BOARDING' WHERE id = ? AND status = 'SCHEDULED'`
	case model.TripStatusCompleted:
		q = `UPDATE trips SET status = 'COMPLETED' WHERE id = ? AND status IN ('SCHEDULED','BOARDING')`
	case model.TripStatusCancelled:
		q = `UPDATE trips SET status = 'CANCELLED' WHERE id = ? AND status IN ('SCHEDULED','BOARDING')`
	default:
		return ErrNoChange
	}
	res, err := r.db.ExecContext(ctx, q, tripID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoChange
	}
	return nil
}
