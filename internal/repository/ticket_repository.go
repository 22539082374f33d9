package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rutadirecta/boleteria/internal/model"
)

// TicketRepo manages tickets, the durable seat-ownership records.
//
// The active-ticket-per-seat invariant is enforced by the schema, not by
// application reads: tickets carries a nullable active_flag column that
// is 1 while the status is PENDING/PAID/BOARDED/COMPLETED and NULL once
// the ticket reaches a terminal state, together with a unique key on
// (trip_id, seat_id, active_flag).  MySQL ignores NULLs in unique keys,
// so any number of dead tickets may exist per seat while a second live
// one collides with error 1062.  Two booking transactions racing past an
// application-level check therefore cannot both commit.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo constructs a TicketRepo with the given DB handle.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, trip_id, seat_id, passenger_name, passenger_doc, destination,
	fare_cents, itbms_cents, total_cents, status, channel_id, actor_id, payment_ref, created_at, updated_at`

func scanTicket(row rowScanner) (*model.Ticket, error) {
	var t model.Ticket
	var payRef sql.NullString
	err := row.Scan(&t.ID, &t.TripID, &t.SeatID, &t.PassengerName, &t.PassengerDoc, &t.Destination,
		&t.FareCents, &t.ItbmsCents, &t.TotalCents, &t.Status, &t.ChannelID, &t.ActorID, &payRef,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if payRef.Valid {
		ref := payRef.String
		t.PaymentRef = &ref
	}
	return &t, nil
}

// InsertPendingTx creates a ticket in PENDING status within the caller's
// transaction, populating the generated ID.  Returns ErrSeatUnavailable
// when the seat already carries an active ticket — the 1062 from the
// (trip_id, seat_id, active_flag) unique key is the authoritative
// concurrency check.
func (r *TicketRepo) InsertPendingTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
	const q = `INSERT INTO tickets (trip_id, seat_id, passenger_name, passenger_doc, destination,
	              fare_cents, itbms_cents, total_cents, status, active_flag, channel_id, actor_id)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'PENDING', 1, ?, ?)`
	res, err := tx.ExecContext(ctx, q, t.TripID, t.SeatID, t.PassengerName, t.PassengerDoc, t.Destination,
		t.FareCents, t.ItbmsCents, t.TotalCents, t.ChannelID, t.ActorID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrSeatUnavailable
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.Status = model.TicketStatusPending
	return nil
}

// GetByID retrieves a ticket by its ID.  Returns ErrNotFound when no
// ticket exists.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	t, err := scanTicket(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// MarkPaid transitions a PENDING ticket to PAID, recording the payment
// reference.  Returns ErrNoChange when the ticket was not pending — a
// duplicate confirmation callback, or a ticket that already failed.
func (r *TicketRepo) MarkPaid(ctx context.Context, ticketID uint64, paymentRef string) error {
	const q = `UPDATE tickets SET status = 'PAID', payment_ref = ? WHERE id = ? AND status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, q, paymentRef, ticketID)
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

// MarkFailedTx transitions a PENDING ticket to FAILED and clears the
// active flag, within the caller's transaction so the seat restore
// commits with it.  Returns ErrNoChange when the ticket was not pending.
func (r *TicketRepo) MarkFailedTx(ctx context.Context, tx *sql.Tx, ticketID uint64) error {
	const q = `UPDATE tickets SET status = 'FAILED', active_flag = NULL WHERE id = ? AND status = 'PENDING'`
	res, err := tx.ExecContext(ctx, q, ticketID)
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

// CancelTx transitions a cancellable ticket to CANCELLED and clears the
// active flag.  The conditional WHERE is what lets cancellation race
// safely against boarding: only the caller that actually flips the row
// may restore the seat, so capacity is returned exactly once.  Returns
// ErrNoChange when the ticket was already boarded, completed or dead.
func (r *TicketRepo) CancelTx(ctx context.Context, tx *sql.Tx, ticketID uint64) error {
	const q = `UPDATE tickets SET status = 'CANCELLED', active_flag = NULL
	           WHERE id = ? AND status IN ('PENDING','PAID')`
	res, err := tx.ExecContext(ctx, q, ticketID)
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

// MarkBoarded transitions a PENDING or PAID ticket to BOARDED.  Returns
// ErrNoChange when the ticket was already boarded, cancelled or failed;
// the scanning collaborator treats that as a rejected scan.
func (r *TicketRepo) MarkBoarded(ctx context.Context, ticketID uint64) error {
	const q = `UPDATE tickets SET status = 'BOARDED' WHERE id = ? AND status IN ('PENDING','PAID')`
	res, err := r.db.ExecContext(ctx, q, ticketID)
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

// ActiveByTrip returns the active tickets for a trip keyed by seat ID,
// used by the seat-map endpoint to mark sold seats.
func (r *TicketRepo) ActiveByTrip(ctx context.Context, tripID uint64) (map[uint64]model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE trip_id = ? AND active_flag = 1`
	rows, err := r.db.QueryContext(ctx, q, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]model.Ticket)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out[t.SeatID] = *t
	}
	return out, rows.Err()
}

// CountActiveByTrip counts active tickets for a trip.  Exposed for
// operational verification of the seat-count invariant.
func (r *TicketRepo) CountActiveByTrip(ctx context.Context, tripID uint64) (uint32, error) {
	const q = `SELECT COUNT(*) FROM tickets WHERE trip_id = ? AND active_flag = 1`
	var n uint32
	if err := r.db.QueryRowContext(ctx, q, tripID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
