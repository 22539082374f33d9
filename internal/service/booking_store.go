package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rutadirecta/boleteria/internal/model"
	"github.com/rutadirecta/boleteria/internal/repository"
)

// bookingStore is the atomic persistence unit the booking service works
// against.  Each method that touches both a ticket and the trip's seat
// counter commits the pair in one transaction: no code path may
// decrement without a committed ticket, or leave a ticket active without
// its decrement.
type bookingStore interface {
	GetTrip(ctx context.Context, tripID uint64) (*model.Trip, error)
	GetSeat(ctx context.Context, seatID uint64) (*model.Seat, error)
	GetTicket(ctx context.Context, ticketID uint64) (*model.Ticket, error)
	// CreatePendingTicket inserts a PENDING ticket and decrements the
	// trip's seat counter atomically.  Returns ErrSeatUnavailable when
	// the seat has an active ticket and ErrTripNotSellable when the trip
	// is closed or full.
	CreatePendingTicket(ctx context.Context, t *model.Ticket) error
	// FailPendingTicket moves a PENDING ticket to FAILED and restores
	// the seat, atomically.  ErrNoChange when the ticket was not pending.
	FailPendingTicket(ctx context.Context, ticketID uint64) error
	// CancelTicket moves a cancellable ticket to CANCELLED and restores
	// the seat, atomically.  ErrNoChange when not cancellable.
	CancelTicket(ctx context.Context, ticketID uint64) error
	MarkTicketPaid(ctx context.Context, ticketID uint64, paymentRef string) error
	MarkTicketBoarded(ctx context.Context, ticketID uint64) error
	// ConsumeLock removes any advisory lock on the seat, whoever holds
	// it, after a booking settles.
	ConsumeLock(ctx context.Context, tripID, seatID uint64) error
}

// sqlBookingStore implements bookingStore over the MySQL repositories.
type sqlBookingStore struct {
	db      *sql.DB
	trips   *repository.TripRepo
	tickets *repository.TicketRepo
	locks   *repository.SeatLockRepo
	seats   *repository.VehicleRepo
}

// NewBookingStore wires the repositories into the atomic store used by
// the booking service.
func NewBookingStore(db *sql.DB, trips *repository.TripRepo, tickets *repository.TicketRepo, locks *repository.SeatLockRepo, seats *repository.VehicleRepo) *sqlBookingStore {
	return &sqlBookingStore{db: db, trips: trips, tickets: tickets, locks: locks, seats: seats}
}

func (s *sqlBookingStore) GetTrip(ctx context.Context, tripID uint64) (*model.Trip, error) {
	return s.trips.GetByID(ctx, tripID)
}

func (s *sqlBookingStore) GetSeat(ctx context.Context, seatID uint64) (*model.Seat, error) {
	return s.seats.GetSeat(ctx, seatID)
}

func (s *sqlBookingStore) GetTicket(ctx context.Context, ticketID uint64) (*model.Ticket, error) {
	return s.tickets.GetByID(ctx, ticketID)
}

func (s *sqlBookingStore) CreatePendingTicket(ctx context.Context, t *model.Ticket) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	// The ticket insert is the authoritative per-seat check (unique key
	// race-proof); the decrement's guard is defense in depth for the
	// whole-trip capacity.
	if err := s.tickets.InsertPendingTx(ctx, tx, t); err != nil {
		return err
	}
	if err := s.trips.DecrementSeatTx(ctx, tx, t.TripID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	committed = true
	return nil
}

func (s *sqlBookingStore) FailPendingTicket(ctx context.Context, ticketID uint64) error {
	return s.settleTicket(ctx, ticketID, s.tickets.MarkFailedTx)
}

func (s *sqlBookingStore) CancelTicket(ctx context.Context, ticketID uint64) error {
	return s.settleTicket(ctx, ticketID, s.tickets.CancelTx)
}

// settleTicket runs a conditional terminal transition and, only when the
// transition actually happened, restores the seat in the same
// transaction.  A racing transition loses the conditional UPDATE and
// restores nothing, which keeps the counter consistent with the set of
// active tickets.
func (s *sqlBookingStore) settleTicket(ctx context.Context, ticketID uint64, transition func(context.Context, *sql.Tx, uint64) error) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settle tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := transition(ctx, tx, ticketID); err != nil {
		return err
	}
	if err := s.trips.RestoreSeatTx(ctx, tx, ticket.TripID); err != nil {
		// ErrNoChange here means the counter was already at total_seats,
		// which can only follow a bookkeeping bug; surface it.
		if errors.Is(err, repository.ErrNoChange) {
			return fmt.Errorf("restore seat for ticket %d: counter already full", ticketID)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settle tx: %w", err)
	}
	committed = true
	return nil
}

func (s *sqlBookingStore) MarkTicketPaid(ctx context.Context, ticketID uint64, paymentRef string) error {
	return s.tickets.MarkPaid(ctx, ticketID, paymentRef)
}

func (s *sqlBookingStore) MarkTicketBoarded(ctx context.Context, ticketID uint64) error {
	return s.tickets.MarkBoarded(ctx, ticketID)
}

func (s *sqlBookingStore) ConsumeLock(ctx context.Context, tripID, seatID uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := s.locks.DeleteTx(ctx, tx, tripID, seatID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
