package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rutadirecta/boleteria/internal/model"
	"github.com/rutadirecta/boleteria/internal/pubsub"
	"github.com/rutadirecta/boleteria/internal/repository"
)

// DefaultLockTTL is how long a seat stays held while a buyer decides.
const DefaultLockTTL = 5 * time.Minute

// MaxLockTTL caps client-requested TTLs so a misbehaving kiosk cannot
// park seats for an hour.
const MaxLockTTL = 15 * time.Minute

// Data sources the lock coordinator consumes.
type (
	lockStore interface {
		Acquire(ctx context.Context, tripID, seatID uint64, holder string, ttl time.Duration) (*model.SeatLock, error)
		Release(ctx context.Context, tripID, seatID uint64, holder string) (bool, error)
		ListActiveByTrip(ctx context.Context, tripID uint64) (map[uint64]model.SeatLock, error)
	}
	tripGetter interface {
		GetByID(ctx context.Context, id uint64) (*model.Trip, error)
	}
	seatGetter interface {
		GetSeat(ctx context.Context, seatID uint64) (*model.Seat, error)
	}
	lockPublisher interface {
		Publish(ctx context.Context, ev pubsub.SeatLockEvent) error
	}
)

// LockService coordinates advisory seat locks during interactive
// selection.  Locks are a UI-concurrency signal only: they stop two
// browsers from both rendering a seat as selectable, while the booking
// transaction stays the sole authority on ownership.  Every state change
// is broadcast on the trip's channel; broadcast failures are swallowed
// because viewers can always re-query the authoritative state.
type LockService struct {
	Locks     lockStore
	Trips     tripGetter
	Seats     seatGetter
	Publisher lockPublisher
	// DefaultTTL overrides DefaultLockTTL when set; deployments tune it
	// via SEAT_LOCK_TTL.
	DefaultTTL time.Duration
}

// NewLockService constructs a LockService over the repository layer and
// a broadcaster.
func NewLockService(locks *repository.SeatLockRepo, trips *repository.TripRepo, seats *repository.VehicleRepo, pub *pubsub.Broadcaster) *LockService {
	return &LockService{Locks: locks, Trips: trips, Seats: seats, Publisher: pub}
}

// Acquire takes (or refreshes) the advisory lock on a seat for holder.
// Fails with repository.ErrSeatLocked when another holder owns an
// unexpired lock, repository.ErrTripNotSellable when the trip no longer
// sells, and repository.ErrSeatUnavailable when the seat is not a
// purchasable position on the trip's vehicle.
func (s *LockService) Acquire(ctx context.Context, tripID, seatID uint64, holder string, ttl time.Duration) (*model.SeatLock, error) {
	if holder == "" {
		return nil, fmt.Errorf("holder is required")
	}
	if ttl <= 0 {
		ttl = s.DefaultTTL
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if ttl > MaxLockTTL {
		ttl = MaxLockTTL
	}

	trip, err := s.Trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.Sellable() {
		return nil, repository.ErrTripNotSellable
	}
	seat, err := s.Seats.GetSeat(ctx, seatID)
	if err != nil {
		return nil, err
	}
	if seat.VehicleID != trip.VehicleID || !seat.Purchasable() {
		return nil, repository.ErrSeatUnavailable
	}

	lock, err := s.Locks.Acquire(ctx, tripID, seatID, holder, ttl)
	if err != nil {
		return nil, err
	}
	_ = s.Publisher.Publish(ctx, pubsub.SeatLockEvent{
		TripID:    tripID,
		SeatID:    seatID,
		Holder:    holder,
		Action:    pubsub.ActionLocked,
		ExpiresAt: lock.ExpiresAt.UTC().Format(time.RFC3339),
	})
	return lock, nil
}

// Release drops holder's lock on a seat.  Releasing a lock you do not
// own, or one that already lapsed, is a no-op — only an actual removal
// is broadcast.
func (s *LockService) Release(ctx context.Context, tripID, seatID uint64, holder string) error {
	if holder == "" {
		return fmt.Errorf("holder is required")
	}
	removed, err := s.Locks.Release(ctx, tripID, seatID, holder)
	if err != nil {
		return err
	}
	if removed {
		_ = s.Publisher.Publish(ctx, pubsub.SeatLockEvent{
			TripID: tripID,
			SeatID: seatID,
			Holder: holder,
			Action: pubsub.ActionReleased,
		})
	}
	return nil
}

// ActiveLocks returns the unexpired locks for a trip keyed by seat ID.
// This is the authoritative read a viewer falls back to after missing
// broadcasts.
func (s *LockService) ActiveLocks(ctx context.Context, tripID uint64) (map[uint64]model.SeatLock, error) {
	locks, err := s.Locks.ListActiveByTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	// Defensive re-check: the store already filters on expiry, but a fake
	// or cached implementation may not, and expired locks must never
	// surface to viewers.
	now := time.Now().UTC()
	for seatID, l := range locks {
		if l.Expired(now) {
			delete(locks, seatID)
		}
	}
	return locks, nil
}

// IsHeldByOther reports whether a live lock owned by someone other than
// holder covers the seat.  Booking consults this for the fast-fail
// SeatLocked answer; the constraint-backed ticket insert remains the
// real guard.
func (s *LockService) IsHeldByOther(ctx context.Context, tripID, seatID uint64, holder string) (bool, error) {
	locks, err := s.ActiveLocks(ctx, tripID)
	if err != nil {
		return false, err
	}
	l, ok := locks[seatID]
	if !ok {
		return false, nil
	}
	return l.Holder != holder, nil
}
