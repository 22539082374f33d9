package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutadirecta/boleteria/internal/model"
	"github.com/rutadirecta/boleteria/internal/pubsub"
	"github.com/rutadirecta/boleteria/internal/repository"
)

// fakeLockStore mirrors the SQL acquire semantics: an unexpired foreign
// lock wins, anything else is overwritten.  ListActiveByTrip returns
// rows without filtering expiry so the service's defensive filter gets
// exercised.
type fakeLockStore struct {
	mu    sync.Mutex
	locks map[[2]uint64]model.SeatLock
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{locks: make(map[[2]uint64]model.SeatLock)}
}

func (f *fakeLockStore) Acquire(_ context.Context, tripID, seatID uint64, holder string, ttl time.Duration) (*model.SeatLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uint64{tripID, seatID}
	now := time.Now().UTC()
	if l, ok := f.locks[key]; ok && !l.Expired(now) && l.Holder != holder {
		return nil, repository.ErrSeatLocked
	}
	l := model.SeatLock{TripID: tripID, SeatID: seatID, Holder: holder, ExpiresAt: now.Add(ttl), CreatedAt: now}
	f.locks[key] = l
	return &l, nil
}

func (f *fakeLockStore) Release(_ context.Context, tripID, seatID uint64, holder string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uint64{tripID, seatID}
	if l, ok := f.locks[key]; ok && l.Holder == holder {
		delete(f.locks, key)
		return true, nil
	}
	return false, nil
}

func (f *fakeLockStore) ListActiveByTrip(_ context.Context, tripID uint64) (map[uint64]model.SeatLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint64]model.SeatLock)
	for key, l := range f.locks {
		if key[0] == tripID {
			out[l.SeatID] = l
		}
	}
	return out, nil
}

type fakeTripGetter map[uint64]*model.Trip

func (f fakeTripGetter) GetByID(_ context.Context, id uint64) (*model.Trip, error) {
	t, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

type fakeSeatGetter map[uint64]*model.Seat

func (f fakeSeatGetter) GetSeat(_ context.Context, id uint64) (*model.Seat, error) {
	s, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

type recordPublisher struct {
	mu     sync.Mutex
	events []pubsub.SeatLockEvent
}

func (p *recordPublisher) Publish(_ context.Context, ev pubsub.SeatLockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordPublisher) byAction(action string) []pubsub.SeatLockEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pubsub.SeatLockEvent, 0)
	for _, ev := range p.events {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

func newLockFixture() (*LockService, *fakeLockStore, *recordPublisher) {
	store := newFakeLockStore()
	pub := &recordPublisher{}
	svc := &LockService{
		Locks: store,
		Trips: fakeTripGetter{
			1: {ID: 1, VehicleID: 100, Status: model.TripStatusScheduled, TotalSeats: 48, AvailableSeats: 48},
			2: {ID: 2, VehicleID: 100, Status: model.TripStatusCancelled},
		},
		Seats: fakeSeatGetter{
			10: {ID: 10, VehicleID: 100, Number: 1, SeatType: model.SeatTypeSellable, IsActive: true},
			11: {ID: 11, VehicleID: 100, Number: 2, SeatType: model.SeatTypeAisle, IsActive: true},
			12: {ID: 12, VehicleID: 999, Number: 1, SeatType: model.SeatTypeSellable, IsActive: true},
		},
		Publisher: pub,
	}
	return svc, store, pub
}

func TestAcquireRefreshAndConflict(t *testing.T) {
	svc, _, pub := newLockFixture()
	ctx := context.Background()

	lock, err := svc.Acquire(ctx, 1, 10, "kiosk-a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "kiosk-a", lock.Holder)

	// Same holder refreshes.
	again, err := svc.Acquire(ctx, 1, 10, "kiosk-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, again.ExpiresAt.After(time.Now().UTC()))

	// Foreign holder is rejected.
	_, err = svc.Acquire(ctx, 1, 10, "kiosk-b", time.Minute)
	assert.ErrorIs(t, err, repository.ErrSeatLocked)

	assert.Len(t, pub.byAction(pubsub.ActionLocked), 2)
}

func TestAcquireValidatesTripAndSeat(t *testing.T) {
	svc, _, _ := newLockFixture()
	ctx := context.Background()

	_, err := svc.Acquire(ctx, 2, 10, "kiosk-a", time.Minute)
	assert.ErrorIs(t, err, repository.ErrTripNotSellable)

	_, err = svc.Acquire(ctx, 1, 11, "kiosk-a", time.Minute)
	assert.ErrorIs(t, err, repository.ErrSeatUnavailable, "aisle fixtures cannot be held")

	_, err = svc.Acquire(ctx, 1, 12, "kiosk-a", time.Minute)
	assert.ErrorIs(t, err, repository.ErrSeatUnavailable, "seat belongs to another vehicle")

	_, err = svc.Acquire(ctx, 1, 10, "", time.Minute)
	assert.Error(t, err)
}

func TestAcquireClampsTTL(t *testing.T) {
	svc, _, _ := newLockFixture()

	lock, err := svc.Acquire(context.Background(), 1, 10, "kiosk-a", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(MaxLockTTL), lock.ExpiresAt, 5*time.Second)
}

func TestExpiredLockTreatedAsAbsent(t *testing.T) {
	svc, store, _ := newLockFixture()
	ctx := context.Background()

	// Seed an already-expired lock directly in the store.
	store.locks[[2]uint64{1, 10}] = model.SeatLock{
		TripID: 1, SeatID: 10, Holder: "kiosk-old",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}

	active, err := svc.ActiveLocks(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, active, "expired locks must not surface to viewers")

	held, err := svc.IsHeldByOther(ctx, 1, 10, "kiosk-new")
	require.NoError(t, err)
	assert.False(t, held)

	// And a new holder can take the seat over.
	lock, err := svc.Acquire(ctx, 1, 10, "kiosk-new", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "kiosk-new", lock.Holder)
}

func TestReleaseOnlyBroadcastsActualRemovals(t *testing.T) {
	svc, _, pub := newLockFixture()
	ctx := context.Background()

	_, err := svc.Acquire(ctx, 1, 10, "kiosk-a", time.Minute)
	require.NoError(t, err)

	// Wrong holder: no-op, no broadcast.
	require.NoError(t, svc.Release(ctx, 1, 10, "kiosk-b"))
	assert.Empty(t, pub.byAction(pubsub.ActionReleased))

	// Owner releases: broadcast once.
	require.NoError(t, svc.Release(ctx, 1, 10, "kiosk-a"))
	assert.Len(t, pub.byAction(pubsub.ActionReleased), 1)

	// Releasing again is still a quiet no-op.
	require.NoError(t, svc.Release(ctx, 1, 10, "kiosk-a"))
	assert.Len(t, pub.byAction(pubsub.ActionReleased), 1)
}
