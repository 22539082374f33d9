package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutadirecta/boleteria/internal/model"
	"github.com/rutadirecta/boleteria/internal/pubsub"
	"github.com/rutadirecta/boleteria/internal/queue"
	"github.com/rutadirecta/boleteria/internal/repository"
)

// memStore is an in-memory bookingStore with the same atomicity
// guarantees the SQL store gets from its transactions and unique keys:
// one mutex serializes every mutation, so a ticket insert and its seat
// decrement are indivisible.
type memStore struct {
	mu       sync.Mutex
	trips    map[uint64]*model.Trip
	seats    map[uint64]*model.Seat
	tickets  map[uint64]*model.Ticket
	nextID   uint64
	consumed [][2]uint64 // (trip, seat) pairs passed to ConsumeLock
}

func newMemStore() *memStore {
	return &memStore{
		trips:   make(map[uint64]*model.Trip),
		seats:   make(map[uint64]*model.Seat),
		tickets: make(map[uint64]*model.Ticket),
	}
}

func (s *memStore) GetTrip(_ context.Context, tripID uint64) (*model.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) GetSeat(_ context.Context, seatID uint64) (*model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[seatID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *seat
	return &cp, nil
}

func (s *memStore) GetTicket(_ context.Context, ticketID uint64) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) CreatePendingTicket(_ context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trip, ok := s.trips[t.TripID]
	if !ok {
		return repository.ErrNotFound
	}
	if !trip.Sellable() || trip.AvailableSeats == 0 {
		return repository.ErrTripNotSellable
	}
	for _, ex := range s.tickets {
		if ex.TripID == t.TripID && ex.SeatID == t.SeatID && ex.Active() {
			return repository.ErrSeatUnavailable
		}
	}
	s.nextID++
	t.ID = s.nextID
	t.Status = model.TicketStatusPending
	cp := *t
	s.tickets[t.ID] = &cp
	trip.AvailableSeats--
	return nil
}

func (s *memStore) FailPendingTicket(_ context.Context, ticketID uint64) error {
	return s.settle(ticketID, model.TicketStatusFailed, []string{model.TicketStatusPending})
}

func (s *memStore) CancelTicket(_ context.Context, ticketID uint64) error {
	return s.settle(ticketID, model.TicketStatusCancelled, []string{model.TicketStatusPending, model.TicketStatusPaid})
}

func (s *memStore) settle(ticketID uint64, to string, from []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	allowed := false
	for _, f := range from {
		if t.Status == f {
			allowed = true
		}
	}
	if !allowed {
		return repository.ErrNoChange
	}
	t.Status = to
	s.trips[t.TripID].AvailableSeats++
	return nil
}

func (s *memStore) MarkTicketPaid(_ context.Context, ticketID uint64, paymentRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	if t.Status != model.TicketStatusPending {
		return repository.ErrNoChange
	}
	t.Status = model.TicketStatusPaid
	t.PaymentRef = &paymentRef
	return nil
}

func (s *memStore) MarkTicketBoarded(_ context.Context, ticketID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	if t.Status != model.TicketStatusPending && t.Status != model.TicketStatusPaid {
		return repository.ErrNoChange
	}
	t.Status = model.TicketStatusBoarded
	return nil
}

func (s *memStore) ConsumeLock(_ context.Context, tripID, seatID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumed = append(s.consumed, [2]uint64{tripID, seatID})
	return nil
}

func (s *memStore) activeCount(tripID uint64) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n uint32
	for _, t := range s.tickets {
		if t.TripID == tripID && t.Active() {
			n++
		}
	}
	return n
}

type recordTicketEvents struct {
	mu     sync.Mutex
	events []queue.TicketPaidEvent
}

func (r *recordTicketEvents) PublishTicketPaid(_ context.Context, ev queue.TicketPaidEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func newBookingFixture() (*BookingService, *memStore, *recordTicketEvents, *recordPublisher) {
	store := newMemStore()
	store.trips[1] = &model.Trip{ID: 1, VehicleID: 100, Status: model.TripStatusScheduled, TotalSeats: 4, AvailableSeats: 4, PriceCents: 2400}
	for i := uint64(10); i < 14; i++ {
		store.seats[i] = &model.Seat{ID: i, VehicleID: 100, Number: uint32(i - 9), SeatType: model.SeatTypeSellable, IsActive: true}
	}
	events := &recordTicketEvents{}
	pub := &recordPublisher{}
	return &BookingService{Store: store, Events: events, Publisher: pub}, store, events, pub
}

func bookReq(seatID uint64) BookingRequest {
	return BookingRequest{
		TripID:        1,
		SeatID:        seatID,
		PassengerName: "Ana Diaz",
		PassengerDoc:  "8-123-456",
		Destination:   "David",
		ChannelID:     "COUNTER",
		ActorID:       7,
	}
}

func TestBookCreatesPendingTicket(t *testing.T) {
	svc, store, _, _ := newBookingFixture()

	ticket, err := svc.Book(context.Background(), bookReq(10))
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusPending, ticket.Status)
	assert.Equal(t, uint32(2400), ticket.FareCents)
	assert.Equal(t, uint32(168), ticket.ItbmsCents)
	assert.Equal(t, uint32(2568), ticket.TotalCents)
	assert.Equal(t, "COUNTER", ticket.ChannelID)
	assert.Equal(t, uint64(7), ticket.ActorID)

	trip, _ := store.GetTrip(context.Background(), 1)
	assert.Equal(t, uint32(3), trip.AvailableSeats)
}

func TestBookValidation(t *testing.T) {
	svc, _, _, _ := newBookingFixture()
	ctx := context.Background()

	cases := []BookingRequest{
		{SeatID: 10, PassengerName: "x", ChannelID: "COUNTER"},           // no trip
		{TripID: 1, PassengerName: "x", ChannelID: "COUNTER"},            // no seat
		{TripID: 1, SeatID: 10, ChannelID: "COUNTER"},                    // no passenger
		{TripID: 1, SeatID: 10, PassengerName: "   ", ChannelID: "COUNTER"}, // blank passenger
		{TripID: 1, SeatID: 10, PassengerName: "x"},                      // no channel
	}
	for _, req := range cases {
		_, err := svc.Book(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestBookInsufficientPayment(t *testing.T) {
	svc, store, _, _ := newBookingFixture()

	req := bookReq(10)
	req.TenderedCents = 2500 // total is 2568
	_, err := svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrInsufficientPayment)
	assert.Zero(t, store.activeCount(1), "rejected payment must not create a ticket")

	req.TenderedCents = 2568
	_, err = svc.Book(context.Background(), req)
	assert.NoError(t, err)
}

func TestBookConcurrentSameSeatSingleWinner(t *testing.T) {
	svc, store, _, _ := newBookingFixture()
	ctx := context.Background()

	const buyers = 50
	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(ctx, bookReq(10))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, repository.ErrSeatUnavailable):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won, "exactly one buyer gets the seat")
	assert.Equal(t, buyers-1, lost)

	trip, _ := store.GetTrip(ctx, 1)
	assert.Equal(t, trip.TotalSeats-store.activeCount(1), trip.AvailableSeats,
		"available seats must equal capacity minus active tickets")
}

func TestBookBulkPartialFailure(t *testing.T) {
	svc, _, _, _ := newBookingFixture()
	ctx := context.Background()

	// Seat 11 is sold before the bulk request arrives.
	_, err := svc.Book(ctx, bookReq(11))
	require.NoError(t, err)

	result, err := svc.BookBulk(ctx, []BookingRequest{bookReq(10), bookReq(11), bookReq(12)})
	require.NoError(t, err)
	assert.True(t, result.Partial())
	assert.Len(t, result.Tickets, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, uint64(11), result.Failures[0].SeatID)
	assert.Equal(t, "seat unavailable", result.Failures[0].Reason)
}

func TestBookAdvisoryLockFastFail(t *testing.T) {
	svc, store, _, _ := newBookingFixture()
	ctx := context.Background()

	lockStore := newFakeLockStore()
	svc.Locks = &LockService{
		Locks:     lockStore,
		Trips:     fakeTripGetter{1: store.trips[1]},
		Seats:     fakeSeatGetter{10: store.seats[10]},
		Publisher: &recordPublisher{},
	}
	_, err := svc.Locks.Acquire(ctx, 1, 10, "kiosk-b", time.Minute)
	require.NoError(t, err)

	// A buyer without the lock is turned away with the precise answer.
	_, err = svc.Book(ctx, bookReq(10))
	assert.ErrorIs(t, err, repository.ErrSeatLocked)

	// The lock holder books through.
	req := bookReq(10)
	req.Holder = "kiosk-b"
	_, err = svc.Book(ctx, req)
	assert.NoError(t, err)
}

func TestConfirmPaymentCompleted(t *testing.T) {
	svc, store, events, pub := newBookingFixture()
	ctx := context.Background()

	ticket, err := svc.Book(ctx, bookReq(10))
	require.NoError(t, err)

	paid, err := svc.ConfirmPayment(ctx, ticket.ID, PaymentOutcomeCompleted, "pay-123")
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusPaid, paid.Status)
	require.NotNil(t, paid.PaymentRef)
	assert.Equal(t, "pay-123", *paid.PaymentRef)

	// The advisory lock was consumed and both broadcasts went out.
	assert.Equal(t, [][2]uint64{{1, 10}}, store.consumed)
	assert.Len(t, pub.byAction(pubsub.ActionConsumed), 1)
	require.Len(t, events.events, 1)
	assert.Equal(t, ticket.ID, events.events[0].TicketID)
	assert.Equal(t, uint32(2568), events.events[0].TotalCents)

	// Duplicate callback: conflict, nothing changes.
	_, err = svc.ConfirmPayment(ctx, ticket.ID, PaymentOutcomeCompleted, "pay-123")
	assert.ErrorIs(t, err, repository.ErrNoChange)
	assert.Len(t, events.events, 1)
}

func TestConfirmPaymentFailedRestoresSeat(t *testing.T) {
	svc, store, events, _ := newBookingFixture()
	ctx := context.Background()

	ticket, err := svc.Book(ctx, bookReq(10))
	require.NoError(t, err)

	failed, err := svc.ConfirmPayment(ctx, ticket.ID, PaymentOutcomeFailed, "")
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusFailed, failed.Status)
	assert.Empty(t, events.events, "failed payments emit no broker event")

	trip, _ := store.GetTrip(ctx, 1)
	assert.Equal(t, uint32(4), trip.AvailableSeats)

	// The seat is immediately sellable again.
	_, err = svc.Book(ctx, bookReq(10))
	assert.NoError(t, err)
}

func TestConfirmPaymentUnknownOutcome(t *testing.T) {
	svc, _, _, _ := newBookingFixture()

	_, err := svc.ConfirmPayment(context.Background(), 1, "maybe", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCancelRoundTrip(t *testing.T) {
	svc, store, _, _ := newBookingFixture()
	ctx := context.Background()

	ticket, err := svc.Book(ctx, bookReq(10))
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusCancelled, cancelled.Status)

	trip, _ := store.GetTrip(ctx, 1)
	assert.Equal(t, uint32(4), trip.AvailableSeats)

	// Cancelling twice returns nothing twice.
	_, err = svc.Cancel(ctx, ticket.ID)
	assert.ErrorIs(t, err, repository.ErrNoChange)
	trip, _ = store.GetTrip(ctx, 1)
	assert.Equal(t, uint32(4), trip.AvailableSeats, "seat is returned exactly once")
}

func TestValidateBoarding(t *testing.T) {
	svc, _, _, _ := newBookingFixture()
	ctx := context.Background()

	ticket, err := svc.Book(ctx, bookReq(10))
	require.NoError(t, err)
	_, err = svc.ConfirmPayment(ctx, ticket.ID, PaymentOutcomeCompleted, "pay-1")
	require.NoError(t, err)

	boarded, err := svc.Validate(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusBoarded, boarded.Status)

	// Second scan of the same ticket is rejected.
	_, err = svc.Validate(ctx, ticket.ID)
	assert.ErrorIs(t, err, repository.ErrNoChange)

	// A boarded ticket cannot be cancelled.
	_, err = svc.Cancel(ctx, ticket.ID)
	assert.ErrorIs(t, err, repository.ErrNoChange)
}

func TestBookTripFull(t *testing.T) {
	svc, store, _, _ := newBookingFixture()
	ctx := context.Background()
	store.trips[1].AvailableSeats = 0

	_, err := svc.Book(ctx, bookReq(10))
	assert.ErrorIs(t, err, repository.ErrTripNotSellable)
}

func TestBookCancelledTrip(t *testing.T) {
	svc, store, _, _ := newBookingFixture()
	ctx := context.Background()
	store.trips[1].Status = model.TripStatusCancelled

	_, err := svc.Book(ctx, bookReq(10))
	assert.ErrorIs(t, err, repository.ErrTripNotSellable)
}
