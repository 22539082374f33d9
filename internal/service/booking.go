package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rutadirecta/boleteria/internal/model"
	"github.com/rutadirecta/boleteria/internal/pricing"
	"github.com/rutadirecta/boleteria/internal/pubsub"
	"github.com/rutadirecta/boleteria/internal/queue"
	"github.com/rutadirecta/boleteria/internal/repository"
)

// ErrInsufficientPayment is returned when a cash channel tenders less
// than the ticket total.  Rejected before any ticket is created.
var ErrInsufficientPayment = errors.New("insufficient payment")

// ErrValidation wraps malformed booking input.  Fatal to the single
// request only.
var ErrValidation = errors.New("validation error")

// Payment outcomes reported by the external payment collaborator.
const (
	PaymentOutcomeCompleted = "completed"
	PaymentOutcomeFailed    = "failed"
)

// BookingRequest describes one seat purchase.  Channel and actor arrive
// as explicit parameters — there is no ambient "current session" state.
// TenderedCents is set only by channels that collect funds themselves
// (counter cash); zero means payment settles through the external
// gateway callback.
type BookingRequest struct {
	TripID        uint64
	SeatID        uint64
	PassengerName string
	PassengerDoc  string
	Destination   string
	ChannelID     string
	ActorID       uint64
	Holder        string // advisory lock holder, if the channel held one
	TenderedCents uint32
}

// SeatFailure is the per-seat error entry of a bulk sale.
type SeatFailure struct {
	SeatID uint64 `json:"seat_id"`
	Reason string `json:"reason"`
}

// BulkResult carries the outcome of a bulk sale: both lists together,
// never an aggregate error.  Seats that succeeded stay booked no matter
// what happened to later seats; deciding whether to refund the un-booked
// portion is the caller's business.
type BulkResult struct {
	Tickets  []model.Ticket `json:"tickets"`
	Failures []SeatFailure  `json:"failures"`
}

// Partial reports whether the bulk sale succeeded for some seats only.
func (r BulkResult) Partial() bool { return len(r.Tickets) > 0 && len(r.Failures) > 0 }

// ticketEventPublisher publishes settled-ticket events to the message
// broker.  Nil-safe at the call sites: event loss never fails a sale.
type ticketEventPublisher interface {
	PublishTicketPaid(ctx context.Context, ev queue.TicketPaidEvent) error
}

// BookingService converts seat selections and payment signals into
// durable tickets.  All preconditions are re-checked atomically at
// commit time inside the store, independent of any advisory lock the
// channel held earlier; the lock pre-check below exists only to give
// buyers the more precise SeatLocked answer before the hard constraint
// speaks.
type BookingService struct {
	Store     bookingStore
	Locks     *LockService         // optional advisory pre-check + consumed broadcasts
	Events    ticketEventPublisher // optional broker publisher
	Publisher lockPublisher        // optional lock-event broadcast
}

// NewBookingService wires the booking service.  locks, events and pub
// may be nil; booking then runs without advisory pre-checks or
// broadcasts.
func NewBookingService(store bookingStore, locks *LockService, events ticketEventPublisher, pub lockPublisher) *BookingService {
	return &BookingService{Store: store, Locks: locks, Events: events, Publisher: pub}
}

func (b *BookingService) validate(req BookingRequest) error {
	switch {
	case req.TripID == 0:
		return fmt.Errorf("%w: trip id is required", ErrValidation)
	case req.SeatID == 0:
		return fmt.Errorf("%w: seat id is required", ErrValidation)
	case strings.TrimSpace(req.PassengerName) == "":
		return fmt.Errorf("%w: passenger name is required", ErrValidation)
	case strings.TrimSpace(req.ChannelID) == "":
		return fmt.Errorf("%w: channel id is required", ErrValidation)
	}
	return nil
}

// Book creates one PENDING ticket and takes its seat.  Error map:
// ErrValidation (bad input), repository.ErrTripNotSellable,
// repository.ErrSeatUnavailable, repository.ErrSeatLocked (advisory),
// ErrInsufficientPayment.
func (b *BookingService) Book(ctx context.Context, req BookingRequest) (*model.Ticket, error) {
	if err := b.validate(req); err != nil {
		return nil, err
	}

	trip, err := b.Store.GetTrip(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	if !trip.Sellable() || trip.AvailableSeats == 0 {
		return nil, repository.ErrTripNotSellable
	}
	seat, err := b.Store.GetSeat(ctx, req.SeatID)
	if err != nil {
		return nil, err
	}
	if seat.VehicleID != trip.VehicleID || !seat.Purchasable() {
		return nil, repository.ErrSeatUnavailable
	}

	// Advisory fast-fail: a live foreign lock means someone else is mid
	// purchase.  Skipped entirely when no lock coordinator is wired; the
	// ticket insert below is the authoritative check either way.
	if b.Locks != nil {
		held, err := b.Locks.IsHeldByOther(ctx, req.TripID, req.SeatID, req.Holder)
		if err != nil {
			return nil, err
		}
		if held {
			return nil, repository.ErrSeatLocked
		}
	}

	fare := trip.PriceCents
	itbms := pricing.ItbmsCents(fare)
	total := fare + itbms
	if req.TenderedCents > 0 && req.TenderedCents < total {
		return nil, fmt.Errorf("%w: tendered %d of %d", ErrInsufficientPayment, req.TenderedCents, total)
	}

	ticket := &model.Ticket{
		TripID:        req.TripID,
		SeatID:        req.SeatID,
		PassengerName: strings.TrimSpace(req.PassengerName),
		PassengerDoc:  strings.TrimSpace(req.PassengerDoc),
		Destination:   strings.TrimSpace(req.Destination),
		FareCents:     fare,
		ItbmsCents:    itbms,
		TotalCents:    total,
		Status:        model.TicketStatusPending,
		ChannelID:     req.ChannelID,
		ActorID:       req.ActorID,
	}
	if err := b.Store.CreatePendingTicket(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// BookBulk books N seats as one commercial transaction but processes
// each seat independently: a failure on seat k never rolls back seats
// 1..k−1.  The result carries succeeded tickets and per-seat failures
// together.
func (b *BookingService) BookBulk(ctx context.Context, reqs []BookingRequest) (*BulkResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no seats requested", ErrValidation)
	}
	result := &BulkResult{Tickets: []model.Ticket{}, Failures: []SeatFailure{}}
	for _, req := range reqs {
		ticket, err := b.Book(ctx, req)
		if err != nil {
			result.Failures = append(result.Failures, SeatFailure{SeatID: req.SeatID, Reason: failureReason(err)})
			continue
		}
		result.Tickets = append(result.Tickets, *ticket)
	}
	return result, nil
}

// failureReason maps an error onto the stable per-seat reason strings of
// a bulk result.
func failureReason(err error) string {
	switch {
	case errors.Is(err, repository.ErrSeatUnavailable):
		return "seat unavailable"
	case errors.Is(err, repository.ErrSeatLocked):
		return "seat locked"
	case errors.Is(err, repository.ErrTripNotSellable):
		return "trip not sellable"
	case errors.Is(err, ErrInsufficientPayment):
		return "insufficient payment"
	case errors.Is(err, repository.ErrNotFound):
		return "not found"
	default:
		return err.Error()
	}
}

// ConfirmPayment applies the external payment collaborator's verdict.
// "completed" moves the ticket to PAID, consumes any advisory lock on
// the seat, and emits the broker event; "failed" moves it to FAILED and
// restores the seat as if it had never been taken.  Duplicate callbacks
// land on the conditional transitions and report ErrNoChange.
func (b *BookingService) ConfirmPayment(ctx context.Context, ticketID uint64, outcome, paymentRef string) (*model.Ticket, error) {
	switch outcome {
	case PaymentOutcomeCompleted:
		if paymentRef == "" {
			paymentRef = uuid.NewString()
		}
		if err := b.Store.MarkTicketPaid(ctx, ticketID, paymentRef); err != nil {
			return nil, err
		}
	case PaymentOutcomeFailed:
		if err := b.Store.FailPendingTicket(ctx, ticketID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown payment outcome %q", ErrValidation, outcome)
	}

	ticket, err := b.Store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if outcome == PaymentOutcomeCompleted {
		if err := b.Store.ConsumeLock(ctx, ticket.TripID, ticket.SeatID); err == nil && b.Publisher != nil {
			_ = b.Publisher.Publish(ctx, pubsub.SeatLockEvent{
				TripID: ticket.TripID,
				SeatID: ticket.SeatID,
				Action: pubsub.ActionConsumed,
			})
		}
		if b.Events != nil {
			_ = b.Events.PublishTicketPaid(ctx, queue.TicketPaidEvent{
				TicketID:      ticket.ID,
				TripID:        ticket.TripID,
				SeatID:        ticket.SeatID,
				PassengerName: ticket.PassengerName,
				FareCents:     ticket.FareCents,
				ItbmsCents:    ticket.ItbmsCents,
				TotalCents:    ticket.TotalCents,
				ChannelID:     ticket.ChannelID,
				PaidAt:        time.Now().UTC().Format(time.RFC3339),
			})
		}
	}
	return ticket, nil
}

// Cancel releases a ticket's seat back to the trip and marks the ticket
// cancelled.  Boarded and completed tickets cannot be cancelled; racing
// a cancellation against boarding is safe because only the caller whose
// conditional transition lands restores the seat.
func (b *BookingService) Cancel(ctx context.Context, ticketID uint64) (*model.Ticket, error) {
	if err := b.Store.CancelTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	return b.Store.GetTicket(ctx, ticketID)
}

// Validate handles a boarding scan: PENDING or PAID tickets transition
// to BOARDED, anything else is rejected with ErrNoChange.
func (b *BookingService) Validate(ctx context.Context, ticketID uint64) (*model.Ticket, error) {
	if err := b.Store.MarkTicketBoarded(ctx, ticketID); err != nil {
		return nil, err
	}
	return b.Store.GetTicket(ctx, ticketID)
}
