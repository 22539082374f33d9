package model

import "time"

// Ticket status values.  PENDING through COMPLETED are "active": the seat
// is owned and counted against the trip's available seats.  CANCELLED and
// FAILED are terminal; the seat has been (or never was) returned.
const (
	TicketStatusPending   = "PENDING"
	TicketStatusPaid      = "PAID"
	TicketStatusBoarded   = "BOARDED"
	TicketStatusCompleted = "COMPLETED"
	TicketStatusCancelled = "CANCELLED"
	TicketStatusFailed    = "FAILED"
)

// Ticket is the durable seat-ownership record, independent of any
// advisory seat lock.  At most one active ticket exists per (trip, seat)
// at any time; the database enforces this with a uniqueness constraint,
// not application code.
//
// Fields:
//  ID            – primary key identifier.
//  TripID        – trip the seat belongs to.
//  SeatID        – seat being owned.
//  PassengerName – passenger full name.
//  PassengerDoc  – passenger identity document number.
//  Destination   – destination stop name as printed on the ticket.
//  FareCents     – seat fare, frozen from the trip price.
//  ItbmsCents    – ITBMS tax amount.
//  TotalCents    – fare + tax.
//  Status        – see status constants above.
//  ChannelID     – sales channel that created the ticket (counter,
//                  storefront, kiosk); explicit, never ambient state.
//  ActorID       – operator who sold the ticket, 0 for self-service.
//  PaymentRef    – external payment reference (nullable).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Ticket struct {
	ID            uint64    `json:"id"`
	TripID        uint64    `json:"trip_id"`
	SeatID        uint64    `json:"seat_id"`
	PassengerName string    `json:"passenger_name"`
	PassengerDoc  string    `json:"passenger_doc"`
	Destination   string    `json:"destination"`
	FareCents     uint32    `json:"fare_cents"`
	ItbmsCents    uint32    `json:"itbms_cents"`
	TotalCents    uint32    `json:"total_cents"`
	Status        string    `json:"status"`
	ChannelID     string    `json:"channel_id"`
	ActorID       uint64    `json:"actor_id"`
	PaymentRef    *string   `json:"payment_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StatusIsActive reports whether a ticket status counts as seat
// ownership.  availableSeats(trip) = totalSeats − count(active tickets)
// must hold at all times.
func StatusIsActive(status string) bool {
	switch status {
	case TicketStatusPending, TicketStatusPaid, TicketStatusBoarded, TicketStatusCompleted:
		return true
	}
	return false
}

// Active reports whether the ticket currently owns its seat.
func (t Ticket) Active() bool { return StatusIsActive(t.Status) }
