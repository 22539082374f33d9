// Package queue defines message payloads exchanged over the message
// broker and the publisher/consumer pair for the ticket.paid queue.
package queue

// TicketPaidEvent is published when a ticket's payment is confirmed.  It
// carries enough for downstream consumers (notifications, analytics,
// fiscal export) to act without querying the primary database.
type TicketPaidEvent struct {
	TicketID      uint64 `json:"ticket_id"`
	TripID        uint64 `json:"trip_id"`
	SeatID        uint64 `json:"seat_id"`
	PassengerName string `json:"passenger_name"`
	FareCents     uint32 `json:"fare_cents"`
	ItbmsCents    uint32 `json:"itbms_cents"`
	TotalCents    uint32 `json:"total_cents"`
	ChannelID     string `json:"channel_id"`
	PaidAt        string `json:"paid_at"`
}
