package model

import "time"

// SeatLock is a short-lived advisory hold taken while a buyer is picking
// seats in the UI.  It is not an ownership record: booking re-checks
// everything at commit time against the ticket table.  A lock whose
// ExpiresAt has passed grants no protection even if the row still exists,
// so every reader must call Expired rather than trust the row's presence.
//
// Fields:
//  TripID    – trip the seat belongs to.
//  SeatID    – seat being held.
//  Holder    – opaque holder identity (session token, kiosk UUID, ...).
//  ExpiresAt – when the hold lapses (UTC).
//  CreatedAt – when the hold was taken.
type SeatLock struct {
	TripID    uint64    `json:"trip_id"`
	SeatID    uint64    `json:"seat_id"`
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the lock no longer protects its seat at the
// given instant.
func (l SeatLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
