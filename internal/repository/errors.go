// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values let higher layers distinguish
// failure scenarios with errors.Is instead of string matching: handlers
// map them onto HTTP statuses, and the booking service maps them onto
// per-seat results in bulk sales.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrSeatLocked is returned when another holder owns an unexpired
// advisory lock on a seat.  Transient: the caller may retry after the
// lock's TTL.
var ErrSeatLocked = errors.New("seat locked by another holder")

// ErrSeatUnavailable is returned when a seat already carries an active
// ticket.  Terminal for that seat; the caller must pick another.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrTripNotSellable is returned when a trip exists but its status or
// remaining capacity no longer admits new tickets.
var ErrTripNotSellable = errors.New("trip not sellable")

// ErrDuplicateTrip is returned when a trip with the same
// (route, vehicle, departure) signature already exists.  Generation
// treats this as a skip, never as a failure.
var ErrDuplicateTrip = errors.New("trip already generated")

// ErrDuplicateAssignment is returned when a template already has an
// assignment for the requested date.
var ErrDuplicateAssignment = errors.New("assignment already exists for date")

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoChange indicates a conditional UPDATE matched no row, typically
// because the row was no longer in a state the transition allows.
var ErrNoChange = errors.New("no change")

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (1062).  Uniqueness constraints are the serialization point for seat
// ownership and trip identity, so repositories translate 1062 into the
// domain sentinels above instead of surfacing the driver error.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
