package model

import "time"

// Trip status values.
const (
	TripStatusScheduled = "SCHEDULED"
	TripStatusBoarding  = "BOARDING"
	TripStatusCompleted = "COMPLETED"
	TripStatusCancelled = "CANCELLED"
)

// Trip is a concrete, bookable departure: a template materialized onto a
// date and a vehicle.  Price and capacity are frozen at generation time —
// later fare or fleet edits never touch an existing trip.
//
// A trip deliberately stores no foreign key back to its template or
// assignment.  The relationship is re-derived by matching the trip's
// route plus the UTC hour and UTC date of DepartureAt against live
// template/assignment rows, so a trip stays bookable even after its
// generating schedule is edited or removed.
//
// Fields:
//  ID              – primary key identifier.
//  RouteID         – route the trip runs.
//  VehicleID       – bus running the trip.
//  DepartureAt     – absolute departure timestamp (UTC).
//  ArrivalEstimate – optional arrival estimate (nullable).
//  Status          – SCHEDULED, BOARDING, COMPLETED or CANCELLED.
//  TotalSeats      – purchasable capacity copied from the vehicle.
//  AvailableSeats  – seats not covered by an active ticket.
//  PriceCents      – per-seat fare frozen at generation.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Trip struct {
	ID              uint64     `json:"id"`
	RouteID         uint64     `json:"route_id"`
	VehicleID       uint64     `json:"vehicle_id"`
	DepartureAt     time.Time  `json:"departure_at"` // UTC
	ArrivalEstimate *time.Time `json:"arrival_estimate,omitempty"`
	Status          string     `json:"status"`
	TotalSeats      uint32     `json:"total_seats"`
	AvailableSeats  uint32     `json:"available_seats"`
	PriceCents      uint32     `json:"price_cents"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Sellable reports whether tickets may currently be issued for the trip.
func (t Trip) Sellable() bool {
	return t.Status == TripStatusScheduled || t.Status == TripStatusBoarding
}
