package model

import "time"

// ScheduleTemplate is a recurring departure definition: a route leaves at
// a fixed hour of the day, every day the template is assigned a vehicle.
// Templates carry no calendar date themselves — an Assignment binds them
// to one.  Hour is interpreted in UTC everywhere downstream; generation
// and sellable matching must agree on the time zone or trips silently
// drop out of listings.
//
// Once trips exist for a template only Active and ExpressMultiplier may
// change, and those edits affect future generation only.
//
// Fields:
//  ID                – primary key identifier.
//  RouteID           – route this template departs on.
//  Hour              – departure hour of day, 0–23, UTC.
//  IsExpress         – express services multiply the route base fare.
//  ExpressMultiplier – fare multiplier, ≥ 1.  Ignored unless IsExpress.
//  Active            – inactive templates are skipped by generation.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type ScheduleTemplate struct {
	ID                uint64    `json:"id"`
	RouteID           uint64    `json:"route_id"`
	Hour              uint8     `json:"hour"`
	IsExpress         bool      `json:"is_express"`
	ExpressMultiplier float64   `json:"express_multiplier"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DepartureAt combines a calendar date with the template's hour, in UTC,
// zero-filling minutes and seconds.  This is the single definition of a
// trip's departure timestamp; the generator and the sellable resolver
// both go through it.
func (t ScheduleTemplate) DepartureAt(date time.Time) time.Time {
	d := date.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), int(t.Hour), 0, 0, 0, time.UTC)
}
