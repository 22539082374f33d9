package model

import "time"

// Assignment binds a ScheduleTemplate to one calendar date and one
// vehicle: the intent to actually run the template that day.  At most one
// assignment exists per (template, date) — a template runs once per day.
// VehicleID is nullable because dispatchers sometimes pencil in a date
// before a bus is available; such assignments are skipped by generation
// with a recorded reason.
//
// Fields:
//  ID         – primary key identifier.
//  ScheduleID – template being scheduled.
//  VehicleID  – bus that will run the departure (nullable).
//  DriverID   – optional crew reference (nullable).
//  Date       – calendar date (date-only, stored as DATE, UTC).
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Assignment struct {
	ID         uint64    `json:"id"`
	ScheduleID uint64    `json:"schedule_id"`
	VehicleID  *uint64   `json:"vehicle_id"`
	DriverID   *uint64   `json:"driver_id"`
	Date       time.Time `json:"date"` // midnight UTC
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AssignmentChange is the audit record written whenever the vehicle on an
// existing assignment is swapped.  History is never deleted; operators
// answer "why did bus 14 run this departure" from these rows.
type AssignmentChange struct {
	ID           uint64    `json:"id"`
	AssignmentID uint64    `json:"assignment_id"`
	OldVehicleID *uint64   `json:"old_vehicle_id"`
	NewVehicleID uint64    `json:"new_vehicle_id"`
	Reason       string    `json:"reason"`
	ActorID      uint64    `json:"actor_id"`
	CreatedAt    time.Time `json:"created_at"`
}
