package model

import "time"

// Route represents a fixed origin→destination service offered by the
// company.  Routes carry the base fare and an optional duration estimate
// used to derive a trip's arrival time.  Fare and stop editing is handled
// by back-office tooling outside this service; here routes are read-only.
//
// Fields:
//  ID                   – primary key identifier.
//  Origin               – departure terminal name.
//  Destination          – arrival terminal name.
//  BasePriceCents       – standard fare in cents before express pricing.
//  EstimatedDurationMin – travel time estimate in minutes (0 = unknown).
//  IsActive             – inactive routes are excluded from generation
//                         and listings.
//  CreatedAt            – creation timestamp.
//  UpdatedAt            – last update timestamp.
type Route struct {
	ID                   uint64    `json:"id"`
	Origin               string    `json:"origin"`
	Destination          string    `json:"destination"`
	BasePriceCents       uint32    `json:"base_price_cents"`
	EstimatedDurationMin uint32    `json:"estimated_duration_min"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// RouteStop is an intermediate stop along a route, ordered by Position.
// Stops are informational: tickets name a destination stop but seat
// inventory is per trip, not per segment.
type RouteStop struct {
	ID       uint64 `json:"id"`
	RouteID  uint64 `json:"route_id"`
	Name     string `json:"name"`
	Position uint32 `json:"position"` // 0 = first stop after origin
}
