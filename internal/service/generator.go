// Package service implements the scheduling and booking engine on top of
// the repository layer: trip generation, sellable-schedule resolution,
// advisory seat locks and the booking transaction itself.  Services
// depend on narrow interfaces rather than concrete repositories so the
// concurrency and idempotency contracts can be exercised in tests
// without a database.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rutadirecta/boleteria/internal/model"
	"github.com/rutadirecta/boleteria/internal/pricing"
	"github.com/rutadirecta/boleteria/internal/repository"
)

// Skip reasons recorded by the generator.  Operators diagnose "why didn't
// this run get trips" from these strings, so they are stable values, not
// free text.
const (
	SkipNoVehicle        = "no vehicle assigned"
	SkipTemplateInactive = "template inactive"
	SkipTemplateMissing  = "template missing"
	SkipRouteInactive    = "route inactive"
	SkipVehicleInactive  = "vehicle inactive"
	SkipAlreadyGenerated = "already generated"
)

// SkipRecord explains why an assignment produced no trip.  Skips are a
// normal outcome — a 0-created / N-skipped run is not an error.
type SkipRecord struct {
	AssignmentID uint64 `json:"assignment_id"`
	ScheduleID   uint64 `json:"schedule_id"`
	Reason       string `json:"reason"`
}

// GenerationResult is the full outcome of one generation run.  Callers
// must surface both lists.
type GenerationResult struct {
	Created []model.Trip `json:"created"`
	Skipped []SkipRecord `json:"skipped"`
}

// Data sources the generator consumes.  Satisfied by the repository
// types; fakes implement them in tests.
type (
	assignmentLister interface {
		ListByDate(ctx context.Context, date time.Time) ([]model.Assignment, error)
	}
	templateGetter interface {
		GetByID(ctx context.Context, id uint64) (*model.ScheduleTemplate, error)
	}
	routeGetter interface {
		GetByID(ctx context.Context, id uint64) (*model.Route, error)
	}
	vehicleGetter interface {
		GetByID(ctx context.Context, id uint64) (*model.Vehicle, error)
	}
	tripCreator interface {
		Create(ctx context.Context, t *model.Trip) error
	}
)

// TripGenerator materializes concrete trips from the assignment ledger
// for one target date.  Runs are idempotent per (schedule, vehicle,
// date): the trip table's natural-key constraint absorbs both re-runs
// and concurrent runs, surfacing duplicates as skips.
type TripGenerator struct {
	Assignments assignmentLister
	Templates   templateGetter
	Routes      routeGetter
	Vehicles    vehicleGetter
	Trips       tripCreator
}

// NewTripGenerator constructs a TripGenerator over the repository layer.
func NewTripGenerator(a *repository.AssignmentRepo, s *repository.ScheduleRepo, r *repository.RouteRepo, v *repository.VehicleRepo, t *repository.TripRepo) *TripGenerator {
	return &TripGenerator{Assignments: a, Templates: s, Routes: r, Vehicles: v, Trips: t}
}

// Generate produces trips for every assignment on the given date.
// Inactive templates, routes and vehicles, and assignments without a
// vehicle, are skipped with a recorded reason.  departure = date + the
// template's hour in UTC, minutes and seconds zero-filled; price and
// capacity are frozen from the route and vehicle as they stand right
// now.
func (g *TripGenerator) Generate(ctx context.Context, date time.Time) (*GenerationResult, error) {
	assignments, err := g.Assignments.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	result := &GenerationResult{Created: []model.Trip{}, Skipped: []SkipRecord{}}
	for _, a := range assignments {
		trip, reason, err := g.materialize(ctx, a)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			result.Skipped = append(result.Skipped, SkipRecord{AssignmentID: a.ID, ScheduleID: a.ScheduleID, Reason: reason})
			continue
		}
		result.Created = append(result.Created, *trip)
	}
	return result, nil
}

// materialize turns one assignment into a trip, or returns a skip
// reason.  A non-empty reason with a nil error is the normal skip path.
func (g *TripGenerator) materialize(ctx context.Context, a model.Assignment) (*model.Trip, string, error) {
	if a.VehicleID == nil {
		return nil, SkipNoVehicle, nil
	}

	tpl, err := g.Templates.GetByID(ctx, a.ScheduleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, SkipTemplateMissing, nil
		}
		return nil, "", fmt.Errorf("load template %d: %w", a.ScheduleID, err)
	}
	if !tpl.Active {
		return nil, SkipTemplateInactive, nil
	}

	route, err := g.Routes.GetByID(ctx, tpl.RouteID)
	if err != nil {
		return nil, "", fmt.Errorf("load route %d: %w", tpl.RouteID, err)
	}
	if !route.IsActive {
		return nil, SkipRouteInactive, nil
	}

	vehicle, err := g.Vehicles.GetByID(ctx, *a.VehicleID)
	if err != nil {
		return nil, "", fmt.Errorf("load vehicle %d: %w", *a.VehicleID, err)
	}
	if !vehicle.IsActive {
		return nil, SkipVehicleInactive, nil
	}

	departure := tpl.DepartureAt(a.Date)
	trip := &model.Trip{
		RouteID:        route.ID,
		VehicleID:      vehicle.ID,
		DepartureAt:    departure,
		Status:         model.TripStatusScheduled,
		TotalSeats:     vehicle.Capacity,
		AvailableSeats: vehicle.Capacity,
		PriceCents:     pricing.TripPriceCents(route.BasePriceCents, tpl.IsExpress, tpl.ExpressMultiplier),
	}
	if route.EstimatedDurationMin > 0 {
		arrival := departure.Add(time.Duration(route.EstimatedDurationMin) * time.Minute)
		trip.ArrivalEstimate = &arrival
	}

	if err := g.Trips.Create(ctx, trip); err != nil {
		if errors.Is(err, repository.ErrDuplicateTrip) {
			return nil, SkipAlreadyGenerated, nil
		}
		return nil, "", fmt.Errorf("create trip for assignment %d: %w", a.ID, err)
	}
	return trip, "", nil
}
