package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rutadirecta/boleteria/internal/model"
	"github.com/rutadirecta/boleteria/internal/repository"
)

// SellableSchedule is one purchasable offering for a date: a template,
// its route, and the seat counts aggregated from whatever trips have
// been generated so far.  A template with an assignment but no trip yet
// is still listed — early display before generation is an accepted
// state — with zero seats.
type SellableSchedule struct {
	ScheduleID     uint64   `json:"schedule_id"`
	RouteID        uint64   `json:"route_id"`
	Origin         string   `json:"origin"`
	Destination    string   `json:"destination"`
	Hour           uint8    `json:"hour"`
	IsExpress      bool     `json:"is_express"`
	PriceCents     uint32   `json:"price_cents"`
	AvailableSeats uint32   `json:"available_seats"`
	TotalSeats     uint32   `json:"total_seats"`
	TripIDs        []uint64 `json:"trip_ids"`
	Stops          []string `json:"stops"`
}

// Data sources the resolver consumes.
type (
	templateLister interface {
		ListActiveWithRoutes(ctx context.Context) ([]repository.TemplateWithRoute, error)
	}
	sellableTripLister interface {
		ListSellableByDate(ctx context.Context, date time.Time) ([]model.Trip, error)
	}
	stopsLister interface {
		StopsByRoutes(ctx context.Context, routeIDs []uint64) (map[uint64][]model.RouteStop, error)
	}
)

// SellableResolver answers "which templates have a purchasable offering
// on this date, and how many seats remain".
//
// Trips store no foreign key to their template or assignment; the link
// is re-derived here by matching (route, UTC hour, UTC date) against
// live template and assignment rows.  Every code path that lists
// sellable schedules must go through this same three-way match — see
// MatchTripToTemplate.  The source system mixed UTC and local time for
// this match in different call sites; this implementation uses UTC
// uniformly, the only reading under which generation and listing agree.
type SellableResolver struct {
	Templates   templateLister
	Assignments assignmentLister
	Trips       sellableTripLister
	Stops       stopsLister
}

// NewSellableResolver constructs a SellableResolver over the repository
// layer.
func NewSellableResolver(s *repository.ScheduleRepo, a *repository.AssignmentRepo, t *repository.TripRepo, r *repository.RouteRepo) *SellableResolver {
	return &SellableResolver{Templates: s, Assignments: a, Trips: t, Stops: r}
}

// MatchTripToTemplate finds the template a trip was generated from,
// using only the derived key: the trip's route, its departure hour in
// UTC, and its departure date in UTC matched against an assignment for
// that template on that date.  Returns the template ID and true on a
// match.  Pure function — the exhaustive tests live here rather than on
// a stored link.
func MatchTripToTemplate(trip model.Trip, templates []repository.TemplateWithRoute, assignedDates map[uint64]map[string]bool) (uint64, bool) {
	dep := trip.DepartureAt.UTC()
	hour := uint8(dep.Hour())
	day := dep.Format("2006-01-02")
	for _, tr := range templates {
		if tr.Template.RouteID != trip.RouteID || tr.Template.Hour != hour {
			continue
		}
		if dates, ok := assignedDates[tr.Template.ID]; ok && dates[day] {
			return tr.Template.ID, true
		}
	}
	return 0, false
}

// Resolve lists the sellable schedules for a date.  A template is
// sellable when it has at least one assignment for the date; seat counts
// are aggregated across all matched trips.  More than one trip matching
// a template+date should not happen given generation idempotency, but is
// tolerated by summing rather than picking one arbitrarily.
func (r *SellableResolver) Resolve(ctx context.Context, date time.Time) ([]SellableSchedule, error) {
	templates, err := r.Templates.ListActiveWithRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	assignments, err := r.Assignments.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	trips, err := r.Trips.ListSellableByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}

	// Group assignment dates per template for the derived match.
	assignedDates := make(map[uint64]map[string]bool, len(assignments))
	for _, a := range assignments {
		day := a.Date.UTC().Format("2006-01-02")
		if assignedDates[a.ScheduleID] == nil {
			assignedDates[a.ScheduleID] = make(map[string]bool)
		}
		assignedDates[a.ScheduleID][day] = true
	}

	// Only templates with an assignment on the date are offered at all.
	day := date.UTC().Format("2006-01-02")
	offered := make(map[uint64]*SellableSchedule)
	order := make([]uint64, 0)
	routeIDs := make([]uint64, 0)
	for _, tr := range templates {
		if dates, ok := assignedDates[tr.Template.ID]; !ok || !dates[day] {
			continue
		}
		s := &SellableSchedule{
			ScheduleID:  tr.Template.ID,
			RouteID:     tr.Route.ID,
			Origin:      tr.Route.Origin,
			Destination: tr.Route.Destination,
			Hour:        tr.Template.Hour,
			IsExpress:   tr.Template.IsExpress,
			TripIDs:     []uint64{},
			Stops:       []string{},
		}
		offered[tr.Template.ID] = s
		order = append(order, tr.Template.ID)
		routeIDs = append(routeIDs, tr.Route.ID)
	}

	// Fold each trip into its derived-matched template.  Trips that match
	// nothing (their template was deactivated or the assignment removed)
	// stay bookable directly but drop out of the listing by design.
	for _, trip := range trips {
		tplID, ok := MatchTripToTemplate(trip, templates, assignedDates)
		if !ok {
			continue
		}
		s, ok := offered[tplID]
		if !ok {
			continue
		}
		s.AvailableSeats += trip.AvailableSeats
		s.TotalSeats += trip.TotalSeats
		s.TripIDs = append(s.TripIDs, trip.ID)
		if s.PriceCents == 0 || trip.PriceCents < s.PriceCents {
			s.PriceCents = trip.PriceCents
		}
	}

	// Attach route stops in one query.
	stopsByRoute, err := r.Stops.StopsByRoutes(ctx, routeIDs)
	if err != nil {
		return nil, fmt.Errorf("list stops: %w", err)
	}
	out := make([]SellableSchedule, 0, len(order))
	for _, id := range order {
		s := offered[id]
		for _, stop := range stopsByRoute[s.RouteID] {
			s.Stops = append(s.Stops, stop.Name)
		}
		out = append(out, *s)
	}
	return out, nil
}
