package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutadirecta/boleteria/internal/model"
	"github.com/rutadirecta/boleteria/internal/repository"
)

type fakeTemplateLister []repository.TemplateWithRoute

func (f fakeTemplateLister) ListActiveWithRoutes(_ context.Context) ([]repository.TemplateWithRoute, error) {
	return f, nil
}

type fakeSellableTrips []model.Trip

func (f fakeSellableTrips) ListSellableByDate(_ context.Context, date time.Time) ([]model.Trip, error) {
	day := date.UTC().Format("2006-01-02")
	out := make([]model.Trip, 0)
	for _, t := range f {
		if t.DepartureAt.UTC().Format("2006-01-02") == day && t.Sellable() {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeStops map[uint64][]model.RouteStop

func (f fakeStops) StopsByRoutes(_ context.Context, routeIDs []uint64) (map[uint64][]model.RouteStop, error) {
	out := make(map[uint64][]model.RouteStop)
	for _, id := range routeIDs {
		if stops, ok := f[id]; ok {
			out[id] = stops
		}
	}
	return out, nil
}

func tplWithRoute(tplID, routeID uint64, hour uint8) repository.TemplateWithRoute {
	return repository.TemplateWithRoute{
		Template: model.ScheduleTemplate{ID: tplID, RouteID: routeID, Hour: hour, Active: true},
		Route:    model.Route{ID: routeID, Origin: "Panama", Destination: "David", BasePriceCents: 2000, IsActive: true},
	}
}

func TestMatchTripToTemplate(t *testing.T) {
	templates := []repository.TemplateWithRoute{
		tplWithRoute(1, 10, 14),
		tplWithRoute(2, 10, 8),
		tplWithRoute(3, 11, 14),
	}
	assigned := map[uint64]map[string]bool{
		1: {"2025-03-10": true},
		2: {"2025-03-10": true},
		3: {"2025-03-11": true},
	}

	trip := func(routeID uint64, dep time.Time) model.Trip {
		return model.Trip{RouteID: routeID, DepartureAt: dep}
	}

	cases := []struct {
		name    string
		trip    model.Trip
		wantID  uint64
		matched bool
	}{
		{"exact match", trip(10, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)), 1, true},
		{"other hour matches other template", trip(10, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)), 2, true},
		{"hour with no template", trip(10, time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)), 0, false},
		{"route without assignment that day", trip(11, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)), 0, false},
		{"assignment on a different date", trip(10, time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)), 0, false},
		{"non-UTC departure normalized before matching", trip(10, time.Date(2025, 3, 10, 9, 0, 0, 0, time.FixedZone("EST", -5*3600))), 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := MatchTripToTemplate(tc.trip, templates, assigned)
			assert.Equal(t, tc.matched, ok)
			assert.Equal(t, tc.wantID, id)
		})
	}
}

func TestResolveAggregatesTripsPerTemplate(t *testing.T) {
	d := date(2025, 3, 10)
	resolver := &SellableResolver{
		Templates: fakeTemplateLister{tplWithRoute(1, 10, 14), tplWithRoute(2, 10, 8)},
		Assignments: &fakeAssignments{rows: []model.Assignment{
			{ID: 1, ScheduleID: 1, VehicleID: u64(100), Date: d},
			{ID: 2, ScheduleID: 2, VehicleID: u64(100), Date: d},
		}},
		Trips: fakeSellableTrips{
			{ID: 1, RouteID: 10, DepartureAt: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), Status: model.TripStatusScheduled, TotalSeats: 48, AvailableSeats: 20, PriceCents: 2400},
			{ID: 2, RouteID: 10, DepartureAt: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), Status: model.TripStatusScheduled, TotalSeats: 30, AvailableSeats: 5, PriceCents: 2400},
		},
		Stops: fakeStops{10: {{RouteID: 10, Name: "Santiago", Position: 0}, {RouteID: 10, Name: "Aguadulce", Position: 1}}},
	}

	schedules, err := resolver.Resolve(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	byID := make(map[uint64]SellableSchedule)
	for _, s := range schedules {
		byID[s.ScheduleID] = s
	}

	// Two trips matched the 14:00 template: counts are summed.
	s1 := byID[1]
	assert.Equal(t, uint32(25), s1.AvailableSeats)
	assert.Equal(t, uint32(78), s1.TotalSeats)
	assert.ElementsMatch(t, []uint64{1, 2}, s1.TripIDs)
	assert.Equal(t, []string{"Santiago", "Aguadulce"}, s1.Stops)

	// Assigned but not yet generated: offered with zero seats.
	s2 := byID[2]
	assert.Zero(t, s2.AvailableSeats)
	assert.Zero(t, s2.TotalSeats)
	assert.Empty(t, s2.TripIDs)
}

func TestResolveExcludesUnassignedTemplates(t *testing.T) {
	d := date(2025, 3, 10)
	resolver := &SellableResolver{
		Templates:   fakeTemplateLister{tplWithRoute(1, 10, 14)},
		Assignments: &fakeAssignments{},
		Trips:       fakeSellableTrips{},
		Stops:       fakeStops{},
	}

	schedules, err := resolver.Resolve(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, schedules)
}
