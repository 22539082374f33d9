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

type fakeAssignments struct {
	rows []model.Assignment
}

func (f *fakeAssignments) ListByDate(_ context.Context, date time.Time) ([]model.Assignment, error) {
	day := date.UTC().Format("2006-01-02")
	out := make([]model.Assignment, 0)
	for _, a := range f.rows {
		if a.Date.UTC().Format("2006-01-02") == day {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeTemplates map[uint64]*model.ScheduleTemplate

func (f fakeTemplates) GetByID(_ context.Context, id uint64) (*model.ScheduleTemplate, error) {
	t, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

type fakeRoutes map[uint64]*model.Route

func (f fakeRoutes) GetByID(_ context.Context, id uint64) (*model.Route, error) {
	r, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

type fakeVehicles map[uint64]*model.Vehicle

func (f fakeVehicles) GetByID(_ context.Context, id uint64) (*model.Vehicle, error) {
	v, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

// fakeTripStore enforces the natural-key uniqueness the trips table
// provides in production.
type fakeTripStore struct {
	trips  []model.Trip
	nextID uint64
}

func (f *fakeTripStore) Create(_ context.Context, t *model.Trip) error {
	for _, ex := range f.trips {
		if ex.RouteID == t.RouteID && ex.VehicleID == t.VehicleID && ex.DepartureAt.Equal(t.DepartureAt) {
			return repository.ErrDuplicateTrip
		}
	}
	f.nextID++
	t.ID = f.nextID
	f.trips = append(f.trips, *t)
	return nil
}

func u64(v uint64) *uint64 { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newGeneratorFixture() (*TripGenerator, *fakeAssignments, *fakeTripStore) {
	assignments := &fakeAssignments{}
	trips := &fakeTripStore{}
	g := &TripGenerator{
		Assignments: assignments,
		Templates: fakeTemplates{
			1: {ID: 1, RouteID: 10, Hour: 14, IsExpress: true, ExpressMultiplier: 1.2, Active: true},
			2: {ID: 2, RouteID: 10, Hour: 8, Active: true},
			3: {ID: 3, RouteID: 10, Hour: 9, Active: false},
			4: {ID: 4, RouteID: 11, Hour: 10, Active: true},
			5: {ID: 5, RouteID: 10, Hour: 11, Active: true},
		},
		Routes: fakeRoutes{
			10: {ID: 10, Origin: "Panama", Destination: "David", BasePriceCents: 2000, EstimatedDurationMin: 420, IsActive: true},
			11: {ID: 11, Origin: "Panama", Destination: "Colon", BasePriceCents: 500, IsActive: false},
		},
		Vehicles: fakeVehicles{
			100: {ID: 100, Plate: "BUS-100", Capacity: 48, IsActive: true},
			101: {ID: 101, Plate: "BUS-101", Capacity: 30, IsActive: false},
		},
		Trips: trips,
	}
	return g, assignments, trips
}

func TestGenerateCreatesTrip(t *testing.T) {
	g, assignments, trips := newGeneratorFixture()
	assignments.rows = []model.Assignment{
		{ID: 1, ScheduleID: 1, VehicleID: u64(100), Date: date(2025, 3, 10)},
	}

	result, err := g.Generate(context.Background(), date(2025, 3, 10))
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Empty(t, result.Skipped)

	trip := result.Created[0]
	assert.Equal(t, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), trip.DepartureAt)
	assert.Equal(t, model.TripStatusScheduled, trip.Status)
	assert.Equal(t, uint32(48), trip.TotalSeats)
	assert.Equal(t, uint32(48), trip.AvailableSeats)
	// 2000 base × 1.2 express
	assert.Equal(t, uint32(2400), trip.PriceCents)
	require.NotNil(t, trip.ArrivalEstimate)
	assert.Equal(t, time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC), *trip.ArrivalEstimate)
	assert.Len(t, trips.trips, 1)
}

func TestGenerateSkipReasons(t *testing.T) {
	g, assignments, _ := newGeneratorFixture()
	d := date(2025, 3, 10)
	assignments.rows = []model.Assignment{
		{ID: 1, ScheduleID: 2, VehicleID: nil, Date: d},        // no vehicle
		{ID: 2, ScheduleID: 3, VehicleID: u64(100), Date: d},   // inactive template
		{ID: 3, ScheduleID: 99, VehicleID: u64(100), Date: d},  // missing template
		{ID: 4, ScheduleID: 4, VehicleID: u64(100), Date: d},   // inactive route
		{ID: 5, ScheduleID: 5, VehicleID: u64(101), Date: d},   // inactive vehicle
	}

	result, err := g.Generate(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	require.Len(t, result.Skipped, 5)

	reasons := make(map[uint64]string)
	for _, s := range result.Skipped {
		reasons[s.AssignmentID] = s.Reason
	}
	assert.Equal(t, SkipNoVehicle, reasons[1])
	assert.Equal(t, SkipTemplateInactive, reasons[2])
	assert.Equal(t, SkipTemplateMissing, reasons[3])
	assert.Equal(t, SkipRouteInactive, reasons[4])
	assert.Equal(t, SkipVehicleInactive, reasons[5])
}

func TestGenerateIdempotent(t *testing.T) {
	g, assignments, trips := newGeneratorFixture()
	d := date(2025, 3, 10)
	assignments.rows = []model.Assignment{
		{ID: 1, ScheduleID: 1, VehicleID: u64(100), Date: d},
		{ID: 2, ScheduleID: 2, VehicleID: u64(100), Date: d},
	}

	first, err := g.Generate(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, first.Created, 2)

	second, err := g.Generate(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	require.Len(t, second.Skipped, 2)
	for _, s := range second.Skipped {
		assert.Equal(t, SkipAlreadyGenerated, s.Reason)
	}
	assert.Len(t, trips.trips, 2, "re-running generation must not add trips")
}

func TestGenerateOtherDateUnaffected(t *testing.T) {
	g, assignments, trips := newGeneratorFixture()
	assignments.rows = []model.Assignment{
		{ID: 1, ScheduleID: 1, VehicleID: u64(100), Date: date(2025, 3, 10)},
		{ID: 2, ScheduleID: 1, VehicleID: u64(100), Date: date(2025, 3, 11)},
	}

	_, err := g.Generate(context.Background(), date(2025, 3, 10))
	require.NoError(t, err)
	result, err := g.Generate(context.Background(), date(2025, 3, 11))
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC), result.Created[0].DepartureAt)
	assert.Len(t, trips.trips, 2)
}
