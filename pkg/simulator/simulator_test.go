package simulator

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/go2school/go2school/pkg/config"
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStops = []fleet.Stop{
	{ID: "stop1", Name: "South City Mall", Location: fleet.Location{Lat: 22.5726, Lng: 88.3639}},
	{ID: "stop2", Name: "Jadavpur 8B", Location: fleet.Location{Lat: 22.5626, Lng: 88.3539}},
	{ID: "stop3", Name: "Gariahat", Location: fleet.Location{Lat: 22.5526, Lng: 88.3639}},
	{ID: "stop4", Name: "DPS Ruby Park", Location: fleet.Location{Lat: 22.5426, Lng: 88.3739}},
}

func newTestStore(t *testing.T, vehicles ...*fleet.Vehicle) *store.Store {
	t.Helper()

	s := store.New()
	require.NoError(t, s.Load(fleet.CollectionRoutes,
		&fleet.Route{ID: "r1", Name: "South City → DPS Ruby", Stops: testStops},
		&fleet.Route{ID: "r2", Name: "Empty", Stops: testStops[:2]},
	))

	if len(vehicles) == 0 {
		vehicles = []*fleet.Vehicle{testVehicle("G2S-01", "r1")}
	}

	entities := make([]fleet.Entity, len(vehicles))
	for i, vehicle := range vehicles {
		entities[i] = vehicle
	}
	require.NoError(t, s.Load(fleet.CollectionVehicles, entities...))

	return s
}

func testVehicle(id string, routeID string) *fleet.Vehicle {
	return &fleet.Vehicle{
		ID:          id,
		RouteID:     routeID,
		Location:    testStops[0].Location,
		Speed:       32,
		Status:      fleet.VehicleStatusOnRoute,
		Capacity:    40,
		Occupancy:   38,
		SafetyScore: 95,
	}
}

type countingNotifier struct {
	published []string
}

func (n *countingNotifier) Publish(collection string) {
	n.published = append(n.published, collection)
}

func vehicle(t *testing.T, s *store.Store, id string) *fleet.Vehicle {
	t.Helper()

	for _, v := range store.Items[*fleet.Vehicle](s.Get(fleet.CollectionVehicles)) {
		if v.ID == id {
			return v
		}
	}

	t.Fatalf("vehicle %s not found", id)
	return nil
}

func TestCursorFollowsTickCount(t *testing.T) {
	sim := New(newTestStore(t), config.Default(), WithRand(NewRand(1)))

	for n := 1; n <= 9; n++ {
		require.NoError(t, sim.Advance(context.Background()))
		assert.Equal(t, n%4, sim.Cursor("r1"), "after %d ticks", n)
	}
}

func TestRouteWithoutVehiclesKeepsCursor(t *testing.T) {
	sim := New(newTestStore(t), config.Default(), WithRand(NewRand(1)))

	require.NoError(t, sim.Advance(context.Background()))

	assert.Equal(t, 0, sim.Cursor("r2"))
}

func TestPositionStaysOnSegment(t *testing.T) {
	cfg := config.Default()
	cfg.InterpolationSpan = 1

	s := newTestStore(t)
	sim := New(s, cfg, WithRand(NewRand(7)))
	route := &fleet.Route{Stops: testStops}

	for n := 0; n < 200; n++ {
		require.NoError(t, sim.Advance(context.Background()))

		current, next := route.Segment(sim.Cursor("r1"))
		position := vehicle(t, s, "G2S-01").Location

		const tolerance = 1e-9
		assert.GreaterOrEqual(t, position.Lat, math.Min(current.Location.Lat, next.Location.Lat)-tolerance)
		assert.LessOrEqual(t, position.Lat, math.Max(current.Location.Lat, next.Location.Lat)+tolerance)
		assert.GreaterOrEqual(t, position.Lng, math.Min(current.Location.Lng, next.Location.Lng)-tolerance)
		assert.LessOrEqual(t, position.Lng, math.Max(current.Location.Lng, next.Location.Lng)+tolerance)
	}
}

func TestReadingsStayInBands(t *testing.T) {
	cfg := config.Default()
	cfg.SpeedPerturbation = 50
	cfg.SafetyPerturbation = 50

	s := newTestStore(t)
	sim := New(s, cfg, WithRand(NewRand(99)))

	for n := 0; n < 200; n++ {
		require.NoError(t, sim.Advance(context.Background()))

		v := vehicle(t, s, "G2S-01")
		assert.True(t, cfg.SpeedBand.Contains(v.Speed), "speed %f", v.Speed)
		assert.True(t, cfg.SafetyBand.Contains(v.SafetyScore), "safety %f", v.SafetyScore)
	}
}

func TestSeededRunsAreReproducible(t *testing.T) {
	run := func() []fleet.Vehicle {
		s := newTestStore(t, testVehicle("G2S-01", "r1"), testVehicle("G2S-02", "r1"))
		sim := New(s, config.Default(), WithRand(NewRand(2024)))

		var readings []fleet.Vehicle
		for n := 0; n < 5; n++ {
			require.NoError(t, sim.Advance(context.Background()))
			readings = append(readings, *vehicle(t, s, "G2S-01"), *vehicle(t, s, "G2S-02"))
		}
		return readings
	}

	first := run()
	second := run()

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Location, second[i].Location)
		assert.Equal(t, first[i].Speed, second[i].Speed)
		assert.Equal(t, first[i].SafetyScore, second[i].SafetyScore)
	}
}

func TestTickStampsClockAndKeepsOtherFields(t *testing.T) {
	now := time.Date(2025, 6, 2, 7, 30, 0, 0, time.UTC)
	notifier := &countingNotifier{}

	s := newTestStore(t)
	sim := New(s, config.Default(),
		WithRand(NewRand(3)),
		WithClock(func() time.Time { return now }),
		WithNotifier(notifier),
	)

	require.NoError(t, sim.Advance(context.Background()))

	v := vehicle(t, s, "G2S-01")
	assert.True(t, now.Equal(v.LastUpdate))
	assert.Equal(t, 38, v.Occupancy)
	assert.Equal(t, 40, v.Capacity)
	assert.Equal(t, fleet.VehicleStatusOnRoute, v.Status)
	assert.Equal(t, []string{fleet.CollectionVehicles}, notifier.published)
}

func TestVehicleOnUnknownRouteIsSkipped(t *testing.T) {
	stray := testVehicle("G2S-09", "missing")
	s := newTestStore(t, testVehicle("G2S-01", "r1"), stray)
	sim := New(s, config.Default(), WithRand(NewRand(5)))

	require.NoError(t, sim.Advance(context.Background()))

	assert.Equal(t, stray.Location, vehicle(t, s, "G2S-09").Location)
	assert.Equal(t, 1, sim.Cursor("r1"))
}

func TestAdvanceHonoursCancelledContext(t *testing.T) {
	notifier := &countingNotifier{}
	sim := New(newTestStore(t), config.Default(), WithNotifier(notifier))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sim.Advance(ctx), context.Canceled)
	assert.Empty(t, notifier.published)
	assert.Equal(t, 0, sim.Cursor("r1"))
}
