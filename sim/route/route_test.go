package route

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name string
		a, b Location
		want float64
	}{
		{"same point", Location{12.97, 77.59}, Location{12.97, 77.59}, 0},
		{"one degree of longitude on the equator", Location{0, 0}, Location{0, 1}, 111.195},
		{"london to paris", Location{51.5074, -0.1278}, Location{48.8566, 2.3522}, 343.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Haversine(tt.a, tt.b), 0.5)
			assert.InDelta(t, Haversine(tt.a, tt.b), Haversine(tt.b, tt.a), 1e-9)
		})
	}
}

func TestDistanceMatrix_Symmetric(t *testing.T) {
	stops := []Stop{{ID: "a", Lat: 0, Lon: 1}, {ID: "b", Lat: 1, Lon: 0}}
	d := DistanceMatrix(Location{}, stops)
	require.Len(t, d, 3)
	for i := range d {
		assert.Zero(t, d[i][i])
		for j := range d {
			assert.Equal(t, d[i][j], d[j][i])
		}
	}
}

// lineStops places stops east of the depot along the equator, 0.1 degrees apart.
func lineStops(n int, demand int64) []Stop {
	stops := make([]Stop, n)
	for i := range stops {
		stops[i] = Stop{Lon: 0.1 * float64(i+1), Demand: demand}
	}
	return stops
}

func TestSolve_SplitsByCapacity(t *testing.T) {
	// GIVEN 4 stops of demand 5 and vehicles of capacity 10
	p := Problem{Stops: lineStops(4, 5), VehicleCapacity: 10, Vehicles: 3}

	// WHEN solving
	plan, err := Solve(p)
	require.NoError(t, err)

	// THEN two full vehicles serve every stop, nearest first
	require.Len(t, plan.Routes, 2)
	assert.Empty(t, plan.Unassigned)
	assert.Equal(t, []string{"stop-1", "stop-2"}, plan.Routes[0].Stops)
	assert.Equal(t, []string{"stop-3", "stop-4"}, plan.Routes[1].Stops)
	for _, r := range plan.Routes {
		assert.Equal(t, int64(10), r.Load)
	}
	assert.InDelta(t, plan.Routes[0].DistanceKm+plan.Routes[1].DistanceKm, plan.TotalDistanceKm, 1e-9)
	// out and back 0.2 degrees
	assert.InDelta(t, 2*0.2*111.195, plan.Routes[0].DistanceKm, 0.1)
}

func TestSolve_VehiclesRunOut(t *testing.T) {
	p := Problem{Stops: lineStops(3, 10), VehicleCapacity: 10, Vehicles: 2}

	plan, err := Solve(p)
	require.NoError(t, err)

	assert.Len(t, plan.Routes, 2)
	assert.Equal(t, []string{"stop-3"}, plan.Unassigned)
}

func TestSolve_OversizedStopUnassigned(t *testing.T) {
	stops := []Stop{
		{ID: "big", Lon: 0.1, Demand: 50},
		{ID: "small", Lon: 0.2, Demand: 5},
	}
	plan, err := Solve(Problem{Stops: stops, VehicleCapacity: 10, Vehicles: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"big"}, plan.Unassigned)
	require.Len(t, plan.Routes, 1)
	assert.Equal(t, []string{"small"}, plan.Routes[0].Stops)
}

func TestSolve_NoStops(t *testing.T) {
	plan, err := Solve(Problem{VehicleCapacity: 10, Vehicles: 1})
	require.NoError(t, err)
	assert.Empty(t, plan.Routes)
	assert.Empty(t, plan.Unassigned)
	assert.Zero(t, plan.TotalDistanceKm)
}

func TestSolve_Duration(t *testing.T) {
	p := Problem{Stops: lineStops(1, 1), VehicleCapacity: 1, Vehicles: 1, SpeedKmh: 22.239}
	plan, err := Solve(p)
	require.NoError(t, err)
	require.Len(t, plan.Routes, 1)
	// 22.239 km round trip at 22.239 km/h
	assert.InDelta(t, float64(time.Hour), float64(plan.Routes[0].Duration), float64(time.Minute))
}

func TestProblem_Validate(t *testing.T) {
	tests := []struct {
		name string
		p    Problem
	}{
		{"zero capacity", Problem{VehicleCapacity: 0, Vehicles: 1}},
		{"zero vehicles", Problem{VehicleCapacity: 1, Vehicles: 0}},
		{"negative speed", Problem{VehicleCapacity: 1, Vehicles: 1, SpeedKmh: -1}},
		{"negative demand", Problem{VehicleCapacity: 1, Vehicles: 1, Stops: []Stop{{Demand: -1}}}},
		{"bad latitude", Problem{VehicleCapacity: 1, Vehicles: 1, Stops: []Stop{{Lat: 91}}}},
		{"duplicate id", Problem{VehicleCapacity: 1, Vehicles: 1, Stops: []Stop{{ID: "x"}, {ID: "x"}}}},
		{"nan latitude", Problem{VehicleCapacity: 1, Vehicles: 1, Stops: []Stop{{Lat: math.NaN()}}}},
		{"nan longitude", Problem{VehicleCapacity: 1, Vehicles: 1, Stops: []Stop{{Lon: math.NaN()}}}},
		{"depot out of range", Problem{VehicleCapacity: 1, Vehicles: 1, Depot: Location{Lat: 0, Lon: 181}}},
		{"nan depot", Problem{VehicleCapacity: 1, Vehicles: 1, Depot: Location{Lat: math.NaN()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Solve(tt.p)
			assert.Error(t, err)
		})
	}
}

func TestSolve_GeneratedIDsAvoidCallerIDs(t *testing.T) {
	// GIVEN a blank stop whose default label is already taken by another stop
	stops := []Stop{
		{Lon: 0.1, Demand: 1},
		{ID: "stop-1", Lon: 0.2, Demand: 1},
		{Lon: 0.3, Demand: 1},
	}

	// WHEN solving
	plan, err := Solve(Problem{Stops: stops, VehicleCapacity: 10, Vehicles: 1})
	require.NoError(t, err)

	// THEN every stop keeps a distinct label in the route
	require.Len(t, plan.Routes, 1)
	got := plan.Routes[0].Stops
	assert.ElementsMatch(t, []string{"stop-1", "stop-3", "stop-4"}, got)
}

func TestTwoOpt_RemovesCrossing(t *testing.T) {
	// GIVEN a depot at the origin and a unit square visited in crossing order
	stops := []Stop{
		{Lat: 0, Lon: 1},
		{Lat: 1, Lon: 0},
		{Lat: 1, Lon: 1},
	}
	dist := DistanceMatrix(Location{}, stops)
	tour := []int{1, 2, 3}
	before := tourLength(dist, tour)

	// WHEN improving
	twoOpt(dist, tour)

	// THEN the tour no longer crosses and is shorter
	after := tourLength(dist, tour)
	assert.Less(t, after, before)
	assert.ElementsMatch(t, []int{1, 2, 3}, tour)
	assert.Equal(t, 3, tour[1], "the far corner sits between the two near corners")
}

func TestTwoOpt_NeverLengthens(t *testing.T) {
	stops := lineStops(6, 1)
	dist := DistanceMatrix(Location{}, stops)
	tour := []int{4, 1, 6, 2, 5, 3}
	before := tourLength(dist, tour)
	twoOpt(dist, tour)
	assert.LessOrEqual(t, tourLength(dist, tour), before)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, tour)
}
