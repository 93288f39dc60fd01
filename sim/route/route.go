// Package route plans capacity-constrained delivery routes from a single
// depot: haversine distances, nearest-neighbour construction and 2-opt.
package route

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// EarthRadiusKm is the mean Earth radius used by Haversine.
	EarthRadiusKm = 6371.0
	// DefaultSpeedKmh is used when a problem leaves SpeedKmh at zero.
	DefaultSpeedKmh = 40.0

	improvementEpsilon = 1e-9
)

// Location is a WGS84 coordinate in degrees.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// valid reports whether l is a finite coordinate within WGS84 bounds.
func (l Location) valid() bool {
	return !math.IsNaN(l.Lat) && !math.IsNaN(l.Lon) &&
		l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}

// Stop is a delivery point with a demand in units.
type Stop struct {
	ID     string  `json:"id" yaml:"id"`
	Lat    float64 `json:"lat" yaml:"lat"`
	Lon    float64 `json:"lon" yaml:"lon"`
	Demand int64   `json:"demand" yaml:"demand"`
}

// Location returns the stop coordinate.
func (s Stop) Location() Location {
	return Location{Lat: s.Lat, Lon: s.Lon}
}

// Problem describes one planning request.
type Problem struct {
	Depot           Location `json:"depot" yaml:"depot"`
	Stops           []Stop   `json:"stops" yaml:"stops"`
	VehicleCapacity int64    `json:"vehicle_capacity" yaml:"vehicle_capacity"`
	Vehicles        int      `json:"vehicles" yaml:"vehicles"`
	SpeedKmh        float64  `json:"speed_kmh" yaml:"speed_kmh"`
}

// Validate checks the problem before solving.
func (p *Problem) Validate() error {
	if p.VehicleCapacity <= 0 {
		return fmt.Errorf("vehicle_capacity must be positive, got %d", p.VehicleCapacity)
	}
	if p.Vehicles <= 0 {
		return fmt.Errorf("vehicles must be positive, got %d", p.Vehicles)
	}
	if p.SpeedKmh < 0 || math.IsNaN(p.SpeedKmh) {
		return fmt.Errorf("speed_kmh must be non-negative, got %f", p.SpeedKmh)
	}
	if !p.Depot.valid() {
		return fmt.Errorf("depot: coordinates out of range (%f, %f)", p.Depot.Lat, p.Depot.Lon)
	}
	seen := make(map[string]bool, len(p.Stops))
	for i, s := range p.Stops {
		if s.Demand < 0 {
			return fmt.Errorf("stops[%d]: demand must be non-negative, got %d", i, s.Demand)
		}
		if !s.Location().valid() {
			return fmt.Errorf("stops[%d]: coordinates out of range (%f, %f)", i, s.Lat, s.Lon)
		}
		if s.ID != "" {
			if seen[s.ID] {
				return fmt.Errorf("stops[%d]: duplicate id %q", i, s.ID)
			}
			seen[s.ID] = true
		}
	}
	return nil
}

// stopIDs names every stop, giving blank ids a "stop-N" label that no
// caller-supplied id already uses.
func stopIDs(stops []Stop) []string {
	taken := make(map[string]bool, len(stops))
	for _, s := range stops {
		if s.ID != "" {
			taken[s.ID] = true
		}
	}
	ids := make([]string, len(stops))
	next := 1
	for i, s := range stops {
		if s.ID != "" {
			ids[i] = s.ID
			continue
		}
		id := fmt.Sprintf("stop-%d", i+1)
		for taken[id] {
			id = fmt.Sprintf("stop-%d", len(stops)+next)
			next++
		}
		taken[id] = true
		ids[i] = id
	}
	return ids
}

// Route is one vehicle's tour, starting and ending at the depot.
type Route struct {
	Vehicle    int           `json:"vehicle"`
	Stops      []string      `json:"stops"`
	Load       int64         `json:"load"`
	DistanceKm float64       `json:"distance_km"`
	Duration   time.Duration `json:"duration_ns"`
}

// Plan is the solver output.
type Plan struct {
	Routes          []Route  `json:"routes"`
	TotalDistanceKm float64  `json:"total_distance_km"`
	Unassigned      []string `json:"unassigned"`
}

// Haversine returns the great-circle distance between a and b in km.
func Haversine(a, b Location) float64 {
	toRad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * toRad
	dLon := (b.Lon - a.Lon) * toRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*toRad)*math.Cos(b.Lat*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DistanceMatrix returns pairwise distances where index 0 is the depot and
// index i+1 is stops[i].
func DistanceMatrix(depot Location, stops []Stop) [][]float64 {
	points := make([]Location, 0, len(stops)+1)
	points = append(points, depot)
	for _, s := range stops {
		points = append(points, s.Location())
	}
	d := make([][]float64, len(points))
	for i := range d {
		d[i] = make([]float64, len(points))
	}
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			d[i][j] = Haversine(points[i], points[j])
			d[j][i] = d[i][j]
		}
	}
	return d
}

// Solve builds routes for p. Stops whose demand exceeds the vehicle capacity,
// and stops left over once every vehicle is full, are reported unassigned.
func Solve(p Problem) (*Plan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	plan := &Plan{Routes: []Route{}, Unassigned: []string{}}
	if len(p.Stops) == 0 {
		return plan, nil
	}
	speed := p.SpeedKmh
	if speed == 0 {
		speed = DefaultSpeedKmh
	}

	ids := stopIDs(p.Stops)
	dist := DistanceMatrix(p.Depot, p.Stops)

	remaining := make(map[int]bool, len(p.Stops))
	for i, s := range p.Stops {
		if s.Demand > p.VehicleCapacity {
			plan.Unassigned = append(plan.Unassigned, ids[i])
			continue
		}
		remaining[i+1] = true
	}

	for v := 1; v <= p.Vehicles && len(remaining) > 0; v++ {
		tour, load := nearestNeighbour(dist, p.Stops, remaining, p.VehicleCapacity)
		if len(tour) == 0 {
			break
		}
		before := tourLength(dist, tour)
		twoOpt(dist, tour)
		km := tourLength(dist, tour)
		logrus.Debugf("route: vehicle %d serves %d stops, 2-opt %.2f -> %.2f km", v, len(tour), before, km)

		r := Route{
			Vehicle:    v,
			Stops:      make([]string, len(tour)),
			Load:       load,
			DistanceKm: km,
			Duration:   time.Duration(km / speed * float64(time.Hour)),
		}
		for i, node := range tour {
			r.Stops[i] = ids[node-1]
		}
		plan.Routes = append(plan.Routes, r)
		plan.TotalDistanceKm += km
	}
	for i := range p.Stops {
		if remaining[i+1] {
			plan.Unassigned = append(plan.Unassigned, ids[i])
		}
	}
	if len(plan.Unassigned) > 0 {
		logrus.Warnf("route: %d stops unassigned", len(plan.Unassigned))
	}
	return plan, nil
}

// nearestNeighbour greedily fills one vehicle from the depot, removing the
// chosen nodes from remaining. Ties go to the lower node index.
func nearestNeighbour(dist [][]float64, stops []Stop, remaining map[int]bool, capacity int64) ([]int, int64) {
	var tour []int
	var load int64
	current := 0
	for {
		best := -1
		for node := 1; node < len(dist); node++ {
			if !remaining[node] || load+stops[node-1].Demand > capacity {
				continue
			}
			if best < 0 || dist[current][node] < dist[current][best] {
				best = node
			}
		}
		if best < 0 {
			return tour, load
		}
		tour = append(tour, best)
		load += stops[best-1].Demand
		delete(remaining, best)
		current = best
	}
}

// tourLength is the closed-tour length depot -> tour... -> depot.
func tourLength(dist [][]float64, tour []int) float64 {
	if len(tour) == 0 {
		return 0
	}
	total := dist[0][tour[0]]
	for i := 1; i < len(tour); i++ {
		total += dist[tour[i-1]][tour[i]]
	}
	return total + dist[tour[len(tour)-1]][0]
}

// twoOpt reverses segments of tour in place while any reversal shortens it.
// The depot is fixed at both ends.
func twoOpt(dist [][]float64, tour []int) {
	node := func(i int) int {
		if i < 0 || i >= len(tour) {
			return 0
		}
		return tour[i]
	}
	for improved := true; improved; {
		improved = false
		for i := 0; i < len(tour)-1; i++ {
			for j := i + 1; j < len(tour); j++ {
				a, b := node(i-1), node(i)
				c, d := node(j), node(j+1)
				delta := dist[a][c] + dist[b][d] - dist[a][b] - dist[c][d]
				if delta < -improvementEpsilon {
					for l, r := i, j; l < r; l, r = l+1, r-1 {
						tour[l], tour[r] = tour[r], tour[l]
					}
					improved = true
				}
			}
		}
	}
}
