package risk

import (
	"math"
	"sort"

	"lintang/saferoute/pkg/datastructure"
	"lintang/saferoute/pkg/geo"

	"github.com/uber/h3-go/v4"
)

// Policy turns incident statistics into a per edge global risk. Score must return a finite value
// >= 0 and must be safe for concurrent use once Prepare has returned.
type Policy interface {
	Prepare(incidents []Incident) error
	Score(e *datastructure.Edge) float64
}

const (
	h3Resolution = 9
	// average hexagon edge length at resolution 9
	h3EdgeLengthM = 174.375668
	// geometry segments are sampled at this spacing when collecting cells
	sampleSpacingM = 100.0
)

// H3BufferPolicy sums the severity of every incident within BufferMeters of the edge geometry.
// Incidents are bucketed by h3 cell so an edge only measures the incidents around its own cells.
type H3BufferPolicy struct {
	BufferMeters float64

	incidents []Incident
	cells     map[h3.Cell][]int
	ringSize  int
}

func NewH3BufferPolicy(bufferMeters float64) *H3BufferPolicy {
	return &H3BufferPolicy{BufferMeters: bufferMeters}
}

func (p *H3BufferPolicy) Prepare(incidents []Incident) error {
	p.incidents = incidents
	p.cells = make(map[h3.Cell][]int)
	for i, inc := range incidents {
		cell := h3.LatLngToCell(h3.NewLatLng(inc.Lat, inc.Lon), h3Resolution)
		p.cells[cell] = append(p.cells[cell], i)
	}
	p.ringSize = 1 + int(math.Ceil((p.BufferMeters+sampleSpacingM/2)/h3EdgeLengthM))
	return nil
}

func (p *H3BufferPolicy) Score(e *datastructure.Edge) float64 {
	if len(p.incidents) == 0 || len(e.Geometry) == 0 {
		return 0
	}

	candidates := make(map[int]struct{})
	seen := make(map[h3.Cell]struct{})
	for _, c := range samplePoints(e.Geometry) {
		origin := h3.LatLngToCell(h3.NewLatLng(c.Lat, c.Lon), h3Resolution)
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		for _, cell := range h3.GridDisk(origin, p.ringSize) {
			for _, idx := range p.cells[cell] {
				candidates[idx] = struct{}{}
			}
		}
	}

	// fixed summation order keeps the float result identical across runs
	ordered := make([]int, 0, len(candidates))
	for idx := range candidates {
		ordered = append(ordered, idx)
	}
	sort.Ints(ordered)

	total := 0.0
	for _, idx := range ordered {
		inc := p.incidents[idx]
		if geo.DistanceToPolyline(datastructure.NewCoordinate(inc.Lat, inc.Lon), e.Geometry) <= p.BufferMeters {
			total += inc.Severity()
		}
	}
	return total
}

// samplePoints returns the geometry points plus interpolated points on segments longer than
// sampleSpacingM, so no stretch of the edge falls outside the collected cells.
func samplePoints(line []datastructure.Coordinate) []datastructure.Coordinate {
	points := []datastructure.Coordinate{line[0]}
	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		steps := int(math.Ceil(geo.GreatCircleDistance(a, b) / sampleSpacingM))
		for s := 1; s < steps; s++ {
			t := float64(s) / float64(steps)
			points = append(points, datastructure.NewCoordinate(a.Lat+(b.Lat-a.Lat)*t, a.Lon+(b.Lon-a.Lon)*t))
		}
		points = append(points, b)
	}
	return points
}
