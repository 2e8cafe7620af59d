package datastructure

import (
	"sort"

	"github.com/twpayne/go-polyline"
)

// Route is an ordered edge sequence from origin to destination. An empty route means origin and
// destination resolved to the same node.
type Route struct {
	Edges []Edge
}

func (r Route) TotalLength() float64 {
	total := 0.0
	for _, e := range r.Edges {
		total += e.Length
	}
	return total
}

func (r Route) TotalGlobalRisk() float64 {
	total := 0.0
	for _, e := range r.Edges {
		total += e.GlobalRisk
	}
	return total
}

// NodeIDs returns the visited node ids, origin first. Empty for an empty route.
func (r Route) NodeIDs() []int64 {
	if len(r.Edges) == 0 {
		return []int64{}
	}
	ids := make([]int64, 0, len(r.Edges)+1)
	ids = append(ids, r.Edges[0].From)
	for _, e := range r.Edges {
		ids = append(ids, e.To)
	}
	return ids
}

// Coordinates concatenates the edge geometries, dropping the shared point between consecutive edges.
func (r Route) Coordinates() []Coordinate {
	coords := make([]Coordinate, 0)
	for _, e := range r.Edges {
		geom := e.Geometry
		if len(coords) > 0 && len(geom) > 0 && coords[len(coords)-1] == geom[0] {
			geom = geom[1:]
		}
		coords = append(coords, geom...)
	}
	return coords
}

// Polyline encodes the route geometry with the google polyline algorithm.
func (r Route) Polyline() string {
	coords := make([][]float64, 0)
	for _, c := range r.Coordinates() {
		coords = append(coords, []float64{c.Lat, c.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}

// RouteSet maps a route type label to the route computed for it.
type RouteSet map[string]Route

// Types returns the labels in the set, sorted.
func (rs RouteSet) Types() []string {
	types := make([]string, 0, len(rs))
	for t := range rs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
