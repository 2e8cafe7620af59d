package resolver

import (
	"fmt"
	"math"

	"lintang/saferoute/pkg/datastructure"
	"lintang/saferoute/pkg/geo"

	"github.com/dhconnelly/rtreego"
)

var tol = 1e-9

type nodePoint struct {
	nodeIDx  int32
	location rtreego.Point
}

func (n *nodePoint) Bounds() rtreego.Rect {
	return n.location.ToRect(tol)
}

// NodeIndex answers nearest node queries over an immutable street graph.
type NodeIndex struct {
	g    *datastructure.StreetGraph
	tree *rtreego.Rtree
}

// NewNodeIndex bulk loads an rtree over every node coordinate.
func NewNodeIndex(g *datastructure.StreetGraph) *NodeIndex {
	objs := make([]rtreego.Spatial, 0, g.NumNodes())
	for i, n := range g.Nodes {
		objs = append(objs, &nodePoint{nodeIDx: int32(i), location: rtreego.Point{n.Lat, n.Lon}})
	}
	return &NodeIndex{
		g:    g,
		tree: rtreego.NewTree(2, 25, 50, objs...), // 2 dimension, 25 min entries, 50 max entries
	}
}

// Nearest returns the node with the smallest great-circle distance to p, ties broken by the
// smaller node id, together with that distance in meters.
//
// The rtree is planar in degrees, so its nearest neighbor is only a candidate. Every node closer
// than the candidate lies in the bounding box of the candidate distance, which is then scanned
// exactly.
func (ni *NodeIndex) Nearest(p datastructure.Coordinate) (datastructure.Node, float64, error) {
	if ni.g.NumNodes() == 0 {
		return datastructure.Node{}, 0, datastructure.ErrEmptyGraph
	}
	if !p.Valid() {
		return datastructure.Node{}, 0, fmt.Errorf("%w: invalid coordinate (%v, %v)", datastructure.ErrNodeNotFound, p.Lat, p.Lon)
	}

	query := rtreego.Point{p.Lat, p.Lon}
	candidate, ok := ni.tree.NearestNeighbor(query).(*nodePoint)
	if !ok {
		return datastructure.Node{}, 0, fmt.Errorf("%w: no candidate near (%v, %v)", datastructure.ErrNodeNotFound, p.Lat, p.Lon)
	}
	radius := ni.distance(p, candidate.nodeIDx)

	minLat, minLon, maxLat, maxLon := geo.BoundingBox(p, radius*(1+1e-9)+1e-6)
	box, err := rtreego.NewRect(
		rtreego.Point{minLat - tol, minLon - tol},
		[]float64{maxLat - minLat + 2*tol, maxLon - minLon + 2*tol},
	)
	if err != nil {
		return datastructure.Node{}, 0, fmt.Errorf("%w: %v", datastructure.ErrNodeNotFound, err)
	}

	best := candidate.nodeIDx
	bestDist := radius
	for _, obj := range ni.tree.SearchIntersect(box) {
		idx := obj.(*nodePoint).nodeIDx
		d := ni.distance(p, idx)
		if d < bestDist || (d == bestDist && ni.g.GetNode(idx).ID < ni.g.GetNode(best).ID) {
			best, bestDist = idx, d
		}
	}
	return ni.g.GetNode(best), bestDist, nil
}

func (ni *NodeIndex) distance(p datastructure.Coordinate, nodeIDx int32) float64 {
	n := ni.g.GetNode(nodeIDx)
	return geo.GreatCircleDistance(p, datastructure.NewCoordinate(n.Lat, n.Lon))
}

// NearestID is Nearest without the node payload.
func (ni *NodeIndex) NearestID(p datastructure.Coordinate) (int64, float64, error) {
	n, d, err := ni.Nearest(p)
	if err != nil {
		return 0, math.Inf(1), err
	}
	return n.ID, d, nil
}
