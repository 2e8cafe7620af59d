package datastructure

import (
	"fmt"
	"math"
	"sort"
)

type Node struct {
	ID  int64
	Lat float64
	Lon float64
}

// Edge is a directed road segment. Key disambiguates parallel edges between the same ordered node pair.
type Edge struct {
	From       int64
	To         int64
	Key        int
	Length     float64 // meter
	Risk       float64 // normalized to [0,1]
	GlobalRisk float64
	Geometry   []Coordinate // includes both endpoints, opaque to the routing core
	StreetName string
	RoadClass  string
}

// NeighborEdge points from a node to one successor through its representative edge.
type NeighborEdge struct {
	ToNodeIDx int32
	EdgeIDx   int32
}

// StreetGraph is a directed multigraph of road intersections. It is immutable once built:
// annotation produces a new graph, route searches only read it.
//
// Parallel edges: for every ordered pair (u,v) exactly one edge is the representative, the one
// with the smallest Length, ties broken by the smaller Key and then by insertion order. Search and
// path reconstruction both go through Neighbors, so they always agree on which edge is taken.
type StreetGraph struct {
	Nodes []Node // sorted by ID
	Edges []Edge // insertion order

	nodeIDx   map[int64]int32
	outEdges  [][]int32
	neighbors [][]NeighborEdge
}

// NewStreetGraph validates nodes and edges and builds the adjacency index.
func NewStreetGraph(nodes []Node, edges []Edge) (*StreetGraph, error) {
	sortedNodes := make([]Node, len(nodes))
	copy(sortedNodes, nodes)
	sort.SliceStable(sortedNodes, func(i, j int) bool {
		return sortedNodes[i].ID < sortedNodes[j].ID
	})

	g := &StreetGraph{
		Nodes:   sortedNodes,
		Edges:   edges,
		nodeIDx: make(map[int64]int32, len(sortedNodes)),
	}

	for i, n := range sortedNodes {
		if _, ok := g.nodeIDx[n.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate node id %d", ErrInvalidGraph, n.ID)
		}
		if !NewCoordinate(n.Lat, n.Lon).Valid() {
			return nil, fmt.Errorf("%w: node %d has invalid coordinate (%f, %f)", ErrInvalidGraph, n.ID, n.Lat, n.Lon)
		}
		g.nodeIDx[n.ID] = int32(i)
	}

	for i := range edges {
		if err := validateEdge(edges[i]); err != nil {
			return nil, err
		}
		if _, ok := g.nodeIDx[edges[i].From]; !ok {
			return nil, fmt.Errorf("%w: edge %d->%d starts at unknown node", ErrInvalidGraph, edges[i].From, edges[i].To)
		}
		if _, ok := g.nodeIDx[edges[i].To]; !ok {
			return nil, fmt.Errorf("%w: edge %d->%d ends at unknown node", ErrInvalidGraph, edges[i].From, edges[i].To)
		}
	}

	g.buildAdjacency()
	return g, nil
}

func validateEdge(e Edge) error {
	names := [3]string{"length", "risk", "global risk"}
	for i, v := range [3]float64{e.Length, e.Risk, e.GlobalRisk} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: edge %d->%d (key %d) has invalid %s %v", ErrInvalidGraph, e.From, e.To, e.Key, names[i], v)
		}
	}
	return nil
}

func (g *StreetGraph) buildAdjacency() {
	g.outEdges = make([][]int32, len(g.Nodes))
	g.neighbors = make([][]NeighborEdge, len(g.Nodes))

	for i := range g.Edges {
		from := g.nodeIDx[g.Edges[i].From]
		g.outEdges[from] = append(g.outEdges[from], int32(i))
	}

	for u, out := range g.outEdges {
		pos := make(map[int32]int, len(out))
		for _, eIDx := range out {
			e := &g.Edges[eIDx]
			v := g.nodeIDx[e.To]
			p, ok := pos[v]
			if !ok {
				pos[v] = len(g.neighbors[u])
				g.neighbors[u] = append(g.neighbors[u], NeighborEdge{ToNodeIDx: v, EdgeIDx: eIDx})
				continue
			}
			if preferEdge(e, &g.Edges[g.neighbors[u][p].EdgeIDx]) {
				g.neighbors[u][p].EdgeIDx = eIDx
			}
		}
	}
}

// preferEdge reports whether candidate replaces current as representative of a node pair.
// Edges are visited in insertion order, so equal length and key keep the earlier edge.
func preferEdge(candidate, current *Edge) bool {
	if candidate.Length != current.Length {
		return candidate.Length < current.Length
	}
	return candidate.Key < current.Key
}

// WithRisk returns a copy of g whose edges carry the given risk values. Node storage and the
// adjacency index are shared with g, both are read-only.
func (g *StreetGraph) WithRisk(risk, globalRisk []float64) (*StreetGraph, error) {
	if len(risk) != len(g.Edges) || len(globalRisk) != len(g.Edges) {
		return nil, fmt.Errorf("%w: got %d risk and %d global risk values for %d edges", ErrInvalidGraph,
			len(risk), len(globalRisk), len(g.Edges))
	}
	edges := make([]Edge, len(g.Edges))
	copy(edges, g.Edges)
	for i := range edges {
		edges[i].Risk = risk[i]
		edges[i].GlobalRisk = globalRisk[i]
		if err := validateEdge(edges[i]); err != nil {
			return nil, err
		}
	}
	return &StreetGraph{
		Nodes:     g.Nodes,
		Edges:     edges,
		nodeIDx:   g.nodeIDx,
		outEdges:  g.outEdges,
		neighbors: g.neighbors,
	}, nil
}

func (g *StreetGraph) NumNodes() int {
	return len(g.Nodes)
}

func (g *StreetGraph) NumEdges() int {
	return len(g.Edges)
}

func (g *StreetGraph) GetNode(nodeIDx int32) Node {
	return g.Nodes[nodeIDx]
}

func (g *StreetGraph) GetEdge(edgeIDx int32) *Edge {
	return &g.Edges[edgeIDx]
}

// NodeIDx maps an external node id to its dense index.
func (g *StreetGraph) NodeIDx(id int64) (int32, bool) {
	idx, ok := g.nodeIDx[id]
	return idx, ok
}

func (g *StreetGraph) NodeByID(id int64) (Node, bool) {
	idx, ok := g.nodeIDx[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[idx], true
}

// Neighbors returns one representative edge per distinct successor of nodeIDx, in order of the
// first edge inserted towards each successor.
func (g *StreetGraph) Neighbors(nodeIDx int32) []NeighborEdge {
	return g.neighbors[nodeIDx]
}

// OutEdges returns the indices of every out edge of nodeIDx, parallel edges included.
func (g *StreetGraph) OutEdges(nodeIDx int32) []int32 {
	return g.outEdges[nodeIDx]
}

// RepresentativeEdge returns the edge used for the ordered pair (fromIDx, toIDx).
func (g *StreetGraph) RepresentativeEdge(fromIDx, toIDx int32) (*Edge, bool) {
	for _, n := range g.neighbors[fromIDx] {
		if n.ToNodeIDx == toIDx {
			return &g.Edges[n.EdgeIDx], true
		}
	}
	return nil, false
}

// GraphBuilder assembles a StreetGraph, assigning parallel edge keys in insertion order.
type GraphBuilder struct {
	nodes []Node
	edges []Edge
	keys  map[[2]int64]int
}

func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		nodes: make([]Node, 0),
		edges: make([]Edge, 0),
		keys:  make(map[[2]int64]int),
	}
}

func (b *GraphBuilder) AddNode(id int64, lat, lon float64) *GraphBuilder {
	b.nodes = append(b.nodes, Node{ID: id, Lat: lat, Lon: lon})
	return b
}

// AddEdge appends a directed edge. Key is overwritten with the next free key for (From, To).
func (b *GraphBuilder) AddEdge(e Edge) *GraphBuilder {
	pair := [2]int64{e.From, e.To}
	e.Key = b.keys[pair]
	b.keys[pair]++
	b.edges = append(b.edges, e)
	return b
}

// AddBidirectionalEdge appends e and its reverse with reversed geometry.
func (b *GraphBuilder) AddBidirectionalEdge(e Edge) *GraphBuilder {
	b.AddEdge(e)
	rev := e
	rev.From, rev.To = e.To, e.From
	if len(e.Geometry) > 0 {
		rev.Geometry = make([]Coordinate, len(e.Geometry))
		for i, c := range e.Geometry {
			rev.Geometry[len(e.Geometry)-1-i] = c
		}
	}
	return b.AddEdge(rev)
}

func (b *GraphBuilder) NumNodes() int {
	return len(b.nodes)
}

func (b *GraphBuilder) NumEdges() int {
	return len(b.edges)
}

func (b *GraphBuilder) Build() (*StreetGraph, error) {
	return NewStreetGraph(b.nodes, b.edges)
}
