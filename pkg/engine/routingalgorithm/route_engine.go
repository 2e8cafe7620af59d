package routingalgorithm

import (
	"context"
	"fmt"

	"lintang/saferoute/pkg/datastructure"
)

// NodeResolver maps a coordinate to the nearest graph node and its great-circle distance in meters.
type NodeResolver interface {
	Nearest(p datastructure.Coordinate) (datastructure.Node, float64, error)
}

type RouteResult struct {
	Type         RouteType
	Route        datastructure.Route
	Cost         float64
	From         datastructure.Node
	To           datastructure.Node
	FromDistance float64 // meter, query point to From
	ToDistance   float64 // meter, query point to To
}

// Endpoints are the resolved origin and destination of a request.
type Endpoints struct {
	From         datastructure.Node
	To           datastructure.Node
	FromDistance float64
	ToDistance   float64
}

type RouteEngine struct {
	opts SearchOptions
}

func NewRouteEngine(opts SearchOptions) *RouteEngine {
	return &RouteEngine{opts: opts}
}

// Resolve snaps both query points to graph nodes.
func Resolve(resolver NodeResolver, from, to datastructure.Coordinate) (Endpoints, error) {
	fromNode, fromDist, err := resolver.Nearest(from)
	if err != nil {
		return Endpoints{}, fmt.Errorf("resolve origin: %w", err)
	}
	toNode, toDist, err := resolver.Nearest(to)
	if err != nil {
		return Endpoints{}, fmt.Errorf("resolve destination: %w", err)
	}
	return Endpoints{From: fromNode, To: toNode, FromDistance: fromDist, ToDistance: toDist}, nil
}

// Route resolves both points and computes the route of type t.
func (re *RouteEngine) Route(ctx context.Context, g *datastructure.StreetGraph, resolver NodeResolver,
	from, to datastructure.Coordinate, t RouteType) (RouteResult, error) {
	ends, err := Resolve(resolver, from, to)
	if err != nil {
		return RouteResult{}, err
	}
	return re.RouteBetween(ctx, g, ends, t)
}

// RouteBetween computes the route of type t between already resolved endpoints. Equal endpoints
// give an empty route.
func (re *RouteEngine) RouteBetween(ctx context.Context, g *datastructure.StreetGraph, ends Endpoints, t RouteType) (RouteResult, error) {
	cost := t.CostFunction()
	if cost == nil {
		return RouteResult{}, fmt.Errorf("%w: %q", datastructure.ErrUnsupportedRouteType, string(t))
	}

	fromIDx, ok := g.NodeIDx(ends.From.ID)
	if !ok {
		return RouteResult{}, fmt.Errorf("%w: origin node %d", datastructure.ErrNodeNotFound, ends.From.ID)
	}
	toIDx, ok := g.NodeIDx(ends.To.ID)
	if !ok {
		return RouteResult{}, fmt.Errorf("%w: destination node %d", datastructure.ErrNodeNotFound, ends.To.ID)
	}

	res := RouteResult{
		Type:         t,
		Route:        datastructure.Route{Edges: []datastructure.Edge{}},
		From:         ends.From,
		To:           ends.To,
		FromDistance: ends.FromDistance,
		ToDistance:   ends.ToDistance,
	}
	if fromIDx == toIDx {
		return res, nil
	}

	path, err := ShortestPath(ctx, g, fromIDx, toIDx, cost, re.opts)
	if err != nil {
		return RouteResult{}, err
	}

	res.Cost = path.Cost
	res.Route.Edges = make([]datastructure.Edge, 0, len(path.EdgeIDxs))
	for _, eIDx := range path.EdgeIDxs {
		res.Route.Edges = append(res.Route.Edges, *g.GetEdge(eIDx))
	}
	return res, nil
}
