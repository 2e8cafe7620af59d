package service

import (
	"context"
	"errors"
	"log/slog"

	"lintang/saferoute/pkg/datastructure"
	"lintang/saferoute/pkg/engine/aggregator"
	"lintang/saferoute/pkg/engine/routingalgorithm"
	"lintang/saferoute/pkg/geocoding"
	"lintang/saferoute/pkg/graphstore"
	"lintang/saferoute/pkg/server"
)

type GraphStore interface {
	Current() *graphstore.Snapshot
	Reload(ctx context.Context) (*graphstore.Snapshot, error)
}

type RouteAggregator interface {
	Routes(ctx context.Context, g *datastructure.StreetGraph, resolver routingalgorithm.NodeResolver,
		from, to datastructure.Coordinate, labels []string) (aggregator.Result, error)
}

type Geocoder interface {
	ResolveAddress(ctx context.Context, address string) (datastructure.Coordinate, error)
}

type NavigationService struct {
	store      GraphStore
	aggregator RouteAggregator
	geocoder   Geocoder
	logger     *slog.Logger
}

func NewNavigationService(store GraphStore, agg RouteAggregator, geocoder Geocoder, logger *slog.Logger) *NavigationService {
	return &NavigationService{store: store, aggregator: agg, geocoder: geocoder, logger: logger}
}

// AddressRoutes is a route set for two geocoded addresses.
type AddressRoutes struct {
	Result aggregator.Result
	From   datastructure.Coordinate
	To     datastructure.Coordinate
}

func (uc *NavigationService) snapshot() (*graphstore.Snapshot, error) {
	snap := uc.store.Current()
	if snap == nil {
		return nil, server.WrapErrorf(nil, server.ErrServiceUnavailable, "street graph is still loading, try again later")
	}
	return snap, nil
}

// Routes computes one route per requested type on the current graph snapshot.
func (uc *NavigationService) Routes(ctx context.Context, srcLat, srcLon, dstLat, dstLon float64,
	types []string) (aggregator.Result, error) {
	snap, err := uc.snapshot()
	if err != nil {
		return aggregator.Result{}, err
	}
	res, err := uc.aggregator.Routes(ctx, snap.Graph, snap.Index,
		datastructure.NewCoordinate(srcLat, srcLon), datastructure.NewCoordinate(dstLat, dstLon), types)
	if err != nil {
		return aggregator.Result{}, uc.translateError(err)
	}
	return res, nil
}

// RoutesByAddress geocodes both addresses and routes between them. The safest route is always
// part of the answer.
func (uc *NavigationService) RoutesByAddress(ctx context.Context, fromAddress, toAddress string,
	types []string) (AddressRoutes, error) {
	from, err := uc.geocoder.ResolveAddress(ctx, fromAddress)
	if err != nil {
		return AddressRoutes{}, uc.translateError(err)
	}
	to, err := uc.geocoder.ResolveAddress(ctx, toAddress)
	if err != nil {
		return AddressRoutes{}, uc.translateError(err)
	}

	withSafest := append([]string{string(routingalgorithm.Safest)}, types...)
	res, err := uc.Routes(ctx, from.Lat, from.Lon, to.Lat, to.Lon, withSafest)
	if err != nil {
		return AddressRoutes{}, err
	}
	return AddressRoutes{Result: res, From: from, To: to}, nil
}

// NearestNode snaps a coordinate to the street graph.
func (uc *NavigationService) NearestNode(ctx context.Context, lat, lon float64) (datastructure.Node, float64, error) {
	snap, err := uc.snapshot()
	if err != nil {
		return datastructure.Node{}, 0, err
	}
	node, dist, err := snap.Index.Nearest(datastructure.NewCoordinate(lat, lon))
	if err != nil {
		return datastructure.Node{}, 0, uc.translateError(err)
	}
	return node, dist, nil
}

// Reload rebuilds the street graph from the raw source and swaps it in.
func (uc *NavigationService) Reload(ctx context.Context) (*graphstore.Snapshot, error) {
	snap, err := uc.store.Reload(ctx)
	if err != nil {
		return nil, uc.translateError(err)
	}
	uc.logger.Info("street graph reloaded", slog.Int("nodes", snap.Graph.NumNodes()),
		slog.Int("edges", snap.Graph.NumEdges()))
	return snap, nil
}

func (uc *NavigationService) translateError(err error) error {
	switch {
	case errors.Is(err, datastructure.ErrNoPath):
		return server.WrapErrorf(err, server.ErrNotFound, "no route found between the two locations")
	case errors.Is(err, datastructure.ErrNodeNotFound):
		return server.WrapErrorf(err, server.ErrNotFound, "the location you entered is not covered by the street map")
	case errors.Is(err, datastructure.ErrSearchLimitExceeded):
		return server.WrapErrorf(err, server.ErrNotFound, "no route found within the search limit")
	case errors.Is(err, geocoding.ErrUnknownLocation):
		return server.WrapErrorf(err, server.ErrBadParamInput, "address not found, please check the address")
	case errors.Is(err, geocoding.ErrOutOfServiceArea):
		return server.WrapErrorf(err, server.ErrBadParamInput, "address is outside the service area")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return server.WrapErrorf(err, server.ErrInternalServerError, "request cancelled")
	}
	uc.logger.Error("navigation request failed", slog.String("error", err.Error()))
	return server.WrapErrorf(err, server.ErrInternalServerError, server.MessageInternalServerError)
}
