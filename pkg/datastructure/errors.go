package datastructure

import "errors"

var (
	// ErrLoad is returned when neither the graph cache nor the raw network source is reachable.
	ErrLoad = errors.New("street graph could not be loaded")
	// ErrEmptyGraph is returned when the street graph has no nodes.
	ErrEmptyGraph = errors.New("street graph has no nodes")
	// ErrNoPath is returned when the resolved nodes are in different connected components.
	ErrNoPath = errors.New("no path between origin and destination")
	// ErrUnsupportedRouteType is returned for a route type label that has no cost function.
	ErrUnsupportedRouteType = errors.New("unsupported route type")
	// ErrNodeNotFound is returned when a node id or coordinate cannot be mapped onto the graph.
	ErrNodeNotFound = errors.New("node not found")
	// ErrSearchLimitExceeded is returned when a search settles more nodes than allowed.
	ErrSearchLimitExceeded = errors.New("search limit exceeded")
	// ErrInvalidGraph is returned by the graph constructor for inconsistent input.
	ErrInvalidGraph = errors.New("invalid street graph")
)
