package routingalgorithm

import (
	"fmt"
	"strings"

	"lintang/saferoute/pkg/datastructure"
)

// RouteType names a cost policy.
type RouteType string

const (
	Shortest      RouteType = "shortest"
	Safest        RouteType = "safest"
	SafestStreets RouteType = "safest_streets"
	MostDangerous RouteType = "most_dangerous"
)

var routeTypeLabels = map[string]RouteType{
	"shortest":       Shortest,
	"fastest":        Shortest,
	"safest":         Safest,
	"safest_streets": SafestStreets,
	"most_dangerous": MostDangerous,
	"dangerous":      MostDangerous,
}

// RouteTypes lists the canonical route types.
func RouteTypes() []RouteType {
	return []RouteType{Shortest, Safest, SafestStreets, MostDangerous}
}

// ParseRouteType maps a label, including the legacy aliases "fastest" and "dangerous", to its
// canonical route type.
func ParseRouteType(label string) (RouteType, error) {
	t, ok := routeTypeLabels[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return "", fmt.Errorf("%w: %q", datastructure.ErrUnsupportedRouteType, label)
	}
	return t, nil
}

// CostFunction is the per edge cost of a route type. Costs must be finite and >= 0.
type CostFunction interface {
	Cost(e *datastructure.Edge) float64
}

type ShortestCost struct{}

func (ShortestCost) Cost(e *datastructure.Edge) float64 {
	return e.Length
}

type SafestCost struct{}

func (SafestCost) Cost(e *datastructure.Edge) float64 {
	return e.GlobalRisk
}

// SafestStreetsCost trades length against risk: a risk free edge costs its length.
type SafestStreetsCost struct{}

func (SafestStreetsCost) Cost(e *datastructure.Edge) float64 {
	return e.Length * (e.GlobalRisk + 1)
}

// MostDangerousCost makes low risk edges expensive, so the minimum cost path follows the
// riskiest streets.
type MostDangerousCost struct{}

func (MostDangerousCost) Cost(e *datastructure.Edge) float64 {
	return e.Length * RiskMultiplier(e.GlobalRisk)
}

// RiskMultiplier is a decreasing step function of global risk.
func RiskMultiplier(globalRisk float64) float64 {
	switch {
	case globalRisk <= 0:
		return 1000
	case globalRisk < 3:
		return 500
	case globalRisk < 7:
		return 250
	case globalRisk < 10:
		return 100
	default:
		return 1
	}
}

// CostFunction returns the strategy of t. Unknown types get nil.
func (t RouteType) CostFunction() CostFunction {
	switch t {
	case Shortest:
		return ShortestCost{}
	case Safest:
		return SafestCost{}
	case SafestStreets:
		return SafestStreetsCost{}
	case MostDangerous:
		return MostDangerousCost{}
	}
	return nil
}

func (t RouteType) String() string {
	return string(t)
}
