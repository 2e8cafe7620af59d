package aggregator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"lintang/saferoute/pkg/datastructure"
	"lintang/saferoute/pkg/engine/aggregator"
	"lintang/saferoute/pkg/engine/resolver"
	"lintang/saferoute/pkg/engine/routingalgorithm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pointA = datastructure.NewCoordinate(40.700, -74.000)
	pointB = datastructure.NewCoordinate(40.701, -74.000)
	pointC = datastructure.NewCoordinate(40.700, -73.999)
	pointD = datastructure.NewCoordinate(40.701, -73.999)
	farX   = datastructure.NewCoordinate(40.800, -74.000)
)

// diamond A(1) B(2) C(3) D(4) plus an isolated node X(5).
func diamondGraph(t *testing.T) *datastructure.StreetGraph {
	t.Helper()
	b := datastructure.NewGraphBuilder()
	b.AddNode(1, pointA.Lat, pointA.Lon).AddNode(2, pointB.Lat, pointB.Lon).
		AddNode(3, pointC.Lat, pointC.Lon).AddNode(4, pointD.Lat, pointD.Lon).
		AddNode(5, farX.Lat, farX.Lon)
	b.AddBidirectionalEdge(datastructure.Edge{From: 1, To: 2, Length: 10})
	b.AddBidirectionalEdge(datastructure.Edge{From: 2, To: 4, Length: 10})
	b.AddBidirectionalEdge(datastructure.Edge{From: 1, To: 3, Length: 5, Risk: 1, GlobalRisk: 9})
	b.AddBidirectionalEdge(datastructure.Edge{From: 3, To: 4, Length: 5, Risk: 1, GlobalRisk: 9})
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func newAggregator(opts routingalgorithm.SearchOptions) *aggregator.Aggregator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return aggregator.NewAggregator(routingalgorithm.NewRouteEngine(opts), logger)
}

func TestRoutes(t *testing.T) {
	ctx := context.Background()
	g := diamondGraph(t)
	idx := resolver.NewNodeIndex(g)
	agg := newAggregator(routingalgorithm.SearchOptions{})

	t.Run("unknown types are skipped", func(t *testing.T) {
		res, err := agg.Routes(ctx, g, idx, pointA, pointD, []string{"shortest", "bogus"})
		require.NoError(t, err)
		assert.Equal(t, []string{"shortest"}, res.Routes.Types())
		assert.Equal(t, []int64{1, 3, 4}, res.Routes["shortest"].NodeIDs())
	})

	t.Run("every type computed independently", func(t *testing.T) {
		res, err := agg.Routes(ctx, g, idx, pointA, pointD,
			[]string{"shortest", "safest", "safest_streets", "most_dangerous"})
		require.NoError(t, err)
		assert.Equal(t, []string{"most_dangerous", "safest", "safest_streets", "shortest"}, res.Routes.Types())
		assert.Equal(t, []int64{1, 2, 4}, res.Routes["safest"].NodeIDs())
		assert.Equal(t, []int64{1, 3, 4}, res.Routes["most_dangerous"].NodeIDs())
		assert.Equal(t, 0.0, res.Details["safest"].Cost)
		assert.Equal(t, int64(1), res.Details["shortest"].From.ID)
		require.Len(t, res.Directions["safest"], 3)
		assert.Equal(t, "Head north", res.Directions["safest"][0].Instruction)
		assert.Equal(t, "Arrive at your destination", res.Directions["safest"][2].Instruction)
	})

	t.Run("aliases map to canonical labels once", func(t *testing.T) {
		res, err := agg.Routes(ctx, g, idx, pointA, pointD, []string{"fastest", "shortest", "dangerous"})
		require.NoError(t, err)
		assert.Equal(t, []string{"most_dangerous", "shortest"}, res.Routes.Types())
	})

	t.Run("no known type gives an empty set", func(t *testing.T) {
		res, err := agg.Routes(ctx, g, idx, pointA, pointD, []string{"bogus", "scenic"})
		require.NoError(t, err)
		assert.Empty(t, res.Routes)

		res, err = agg.Routes(ctx, g, idx, pointA, pointD, nil)
		require.NoError(t, err)
		assert.Empty(t, res.Routes)
	})

	t.Run("all types failing returns the error", func(t *testing.T) {
		_, err := agg.Routes(ctx, g, idx, pointA, farX, []string{"shortest", "safest"})
		assert.True(t, errors.Is(err, datastructure.ErrNoPath))
	})

	t.Run("search limit omits the type", func(t *testing.T) {
		limited := newAggregator(routingalgorithm.SearchOptions{MaxSettledNodes: 1})
		_, err := limited.Routes(ctx, g, idx, pointA, pointD, []string{"shortest"})
		assert.True(t, errors.Is(err, datastructure.ErrSearchLimitExceeded))
	})

	t.Run("same node gives empty routes", func(t *testing.T) {
		res, err := agg.Routes(ctx, g, idx, pointB, pointB, []string{"safest", "shortest"})
		require.NoError(t, err)
		assert.Empty(t, res.Routes["safest"].Edges)
		assert.Empty(t, res.Routes["shortest"].Edges)
	})

	t.Run("cancelled context fails the call", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := agg.Routes(cctx, g, idx, pointA, pointD, []string{"shortest", "safest"})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("resolution errors fail the call", func(t *testing.T) {
		_, err := agg.Routes(ctx, g, idx, datastructure.NewCoordinate(math.NaN(), 0), pointD, []string{"shortest"})
		assert.True(t, errors.Is(err, datastructure.ErrNodeNotFound))
	})
}
