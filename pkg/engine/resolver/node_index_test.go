package resolver_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"lintang/saferoute/pkg/datastructure"
	"lintang/saferoute/pkg/engine/resolver"
	"lintang/saferoute/pkg/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomGraph(t *testing.T, n int, seed int64) *datastructure.StreetGraph {
	t.Helper()
	rnd := rand.New(rand.NewSource(seed))
	b := datastructure.NewGraphBuilder()
	for i := 0; i < n; i++ {
		b.AddNode(int64(1000+i), 40.6+rnd.Float64()*0.2, -74.1+rnd.Float64()*0.2)
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func bruteForce(g *datastructure.StreetGraph, p datastructure.Coordinate) (int64, float64) {
	bestID, bestDist := int64(0), math.Inf(1)
	for _, n := range g.Nodes {
		d := geo.GreatCircleDistance(p, datastructure.NewCoordinate(n.Lat, n.Lon))
		if d < bestDist || (d == bestDist && n.ID < bestID) {
			bestID, bestDist = n.ID, d
		}
	}
	return bestID, bestDist
}

func TestNearest(t *testing.T) {
	t.Run("agrees with brute force", func(t *testing.T) {
		g := randomGraph(t, 2000, 7)
		idx := resolver.NewNodeIndex(g)
		rnd := rand.New(rand.NewSource(11))
		for i := 0; i < 300; i++ {
			p := datastructure.NewCoordinate(40.58+rnd.Float64()*0.24, -74.12+rnd.Float64()*0.24)
			node, dist, err := idx.Nearest(p)
			require.NoError(t, err)
			wantID, wantDist := bruteForce(g, p)
			assert.Equal(t, wantID, node.ID)
			assert.InDelta(t, wantDist, dist, 1e-9)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		g := randomGraph(t, 500, 3)
		idx := resolver.NewNodeIndex(g)
		p := datastructure.NewCoordinate(40.7, -74.0)
		first, _, err := idx.Nearest(p)
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			again, _, err := resolver.NewNodeIndex(g).Nearest(p)
			require.NoError(t, err)
			assert.Equal(t, first.ID, again.ID)
			n, _, err := idx.Nearest(p)
			require.NoError(t, err)
			assert.Equal(t, first.ID, n.ID)
		}
	})

	t.Run("ties go to the smallest id", func(t *testing.T) {
		b := datastructure.NewGraphBuilder()
		b.AddNode(9, 40.7, -74.0).AddNode(4, 40.7, -74.0).AddNode(6, 40.7, -74.0).
			AddNode(2, 40.8, -74.0)
		g, err := b.Build()
		require.NoError(t, err)

		id, dist, err := resolver.NewNodeIndex(g).NearestID(datastructure.NewCoordinate(40.7001, -74.0))
		require.NoError(t, err)
		assert.Equal(t, int64(4), id)
		assert.InDelta(t, 11.12, dist, 0.01)
	})

	t.Run("exact match has zero distance", func(t *testing.T) {
		g := randomGraph(t, 50, 5)
		target := g.GetNode(17)
		n, dist, err := resolver.NewNodeIndex(g).Nearest(datastructure.NewCoordinate(target.Lat, target.Lon))
		require.NoError(t, err)
		assert.Equal(t, target.ID, n.ID)
		assert.Equal(t, 0.0, dist)
	})

	t.Run("empty graph", func(t *testing.T) {
		g, err := datastructure.NewGraphBuilder().Build()
		require.NoError(t, err)
		_, _, err = resolver.NewNodeIndex(g).Nearest(datastructure.NewCoordinate(40.7, -74.0))
		assert.True(t, errors.Is(err, datastructure.ErrEmptyGraph))
	})

	t.Run("invalid coordinate", func(t *testing.T) {
		g := randomGraph(t, 10, 1)
		idx := resolver.NewNodeIndex(g)
		for _, p := range []datastructure.Coordinate{{Lat: 91, Lon: 0}, {Lat: 0, Lon: -181}, {Lat: math.NaN(), Lon: 0}} {
			_, _, err := idx.Nearest(p)
			assert.True(t, errors.Is(err, datastructure.ErrNodeNotFound))
		}
	})
}
