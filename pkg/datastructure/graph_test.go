package datastructure_test

import (
	"errors"
	"math"
	"testing"

	"lintang/saferoute/pkg/datastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreetGraph(t *testing.T) {
	t.Run("parallel edges pick minimum length then smaller key", func(t *testing.T) {
		b := datastructure.NewGraphBuilder()
		b.AddNode(2, 40.70, -74.00).AddNode(1, 40.71, -74.01)
		b.AddEdge(datastructure.Edge{From: 1, To: 2, Length: 30})
		b.AddEdge(datastructure.Edge{From: 1, To: 2, Length: 10})
		b.AddEdge(datastructure.Edge{From: 1, To: 2, Length: 10})
		b.AddEdge(datastructure.Edge{From: 1, To: 2, Length: 20})

		g, err := b.Build()
		require.NoError(t, err)

		from, ok := g.NodeIDx(1)
		require.True(t, ok)
		to, ok := g.NodeIDx(2)
		require.True(t, ok)

		assert.Len(t, g.OutEdges(from), 4)
		require.Len(t, g.Neighbors(from), 1)

		e, ok := g.RepresentativeEdge(from, to)
		require.True(t, ok)
		assert.Equal(t, 10.0, e.Length)
		assert.Equal(t, 1, e.Key)
	})

	t.Run("nodes are sorted by id", func(t *testing.T) {
		b := datastructure.NewGraphBuilder()
		b.AddNode(30, 0, 0).AddNode(10, 1, 1).AddNode(20, 2, 2)
		g, err := b.Build()
		require.NoError(t, err)

		assert.Equal(t, int64(10), g.GetNode(0).ID)
		assert.Equal(t, int64(20), g.GetNode(1).ID)
		assert.Equal(t, int64(30), g.GetNode(2).ID)
		n, ok := g.NodeByID(20)
		assert.True(t, ok)
		assert.Equal(t, 2.0, n.Lat)
	})

	t.Run("neighbors keep first insertion order of successors", func(t *testing.T) {
		b := datastructure.NewGraphBuilder()
		b.AddNode(1, 0, 0).AddNode(2, 0, 1).AddNode(3, 1, 0)
		b.AddEdge(datastructure.Edge{From: 1, To: 3, Length: 5})
		b.AddEdge(datastructure.Edge{From: 1, To: 2, Length: 5})
		b.AddEdge(datastructure.Edge{From: 1, To: 3, Length: 1})
		g, err := b.Build()
		require.NoError(t, err)

		n := g.Neighbors(0)
		require.Len(t, n, 2)
		assert.Equal(t, int32(2), n[0].ToNodeIDx)
		assert.Equal(t, int32(2), n[0].EdgeIDx)
		assert.Equal(t, int32(1), n[1].ToNodeIDx)
	})

	t.Run("rejects inconsistent input", func(t *testing.T) {
		cases := []struct {
			name  string
			nodes []datastructure.Node
			edges []datastructure.Edge
		}{
			{"duplicate node", []datastructure.Node{{ID: 1}, {ID: 1}}, nil},
			{"invalid coordinate", []datastructure.Node{{ID: 1, Lat: 91}}, nil},
			{"unknown endpoint", []datastructure.Node{{ID: 1}}, []datastructure.Edge{{From: 1, To: 2}}},
			{"negative length", []datastructure.Node{{ID: 1}, {ID: 2}}, []datastructure.Edge{{From: 1, To: 2, Length: -1}}},
			{"nan risk", []datastructure.Node{{ID: 1}, {ID: 2}}, []datastructure.Edge{{From: 1, To: 2, Risk: math.NaN()}}},
			{"infinite global risk", []datastructure.Node{{ID: 1}, {ID: 2}}, []datastructure.Edge{{From: 1, To: 2, GlobalRisk: math.Inf(1)}}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := datastructure.NewStreetGraph(tc.nodes, tc.edges)
				assert.True(t, errors.Is(err, datastructure.ErrInvalidGraph))
			})
		}
	})

	t.Run("with risk copies edges", func(t *testing.T) {
		b := datastructure.NewGraphBuilder()
		b.AddNode(1, 0, 0).AddNode(2, 0, 1)
		b.AddBidirectionalEdge(datastructure.Edge{From: 1, To: 2, Length: 7})
		g, err := b.Build()
		require.NoError(t, err)

		annotated, err := g.WithRisk([]float64{0.5, 1}, []float64{3, 6})
		require.NoError(t, err)

		assert.Equal(t, 0.0, g.GetEdge(0).GlobalRisk)
		assert.Equal(t, 3.0, annotated.GetEdge(0).GlobalRisk)
		assert.Equal(t, 1.0, annotated.GetEdge(1).Risk)
		assert.Equal(t, g.Neighbors(0), annotated.Neighbors(0))

		_, err = g.WithRisk([]float64{1}, []float64{1})
		assert.True(t, errors.Is(err, datastructure.ErrInvalidGraph))
		_, err = g.WithRisk([]float64{0, 0}, []float64{-1, 0})
		assert.True(t, errors.Is(err, datastructure.ErrInvalidGraph))
	})

	t.Run("bidirectional edge reverses geometry", func(t *testing.T) {
		b := datastructure.NewGraphBuilder()
		b.AddNode(1, 0, 0).AddNode(2, 0, 1)
		geom := []datastructure.Coordinate{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.5}, {Lat: 0, Lon: 1}}
		b.AddBidirectionalEdge(datastructure.Edge{From: 1, To: 2, Length: 7, Geometry: geom})
		g, err := b.Build()
		require.NoError(t, err)

		rev := g.GetEdge(1)
		assert.Equal(t, int64(2), rev.From)
		assert.Equal(t, datastructure.Coordinate{Lat: 0, Lon: 1}, rev.Geometry[0])
		assert.Equal(t, datastructure.Coordinate{Lat: 0, Lon: 0}, geom[0])
	})
}

func TestRoute(t *testing.T) {
	a := datastructure.Coordinate{Lat: 38.5, Lon: -120.2}
	b := datastructure.Coordinate{Lat: 40.7, Lon: -120.95}
	c := datastructure.Coordinate{Lat: 43.252, Lon: -126.453}

	r := datastructure.Route{Edges: []datastructure.Edge{
		{From: 1, To: 2, Length: 10, GlobalRisk: 2, Geometry: []datastructure.Coordinate{a, b}},
		{From: 2, To: 3, Length: 5, GlobalRisk: 4, Geometry: []datastructure.Coordinate{b, c}},
	}}

	assert.Equal(t, 15.0, r.TotalLength())
	assert.Equal(t, 6.0, r.TotalGlobalRisk())
	assert.Equal(t, []int64{1, 2, 3}, r.NodeIDs())
	assert.Equal(t, []datastructure.Coordinate{a, b, c}, r.Coordinates())
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", r.Polyline())

	empty := datastructure.Route{}
	assert.Equal(t, 0.0, empty.TotalLength())
	assert.Empty(t, empty.NodeIDs())
	assert.Equal(t, "", empty.Polyline())

	rs := datastructure.RouteSet{"safest": r, "shortest": empty}
	assert.Equal(t, []string{"safest", "shortest"}, rs.Types())
}
