package guidance

import (
	"testing"

	"lintang/saferoute/pkg/datastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnSign(t *testing.T) {
	cases := []struct {
		in, out float64
		want    Sign
	}{
		{0, 5, Continue},
		{350, 10, TurnSlightRight},
		{10, 350, TurnSlightLeft},
		{0, 90, TurnRight},
		{90, 0, TurnLeft},
		{0, 150, TurnSharpRight},
		{180, 20, TurnSharpLeft},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, turnSign(headingDelta(tc.in, tc.out)), "%v -> %v", tc.in, tc.out)
	}
}

func lShapeGraph(t *testing.T) *datastructure.StreetGraph {
	t.Helper()
	b := datastructure.NewGraphBuilder()
	b.AddNode(1, 40.700, -74.000).AddNode(2, 40.701, -74.000).
		AddNode(3, 40.701, -73.999).AddNode(4, 40.702, -73.999).
		AddNode(5, 40.702, -74.000)
	b.AddEdge(datastructure.Edge{From: 1, To: 2, Length: 10, StreetName: "Broadway"})
	b.AddEdge(datastructure.Edge{From: 2, To: 3, Length: 20, StreetName: "Canal Street"})
	b.AddEdge(datastructure.Edge{From: 3, To: 4, Length: 30, StreetName: "Canal Street"})
	b.AddEdge(datastructure.Edge{From: 2, To: 5, Length: 15})
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestInstructions(t *testing.T) {
	g := lShapeGraph(t)

	t.Run("street change starts a new instruction", func(t *testing.T) {
		route := datastructure.Route{Edges: []datastructure.Edge{*g.GetEdge(0), *g.GetEdge(1), *g.GetEdge(2)}}
		ins := Instructions(g, route)
		require.Len(t, ins, 3)

		assert.Equal(t, Start, ins[0].Sign)
		assert.Equal(t, "Head north on Broadway", ins[0].Description())
		assert.Equal(t, 10.0, ins[0].Distance)

		assert.Equal(t, TurnRight, ins[1].Sign)
		assert.Equal(t, "Turn right onto Canal Street", ins[1].Description())
		assert.Equal(t, 50.0, ins[1].Distance)
		assert.Equal(t, datastructure.NewCoordinate(40.701, -74.000), ins[1].Point)

		assert.Equal(t, Finish, ins[2].Sign)
		assert.Equal(t, datastructure.NewCoordinate(40.702, -73.999), ins[2].Point)
	})

	t.Run("unnamed roads going straight are merged", func(t *testing.T) {
		b := datastructure.NewGraphBuilder()
		b.AddNode(1, 40.700, -74.000).AddNode(2, 40.701, -74.000).AddNode(3, 40.702, -74.000)
		b.AddEdge(datastructure.Edge{From: 1, To: 2, Length: 10})
		b.AddEdge(datastructure.Edge{From: 2, To: 3, Length: 12})
		straight, err := b.Build()
		require.NoError(t, err)

		ins := Instructions(straight, datastructure.Route{Edges: straight.Edges})
		require.Len(t, ins, 2)
		assert.Equal(t, "Head north", ins[0].Description())
		assert.Equal(t, 22.0, ins[0].Distance)
	})

	t.Run("geometry decides the heading", func(t *testing.T) {
		// leaves node 1 heading east before bending north
		e := *g.GetEdge(0)
		e.Geometry = []datastructure.Coordinate{
			{Lat: 40.700, Lon: -74.000}, {Lat: 40.700, Lon: -73.9995}, {Lat: 40.701, Lon: -74.000},
		}
		ins := Instructions(g, datastructure.Route{Edges: []datastructure.Edge{e}})
		require.Len(t, ins, 2)
		assert.Equal(t, "Head east on Broadway", ins[0].Description())
	})

	t.Run("empty route", func(t *testing.T) {
		assert.Empty(t, Instructions(g, datastructure.Route{}))
		assert.Empty(t, DrivingInstructions(g, datastructure.Route{}))
	})

	t.Run("driving instructions", func(t *testing.T) {
		route := datastructure.Route{Edges: []datastructure.Edge{*g.GetEdge(0), *g.GetEdge(3)}}
		driving := DrivingInstructions(g, route)
		require.Len(t, driving, 3)
		assert.Equal(t, "Head north on Broadway", driving[0].Instruction)
		assert.Equal(t, "Continue", driving[1].Instruction)
		assert.Equal(t, 15.0, driving[1].Distance)
		assert.Equal(t, "Arrive at your destination", driving[2].Instruction)
	})
}
