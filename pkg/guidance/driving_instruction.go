package guidance

import (
	"lintang/saferoute/pkg/datastructure"
	"lintang/saferoute/pkg/geo"
	"lintang/saferoute/pkg/util"
)

// Instruction is one maneuver of a route. Distance is the length driven after the maneuver, up
// to the next one.
type Instruction struct {
	Sign     Sign
	Name     string
	Point    datastructure.Coordinate
	Heading  float64
	Distance float64
}

// Instructions turns a route into maneuvers. Consecutive edges of the same street are merged, and
// a new instruction starts wherever the street changes or an unnamed road turns. An empty route
// has no instructions.
func Instructions(g *datastructure.StreetGraph, route datastructure.Route) []Instruction {
	instructions := make([]Instruction, 0)
	if len(route.Edges) == 0 {
		return instructions
	}

	first := route.Edges[0]
	pts := edgePoints(g, &first)
	cur := Instruction{
		Sign:     Start,
		Name:     first.StreetName,
		Point:    pts[0],
		Heading:  geo.Bearing(pts[0], pts[1]),
		Distance: first.Length,
	}

	prev, prevPts := first, pts
	for i := 1; i < len(route.Edges); i++ {
		e := route.Edges[i]
		pts = edgePoints(g, &e)

		in := geo.Bearing(prevPts[len(prevPts)-2], prevPts[len(prevPts)-1])
		out := geo.Bearing(pts[0], pts[1])
		sign := turnSign(headingDelta(in, out))

		if staysOnStreet(&prev, &e, sign) {
			cur.Distance += e.Length
		} else {
			instructions = append(instructions, cur)
			cur = Instruction{Sign: sign, Name: e.StreetName, Point: pts[0], Heading: out, Distance: e.Length}
		}
		prev, prevPts = e, pts
	}
	instructions = append(instructions, cur)

	last := prevPts[len(prevPts)-1]
	return append(instructions, Instruction{Sign: Finish, Name: prev.StreetName, Point: last})
}

func staysOnStreet(prev, cur *datastructure.Edge, sign Sign) bool {
	if isSameName(prev.StreetName, cur.StreetName) {
		return true
	}
	if prev.StreetName == "" && cur.StreetName == "" {
		return !sign.IsTurn()
	}
	return false
}

// edgePoints returns at least two points along e, falling back to the endpoint nodes when the
// edge carries no geometry.
func edgePoints(g *datastructure.StreetGraph, e *datastructure.Edge) []datastructure.Coordinate {
	if len(e.Geometry) >= 2 {
		return e.Geometry
	}
	from, _ := g.NodeByID(e.From)
	to, _ := g.NodeByID(e.To)
	return []datastructure.Coordinate{
		datastructure.NewCoordinate(from.Lat, from.Lon),
		datastructure.NewCoordinate(to.Lat, to.Lon),
	}
}

type DrivingInstruction struct {
	Instruction string                   `json:"instruction"`
	StreetName  string                   `json:"street_name,omitempty"`
	Point       datastructure.Coordinate `json:"point"`
	Distance    float64                  `json:"distance"`
}

func NewDrivingInstruction(ins Instruction) DrivingInstruction {
	return DrivingInstruction{
		Instruction: ins.Description(),
		StreetName:  ins.Name,
		Point:       ins.Point,
		Distance:    util.RoundFloat(ins.Distance, 2),
	}
}

// DrivingInstructions is Instructions rendered for display.
func DrivingInstructions(g *datastructure.StreetGraph, route datastructure.Route) []DrivingInstruction {
	instructions := Instructions(g, route)
	driving := make([]DrivingInstruction, 0, len(instructions))
	for _, ins := range instructions {
		driving = append(driving, NewDrivingInstruction(ins))
	}
	return driving
}
