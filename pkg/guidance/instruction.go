package guidance

import (
	"fmt"
	"strings"
)

type Sign int

const (
	TurnSharpLeft   Sign = -3
	TurnLeft        Sign = -2
	TurnSlightLeft  Sign = -1
	Continue        Sign = 0
	TurnSlightRight Sign = 1
	TurnRight       Sign = 2
	TurnSharpRight  Sign = 3
	Finish          Sign = 4
	Start           Sign = 101
)

func (s Sign) IsTurn() bool {
	return s >= TurnSharpLeft && s <= TurnSharpRight && s != Continue
}

// turnSign classifies the heading change delta (degrees, positive is clockwise) at an intersection.
func turnSign(delta float64) Sign {
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	var sign Sign
	switch {
	case abs < 12:
		return Continue
	case abs < 40:
		sign = TurnSlightRight
	case abs < 105:
		sign = TurnRight
	default:
		sign = TurnSharpRight
	}
	if delta < 0 {
		return -sign
	}
	return sign
}

// headingDelta returns the signed change from heading in to heading out, in (-180, 180].
func headingDelta(in, out float64) float64 {
	d := out - in
	for d > 180 {
		d -= 360
	}
	for d <= -180 {
		d += 360
	}
	return d
}

func azimuthToCompass(azimuth float64) string {
	switch {
	case azimuth < 22.5:
		return "north"
	case azimuth < 67.5:
		return "northeast"
	case azimuth < 112.5:
		return "east"
	case azimuth < 157.5:
		return "southeast"
	case azimuth < 202.5:
		return "south"
	case azimuth < 247.5:
		return "southwest"
	case azimuth < 292.5:
		return "west"
	case azimuth < 337.5:
		return "northwest"
	default:
		return "north"
	}
}

func directionDescription(sign Sign) string {
	switch sign {
	case TurnSharpLeft:
		return "Turn sharp left"
	case TurnLeft:
		return "Turn left"
	case TurnSlightLeft:
		return "Turn slight left"
	case TurnSlightRight:
		return "Turn slight right"
	case TurnRight:
		return "Turn right"
	case TurnSharpRight:
		return "Turn sharp right"
	default:
		return ""
	}
}

// Description renders the instruction as an english sentence.
func (ins Instruction) Description() string {
	street := strings.TrimSpace(ins.Name)
	switch ins.Sign {
	case Start:
		if street == "" {
			return fmt.Sprintf("Head %s", azimuthToCompass(ins.Heading))
		}
		return fmt.Sprintf("Head %s on %s", azimuthToCompass(ins.Heading), street)
	case Continue:
		if street == "" {
			return "Continue"
		}
		return fmt.Sprintf("Continue onto %s", street)
	case Finish:
		return "Arrive at your destination"
	}

	dir := directionDescription(ins.Sign)
	if street == "" {
		return dir
	}
	return fmt.Sprintf("%s onto %s", dir, street)
}

func isSameName(a, b string) bool {
	// unnamed osm ways are never the same street
	if a == "" || b == "" {
		return false
	}
	return a == b
}
