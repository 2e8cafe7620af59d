package geo

import (
	"math"

	"lintang/saferoute/pkg/datastructure"

	"github.com/golang/geo/s2"
)

// mean earth radius in meters
const earthRadiusM = 6371008.8

func toS2Point(c datastructure.Coordinate) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lon))
}

// GreatCircleDistance returns the great-circle distance in meters between a and b.
func GreatCircleDistance(a, b datastructure.Coordinate) float64 {
	angle := s2.LatLngFromDegrees(a.Lat, a.Lon).Distance(s2.LatLngFromDegrees(b.Lat, b.Lon))
	return angle.Radians() * earthRadiusM
}

// DistanceToSegment returns the distance in meters between p and the great-circle segment a-b.
func DistanceToSegment(p, a, b datastructure.Coordinate) float64 {
	if a == b {
		return GreatCircleDistance(p, a)
	}
	return s2.DistanceFromSegment(toS2Point(p), toS2Point(a), toS2Point(b)).Radians() * earthRadiusM
}

// DistanceToPolyline returns the distance in meters between p and the closest segment of line.
func DistanceToPolyline(p datastructure.Coordinate, line []datastructure.Coordinate) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return GreatCircleDistance(p, line[0])
	}
	best := math.Inf(1)
	for i := 0; i+1 < len(line); i++ {
		if d := DistanceToSegment(p, line[i], line[i+1]); d < best {
			best = d
		}
	}
	return best
}

// PolylineLength sums the great-circle length in meters of consecutive points.
func PolylineLength(line []datastructure.Coordinate) float64 {
	total := 0.0
	for i := 0; i+1 < len(line); i++ {
		total += GreatCircleDistance(line[i], line[i+1])
	}
	return total
}

// BoundingBox returns the lat/lon box that contains every point within radiusM meters of c.
// Longitude is not wrapped at the antimeridian.
func BoundingBox(c datastructure.Coordinate, radiusM float64) (minLat, minLon, maxLat, maxLon float64) {
	dLat := radToDeg(radiusM / earthRadiusM)
	minLat = math.Max(c.Lat-dLat, -90)
	maxLat = math.Min(c.Lat+dLat, 90)

	// widest longitude span is at the box edge closest to a pole
	cosLat := math.Cos(degToRad(math.Max(math.Abs(minLat), math.Abs(maxLat))))
	if cosLat < 1e-12 || radiusM/earthRadiusM >= math.Pi/2 {
		return minLat, -180, maxLat, 180
	}
	dLon := radToDeg(math.Asin(math.Min(1, math.Sin(radiusM/earthRadiusM)/cosLat)))
	return minLat, c.Lon - dLon, maxLat, c.Lon + dLon
}

// Bearing returns the initial bearing from a to b in degrees, clockwise from north in [0, 360).
// https://www.movable-type.co.uk/scripts/latlong.html
func Bearing(a, b datastructure.Coordinate) float64 {
	dLon := degToRad(b.Lon - a.Lon)
	lat1 := degToRad(a.Lat)
	lat2 := degToRad(b.Lat)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return math.Mod(radToDeg(math.Atan2(y, x))+360, 360)
}

func degToRad(d float64) float64 {
	return d * math.Pi / 180.0
}

func radToDeg(r float64) float64 {
	return 180.0 * r / math.Pi
}
