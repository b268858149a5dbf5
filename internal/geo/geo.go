// Package geo provides coordinates, great-circle distance, and the S2 cell
// neighborhood used to request map content for the area around the player.
package geo

import (
	"math"
	"slices"

	"github.com/golang/geo/s2"
)

// Mean Earth radius in meters (IUGG).
const earthRadiusMeters = 6371009.0

// CellLevel is the S2 subdivision depth the map service indexes by.
const CellLevel = 15

// Coordinate is a WGS 84 position in floating-point degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within Earth bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Neighborhood returns the level-15 cell containing c plus radius cells
// walked forward and backward in the Hilbert curve ordering. The result is
// sorted ascending, has no duplicates, and always holds 2*radius+1 cells.
func Neighborhood(c Coordinate, radius int) []s2.CellID {
	origin := s2.CellIDFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lng)).Parent(CellLevel)

	walk := make([]s2.CellID, 0, 2*radius+1)
	walk = append(walk, origin)

	next := origin.Next()
	prev := origin.Prev()
	for i := 0; i < radius; i++ {
		walk = append(walk, next, prev)
		next = next.Next()
		prev = prev.Prev()
	}

	slices.Sort(walk)
	return walk
}

// Path interpolates a straight walk from a to b paced at speed meters per
// simulated second (one step per second). The returned slice ends exactly
// at b and never contains the starting point.
func Path(a, b Coordinate, speed float64) []Coordinate {
	if speed <= 0 {
		speed = 1
	}
	steps := int(Distance(a, b)/speed) + 1

	dLat := (b.Lat - a.Lat) / float64(steps)
	dLng := (b.Lng - a.Lng) / float64(steps)

	out := make([]Coordinate, 0, steps)
	cur := a
	for i := 0; i < steps-1; i++ {
		cur.Lat += dLat
		cur.Lng += dLng
		out = append(out, cur)
	}
	return append(out, b)
}
