// Package geo holds the coordinate and path types shared by the routing,
// exposure and traffic packages, and the point sampler that reduces a path
// to representative lookup locations.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// ErrInvalidCoordinates is returned for points outside the WGS84 range.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks the point lies within latitude/longitude bounds.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) ||
		p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinates, p.Lat, p.Lon)
	}
	return nil
}

// Offset returns the point shifted by the given number of degrees.
func (p Point) Offset(dLat, dLon float64) Point {
	return Point{Lat: p.Lat + dLat, Lon: p.Lon + dLon}
}

// Orb converts the point to an orb point (lon, lat order).
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Snap floors the point onto a grid of cell degrees, so nearby points share
// one cache key.
func (p Point) Snap(cell float64) Point {
	return Point{Lat: math.Floor(p.Lat/cell) * cell, Lon: math.Floor(p.Lon/cell) * cell}
}

// FromOrb converts an orb point to a Point.
func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lon: p.Lon()}
}

// Midpoint returns the simple coordinate average of a and b. Candidate
// detours offset from this point by fixed degree amounts, so it is kept
// in coordinate space rather than on the great circle.
func Midpoint(a, b Point) Point {
	return Point{Lat: (a.Lat + b.Lat) / 2, Lon: (a.Lon + b.Lon) / 2}
}

// DistanceKm returns the great-circle distance between two points in kilometres.
func DistanceKm(a, b Point) float64 {
	return orbgeo.DistanceHaversine(a.Orb(), b.Orb()) / 1000
}

// Path is an ordered sequence of points from origin to destination.
type Path []Point

// Valid reports whether the path has at least two vertices.
func (p Path) Valid() bool {
	return len(p) >= 2
}

// First returns the first vertex. The path must not be empty.
func (p Path) First() Point { return p[0] }

// Last returns the last vertex. The path must not be empty.
func (p Path) Last() Point { return p[len(p)-1] }

// LengthKm returns the summed great-circle length of all segments.
func (p Path) LengthKm() float64 {
	var total float64
	for i := 1; i < len(p); i++ {
		total += DistanceKm(p[i-1], p[i])
	}
	return total
}

// LineString converts the path to an orb line string.
func (p Path) LineString() orb.LineString {
	ls := make(orb.LineString, len(p))
	for i, pt := range p {
		ls[i] = pt.Orb()
	}
	return ls
}

// PathFromLineString converts an orb line string to a Path.
func PathFromLineString(ls orb.LineString) Path {
	path := make(Path, len(ls))
	for i, pt := range ls {
		path[i] = FromOrb(pt)
	}
	return path
}
