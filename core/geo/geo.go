// Package geo provides the coordinate math used by dispatch selection and
// the movement simulation.
package geo

import (
	"math"
	"math/rand"
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Euclidean returns the planar distance between two points in degree units.
// Positions are confined to a small urban bounding box where the planar
// approximation error is negligible; swap in Haversine for larger areas.
func Euclidean(a, b Point) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b Point) float64 {
	const earthRadius = 6371000.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadius * c
}

// Jitter returns p displaced by a uniform random offset in [-magnitude,
// +magnitude] on each axis. It models GPS drift and slow movement.
func Jitter(p Point, magnitude float64, rng *rand.Rand) Point {
	return Point{
		Lat: p.Lat + (rng.Float64()-0.5)*2*magnitude,
		Lng: p.Lng + (rng.Float64()-0.5)*2*magnitude,
	}
}
