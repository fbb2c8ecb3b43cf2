package geo

import "github.com/paulmach/orb"

// Positions are orb.Point values laid out as [longitude, latitude] in degrees (WGS84),
// which is also the order the directions services and the HTTP API use.

// NearestFinder locates the point of a path closest to a query position
type NearestFinder interface {
	// Nearest returns the index of the closest point and its distance in meters.
	// ok is false when the path is empty.
	Nearest(p orb.Point) (index int, distance float64, ok bool)
}

// NewNearestFinder is implemented in nearest.go
