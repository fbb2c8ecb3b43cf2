package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// linearIndex answers nearest-point queries with a full scan. Routes hold a few hundred
// points, so the scan stays well inside one monitor tick.
type linearIndex struct {
	points orb.LineString
}

// NewNearestFinder creates a NearestFinder over points. The slice must not be mutated
// afterwards.
func NewNearestFinder(points orb.LineString) NearestFinder {
	return &linearIndex{points: points}
}

// Nearest returns the index of the point closest to p
func (l *linearIndex) Nearest(p orb.Point) (int, float64, bool) {
	if len(l.points) == 0 {
		return 0, 0, false
	}

	best := 0
	minDistance := math.Inf(1)
	for i, candidate := range l.points {
		d := Distance(p, candidate)
		if d < minDistance {
			minDistance = d
			best = i
		}
	}

	return best, minDistance, true
}
