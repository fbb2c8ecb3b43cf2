package routing

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/ifsp/robotnav/server/internal/lib/geo"
)

// Slicer reduces a dense route geometry to the waypoints the robot steers between
type Slicer struct {
	stepMeters    float64
	turnThreshold float64 // degrees; <= 0 disables turn based retention
}

// NewSlicer creates a Slicer. A point is kept once stepMeters have been traveled since the
// last kept point, or when the route leaves it at more than turnThreshold degrees from
// the last kept heading.
func NewSlicer(stepMeters, turnThreshold float64) *Slicer {
	return &Slicer{stepMeters: stepMeters, turnThreshold: turnThreshold}
}

// Slice returns the waypoint sequence for geometry. The first and last points are always
// kept and input order is preserved.
func (s *Slicer) Slice(geometry orb.LineString) orb.LineString {
	if len(geometry) <= 2 {
		return append(orb.LineString(nil), geometry...)
	}

	waypoints := orb.LineString{geometry[0]}
	last := len(geometry) - 1

	traveled := 0.0
	reference := geo.Bearing(geometry[0], geometry[1])

	for i := 1; i < last; i++ {
		traveled += geo.Distance(geometry[i-1], geometry[i])

		keep := traveled >= s.stepMeters
		outgoing := reference
		if geometry[i] != geometry[i+1] {
			outgoing = geo.Bearing(geometry[i], geometry[i+1])
			if s.turnThreshold > 0 && math.Abs(geo.SignedTurn(reference, outgoing)) > s.turnThreshold {
				keep = true
			}
		}

		if keep {
			waypoints = append(waypoints, geometry[i])
			traveled = 0
			reference = outgoing
		}
	}

	return append(waypoints, geometry[last])
}
