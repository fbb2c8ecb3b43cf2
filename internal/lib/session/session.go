package session

import (
	"math"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/ifsp/robotnav/server/internal/lib/geo"
	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

// Route is an installed route. It is immutable once constructed, so snapshots may share
// it freely across goroutines.
type Route struct {
	ID              string
	Destination     orb.Point
	Geometry        orb.LineString
	Waypoints       orb.LineString
	Commands        []routing.Command
	DistanceMeters  float64
	DurationSeconds float64
	CreatedAt       time.Time

	geometryIndex geo.NearestFinder
	waypointIndex geo.NearestFinder
	waypointAt    []int // geometry position of each waypoint
}

// NewRoute builds a route and its nearest-point indexes
func NewRoute(id string, destination orb.Point, directions *routing.Directions, waypoints orb.LineString, commands []routing.Command, createdAt time.Time) *Route {
	return &Route{
		ID:              id,
		Destination:     destination,
		Geometry:        directions.Geometry,
		Waypoints:       waypoints,
		Commands:        commands,
		DistanceMeters:  directions.DistanceMeters,
		DurationSeconds: directions.DurationSeconds,
		CreatedAt:       createdAt,
		geometryIndex:   geo.NewNearestFinder(directions.Geometry),
		waypointIndex:   geo.NewNearestFinder(waypoints),
		waypointAt:      waypointPositions(directions.Geometry, waypoints),
	}
}

// waypointPositions maps each waypoint to its index in geometry. Waypoints are an
// ordered subsequence of the geometry; one that is not found maps to its nearest point.
func waypointPositions(geometry, waypoints orb.LineString) []int {
	positions := make([]int, len(waypoints))
	finder := geo.NewNearestFinder(geometry)
	next := 0
	for i, wp := range waypoints {
		j := next
		for j < len(geometry) && geometry[j] != wp {
			j++
		}
		if j == len(geometry) {
			j, _, _ = finder.Nearest(wp)
		} else {
			next = j
		}
		positions[i] = j
	}
	return positions
}

// Snap returns the route geometry point nearest to p and its distance in meters
func (r *Route) Snap(p orb.Point) (orb.Point, float64) {
	idx, d, ok := r.geometryIndex.Nearest(p)
	if !ok {
		return p, 0
	}
	return r.Geometry[idx], d
}

// NearestWaypoint returns the index of the waypoint nearest to p
func (r *Route) NearestWaypoint(p orb.Point) int {
	idx, _, _ := r.waypointIndex.Nearest(p)
	return idx
}

// Passed reports whether p, once snapped onto the geometry, lies beyond waypoint
// along the route. A point snapped onto the waypoint itself counts as past it when it
// sits ahead of the waypoint in the direction of the following segment.
func (r *Route) Passed(waypoint int, p orb.Point) bool {
	if waypoint < 0 || waypoint >= len(r.waypointAt)-1 {
		return false
	}
	snapIdx, _, ok := r.geometryIndex.Nearest(p)
	if !ok {
		return false
	}
	at := r.waypointAt[waypoint]
	if snapIdx != at {
		return snapIdx > at
	}
	if at+1 >= len(r.Geometry) || p == r.Geometry[at] {
		return false
	}
	ahead := geo.Bearing(r.Geometry[at], r.Geometry[at+1])
	toPoint := geo.Bearing(r.Geometry[at], p)
	return math.Abs(geo.SignedTurn(ahead, toPoint)) < 90
}

// Snapshot is a consistent copy of the session state taken under one lock
type Snapshot struct {
	Route       *Route
	Index       int
	Obstacle    bool
	Arrived     bool
	Position    orb.Point
	HasPosition bool
	Previous    orb.Point
	HasPrevious bool
	LastReroute time.Time
}

// Target returns the waypoint the robot is currently steering to
func (s Snapshot) Target() (orb.Point, bool) {
	if s.Route == nil || s.Index >= len(s.Route.Waypoints) {
		return orb.Point{}, false
	}
	return s.Route.Waypoints[s.Index], true
}

// Session is the single owner of the navigation state shared by request handlers and the
// deviation monitor. All access goes through its methods; none of them block on I/O.
type Session struct {
	mu sync.RWMutex

	route       *Route
	index       int
	arrived     bool
	obstacle    bool
	lastReroute time.Time

	position    orb.Point
	hasPosition bool
	previous    orb.Point
	hasPrevious bool
}

// New creates an empty session
func New() *Session {
	return &Session{}
}

// Snapshot returns a consistent view of the session
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Route:       s.route,
		Index:       s.index,
		Obstacle:    s.obstacle,
		Arrived:     s.arrived,
		Position:    s.position,
		HasPosition: s.hasPosition,
		Previous:    s.previous,
		HasPrevious: s.hasPrevious,
		LastReroute: s.lastReroute,
	}
}

// Install replaces the active route and restarts progress at the first waypoint.
// The reroute timestamp survives installs so cooldowns span route changes.
func (s *Session) Install(route *Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installLocked(route)
}

// InstallIf replaces the active route only while the route identified by replacing is
// still active. It reports whether the install happened.
func (s *Session) InstallIf(route *Route, replacing string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.route == nil || s.route.ID != replacing {
		return false
	}
	s.installLocked(route)
	return true
}

func (s *Session) installLocked(route *Route) {
	s.route = route
	s.index = 0
	s.arrived = false
}

// SetProgress moves the waypoint index of routeID, clamped to [0, len(waypoints)].
// It is ignored when another route has been installed in the meantime.
func (s *Session) SetProgress(routeID string, index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.route == nil || s.route.ID != routeID {
		return false
	}
	if index < 0 {
		index = 0
	}
	if limit := len(s.route.Waypoints); index > limit {
		index = limit
	}
	s.index = index
	return true
}

// MarkArrived flags routeID as finished. Only the first call for a route returns true.
func (s *Session) MarkArrived(routeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.route == nil || s.route.ID != routeID || s.arrived {
		return false
	}
	s.arrived = true
	return true
}

// TryBeginReroute stamps the reroute time and returns true when routeID is active and the
// cooldown since the previous reroute has elapsed. The stamp is taken before the caller
// contacts the directions provider so racing ticks cannot both reroute.
func (s *Session) TryBeginReroute(routeID string, now time.Time, cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.route == nil || s.route.ID != routeID {
		return false
	}
	if !s.lastReroute.IsZero() && now.Sub(s.lastReroute) <= cooldown {
		return false
	}
	s.lastReroute = now
	return true
}

// SetObstacle updates the obstacle flag and reports whether it changed
func (s *Session) SetObstacle(hit bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.obstacle != hit
	s.obstacle = hit
	return changed
}

// UpdatePosition records a new smoothed position, keeping the prior one for heading
func (s *Session) UpdatePosition(p orb.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasPosition {
		s.previous = s.position
		s.hasPrevious = true
	}
	s.position = p
	s.hasPosition = true
}
