package services

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
	"github.com/paulmach/orb"

	"github.com/ifsp/robotnav/server/internal/config"
	"github.com/ifsp/robotnav/server/internal/journal"
	"github.com/ifsp/robotnav/server/internal/lib/geo"
	"github.com/ifsp/robotnav/server/internal/lib/session"
)

// State is the monitor's view of the robot
type State string

const (
	StateIdle      State = "idle"
	StateTracking  State = "tracking"
	StateHalted    State = "halted"
	StateRerouting State = "rerouting"
	StateArrived   State = "arrived"
)

// TickResult describes what a single monitor tick observed and did
type TickResult struct {
	State        State
	Deviation    float64
	HeadingError float64
	Speed        int
	Index        int
	Rerouted     bool
}

// DeviationMonitor periodically compares the smoothed position with the active route,
// advances progress, sets the drive speed, and reroutes when the robot strays.
type DeviationMonitor struct {
	nav    *NavigationService
	policy config.NavigationConfig
	clock  clock.Clock

	mu        sync.Mutex
	running   bool
	stopChan  chan struct{}
	done      chan struct{}
	lastState State
}

// NewDeviationMonitor creates a monitor for nav's session
func NewDeviationMonitor(nav *NavigationService, policy config.NavigationConfig, clk clock.Clock) *DeviationMonitor {
	if clk == nil {
		clk = clock.New()
	}
	return &DeviationMonitor{
		nav:       nav,
		policy:    policy,
		clock:     clk,
		lastState: StateIdle,
	}
}

// Start runs the monitor loop in the background until ctx is cancelled or Stop is called
func (m *DeviationMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("deviation monitor already running")
	}
	ctx = logging.EnsureLogger(ctx)
	m.running = true
	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})

	logging.Infow(ctx, "Starting deviation monitor", "period", m.policy.MonitorPeriod)

	go m.loop(ctx, m.stopChan, m.done)
	return nil
}

// Stop signals the loop to exit and waits for it. An in-flight reroute is cancelled.
func (m *DeviationMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	done := m.done
	m.mu.Unlock()

	<-done
}

// Running reports whether the loop is active
func (m *DeviationMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *DeviationMonitor) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := m.clock.Ticker(m.policy.MonitorPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Infow(context.WithoutCancel(ctx), "Deviation monitor stopped")
			return
		case <-ticker.C:
			m.safeTick(ctx)
		}
	}
}

// safeTick runs one tick, recovering from panics so the loop keeps running
func (m *DeviationMonitor) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err, _ := errors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Deviation monitor: recovered from panic",
				"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
		}
	}()
	m.Tick(ctx)
}

// Tick evaluates the current position against the active route once
func (m *DeviationMonitor) Tick(ctx context.Context) TickResult {
	result := m.evaluate(ctx)

	m.mu.Lock()
	previous := m.lastState
	m.lastState = result.State
	m.mu.Unlock()

	if previous != result.State {
		logging.Infow(ctx, "Navigation state changed", "from", previous, "to", result.State)
	}
	logging.Debugw(ctx, "Deviation monitor tick",
		"state", result.State, "deviation", result.Deviation, "heading_error", result.HeadingError,
		"speed", result.Speed, "index", result.Index)
	return result
}

func (m *DeviationMonitor) evaluate(ctx context.Context) TickResult {
	sess := m.nav.Session()
	snap := sess.Snapshot()

	if snap.Route == nil || !snap.HasPosition {
		return TickResult{State: StateIdle}
	}
	if snap.Obstacle {
		return TickResult{State: StateHalted, Index: snap.Index}
	}
	if snap.Arrived {
		return TickResult{State: StateArrived, Index: snap.Index}
	}

	route := snap.Route
	snapped, deviation := route.Snap(snap.Position)

	// Progress follows the snapped point so the index cannot drift. A waypoint counts as
	// reached inside the arrival radius or once the robot has moved past it.
	index := route.NearestWaypoint(snapped)
	nearest := route.Waypoints[index]
	if geo.Distance(snap.Position, nearest) < m.policy.ArrivalRadiusMeters || route.Passed(index, snap.Position) {
		index++
		if index > snap.Index {
			m.nav.record(ctx, journal.Event{
				Kind:      journal.WaypointReached,
				RouteID:   route.ID,
				Longitude: nearest.Lon(),
				Latitude:  nearest.Lat(),
				Detail:    fmt.Sprintf("waypoint %d of %d", index, len(route.Waypoints)),
			})
		}
	}

	// Inside the arrival radius the bearing to the target carries no steering information.
	heading := 0.0
	if index < len(route.Waypoints) {
		target := route.Waypoints[index]
		if geo.Distance(snap.Position, target) >= m.policy.ArrivalRadiusMeters {
			heading = headingError(snap, target)
		}
	}
	if !sess.SetProgress(route.ID, index) {
		// Another route was installed during this tick; evaluate it next time.
		return TickResult{State: StateTracking, Deviation: deviation, HeadingError: heading, Index: index}
	}

	if index >= len(route.Waypoints) {
		m.arrive(ctx, route)
		return TickResult{State: StateArrived, Deviation: deviation, HeadingError: heading, Index: index}
	}

	result := TickResult{
		State:        StateTracking,
		Deviation:    deviation,
		HeadingError: heading,
		Speed:        speedFor(m.policy, deviation, heading),
		Index:        index,
	}
	m.nav.setSpeed(ctx, result.Speed)

	if needsReroute(m.policy, deviation, heading) && sess.TryBeginReroute(route.ID, m.clock.Now(), m.policy.RerouteCooldown) {
		result.State = StateRerouting
		logging.Infow(ctx, "Rerouting", "route_id", route.ID, "deviation", deviation, "heading_error", heading)

		installed, err := m.nav.Reroute(ctx, snapped, route)
		if err != nil {
			logging.Warnw(ctx, "Reroute failed", "route_id", route.ID, "error", err)
		}
		result.Rerouted = installed
	}
	return result
}

// arrive stops the robot and announces arrival once per route
func (m *DeviationMonitor) arrive(ctx context.Context, route *session.Route) {
	if !m.nav.Session().MarkArrived(route.ID) {
		return
	}
	m.nav.stop(ctx)
	m.nav.announce(ctx, announceArrived)
	m.nav.record(ctx, journal.Event{
		Kind:      journal.Arrived,
		RouteID:   route.ID,
		Longitude: route.Destination.Lon(),
		Latitude:  route.Destination.Lat(),
	})
	logging.Infow(ctx, "Destination reached", "route_id", route.ID)
}

// headingError is the angle between the direction of recent motion and the bearing to
// target. It is zero until two distinct positions have been observed.
func headingError(snap session.Snapshot, target orb.Point) float64 {
	if !snap.HasPrevious || snap.Previous == snap.Position {
		return 0
	}
	motion := geo.Bearing(snap.Previous, snap.Position)
	required := geo.Bearing(snap.Position, target)
	return math.Abs(geo.SignedTurn(motion, required))
}
