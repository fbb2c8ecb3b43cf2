package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/dpup/prefab/logging"
	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/ifsp/robotnav/server/internal/clients/robot"
	"github.com/ifsp/robotnav/server/internal/clients/voice"
	"github.com/ifsp/robotnav/server/internal/config"
	"github.com/ifsp/robotnav/server/internal/journal"
	"github.com/ifsp/robotnav/server/internal/lib/geo"
	"github.com/ifsp/robotnav/server/internal/lib/naverr"
	"github.com/ifsp/robotnav/server/internal/lib/routing"
	"github.com/ifsp/robotnav/server/internal/lib/session"
	"github.com/ifsp/robotnav/server/internal/lib/tracking"
)

const (
	announceArrived  = "You have arrived at your destination"
	announceObstacle = "Obstacle detected, stopping"
	announceReroute  = "Off route, recalculating"
)

// RouteResult is returned to callers of ComputeRoute
type RouteResult struct {
	RouteID  string            `json:"route_id"`
	Commands []routing.Command `json:"commands"`
	Distance float64           `json:"distance"`
	Duration float64           `json:"duration"`
	Geometry orb.LineString    `json:"geometry,omitempty"`
}

// LiveStatus is the live position report
type LiveStatus struct {
	Position      *orb.Point `json:"pos"`
	Target        *orb.Point `json:"target"`
	WaypointIndex int        `json:"waypoint_index"`
	WaypointCount int        `json:"waypoint_count"`
	Obstacle      bool       `json:"obstacle"`
	State         State      `json:"state"`
}

// Dependencies are the collaborators of a NavigationService. Announcer and Journal are
// optional.
type Dependencies struct {
	Provider  routing.Provider
	Executor  robot.Executor
	Announcer voice.Announcer
	Journal   journal.Recorder
	Clock     clock.Clock
}

// NavigationService computes routes, ingests positions, and handles obstacle reports.
// It owns the navigation session and position tracker shared with the DeviationMonitor.
type NavigationService struct {
	policy    config.NavigationConfig
	provider  routing.Provider
	executor  robot.Executor
	announcer voice.Announcer
	journal   journal.Recorder
	clock     clock.Clock

	slicer    *routing.Slicer
	generator *routing.CommandGenerator
	tracker   *tracking.PositionTracker
	session   *session.Session

	ingestMu  sync.Mutex
	installMu sync.Mutex // pairs each session install with its program dispatch
	rerouting atomic.Bool
	newID     func() string
}

// NewNavigationService creates a navigation service with an empty session
func NewNavigationService(policy config.NavigationConfig, deps Dependencies) *NavigationService {
	if deps.Announcer == nil {
		deps.Announcer = voice.Nop{}
	}
	if deps.Journal == nil {
		deps.Journal = journal.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}

	return &NavigationService{
		policy:    policy,
		provider:  deps.Provider,
		executor:  deps.Executor,
		announcer: deps.Announcer,
		journal:   deps.Journal,
		clock:     deps.Clock,
		slicer:    routing.NewSlicer(policy.SliceStepMeters, policy.SliceTurnDegrees),
		generator: routing.NewCommandGenerator(policy.TurnEmissionDegrees),
		tracker:   tracking.NewPositionTracker(policy.PositionWindow),
		session:   session.New(),
		newID:     uuid.NewString,
	}
}

// Session exposes the navigation session for read access by the monitor and handlers
func (s *NavigationService) Session() *session.Session {
	return s.session
}

// ComputeRoute requests directions from start to end, installs the resulting route,
// and sends its commands to the robot. On error the active route is left unchanged.
func (s *NavigationService) ComputeRoute(ctx context.Context, start, end orb.Point) (*RouteResult, error) {
	if !geo.IsValid(start) || !geo.IsValid(end) {
		return nil, naverr.Missing("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}

	route, err := s.plan(ctx, start, end)
	if err != nil {
		return nil, err
	}

	s.installMu.Lock()
	s.session.Install(route)
	s.dispatchProgram(ctx, route)
	s.installMu.Unlock()

	s.record(ctx, journal.Event{
		Kind:      journal.RouteInstalled,
		RouteID:   route.ID,
		Longitude: end.Lon(),
		Latitude:  end.Lat(),
		Detail:    fmt.Sprintf("%d waypoints, %.1fm", len(route.Waypoints), route.DistanceMeters),
	})

	logging.Infow(ctx, "Route installed",
		"route_id", route.ID, "waypoints", len(route.Waypoints), "commands", len(route.Commands),
		"distance", route.DistanceMeters)

	return &RouteResult{
		RouteID:  route.ID,
		Commands: route.Commands,
		Distance: route.DistanceMeters,
		Duration: route.DurationSeconds,
		Geometry: route.Geometry,
	}, nil
}

// Reroute plans from `from` to the destination of the replaced route and installs the
// result only if `replaced` is still active. It reports whether a route was installed.
func (s *NavigationService) Reroute(ctx context.Context, from orb.Point, replaced *session.Route) (bool, error) {
	s.rerouting.Store(true)
	defer s.rerouting.Store(false)

	route, err := s.plan(ctx, from, replaced.Destination)
	if err != nil {
		return false, err
	}

	s.installMu.Lock()
	if !s.session.InstallIf(route, replaced.ID) {
		s.installMu.Unlock()
		logging.Infow(ctx, "Reroute discarded, route changed meanwhile", "replaced", replaced.ID)
		return false, nil
	}
	s.dispatchProgram(ctx, route)
	s.installMu.Unlock()

	if s.policy.AnnounceReroutes {
		s.announce(ctx, announceReroute)
	}
	s.record(ctx, journal.Event{
		Kind:      journal.Rerouted,
		RouteID:   route.ID,
		Longitude: from.Lon(),
		Latitude:  from.Lat(),
		Detail:    "replaces " + replaced.ID,
	})
	return true, nil
}

// plan builds a route without touching the session
func (s *NavigationService) plan(ctx context.Context, start, end orb.Point) (*session.Route, error) {
	directions, err := s.provider.Directions(ctx, start, end)
	if err != nil {
		if naverr.Is(err, naverr.ProviderError) {
			return nil, err
		}
		return nil, naverr.Provider("directions request failed", err)
	}
	if directions == nil || len(directions.Geometry) < 2 {
		return nil, naverr.NoRoute("no route found")
	}

	waypoints := s.slicer.Slice(directions.Geometry)
	commands := s.generator.Generate(waypoints)

	return session.NewRoute(s.newID(), end, directions, waypoints, commands, s.clock.Now()), nil
}

// IngestFix feeds a raw GPS fix to the tracker and publishes the smoothed position
func (s *NavigationService) IngestFix(ctx context.Context, fix orb.Point) error {
	if !geo.IsValid(fix) {
		return naverr.Missing("invalid position: latitude must be [-90, 90], longitude must be [-180, 180]")
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	smoothed := s.tracker.Ingest(fix)
	s.session.UpdatePosition(smoothed)
	return nil
}

// IngestNMEA ingests every usable fix in a block of NMEA sentences, in order
func (s *NavigationService) IngestNMEA(ctx context.Context, text string) (int, error) {
	fixes := tracking.ParseNMEA(text)
	if len(fixes) == 0 {
		return 0, naverr.Missing("no valid RMC or GGA sentences")
	}
	for i, fix := range fixes {
		if err := s.IngestFix(ctx, fix); err != nil {
			return i, err
		}
	}
	return len(fixes), nil
}

// ReportObstacle sets or clears the obstacle flag. Setting it stops the robot.
func (s *NavigationService) ReportObstacle(ctx context.Context, hit bool) {
	changed := s.session.SetObstacle(hit)
	if !changed {
		return
	}

	snap := s.session.Snapshot()
	event := journal.Event{Kind: journal.ObstacleCleared, Longitude: snap.Position.Lon(), Latitude: snap.Position.Lat()}
	if snap.Route != nil {
		event.RouteID = snap.Route.ID
	}

	if hit {
		event.Kind = journal.ObstacleHit
		s.stop(ctx)
		s.announce(ctx, announceObstacle)
	}
	s.record(ctx, event)
	logging.Infow(ctx, "Obstacle flag changed", "hit", hit)
}

// Live returns the smoothed position and current target
func (s *NavigationService) Live() LiveStatus {
	snap := s.session.Snapshot()
	status := LiveStatus{
		Obstacle: snap.Obstacle,
		State:    s.stateOf(snap),
	}
	if snap.HasPosition {
		pos := snap.Position
		status.Position = &pos
	}
	if target, ok := snap.Target(); ok {
		status.Target = &target
	}
	if snap.Route != nil {
		status.WaypointIndex = snap.Index
		status.WaypointCount = len(snap.Route.Waypoints)
	}
	return status
}

// ActiveRoute returns the installed route, if any
func (s *NavigationService) ActiveRoute() (*session.Route, bool) {
	route := s.session.Snapshot().Route
	return route, route != nil
}

// RecentEvents lists the newest journal events
func (s *NavigationService) RecentEvents(ctx context.Context, limit int) ([]journal.Event, error) {
	return s.journal.Recent(ctx, limit)
}

func (s *NavigationService) stateOf(snap session.Snapshot) State {
	switch {
	case s.rerouting.Load():
		return StateRerouting
	case snap.Route == nil || !snap.HasPosition:
		return StateIdle
	case snap.Obstacle:
		return StateHalted
	case snap.Arrived:
		return StateArrived
	default:
		return StateTracking
	}
}

// dispatchProgram must run under installMu so the robot's last program always belongs
// to the active route. The executor is expected to queue rather than block.
func (s *NavigationService) dispatchProgram(ctx context.Context, route *session.Route) {
	if s.policy.StopBeforeReplace {
		s.collaborator(ctx, "robot", s.executor.Stop(ctx))
	}
	s.collaborator(ctx, "robot", s.executor.ReplaceProgram(ctx, route.Commands))
}

func (s *NavigationService) setSpeed(ctx context.Context, speed int) {
	s.collaborator(ctx, "robot", s.executor.SetSpeed(ctx, speed))
}

func (s *NavigationService) stop(ctx context.Context) {
	s.collaborator(ctx, "robot", s.executor.Stop(ctx))
}

func (s *NavigationService) announce(ctx context.Context, text string) {
	s.collaborator(ctx, "voice", s.announcer.Announce(ctx, text))
}

// collaborator logs and discards a robot or voice failure
func (s *NavigationService) collaborator(ctx context.Context, name string, err error) {
	if err == nil {
		return
	}
	if !naverr.Is(err, naverr.CollaboratorUnavailable) {
		err = naverr.Unavailable(name, err)
	}
	logging.Warnw(ctx, "Collaborator call failed", "collaborator", name, "error", err)
}

func (s *NavigationService) record(ctx context.Context, event journal.Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.clock.Now()
	}
	if err := s.journal.Record(ctx, event); err != nil {
		logging.Warnw(ctx, "Failed to record journal event", "kind", event.Kind, "error", err)
	}
}
