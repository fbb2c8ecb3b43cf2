package session

import (
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

func testRoute(id string) *Route {
	directions := &routing.Directions{
		Geometry:        orb.LineString{{0, 0}, {0, 0.0001}, {0, 0.0002}, {0.0001, 0.0002}},
		DistanceMeters:  33.4,
		DurationSeconds: 25,
	}
	waypoints := orb.LineString{{0, 0}, {0, 0.0002}, {0.0001, 0.0002}}
	return NewRoute(id, orb.Point{0.0001, 0.0002}, directions, waypoints, []routing.Command{routing.Move(22.2)}, time.Unix(0, 0))
}

func TestSession_InstallResetsProgress(t *testing.T) {
	s := New()
	s.Install(testRoute("a"))
	require.True(t, s.SetProgress("a", 2))
	require.True(t, s.MarkArrived("a"))

	s.Install(testRoute("b"))
	snap := s.Snapshot()
	assert.Equal(t, "b", snap.Route.ID)
	assert.Equal(t, 0, snap.Index)
	assert.False(t, snap.Arrived)
}

func TestSession_InstallIfOnlyReplacesExpectedRoute(t *testing.T) {
	s := New()
	assert.False(t, s.InstallIf(testRoute("x"), "a"), "nothing installed yet")

	s.Install(testRoute("a"))
	s.Install(testRoute("user"))

	assert.False(t, s.InstallIf(testRoute("reroute"), "a"), "stale reroute must not overwrite newer route")
	assert.Equal(t, "user", s.Snapshot().Route.ID)

	assert.True(t, s.InstallIf(testRoute("reroute"), "user"))
	assert.Equal(t, "reroute", s.Snapshot().Route.ID)
}

func TestSession_SetProgressClampsAndChecksRoute(t *testing.T) {
	s := New()
	assert.False(t, s.SetProgress("a", 1))

	s.Install(testRoute("a"))
	assert.True(t, s.SetProgress("a", 99))
	assert.Equal(t, 3, s.Snapshot().Index)

	assert.True(t, s.SetProgress("a", -4))
	assert.Equal(t, 0, s.Snapshot().Index)

	assert.False(t, s.SetProgress("other", 1))
}

func TestSession_TargetFollowsIndex(t *testing.T) {
	s := New()
	_, ok := s.Snapshot().Target()
	assert.False(t, ok)

	s.Install(testRoute("a"))
	target, ok := s.Snapshot().Target()
	require.True(t, ok)
	assert.Equal(t, orb.Point{0, 0}, target)

	s.SetProgress("a", 3)
	_, ok = s.Snapshot().Target()
	assert.False(t, ok, "no target once every waypoint is reached")
}

func TestSession_TryBeginRerouteCooldown(t *testing.T) {
	s := New()
	s.Install(testRoute("a"))
	start := time.Unix(1000, 0)
	cooldown := 8 * time.Second

	assert.True(t, s.TryBeginReroute("a", start, cooldown))
	assert.Equal(t, start, s.Snapshot().LastReroute)
	assert.False(t, s.TryBeginReroute("a", start.Add(time.Second), cooldown))
	assert.False(t, s.TryBeginReroute("a", start.Add(cooldown), cooldown))
	assert.True(t, s.TryBeginReroute("a", start.Add(cooldown+time.Millisecond), cooldown))
	assert.False(t, s.TryBeginReroute("other", start.Add(time.Hour), cooldown))
}

func TestSession_TryBeginRerouteIsExclusive(t *testing.T) {
	s := New()
	s.Install(testRoute("a"))
	now := time.Unix(1000, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryBeginReroute("a", now, 8*time.Second) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestSession_PositionHistory(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	assert.False(t, snap.HasPosition)
	assert.False(t, snap.HasPrevious)

	s.UpdatePosition(orb.Point{1, 1})
	snap = s.Snapshot()
	assert.True(t, snap.HasPosition)
	assert.False(t, snap.HasPrevious)

	s.UpdatePosition(orb.Point{2, 2})
	snap = s.Snapshot()
	assert.Equal(t, orb.Point{2, 2}, snap.Position)
	assert.Equal(t, orb.Point{1, 1}, snap.Previous)
	assert.True(t, snap.HasPrevious)
}

func TestSession_Obstacle(t *testing.T) {
	s := New()
	assert.True(t, s.SetObstacle(true))
	assert.False(t, s.SetObstacle(true))
	assert.True(t, s.Snapshot().Obstacle)
	assert.True(t, s.SetObstacle(false))
}

func TestSession_MarkArrivedOnce(t *testing.T) {
	s := New()
	s.Install(testRoute("a"))
	assert.True(t, s.MarkArrived("a"))
	assert.False(t, s.MarkArrived("a"))
	assert.False(t, s.MarkArrived("b"))
}

func TestRoute_SnapAndNearestWaypoint(t *testing.T) {
	r := testRoute("a")

	snapped, d := r.Snap(orb.Point{0.00001, 0.0001})
	assert.Equal(t, orb.Point{0, 0.0001}, snapped)
	assert.InDelta(t, 1.1, d, 0.05)

	assert.Equal(t, 1, r.NearestWaypoint(orb.Point{0, 0.00019}))
}

func TestRoute_Passed(t *testing.T) {
	r := testRoute("a")

	assert.True(t, r.Passed(0, orb.Point{0, 0.00011}), "snapped beyond the waypoint")
	assert.True(t, r.Passed(0, orb.Point{0, 0.00002}), "ahead of the waypoint on its own vertex")
	assert.False(t, r.Passed(0, orb.Point{0, 0}), "on the waypoint")
	assert.False(t, r.Passed(0, orb.Point{0, -0.00002}), "behind the waypoint")
	assert.False(t, r.Passed(1, orb.Point{0, 0.00012}), "still approaching")
	assert.False(t, r.Passed(2, orb.Point{0.0002, 0.0002}), "the last waypoint is never passed")
}

func TestSession_SnapshotsAreNeverTorn(t *testing.T) {
	s := New()
	routes := []*Route{testRoute("a"), testRoute("b")}
	s.Install(routes[0])

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			r := routes[i%2]
			s.Install(r)
			s.SetProgress(r.ID, 2)
		}
	}()

	for i := 0; i < 2000; i++ {
		snap := s.Snapshot()
		require.NotNil(t, snap.Route)
		assert.LessOrEqual(t, snap.Index, len(snap.Route.Waypoints))
	}
	close(stop)
	wg.Wait()
}
