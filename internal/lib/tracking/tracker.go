package tracking

import (
	"sync"

	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb"
)

// DefaultWindow is the number of raw fixes averaged into the smoothed position
const DefaultWindow = 5

// PositionTracker smooths raw GPS fixes with a moving average over the most recent
// fixes. The average lags real motion by up to the window depth in exchange for
// suppressing jitter.
type PositionTracker struct {
	mu       sync.Mutex
	window   int
	fixes    []orb.Point
	smoothed orb.Point
	hasFix   bool
}

// NewPositionTracker creates a tracker averaging up to window fixes
func NewPositionTracker(window int) *PositionTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &PositionTracker{
		window: window,
		fixes:  make([]orb.Point, 0, window+1),
	}
}

// Ingest appends a fix, evicting the oldest one once the window is full, and returns the
// new smoothed position.
func (t *PositionTracker) Ingest(fix orb.Point) orb.Point {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fixes = append(t.fixes, fix)
	if len(t.fixes) > t.window {
		copy(t.fixes, t.fixes[1:])
		t.fixes = t.fixes[:t.window]
	}

	t.smoothed = mean(t.fixes)
	t.hasFix = true
	return t.smoothed
}

// Current returns the smoothed position; ok is false until the first fix arrives
func (t *PositionTracker) Current() (orb.Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.smoothed, t.hasFix
}

func mean(fixes []orb.Point) orb.Point {
	lons := make(stats.Float64Data, len(fixes))
	lats := make(stats.Float64Data, len(fixes))
	for i, f := range fixes {
		lons[i] = f.Lon()
		lats[i] = f.Lat()
	}

	// Mean only fails on empty input, which Ingest never passes
	lon, _ := stats.Mean(lons)
	lat, _ := stats.Mean(lats)
	return orb.Point{lon, lat}
}
