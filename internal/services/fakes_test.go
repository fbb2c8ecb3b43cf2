package services

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/dpup/prefab/logging"
	"github.com/paulmach/orb"

	"github.com/ifsp/robotnav/server/internal/config"
	"github.com/ifsp/robotnav/server/internal/journal"
	"github.com/ifsp/robotnav/server/internal/lib/naverr"
	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

// testContext carries the logger prefab attaches to request contexts
func testContext() context.Context {
	return logging.EnsureLogger(context.Background())
}

// straightProvider returns a route along a straight line sampled every `spacing` degrees
type straightProvider struct {
	mu      sync.Mutex
	calls   []orb.LineString
	spacing float64
	err     error
}

func (p *straightProvider) Directions(_ context.Context, start, end orb.Point) (*routing.Directions, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, orb.LineString{start, end})
	if p.err != nil {
		return nil, p.err
	}

	line := orb.LineString{start}
	if p.spacing > 0 {
		steps := int(math.Round(maxAbs(end[0]-start[0], end[1]-start[1]) / p.spacing))
		for i := 1; i < steps; i++ {
			f := float64(i) / float64(steps)
			line = append(line, orb.Point{start[0] + (end[0]-start[0])*f, start[1] + (end[1]-start[1])*f})
		}
	}
	line = append(line, end)
	return &routing.Directions{Geometry: line, DistanceMeters: 44.5, DurationSeconds: 32}, nil
}

func (p *straightProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func maxAbs(a, b float64) float64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}

type recordingExecutor struct {
	mu       sync.Mutex
	calls    []string
	speeds   []int
	programs [][]routing.Command
	fail     bool
}

func (r *recordingExecutor) ReplaceProgram(_ context.Context, commands []routing.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "program")
	r.programs = append(r.programs, commands)
	return r.err()
}

func (r *recordingExecutor) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "stop")
	return r.err()
}

func (r *recordingExecutor) SetSpeed(_ context.Context, speed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "speed")
	r.speeds = append(r.speeds, speed)
	return r.err()
}

func (r *recordingExecutor) err() error {
	if r.fail {
		return naverr.Unavailable("robot", errors.New("connection refused"))
	}
	return nil
}

func (r *recordingExecutor) count(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (r *recordingExecutor) speedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.speeds)
}

type recordingAnnouncer struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingAnnouncer) Announce(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingAnnouncer) said() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

type memoryJournal struct {
	mu     sync.Mutex
	events []journal.Event
}

func (m *memoryJournal) Record(_ context.Context, event journal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memoryJournal) Recent(_ context.Context, limit int) ([]journal.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []journal.Event{}
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *memoryJournal) kinds() []journal.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]journal.Kind, 0, len(m.events))
	for _, e := range m.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type harness struct {
	nav       *NavigationService
	monitor   *DeviationMonitor
	provider  *straightProvider
	executor  *recordingExecutor
	announcer *recordingAnnouncer
	journal   *memoryJournal
	clock     *clock.Mock
	policy    config.NavigationConfig
}

func newHarness() *harness {
	h := &harness{
		provider:  &straightProvider{spacing: 0.00005},
		executor:  &recordingExecutor{},
		announcer: &recordingAnnouncer{},
		journal:   &memoryJournal{},
		clock:     clock.NewMock(),
		policy:    config.DefaultConfig().Navigation,
	}
	h.nav = NewNavigationService(h.policy, Dependencies{
		Provider:  h.provider,
		Executor:  h.executor,
		Announcer: h.announcer,
		Journal:   h.journal,
		Clock:     h.clock,
	})
	h.monitor = NewDeviationMonitor(h.nav, h.policy, h.clock)
	return h
}

// settle ingests the same fix enough times to fill the smoothing window
func (h *harness) settle(p orb.Point) {
	for i := 0; i < h.policy.PositionWindow; i++ {
		_ = h.nav.IngestFix(testContext(), p)
	}
}
