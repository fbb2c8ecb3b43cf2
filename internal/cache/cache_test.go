package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifsp/robotnav/server/internal/lib/naverr"
	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

func TestCache_SetGetExpiry(t *testing.T) {
	mock := clock.NewMock()
	c := NewCacheWithClock(mock)

	require.NoError(t, c.Set("k", map[string]int{"a": 1}, time.Minute, "test"))

	var got map[string]int
	found, err := c.Get("k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, got["a"])

	mock.Add(2 * time.Minute)
	found, err = c.Get("k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_StatsAndCleanup(t *testing.T) {
	mock := clock.NewMock()
	c := NewCacheWithClock(mock)

	require.NoError(t, c.Set("short", 1, time.Second, "test"))
	mock.Add(time.Millisecond)
	require.NoError(t, c.Set("long", 2, time.Hour, "test"))
	mock.Add(5 * time.Second)

	stats := c.Stats()
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.FreshEntries)
	assert.Equal(t, 1, stats.StaleEntries)
	assert.True(t, stats.OldestEntry.Before(stats.NewestEntry))

	assert.Equal(t, 1, c.CleanupStale())
	assert.Equal(t, 1, c.Stats().TotalEntries)

	c.Delete("long")
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestCache_UnmarshalableValue(t *testing.T) {
	c := NewCache()
	assert.Error(t, c.Set("bad", make(chan int), time.Minute, "test"))
}

func TestCache_PeriodicCleanup(t *testing.T) {
	mock := clock.NewMock()
	c := NewCacheWithClock(mock)
	require.NoError(t, c.Set("k", 1, time.Second, "test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartPeriodicCleanup(ctx, time.Minute)

	// Give the cleanup goroutine time to register its ticker with the mock clock.
	time.Sleep(10 * time.Millisecond)
	mock.Add(time.Minute)

	assert.Eventually(t, func() bool {
		return c.Stats().TotalEntries == 0
	}, time.Second, 5*time.Millisecond)
}

type countingProvider struct {
	calls atomic.Int32
	err   error
}

func (p *countingProvider) Directions(_ context.Context, start, end orb.Point) (*routing.Directions, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return &routing.Directions{
		Geometry:        orb.LineString{start, end},
		DistanceMeters:  12.5,
		DurationSeconds: 9,
	}, nil
}

func TestDirectionsCache_HitsWithinTTL(t *testing.T) {
	mock := clock.NewMock()
	provider := &countingProvider{}
	cached := NewDirectionsCache(provider, NewCacheWithClock(mock), time.Minute)
	ctx := context.Background()

	start := orb.Point{-47.0526401, -22.8338702}
	end := orb.Point{-47.0521, -22.8335}

	first, err := cached.Directions(ctx, start, end)
	require.NoError(t, err)

	// Differs below the sixth decimal place, so it shares the key.
	second, err := cached.Directions(ctx, orb.Point{-47.05264012, -22.83387018}, end)
	require.NoError(t, err)

	assert.Equal(t, int32(1), provider.calls.Load())
	assert.Equal(t, first.DistanceMeters, second.DistanceMeters)
	assert.Equal(t, first.Geometry, second.Geometry)

	mock.Add(2 * time.Minute)
	_, err = cached.Directions(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestDirectionsCache_DoesNotCacheFailures(t *testing.T) {
	provider := &countingProvider{err: naverr.NoRoute("no route")}
	cached := NewDirectionsCache(provider, NewCache(), time.Minute)

	for i := 0; i < 2; i++ {
		_, err := cached.Directions(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})
		require.Error(t, err)
		assert.True(t, naverr.Is(err, naverr.ProviderError))
	}
	assert.Equal(t, int32(2), provider.calls.Load())

	provider.err = errors.New("boom")
	_, err := cached.Directions(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})
	assert.EqualError(t, err, "boom")
}

func TestDirectionsKey(t *testing.T) {
	assert.Equal(t, "directions:-47.052640,-22.833870;1.000000,2.000000",
		directionsKey(orb.Point{-47.05264, -22.83387}, orb.Point{1, 2}))
}
