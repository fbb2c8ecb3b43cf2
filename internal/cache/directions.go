package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/paulmach/orb"

	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

const directionsSource = "directions"

// DirectionsCache memoizes successful provider responses. Start and end are rounded to
// six decimal places (about 0.1 m) to form the key; failures are never cached.
type DirectionsCache struct {
	provider routing.Provider
	cache    *Cache
	ttl      time.Duration
}

var _ routing.Provider = (*DirectionsCache)(nil)

// NewDirectionsCache wraps provider with a cache of the given ttl
func NewDirectionsCache(provider routing.Provider, cache *Cache, ttl time.Duration) *DirectionsCache {
	return &DirectionsCache{provider: provider, cache: cache, ttl: ttl}
}

func (d *DirectionsCache) Directions(ctx context.Context, start, end orb.Point) (*routing.Directions, error) {
	key := directionsKey(start, end)

	var cached routing.Directions
	found, err := d.cache.Get(key, &cached)
	if err != nil {
		logging.Warnw(ctx, "Directions cache: dropping unreadable entry", "key", key, "error", err)
		d.cache.Delete(key)
	} else if found {
		return &cached, nil
	}

	directions, err := d.provider.Directions(ctx, start, end)
	if err != nil {
		return nil, err
	}

	if err := d.cache.Set(key, directions, d.ttl, directionsSource); err != nil {
		logging.Warnw(ctx, "Directions cache: failed to store entry", "key", key, "error", err)
	}
	return directions, nil
}

func directionsKey(start, end orb.Point) string {
	return fmt.Sprintf("directions:%.6f,%.6f;%.6f,%.6f", start.Lon(), start.Lat(), end.Lon(), end.Lat())
}
