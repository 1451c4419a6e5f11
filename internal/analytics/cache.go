package analytics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// minRefreshInterval is the floor for the broadcast timer.
	minRefreshInterval     = 2 * time.Second
	defaultRefreshInterval = 30 * time.Second
)

// Cache wraps a Sampler with a max-age freshness check and single-flight
// refresh de-duplication: concurrent refresh triggers within one stale
// window share a single collection, so bursty triggers cost one sample.
type Cache struct {
	sampler  Sampler
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger

	group    singleflight.Group
	mu       sync.Mutex
	current  *Snapshot
	lastGood *Snapshot
	failures int
}

// NewCache creates a cache around the sampler. The refresh interval is
// floored at 2s and the max age at the refresh interval.
func NewCache(sampler Sampler, interval, maxAge time.Duration, logger *zap.Logger) *Cache {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if interval < minRefreshInterval {
		interval = minRefreshInterval
	}
	if maxAge < interval {
		maxAge = interval
	}
	return &Cache{sampler: sampler, interval: interval, maxAge: maxAge, logger: logger}
}

// Get returns the cached snapshot if it is still fresh, refreshing it
// otherwise. It always returns a snapshot: collection failures fall back to
// the last known good snapshot or to baseline data.
func (c *Cache) Get(ctx context.Context) *Snapshot {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current != nil && time.Since(current.GeneratedAt) < c.maxAge {
		return current
	}
	return c.Refresh(ctx)
}

// Refresh samples a new snapshot. Concurrent callers collapse into one
// in-flight collection and all receive its result.
func (c *Cache) Refresh(ctx context.Context) *Snapshot {
	v, _, _ := c.group.Do("refresh", func() (interface{}, error) {
		return c.refresh(ctx), nil
	})
	return v.(*Snapshot)
}

func (c *Cache) refresh(ctx context.Context) *Snapshot {
	snap, err := c.sampler.Collect(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failures++
		c.logger.Error("resource collection failed", zap.Int("attempts", c.failures), zap.Error(err))
		if c.lastGood != nil {
			c.current = c.lastGood
			return c.lastGood
		}
		fallback := FallbackSnapshot(c.failures, []string{err.Error()})
		c.current = fallback
		return fallback
	}
	c.failures = 0
	c.current = snap
	c.lastGood = snap
	return snap
}

// Interval returns the effective broadcast interval after flooring.
func (c *Cache) Interval() time.Duration {
	return c.interval
}

// Run drives the periodic refresh-then-broadcast cycle until the context is
// canceled. Delivery is best effort; Run never blocks shutdown beyond the
// in-flight sample.
func (c *Cache) Run(ctx context.Context, broadcast func(*Snapshot)) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			broadcast(c.Refresh(ctx))
		}
	}
}
