// Package routing caches routes and ETAs between technicians and job sites.
package routing

import (
	"context"
	"sync"
	"time"

	"dispatch-workers/internal/common/metrics"
	"dispatch-workers/internal/models"
)

const (
	DefaultTTL = 5 * time.Minute

	// Emergency vehicles are assumed to bypass ordinary congestion.
	emergencyDurationFactor = 0.75
)

// Cache stores routes for at most a TTL. Entries older than the TTL are misses.
type Cache interface {
	Get(ctx context.Context, key Key) (models.CachedRoute, bool)
	Put(ctx context.Context, key Key, route models.CachedRoute) error
}

// OptimizeForEmergency applies the emergency transform once; already optimised
// routes are returned unchanged.
func OptimizeForEmergency(route models.CachedRoute) models.CachedRoute {
	if route.EmergencyOptimized {
		return route
	}
	route.DurationInTrafficMinutes = route.DurationMinutes * emergencyDurationFactor
	route.TrafficCondition = models.TrafficLight
	route.EmergencyOptimized = true
	return route
}

func prepare(key Key, route models.CachedRoute) models.CachedRoute {
	if key.Emergency {
		return OptimizeForEmergency(route)
	}
	return route
}

func fresh(route models.CachedRoute, now time.Time, ttl time.Duration) bool {
	return now.Sub(route.LastUpdated) < ttl
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]models.CachedRoute
	ttl        time.Duration
	now        func() time.Time
	maxEntries int
}

type MemoryOption func(*MemoryCache)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.now = now }
}

// WithMaxEntries bounds the cache; expired entries are swept when it is full.
func WithMaxEntries(n int) MemoryOption {
	return func(c *MemoryCache) { c.maxEntries = n }
}

func NewMemoryCache(ttl time.Duration, opts ...MemoryOption) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &MemoryCache{
		entries:    make(map[string]models.CachedRoute),
		ttl:        ttl,
		now:        time.Now,
		maxEntries: 10000,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key Key) (models.CachedRoute, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := key.String()
	route, ok := c.entries[id]
	if !ok {
		metrics.RouteCacheLookups.WithLabelValues("miss").Inc()
		return models.CachedRoute{}, false
	}
	if !fresh(route, c.now(), c.ttl) {
		delete(c.entries, id)
		metrics.RouteCacheLookups.WithLabelValues("miss").Inc()
		return models.CachedRoute{}, false
	}

	metrics.RouteCacheLookups.WithLabelValues("hit").Inc()
	return route, true
}

func (c *MemoryCache) Put(_ context.Context, key Key, route models.CachedRoute) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.sweepLocked()
	}
	c.entries[key.String()] = prepare(key, route)
	return nil
}

func (c *MemoryCache) sweepLocked() {
	now := c.now()
	for id, route := range c.entries {
		if !fresh(route, now, c.ttl) {
			delete(c.entries, id)
		}
	}
}

// Len counts stored entries, including ones not yet swept.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
