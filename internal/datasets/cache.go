package datasets

import (
	"context"
	"sync"
	"time"

	"github.com/scrypster/energy-services/internal/metrics"
)

// Cache keeps the most recent bundle for a fixed TTL.
//
// Readers holding a fresh entry never block on a refresh. Once the entry has
// expired, callers queue on the refresh lock and the first one reloads, so an
// expired bundle is never handed out while its replacement is being written.
type Cache struct {
	provider Provider
	ttl      time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time

	mu       sync.RWMutex
	bundle   *Bundle
	loadedAt time.Time
	gen      uint64 // bumped by Invalidate

	refresh sync.Mutex
}

// NewCache wraps provider with a TTL cache. A ttl of zero or less disables
// caching and every call loads a fresh bundle.
func NewCache(provider Provider, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		provider: provider,
		ttl:      ttl,
		metrics:  m,
		now:      time.Now,
	}
}

// Bundle returns the cached bundle when fresh, otherwise loads a new one.
// Failed loads are not cached, and neither is a load that was overtaken by
// Invalidate: it may have read files that have since been replaced.
func (c *Cache) Bundle(ctx context.Context) (*Bundle, error) {
	if c.ttl <= 0 {
		c.metrics.CacheMiss()
		return c.provider.Bundle(ctx)
	}

	if b := c.fresh(); b != nil {
		c.metrics.CacheHit()
		return b, nil
	}

	c.refresh.Lock()
	defer c.refresh.Unlock()

	// Another caller may have refreshed while we waited.
	if b := c.fresh(); b != nil {
		c.metrics.CacheHit()
		return b, nil
	}

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	c.metrics.CacheMiss()
	b, err := c.provider.Bundle(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.bundle = b
		c.loadedAt = c.now()
	}
	c.mu.Unlock()
	return b, nil
}

// Invalidate drops the cached bundle.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.bundle = nil
	c.loadedAt = time.Time{}
	c.gen++
	c.mu.Unlock()
}

func (c *Cache) fresh() *Bundle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bundle == nil || c.now().Sub(c.loadedAt) >= c.ttl {
		return nil
	}
	return c.bundle
}

var _ Provider = (*Cache)(nil)
