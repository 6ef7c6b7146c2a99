// Package cache memoizes recommendation results behind a pluggable Store.
//
// Entries older than the freshness horizon are treated as misses on read even
// while the backend still holds them. Each Store also removes expired entries on
// its own, either natively (TTL index, EXPIRE, badger TTL) or through Purge.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/marquee-ai/marquee/pkg/logging"
	"github.com/marquee-ai/marquee/pkg/metrics"
	"github.com/marquee-ai/marquee/pkg/models"
)

// DefaultHorizon is the maximum age of a servable entry.
const DefaultHorizon = 24 * time.Hour

// Store persists cache entries for one backend.
type Store interface {
	// Load returns the entry for key regardless of its age.
	Load(ctx context.Context, key string) (models.CacheEntry, bool, error)
	// Save replaces any entry with the same key.
	Save(ctx context.Context, entry models.CacheEntry) error
	// Purge deletes entries stored before cutoff and reports how many were removed.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
	// Count returns the number of physically stored entries.
	Count(ctx context.Context) (int64, error)
	// Clear deletes every entry.
	Clear(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// Cache applies the freshness horizon and hit accounting on top of a Store.
type Cache struct {
	store   Store
	backend string
	horizon time.Duration
	now     func() time.Time
	log     zerolog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New wraps store. A non-positive horizon means DefaultHorizon.
func New(store Store, backend string, horizon time.Duration, opts ...Option) *Cache {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	c := &Cache{
		store:   store,
		backend: backend,
		horizon: horizon,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logging.WithComponent("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Horizon returns the freshness horizon.
func (c *Cache) Horizon() time.Duration { return c.horizon }

// Get returns the stored result for key if it is still fresh.
// Backend errors are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) (models.Result, bool) {
	entry, ok, err := c.store.Load(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache load failed, treating as miss")
		c.miss()
		return models.Result{}, false
	}
	if !ok || !c.fresh(entry.StoredAt) {
		c.miss()
		return models.Result{}, false
	}
	c.hits.Add(1)
	metrics.CacheHits.Inc()
	return entry.Result, true
}

// Put stores result under key with the current time, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, result models.Result) error {
	err := c.store.Save(ctx, models.CacheEntry{
		Key:      key,
		Result:   result,
		StoredAt: c.now(),
	})
	if err != nil {
		metrics.CacheWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("cache put: %w", err)
	}
	metrics.CacheWrites.WithLabelValues("ok").Inc()
	return nil
}

// Purge removes entries older than the horizon from the backend.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	n, err := c.store.Purge(ctx, c.now().Add(-c.horizon))
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	metrics.CachePurged.WithLabelValues(c.backend).Add(float64(n))
	return n, nil
}

// Stats returns entry count and hit counters since process start.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	n, err := c.store.Count(ctx)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Backend: c.backend,
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes all entries.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) fresh(storedAt time.Time) bool {
	return c.now().Sub(storedAt) <= c.horizon
}

func (c *Cache) miss() {
	c.misses.Add(1)
	metrics.CacheMisses.Inc()
}
