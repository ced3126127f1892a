package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/env"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/metrics/counter"
)

const (
	DefaultTTL = 30 * time.Minute
	flightKey  = "snapshot"
)

// Loader performs one full fetch cycle.
type Loader interface {
	FetchSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (*models.Snapshot, error)

func (f LoaderFunc) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	return f(ctx)
}

// Cache holds at most one snapshot. Readers see either the previous or the
// next snapshot; concurrent misses share a single fetch.
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	current atomic.Pointer[models.Snapshot]
	group   singleflight.Group

	mu         sync.Mutex // guards generation and writes to current
	generation uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(loader Loader, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromEnv reads the freshness window from SNAPSHOT_TTL.
func NewFromEnv(loader Loader) *Cache {
	return New(loader, env.GetEnvDuration("SNAPSHOT_TTL", DefaultTTL))
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a fresh snapshot. cached is true when no fetch was needed.
// A failed fetch leaves the held snapshot untouched.
func (c *Cache) Get(ctx context.Context) (snap *models.Snapshot, cached bool, err error) {
	if s := c.fresh(); s != nil {
		counter.CacheRequests.WithLabelValues("hit").Inc()
		return s, true, nil
	}

	snap, err = c.wait(ctx, false)
	if err != nil {
		counter.CacheRequests.WithLabelValues("error").Inc()
		return nil, false, err
	}
	counter.CacheRequests.WithLabelValues("miss").Inc()
	return snap, false, nil
}

// Refresh fetches a new snapshot regardless of the age of the held one and
// swaps it in. Readers keep getting the old snapshot until the swap.
func (c *Cache) Refresh(ctx context.Context) (*models.Snapshot, error) {
	snap, err := c.wait(ctx, true)
	if err != nil {
		counter.CacheRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	counter.CacheRequests.WithLabelValues("refresh").Inc()
	return snap, nil
}

// wait joins the shared fetch. The fetch outlives any single caller; each
// caller only stops waiting.
func (c *Cache) wait(ctx context.Context, force bool) (*models.Snapshot, error) {
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		return c.refresh(context.WithoutCancel(ctx), force)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Snapshot), nil
	}
}

// Peek returns the held snapshot regardless of age, or nil.
func (c *Cache) Peek() *models.Snapshot {
	return c.current.Load()
}

// Invalidate drops the held snapshot. A fetch already in flight still answers
// its waiters but does not repopulate the cache.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.current.Store(nil)
	c.group.Forget(flightKey)
	c.mu.Unlock()
	log.Info().Msg("snapshot cache invalidated")
}

func (c *Cache) fresh() *models.Snapshot {
	s := c.current.Load()
	if s == nil || s.Age(c.now()) >= c.ttl {
		return nil
	}
	return s
}

func (c *Cache) refresh(ctx context.Context, force bool) (*models.Snapshot, error) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	if !force {
		if s := c.fresh(); s != nil {
			return s, nil
		}
	}

	s, err := c.loader.FetchSnapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("snapshot refresh failed, keeping previous snapshot")
		return nil, err
	}
	c.mu.Lock()
	if c.generation == gen {
		c.current.Store(s)
	}
	c.mu.Unlock()
	return s, nil
}
