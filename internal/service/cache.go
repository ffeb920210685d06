package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"kalshi_news/internal/domain"
)

// Builder produces a complete snapshot stamped with now.
type Builder interface {
	Build(ctx context.Context, now time.Time) (*domain.Snapshot, error)
}

// Recorder receives cache and refresh observations.
type Recorder interface {
	RecordRefresh(latency time.Duration, markets, news, feedErrors int)
	RecordRefreshFailure()
	RecordCacheHit()
	RecordCacheMiss()
}

type nopRecorder struct{}

func (nopRecorder) RecordRefresh(time.Duration, int, int, int) {}
func (nopRecorder) RecordRefreshFailure()                      {}
func (nopRecorder) RecordCacheHit()                            {}
func (nopRecorder) RecordCacheMiss()                           {}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) CacheOption {
	return func(c *Cache) { c.metrics = r }
}

// WithRetryBackoff sets how long a failed recompute suppresses new attempts from
// ordinary reads while a previous snapshot is still available.
func WithRetryBackoff(d time.Duration) CacheOption {
	return func(c *Cache) { c.retryBackoff = d }
}

// Cache holds the single live snapshot.
//
// Reads load the current snapshot atomically and never block each other. When
// the snapshot is stale, one caller rebuilds it under gate while the others
// wait and share its outcome. The new snapshot is published with one atomic
// swap, so readers see either the previous or the next snapshot.
type Cache struct {
	builder      Builder
	ttl          time.Duration
	retryBackoff time.Duration
	now          func() time.Time
	metrics      Recorder
	logger       *slog.Logger

	current atomic.Pointer[domain.Snapshot]
	gen     atomic.Uint64 // Completed recompute attempts

	gate     sync.Mutex
	lastErr  error     // Outcome of the latest attempt; guarded by gate
	failedAt time.Time // guarded by gate

	lmu       sync.RWMutex
	listeners []func(*domain.Snapshot)
}

// NewCache creates an empty (stale) cache.
func NewCache(builder Builder, ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		builder: builder,
		ttl:     ttl,
		now:     time.Now,
		metrics: nopRecorder{},
		logger:  slog.Default().With(slog.String("module", "cache")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnPublish registers fn to be called, synchronously, after each new snapshot is published.
func (c *Cache) OnPublish(fn func(*domain.Snapshot)) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Peek returns the current snapshot without triggering a recompute. It may be nil or stale.
func (c *Cache) Peek() *domain.Snapshot {
	return c.current.Load()
}

// Fresh reports whether s is younger than the TTL.
func (c *Cache) Fresh(s *domain.Snapshot) bool {
	return s != nil && c.now().Sub(s.UpdatedAt) < c.ttl
}

// Get returns the current snapshot, rebuilding it first when stale.
// If the rebuild fails the previous snapshot is served; with none, the error is returned.
func (c *Cache) Get(ctx context.Context) (*domain.Snapshot, error) {
	if s := c.current.Load(); c.Fresh(s) {
		c.metrics.RecordCacheHit()
		return s, nil
	}
	c.metrics.RecordCacheMiss()
	return c.recompute(ctx, false)
}

// Refresh rebuilds the snapshot regardless of its age. If a rebuild is already
// running, Refresh waits for it and returns its outcome. On failure the
// previous snapshot, if any, is returned together with the error.
func (c *Cache) Refresh(ctx context.Context) (*domain.Snapshot, error) {
	return c.recompute(ctx, true)
}

func (c *Cache) recompute(ctx context.Context, force bool) (*domain.Snapshot, error) {
	seen := c.gen.Load()

	c.gate.Lock()
	defer c.gate.Unlock()

	prev := c.current.Load()

	// Another caller finished an attempt while we waited on the gate.
	if c.gen.Load() != seen {
		return c.outcome(prev, force)
	}
	if !force {
		if c.Fresh(prev) {
			return prev, nil
		}
		if prev != nil && c.lastErr != nil && c.now().Sub(c.failedAt) < c.retryBackoff {
			return prev, nil
		}
	}

	start := c.now()
	snap, err := c.builder.Build(context.WithoutCancel(ctx), start)
	latency := c.now().Sub(start)

	if err != nil {
		c.lastErr = err
		c.failedAt = c.now()
		c.gen.Add(1)
		c.metrics.RecordRefreshFailure()
		c.logger.Error("Snapshot recompute failed",
			slog.Bool("forced", force),
			slog.Bool("serving_previous", prev != nil),
			slog.Duration("latency", latency),
			slog.Any("error", err),
		)
		return c.outcome(prev, force)
	}

	ts := c.now()
	if prev != nil && !ts.After(prev.UpdatedAt) {
		ts = prev.UpdatedAt.Add(time.Nanosecond)
	}
	snap.UpdatedAt = ts

	c.current.Store(snap)
	c.lastErr = nil
	c.gen.Add(1)

	c.metrics.RecordRefresh(latency, len(snap.Markets), snap.NewsCount, snap.FeedErrors)
	c.logger.Info("Snapshot published",
		slog.String("id", snap.ID.String()),
		slog.Bool("forced", force),
		slog.Int("markets", len(snap.Markets)),
		slog.Int("news", snap.NewsCount),
		slog.Int("feed_errors", snap.FeedErrors),
		slog.Duration("latency", latency),
	)

	c.notify(snap)
	return snap, nil
}

// outcome maps the latest attempt to a caller result. Must be called with gate held.
func (c *Cache) outcome(prev *domain.Snapshot, force bool) (*domain.Snapshot, error) {
	if c.lastErr == nil {
		return prev, nil
	}
	if prev == nil || force {
		return prev, c.lastErr
	}
	return prev, nil
}

func (c *Cache) notify(snap *domain.Snapshot) {
	c.lmu.RLock()
	listeners := c.listeners
	c.lmu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
