package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	refreshes       atomic.Uint64
	refreshFailures atomic.Uint64
	cacheHits       atomic.Uint64
	cacheMisses     atomic.Uint64
	feedErrors      atomic.Uint64
	wsBroadcasts    atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	lastMarkets  atomic.Int64
	lastNews     atomic.Int64
	wsClients    atomic.Int32
	lastRefreshN atomic.Int64 // Unix nanoseconds of the last successful refresh
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordRefresh records a successful snapshot recompute.
func (m *Metrics) RecordRefresh(latency time.Duration, markets, news, feedErrors int) {
	m.refreshes.Add(1)
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
	m.lastMarkets.Store(int64(markets))
	m.lastNews.Store(int64(news))
	m.feedErrors.Add(uint64(max(feedErrors, 0)))
	m.lastRefreshN.Store(time.Now().UnixNano())
}

// RecordRefreshFailure records a failed recompute.
func (m *Metrics) RecordRefreshFailure() {
	m.refreshFailures.Add(1)
}

// RecordCacheHit records a read served from a fresh snapshot.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a read that found the snapshot stale.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordBroadcast records a websocket push.
func (m *Metrics) RecordBroadcast() {
	m.wsBroadcasts.Add(1)
}

// IncrementClients increments connected websocket clients by 1.
func (m *Metrics) IncrementClients() {
	m.wsClients.Add(1)
}

// DecrementClients decrements connected websocket clients by 1.
func (m *Metrics) DecrementClients() {
	m.wsClients.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Refreshes       uint64    `json:"refreshes"`
	RefreshFailures uint64    `json:"refresh_failures"`
	CacheHits       uint64    `json:"cache_hits"`
	CacheMisses     uint64    `json:"cache_misses"`
	FeedErrors      uint64    `json:"feed_errors"`
	Broadcasts      uint64    `json:"ws_broadcasts"`
	AvgRefreshMs    int64     `json:"avg_refresh_ms"`
	LastMarkets     int64     `json:"last_markets"`
	LastNews        int64     `json:"last_news"`
	WSClients       int32     `json:"ws_clients"`
	LastRefresh     time.Time `json:"last_refresh,omitzero"`
	Timestamp       time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	var last time.Time
	if n := m.lastRefreshN.Load(); n > 0 {
		last = time.Unix(0, n)
	}

	return MetricsSnapshot{
		Refreshes:       m.refreshes.Load(),
		RefreshFailures: m.refreshFailures.Load(),
		CacheHits:       m.cacheHits.Load(),
		CacheMisses:     m.cacheMisses.Load(),
		FeedErrors:      m.feedErrors.Load(),
		Broadcasts:      m.wsBroadcasts.Load(),
		AvgRefreshMs:    time.Duration(avgLatency).Milliseconds(),
		LastMarkets:     m.lastMarkets.Load(),
		LastNews:        m.lastNews.Load(),
		WSClients:       m.wsClients.Load(),
		LastRefresh:     last,
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.refreshes.Store(0)
	m.refreshFailures.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.feedErrors.Store(0)
	m.wsBroadcasts.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.lastMarkets.Store(0)
	m.lastNews.Store(0)
	m.wsClients.Store(0)
	m.lastRefreshN.Store(0)
}
