package infra

import (
	"testing"
	"time"
)

func TestMetrics_RecordRefresh(t *testing.T) {
	m := &Metrics{}

	m.RecordRefresh(100*time.Millisecond, 300, 900, 1)
	m.RecordRefresh(200*time.Millisecond, 280, 850, 0)
	m.RecordRefresh(300*time.Millisecond, 290, 870, 2)

	snap := m.Snapshot()

	if snap.Refreshes != 3 {
		t.Errorf("Expected 3 refreshes, got %d", snap.Refreshes)
	}

	// Average latency: (100 + 200 + 300) / 3 = 200ms
	if snap.AvgRefreshMs != 200 {
		t.Errorf("Expected avg latency 200ms, got %d", snap.AvgRefreshMs)
	}

	if snap.LastMarkets != 290 || snap.LastNews != 870 {
		t.Errorf("Expected last counts 290/870, got %d/%d", snap.LastMarkets, snap.LastNews)
	}
	if snap.FeedErrors != 3 {
		t.Errorf("Expected 3 feed errors, got %d", snap.FeedErrors)
	}
	if snap.LastRefresh.IsZero() {
		t.Error("Expected last refresh time to be set")
	}
}

func TestMetrics_Cache(t *testing.T) {
	m := &Metrics{}

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordRefreshFailure()

	snap := m.Snapshot()
	if snap.CacheHits != 2 || snap.CacheMisses != 1 {
		t.Errorf("Expected 2 hits / 1 miss, got %d / %d", snap.CacheHits, snap.CacheMisses)
	}
	if snap.RefreshFailures != 1 {
		t.Errorf("Expected 1 failure, got %d", snap.RefreshFailures)
	}
}

func TestMetrics_Clients(t *testing.T) {
	m := &Metrics{}

	m.IncrementClients()
	m.IncrementClients()
	m.IncrementClients()

	snap := m.Snapshot()
	if snap.WSClients != 3 {
		t.Errorf("Expected 3 clients, got %d", snap.WSClients)
	}

	m.DecrementClients()
	snap = m.Snapshot()
	if snap.WSClients != 2 {
		t.Errorf("Expected 2 clients, got %d", snap.WSClients)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordRefresh(time.Second, 1, 1, 1)
	m.RecordRefreshFailure()
	m.IncrementClients()

	m.Reset()
	snap := m.Snapshot()

	if snap.Refreshes != 0 {
		t.Error("Expected 0 refreshes after reset")
	}
	if snap.RefreshFailures != 0 {
		t.Error("Expected 0 failures after reset")
	}
	if snap.WSClients != 0 {
		t.Error("Expected 0 clients after reset")
	}
	if !snap.LastRefresh.IsZero() {
		t.Error("Expected zero last refresh after reset")
	}
}
