package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"kalshi_news/internal/domain"
)

type memArchive struct {
	records  []domain.HeatRecord
	articles []domain.ArticleRecord
	since    time.Time
	limit    int
}

func (a *memArchive) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error { return nil }

func (a *memArchive) History(ctx context.Context, ticker string, since time.Time) ([]domain.HeatRecord, error) {
	a.since = since
	var out []domain.HeatRecord
	for _, r := range a.records {
		if r.Ticker == ticker && !r.RecordedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a *memArchive) Articles(ctx context.Context, since time.Time, limit int) ([]domain.ArticleRecord, error) {
	a.since, a.limit = since, limit
	var out []domain.ArticleRecord
	for _, r := range a.articles {
		if len(out) == limit {
			break
		}
		if !r.FirstSeenAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a *memArchive) Prune(ctx context.Context, before time.Time) (int64, error) { return 0, nil }

func newTestService(t *testing.T, markets domain.MarketSource, archive domain.SnapshotArchive) *MarketService {
	t.Helper()
	cfg := DefaultEngineConfig()
	agg := newTestAggregator(t, markets, &fakeNews{items: sampleNews()}, cfg)
	cache := NewCache(agg, cfg.TTL)
	return NewMarketService(cache, cfg, archive)
}

func TestMarketService_Market(t *testing.T) {
	svc := newTestService(t, &fakeMarkets{markets: sampleMarkets()}, nil)
	ctx := context.Background()

	t.Run("known ticker", func(t *testing.T) {
		view, err := svc.Market(ctx, "FED-DEC-25")
		if err != nil {
			t.Fatalf("Market failed: %v", err)
		}
		if view.Market.Ticker != "FED-DEC-25" {
			t.Errorf("Ticker = %q", view.Market.Ticker)
		}
		if len(view.Market.Matches) == 0 {
			t.Error("expected related news")
		}
		if view.UpdatedAt.IsZero() {
			t.Error("UpdatedAt should be set")
		}
	})

	t.Run("unknown ticker", func(t *testing.T) {
		view, err := svc.Market(ctx, "UNKNOWN")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if view.Market.Ticker != "" {
			t.Errorf("expected empty view, got %+v", view.Market)
		}
	})

	t.Run("empty ticker", func(t *testing.T) {
		if _, err := svc.Market(ctx, "  "); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestMarketService_Markets(t *testing.T) {
	svc := newTestService(t, &fakeMarkets{markets: sampleMarkets()}, nil)
	ctx := context.Background()

	all, err := svc.Markets(ctx, MarketQuery{})
	if err != nil {
		t.Fatalf("Markets failed: %v", err)
	}
	if len(all.Markets) != len(sampleMarkets()) {
		t.Errorf("expected %d markets, got %d", len(sampleMarkets()), len(all.Markets))
	}

	econ, err := svc.Markets(ctx, MarketQuery{Category: "economy"})
	if err != nil {
		t.Fatalf("Markets(economy) failed: %v", err)
	}
	if len(econ.Markets) != 2 {
		t.Fatalf("expected 2 economy markets, got %d", len(econ.Markets))
	}
	for _, sm := range econ.Markets {
		if sm.Category != domain.CategoryEconomy {
			t.Errorf("%s has category %s", sm.Ticker, sm.Category)
		}
	}

	limited, err := svc.Markets(ctx, MarketQuery{Limit: 1})
	if err != nil {
		t.Fatalf("Markets(limit) failed: %v", err)
	}
	if len(limited.Markets) != 1 || limited.Markets[0].Ticker != all.Markets[0].Ticker {
		t.Errorf("limit should keep the top market: %+v", limited.Markets)
	}

	hotOnly, err := svc.Markets(ctx, MarketQuery{MinHeat: 4})
	if err != nil {
		t.Fatalf("Markets(min_heat) failed: %v", err)
	}
	for _, sm := range hotOnly.Markets {
		if sm.Heat < 4 {
			t.Errorf("%s heat %v below min_heat", sm.Ticker, sm.Heat)
		}
	}

	for name, q := range map[string]MarketQuery{
		"negative limit":   {Limit: -1},
		"negative heat":    {MinHeat: -0.5},
		"unknown category": {Category: "astrology"},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Markets(ctx, q); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestMarketService_Hot(t *testing.T) {
	svc := newTestService(t, &fakeMarkets{markets: sampleMarkets()}, nil)
	ctx := context.Background()

	view, err := svc.Hot(ctx, 2)
	if err != nil {
		t.Fatalf("Hot failed: %v", err)
	}
	if len(view.Markets) != 2 {
		t.Errorf("expected 2 hot markets, got %d", len(view.Markets))
	}

	clamped, err := svc.Hot(ctx, 1000)
	if err != nil {
		t.Fatalf("Hot(1000) failed: %v", err)
	}
	if len(clamped.Markets) != len(sampleMarkets()) {
		t.Errorf("expected clamp to %d, got %d", len(sampleMarkets()), len(clamped.Markets))
	}

	if _, err := svc.Hot(ctx, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMarketService_Topics(t *testing.T) {
	svc := newTestService(t, &fakeMarkets{markets: sampleMarkets()}, nil)

	view, err := svc.Topics(context.Background())
	if err != nil {
		t.Fatalf("Topics failed: %v", err)
	}
	if len(view.Topics) != 3 {
		t.Errorf("expected 3 topics, got %d", len(view.Topics))
	}
}

func TestMarketService_UpstreamDown(t *testing.T) {
	svc := newTestService(t, &fakeMarkets{err: errors.New("connection refused")}, nil)
	ctx := context.Background()

	if _, err := svc.Topics(ctx); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("Topics: expected ErrUpstreamUnavailable, got %v", err)
	}

	res, err := svc.Refresh(ctx)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("Refresh: expected ErrUpstreamUnavailable, got %v", err)
	}
	if res.SnapshotID != "" {
		t.Errorf("expected empty result, got %+v", res)
	}
	if svc.Status().Ready {
		t.Error("service should not be ready")
	}
}

func TestMarketService_Refresh(t *testing.T) {
	svc := newTestService(t, &fakeMarkets{markets: sampleMarkets()}, nil)
	ctx := context.Background()

	first, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}
	second, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}

	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("timestamps not increasing: %v then %v", first.UpdatedAt, second.UpdatedAt)
	}
	if first.SnapshotID == second.SnapshotID {
		t.Error("snapshot ids should differ")
	}
	if second.Markets != len(sampleMarkets()) {
		t.Errorf("Markets = %d, want %d", second.Markets, len(sampleMarkets()))
	}

	status := svc.Status()
	if !status.Ready || !status.Fresh {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.SnapshotID != second.SnapshotID {
		t.Errorf("status snapshot = %s, want %s", status.SnapshotID, second.SnapshotID)
	}
}

func TestMarketService_History(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("disabled", func(t *testing.T) {
		svc := newTestService(t, &fakeMarkets{}, nil)
		if _, err := svc.History(ctx, "FED-DEC-25", time.Hour); !errors.Is(err, domain.ErrArchiveDisabled) {
			t.Errorf("expected ErrArchiveDisabled, got %v", err)
		}
	})

	t.Run("window", func(t *testing.T) {
		archive := &memArchive{records: []domain.HeatRecord{
			{Ticker: "FED-DEC-25", Heat: 5, RecordedAt: now.Add(-30 * time.Minute)},
			{Ticker: "FED-DEC-25", Heat: 4, RecordedAt: now.Add(-3 * time.Hour)},
			{Ticker: "SEN-GA", Heat: 3, RecordedAt: now.Add(-10 * time.Minute)},
		}}
		svc := newTestService(t, &fakeMarkets{}, archive)
		svc.now = func() time.Time { return now }

		records, err := svc.History(ctx, "FED-DEC-25", time.Hour)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(records) != 1 || records[0].Heat != 5 {
			t.Errorf("unexpected records: %+v", records)
		}
		if !archive.since.Equal(now.Add(-time.Hour)) {
			t.Errorf("since = %v, want %v", archive.since, now.Add(-time.Hour))
		}
	})

	t.Run("invalid", func(t *testing.T) {
		svc := newTestService(t, &fakeMarkets{}, &memArchive{})
		for name, call := range map[string]func() error{
			"zero window":  func() error { _, err := svc.History(ctx, "FED-DEC-25", 0); return err },
			"empty ticker": func() error { _, err := svc.History(ctx, "", time.Hour); return err },
			"window too long": func() error {
				_, err := svc.History(ctx, "FED-DEC-25", (MaxWindowHours+1)*time.Hour)
				return err
			},
		} {
			if err := call(); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
			}
		}
	})
}

func TestMarketService_Articles(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("disabled", func(t *testing.T) {
		svc := newTestService(t, &fakeMarkets{}, nil)
		if _, err := svc.Articles(ctx, time.Hour, 0); !errors.Is(err, domain.ErrArchiveDisabled) {
			t.Errorf("expected ErrArchiveDisabled, got %v", err)
		}
	})

	t.Run("window and default limit", func(t *testing.T) {
		archive := &memArchive{articles: []domain.ArticleRecord{
			{Link: "https://example.com/new", FirstSeenAt: now.Add(-10 * time.Minute)},
			{Link: "https://example.com/old", FirstSeenAt: now.Add(-5 * time.Hour)},
		}}
		svc := newTestService(t, &fakeMarkets{}, archive)
		svc.now = func() time.Time { return now }

		articles, err := svc.Articles(ctx, 2*time.Hour, 0)
		if err != nil {
			t.Fatalf("Articles failed: %v", err)
		}
		if len(articles) != 1 || articles[0].Link != "https://example.com/new" {
			t.Errorf("unexpected articles: %+v", articles)
		}
		if archive.limit != DefaultEngineConfig().DefaultLimit {
			t.Errorf("limit = %d, want default %d", archive.limit, DefaultEngineConfig().DefaultLimit)
		}
		if !archive.since.Equal(now.Add(-2 * time.Hour)) {
			t.Errorf("since = %v", archive.since)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		svc := newTestService(t, &fakeMarkets{}, &memArchive{})
		if _, err := svc.Articles(ctx, 0, 10); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("zero window: expected ErrInvalidInput, got %v", err)
		}
		if _, err := svc.Articles(ctx, time.Hour, -1); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("negative limit: expected ErrInvalidInput, got %v", err)
		}
		if _, err := svc.Articles(ctx, (MaxWindowHours+1)*time.Hour, 10); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("long window: expected ErrInvalidInput, got %v", err)
		}
	})
}
