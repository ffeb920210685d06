package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"kalshi_news/internal/domain"
)

var errEmptyTicker = errors.New("must not be empty")

// MaxWindowHours bounds how far back archive queries may look.
const MaxWindowHours = 366 * 24

const maxWindow = MaxWindowHours * time.Hour

// MarketQuery filters a ranked market listing. Zero values mean no filter.
type MarketQuery struct {
	Category string
	Limit    int // 0 selects the configured default
	MinHeat  float64
}

// TopicsView is the topic overview of one snapshot.
type TopicsView struct {
	Topics    []domain.Topic
	UpdatedAt time.Time
}

// MarketsView is a ranked, filtered market listing.
type MarketsView struct {
	Markets   []domain.ScoredMarket
	UpdatedAt time.Time
}

// MarketView is a single market with its full match list.
type MarketView struct {
	Market    domain.ScoredMarket
	UpdatedAt time.Time
}

// RefreshResult reports a forced refresh.
type RefreshResult struct {
	SnapshotID string
	UpdatedAt  time.Time
	Markets    int
	News       int
}

// MarketService is the read boundary over the snapshot cache
type MarketService struct {
	cache   *Cache
	cfg     EngineConfig
	archive domain.SnapshotArchive
	now     func() time.Time
}

// NewMarketService creates a MarketService. archive may be nil.
func NewMarketService(cache *Cache, cfg EngineConfig, archive domain.SnapshotArchive) *MarketService {
	return &MarketService{
		cache:   cache,
		cfg:     cfg,
		archive: archive,
		now:     time.Now,
	}
}

// Topics returns every category with its aggregates, hottest first.
func (s *MarketService) Topics(ctx context.Context) (TopicsView, error) {
	snap, err := s.cache.Get(ctx)
	if err != nil {
		return TopicsView{}, err
	}
	return TopicsView{Topics: snap.Topics, UpdatedAt: snap.UpdatedAt}, nil
}

// Markets returns the ranked markets matching q.
func (s *MarketService) Markets(ctx context.Context, q MarketQuery) (MarketsView, error) {
	filter, err := s.validate(q)
	if err != nil {
		return MarketsView{}, err
	}

	snap, err := s.cache.Get(ctx)
	if err != nil {
		return MarketsView{}, err
	}

	out := make([]domain.ScoredMarket, 0, min(filter.limit, len(snap.Markets)))
	for _, sm := range snap.Markets {
		if len(out) == filter.limit {
			break
		}
		if filter.byCategory && sm.Category != filter.category {
			continue
		}
		if sm.Heat < filter.minHeat {
			continue
		}
		out = append(out, sm.WithMatchLimit(s.cfg.ListMatches))
	}
	return MarketsView{Markets: out, UpdatedAt: snap.UpdatedAt}, nil
}

type marketFilter struct {
	byCategory bool
	category   domain.Category
	limit      int
	minHeat    float64
}

func (s *MarketService) validate(q MarketQuery) (marketFilter, error) {
	f := marketFilter{limit: q.Limit, minHeat: q.MinHeat}

	if name := strings.TrimSpace(q.Category); name != "" {
		cat, ok := domain.ParseCategory(name)
		if !ok {
			return f, domain.NewInputError("category", fmt.Errorf("%w: %q", domain.ErrUnknownCategory, name))
		}
		f.byCategory, f.category = true, cat
	}

	switch {
	case q.Limit < 0:
		return f, domain.NewInputError("limit", domain.ErrOutOfRange)
	case q.Limit == 0:
		f.limit = s.cfg.DefaultLimit
	}

	if math.IsNaN(q.MinHeat) || q.MinHeat < 0 {
		return f, domain.NewInputError("min_heat", domain.ErrOutOfRange)
	}
	return f, nil
}

// Market returns a single market with up to DetailMatches matches.
func (s *MarketService) Market(ctx context.Context, ticker string) (MarketView, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return MarketView{}, domain.NewInputError("ticker", errEmptyTicker)
	}

	snap, err := s.cache.Get(ctx)
	if err != nil {
		return MarketView{}, err
	}

	sm, ok := snap.Lookup(ticker)
	if !ok {
		return MarketView{}, fmt.Errorf("market %q: %w", ticker, domain.ErrNotFound)
	}
	return MarketView{Market: sm.WithMatchLimit(s.cfg.DetailMatches), UpdatedAt: snap.UpdatedAt}, nil
}

// Hot returns the first limit entries of the hot list. limit must be positive;
// values above the hot list size are clamped.
func (s *MarketService) Hot(ctx context.Context, limit int) (MarketsView, error) {
	if limit <= 0 {
		return MarketsView{}, domain.NewInputError("limit", domain.ErrOutOfRange)
	}

	snap, err := s.cache.Get(ctx)
	if err != nil {
		return MarketsView{}, err
	}
	hot := snap.Hot[:min(limit, len(snap.Hot))]
	return MarketsView{Markets: hot, UpdatedAt: snap.UpdatedAt}, nil
}

// Refresh forces a recompute. On failure the result describes the snapshot still being served, if any.
func (s *MarketService) Refresh(ctx context.Context) (RefreshResult, error) {
	snap, err := s.cache.Refresh(ctx)
	if snap == nil {
		return RefreshResult{}, err
	}
	return RefreshResult{
		SnapshotID: snap.ID.String(),
		UpdatedAt:  snap.UpdatedAt,
		Markets:    len(snap.Markets),
		News:       snap.NewsCount,
	}, err
}

// History returns archived heat observations for ticker over the trailing window.
func (s *MarketService) History(ctx context.Context, ticker string, window time.Duration) ([]domain.HeatRecord, error) {
	if s.archive == nil {
		return nil, domain.ErrArchiveDisabled
	}
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return nil, domain.NewInputError("ticker", errEmptyTicker)
	}
	if window <= 0 || window > maxWindow {
		return nil, domain.NewInputError("hours", domain.ErrOutOfRange)
	}
	return s.archive.History(ctx, ticker, s.now().Add(-window))
}

// Articles returns archived matched articles first seen within the trailing window, newest first.
// limit 0 selects the configured default.
func (s *MarketService) Articles(ctx context.Context, window time.Duration, limit int) ([]domain.ArticleRecord, error) {
	if s.archive == nil {
		return nil, domain.ErrArchiveDisabled
	}
	if window <= 0 || window > maxWindow {
		return nil, domain.NewInputError("hours", domain.ErrOutOfRange)
	}
	switch {
	case limit < 0:
		return nil, domain.NewInputError("limit", domain.ErrOutOfRange)
	case limit == 0:
		limit = s.cfg.DefaultLimit
	}
	return s.archive.Articles(ctx, s.now().Add(-window), limit)
}

// Status describes the cached snapshot without triggering a recompute.
type Status struct {
	Ready      bool
	Fresh      bool
	SnapshotID string
	UpdatedAt  time.Time
	Markets    int
	News       int
	FeedErrors int
}

// Status returns the state of the cache.
func (s *MarketService) Status() Status {
	snap := s.cache.Peek()
	if snap == nil {
		return Status{}
	}
	return Status{
		Ready:      true,
		Fresh:      s.cache.Fresh(snap),
		SnapshotID: snap.ID.String(),
		UpdatedAt:  snap.UpdatedAt,
		Markets:    len(snap.Markets),
		News:       snap.NewsCount,
		FeedErrors: snap.FeedErrors,
	}
}
