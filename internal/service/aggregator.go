package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"kalshi_news/internal/domain"
	"kalshi_news/internal/heat"
	"kalshi_news/internal/match"

	"go.uber.org/multierr"
)

// EngineConfig holds the ranking and truncation parameters of the pipeline.
type EngineConfig struct {
	TTL           time.Duration
	NewsWeight    float64 // Upper bound of the news contribution to the combined score
	TopicMarkets  int     // Top markets kept per topic
	HotSize       int     // Markets kept in the hot list
	HotMatches    int     // Matches kept per hot market
	ListMatches   int     // Matches kept per market in ranked listings
	DetailMatches int     // Matches kept for single-market detail
	DefaultLimit  int     // getMarkets limit when none is given
	DedupeTitles  bool
}

// DefaultEngineConfig returns the production parameters.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TTL:           5 * time.Minute,
		NewsWeight:    2,
		TopicMarkets:  5,
		HotSize:       50,
		HotMatches:    3,
		ListMatches:   5,
		DetailMatches: 10,
		DefaultLimit:  50,
		DedupeTitles:  true,
	}
}

// Aggregator turns raw markets and news into a ranked snapshot
type Aggregator struct {
	markets domain.MarketSource
	news    domain.NewsSource
	matcher *match.Matcher
	heat    *heat.Calculator
	cfg     EngineConfig
	logger  *slog.Logger
}

// NewAggregator creates an Aggregator. The matcher must allow at least cfg.DetailMatches matches.
func NewAggregator(markets domain.MarketSource, news domain.NewsSource, matcher *match.Matcher, calc *heat.Calculator, cfg EngineConfig) *Aggregator {
	return &Aggregator{
		markets: markets,
		news:    news,
		matcher: matcher,
		heat:    calc,
		cfg:     cfg,
		logger:  slog.Default().With(slog.String("module", "aggregator")),
	}
}

// Build fetches markets, then news, and computes a snapshot.
// A market failure aborts the build; a news failure degrades to whatever items were returned.
func (a *Aggregator) Build(ctx context.Context, now time.Time) (*domain.Snapshot, error) {
	markets, err := a.markets.FetchMarkets(ctx)
	if err != nil {
		var upErr *domain.UpstreamError
		if !errors.As(err, &upErr) {
			err = domain.NewUpstreamError("markets", err)
		}
		return nil, err
	}

	news, newsErr := a.news.FetchNews(ctx)
	feedErrors := countFailures(newsErr)
	if newsErr != nil {
		a.logger.Warn("News fetch degraded",
			slog.Int("items", len(news)),
			slog.Int("failures", feedErrors),
			slog.Any("error", newsErr),
		)
	}

	snap := a.Compute(markets, news, now)
	snap.FeedErrors = feedErrors
	return snap, nil
}

// countFailures returns how many feed errors err combines.
func countFailures(err error) int {
	if err == nil {
		return 0
	}
	var upErr *domain.UpstreamError
	if errors.As(err, &upErr) && upErr.Err != nil {
		err = upErr.Err
	}
	return len(multierr.Errors(err))
}

// Compute scores, matches and ranks markets against news. Inputs are not modified.
func (a *Aggregator) Compute(markets []domain.Market, news []domain.NewsItem, now time.Time) *domain.Snapshot {
	corpus := match.NewCorpus(news)

	scored := make([]domain.ScoredMarket, 0, len(markets))
	for _, m := range markets {
		scored = append(scored, a.score(m, corpus))
	}

	if a.cfg.DedupeTitles {
		scored = dedupeByTitle(scored)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Combined != scored[j].Combined {
			return scored[i].Combined > scored[j].Combined
		}
		return scored[i].Ticker < scored[j].Ticker
	})

	return domain.NewSnapshot(now, scored, a.topics(scored), a.hot(scored), len(news), 0)
}

func (a *Aggregator) score(m domain.Market, corpus *match.Corpus) domain.ScoredMarket {
	matches := a.matcher.Match(m, corpus)
	if len(matches) > a.cfg.DetailMatches {
		matches = matches[:a.cfg.DetailMatches:a.cfg.DetailMatches]
	}

	sm := domain.ScoredMarket{
		Market:  m,
		Heat:    a.heat.Score(m),
		Matches: matches,
	}
	if len(matches) > 0 {
		sm.BestRelevance = matches[0].Relevance
	}
	sm.Combined = sm.Heat + a.cfg.NewsWeight*sm.BestRelevance
	return sm
}

// dedupeByTitle keeps the hottest market per title, ties going to the lower ticker.
// Input order is preserved for the survivors.
func dedupeByTitle(in []domain.ScoredMarket) []domain.ScoredMarket {
	best := make(map[string]int, len(in))
	for i, sm := range in {
		j, seen := best[sm.Title]
		if !seen || beats(sm, in[j]) {
			best[sm.Title] = i
		}
	}
	out := make([]domain.ScoredMarket, 0, len(best))
	for i, sm := range in {
		if best[sm.Title] == i {
			out = append(out, sm)
		}
	}
	return out
}

func beats(a, b domain.ScoredMarket) bool {
	if a.Heat != b.Heat {
		return a.Heat > b.Heat
	}
	return a.Ticker < b.Ticker
}

// topics groups ranked markets by category.
func (a *Aggregator) topics(ranked []domain.ScoredMarket) []domain.Topic {
	groups := make(map[domain.Category]*domain.Topic)
	members := make(map[domain.Category][]domain.ScoredMarket)

	for _, sm := range ranked {
		t, ok := groups[sm.Category]
		if !ok {
			t = &domain.Topic{Category: sm.Category}
			groups[sm.Category] = t
		}
		t.MarketCount++
		t.TotalVolume += sm.Volume
		t.TotalHeat += sm.Heat
		members[sm.Category] = append(members[sm.Category], sm)
	}

	out := make([]domain.Topic, 0, len(groups))
	for cat, t := range groups {
		top := members[cat]
		sort.SliceStable(top, func(i, j int) bool { return beats(top[i], top[j]) })
		if len(top) > a.cfg.TopicMarkets {
			top = top[:a.cfg.TopicMarkets]
		}
		t.TopMarkets = make([]domain.ScoredMarket, len(top))
		for i, sm := range top {
			t.TopMarkets[i] = sm.WithMatchLimit(a.cfg.HotMatches)
		}
		out = append(out, *t)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalHeat != out[j].TotalHeat {
			return out[i].TotalHeat > out[j].TotalHeat
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// hot takes the top of the ranked list with trimmed matches.
func (a *Aggregator) hot(ranked []domain.ScoredMarket) []domain.ScoredMarket {
	n := min(a.cfg.HotSize, len(ranked))
	out := make([]domain.ScoredMarket, n)
	for i := range n {
		out[i] = ranked[i].WithMatchLimit(a.cfg.HotMatches)
	}
	return out
}
