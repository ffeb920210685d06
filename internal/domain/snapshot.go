package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScoredMarket is a market annotated with its heat score and news matches for one cache cycle.
type ScoredMarket struct {
	Market
	Heat          float64 `json:"heat_score"`
	BestRelevance float64 `json:"best_relevance"`
	Combined      float64 `json:"combined_score"`
	Matches       []Match `json:"related_news"`
}

// WithMatchLimit returns a copy carrying at most n matches.
func (s ScoredMarket) WithMatchLimit(n int) ScoredMarket {
	if n < len(s.Matches) {
		s.Matches = s.Matches[:n:n]
	}
	return s
}

// Topic aggregates all markets sharing a category.
type Topic struct {
	Category    Category       `json:"name"`
	MarketCount int            `json:"market_count"`
	TotalVolume int64          `json:"total_volume"`
	TotalHeat   float64        `json:"total_heat"`
	TopMarkets  []ScoredMarket `json:"top_markets"`
}

// Snapshot is the fully computed response set served from the cache.
// It is built completely before publication and never modified afterwards.
type Snapshot struct {
	ID         uuid.UUID
	UpdatedAt  time.Time
	Markets    []ScoredMarket // Ranked by combined score
	Topics     []Topic        // Ranked by total heat
	Hot        []ScoredMarket // Top-K by combined score, matches trimmed
	NewsCount  int
	FeedErrors int

	index map[string]int
}

// NewSnapshot builds a snapshot and its ticker index.
func NewSnapshot(updatedAt time.Time, markets []ScoredMarket, topics []Topic, hot []ScoredMarket, newsCount, feedErrors int) *Snapshot {
	index := make(map[string]int, len(markets))
	for i, m := range markets {
		index[m.Ticker] = i
	}
	return &Snapshot{
		ID:         uuid.New(),
		UpdatedAt:  updatedAt,
		Markets:    markets,
		Topics:     topics,
		Hot:        hot,
		NewsCount:  newsCount,
		FeedErrors: feedErrors,
		index:      index,
	}
}

// Lookup returns the scored market with the given ticker.
func (s *Snapshot) Lookup(ticker string) (ScoredMarket, bool) {
	i, ok := s.index[ticker]
	if !ok {
		return ScoredMarket{}, false
	}
	return s.Markets[i], true
}
