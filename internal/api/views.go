package api

import (
	"time"

	"kalshi_news/internal/domain"
	"kalshi_news/internal/infra"
	"kalshi_news/internal/service"

	"github.com/shopspring/decimal"
)

// round rounds half away from zero to places decimals.
func round(x float64, places int32) float64 {
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

type newsJSON struct {
	Title          string    `json:"title"`
	Summary        string    `json:"summary,omitempty"`
	Link           string    `json:"link"`
	Source         string    `json:"source"`
	Published      time.Time `json:"published,omitzero"`
	RelevanceScore float64   `json:"relevance_score"`
}

type marketJSON struct {
	Ticker        string          `json:"ticker"`
	EventTicker   string          `json:"event_ticker,omitempty"`
	Title         string          `json:"title"`
	Subtitle      string          `json:"subtitle,omitempty"`
	Category      domain.Category `json:"category"`
	YesPrice      int             `json:"yes_price"`
	NoPrice       int             `json:"no_price"`
	Volume        int64           `json:"volume"`
	OpenInterest  int64           `json:"open_interest"`
	CloseTime     time.Time       `json:"close_time,omitzero"`
	HeatScore     float64         `json:"heat_score"`
	NewsScore     float64         `json:"news_score"`
	CombinedScore float64         `json:"combined_score"`
	RelatedNews   []newsJSON      `json:"related_news"`
}

func toMarketJSON(sm domain.ScoredMarket) marketJSON {
	related := make([]newsJSON, len(sm.Matches))
	for i, m := range sm.Matches {
		related[i] = newsJSON{
			Title:          m.News.Title,
			Summary:        m.News.Summary,
			Link:           m.News.Link,
			Source:         m.News.Source,
			Published:      m.News.Published,
			RelevanceScore: round(m.Relevance, 3),
		}
	}
	return marketJSON{
		Ticker:        sm.Ticker,
		EventTicker:   sm.EventTicker,
		Title:         sm.Title,
		Subtitle:      sm.Subtitle,
		Category:      sm.Category,
		YesPrice:      sm.YesPrice,
		NoPrice:       sm.NoPrice(),
		Volume:        sm.Volume,
		OpenInterest:  sm.OpenInterest,
		CloseTime:     sm.CloseTime,
		HeatScore:     round(sm.Heat, 2),
		NewsScore:     round(sm.BestRelevance, 3),
		CombinedScore: round(sm.Combined, 2),
		RelatedNews:   related,
	}
}

func toMarketsJSON(in []domain.ScoredMarket) []marketJSON {
	out := make([]marketJSON, len(in))
	for i, sm := range in {
		out[i] = toMarketJSON(sm)
	}
	return out
}

type topicMarketJSON struct {
	Ticker    string  `json:"ticker"`
	Title     string  `json:"title"`
	YesPrice  int     `json:"yes_price"`
	Volume    int64   `json:"volume"`
	HeatScore float64 `json:"heat_score"`
}

type topicJSON struct {
	Name        domain.Category   `json:"name"`
	MarketCount int               `json:"market_count"`
	TotalVolume int64             `json:"total_volume"`
	TotalHeat   float64           `json:"total_heat"`
	TopMarkets  []topicMarketJSON `json:"top_markets"`
}

func toTopicsJSON(in []domain.Topic) []topicJSON {
	out := make([]topicJSON, len(in))
	for i, t := range in {
		top := make([]topicMarketJSON, len(t.TopMarkets))
		for j, sm := range t.TopMarkets {
			top[j] = topicMarketJSON{
				Ticker:    sm.Ticker,
				Title:     sm.Title,
				YesPrice:  sm.YesPrice,
				Volume:    sm.Volume,
				HeatScore: round(sm.Heat, 2),
			}
		}
		out[i] = topicJSON{
			Name:        t.Category,
			MarketCount: t.MarketCount,
			TotalVolume: t.TotalVolume,
			TotalHeat:   round(t.TotalHeat, 2),
			TopMarkets:  top,
		}
	}
	return out
}

type historyPointJSON struct {
	RecordedAt    time.Time `json:"recorded_at"`
	YesPrice      int       `json:"yes_price"`
	Volume        int64     `json:"volume"`
	OpenInterest  int64     `json:"open_interest"`
	HeatScore     float64   `json:"heat_score"`
	CombinedScore float64   `json:"combined_score"`
	MatchCount    int       `json:"match_count"`
}

func toHistoryJSON(in []domain.HeatRecord) []historyPointJSON {
	out := make([]historyPointJSON, len(in))
	for i, r := range in {
		out[i] = historyPointJSON{
			RecordedAt:    r.RecordedAt,
			YesPrice:      r.YesPrice,
			Volume:        r.Volume,
			OpenInterest:  r.OpenInterest,
			HeatScore:     round(r.Heat, 2),
			CombinedScore: round(r.Combined, 2),
			MatchCount:    r.MatchCount,
		}
	}
	return out
}

type articleJSON struct {
	Title        string    `json:"title"`
	Summary      string    `json:"summary,omitempty"`
	Link         string    `json:"link"`
	Source       string    `json:"source"`
	FeedCategory string    `json:"feed_category,omitempty"`
	Published    time.Time `json:"published,omitzero"`
	FirstSeen    time.Time `json:"first_seen"`
}

func toArticlesJSON(in []domain.ArticleRecord) []articleJSON {
	out := make([]articleJSON, len(in))
	for i, a := range in {
		out[i] = articleJSON{
			Title:        a.Title,
			Summary:      a.Summary,
			Link:         a.Link,
			Source:       a.Source,
			FeedCategory: a.FeedCategory,
			Published:    a.PublishedAt,
			FirstSeen:    a.FirstSeenAt,
		}
	}
	return out
}

type cacheStatusJSON struct {
	Ready       bool      `json:"ready"`
	Fresh       bool      `json:"fresh"`
	SnapshotID  string    `json:"snapshot_id,omitempty"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
	Markets     int       `json:"markets"`
	News        int       `json:"news"`
	FeedErrors  int       `json:"feed_errors"`
}

type healthJSON struct {
	Status  string                `json:"status"`
	Cache   cacheStatusJSON       `json:"cache"`
	Metrics infra.MetricsSnapshot `json:"metrics"`
}

func toHealthJSON(st service.Status, m infra.MetricsSnapshot) healthJSON {
	status := "warming"
	if st.Ready {
		status = "ok"
	}
	return healthJSON{
		Status: status,
		Cache: cacheStatusJSON{
			Ready:       st.Ready,
			Fresh:       st.Fresh,
			SnapshotID:  st.SnapshotID,
			LastUpdated: st.UpdatedAt,
			Markets:     st.Markets,
			News:        st.News,
			FeedErrors:  st.FeedErrors,
		},
		Metrics: m,
	}
}
