package domain

import "time"

// FeedCategory is the editorial section a news feed was configured under
// (e.g. "general", "politics", "economy").
type FeedCategory string

// NewsItem is a single article taken from a news feed. Immutable once fetched.
type NewsItem struct {
	Title        string       `json:"title"`
	Summary      string       `json:"summary,omitempty"`
	Link         string       `json:"link"`
	Source       string       `json:"source"`
	Published    time.Time    `json:"published,omitzero"` // Zero when the feed did not report it
	FeedCategory FeedCategory `json:"feed_category,omitempty"`
}

// Text returns the text keywords are extracted from.
func (n NewsItem) Text() string {
	if n.Summary == "" {
		return n.Title
	}
	return n.Title + " " + n.Summary
}

// Match links a news item to a market with a relevance in [threshold, 1].
type Match struct {
	News      NewsItem `json:"news"`
	Relevance float64  `json:"relevance_score"`
}
