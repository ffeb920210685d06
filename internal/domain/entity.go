package domain

import (
	"time"
)

// HeatRecord is one archived observation of a market at snapshot time
type HeatRecord struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	SnapshotID   string    `gorm:"index;size:36" json:"snapshot_id"`
	Ticker       string    `gorm:"index:idx_ticker_time,priority:1" json:"ticker"`
	Category     string    `json:"category"`
	YesPrice     int       `json:"yes_price"`
	Volume       int64     `json:"volume"`
	OpenInterest int64     `json:"open_interest"`
	Heat         float64   `json:"heat_score"`
	Combined     float64   `json:"combined_score"`
	MatchCount   int       `json:"match_count"`
	RecordedAt   time.Time `gorm:"index:idx_ticker_time,priority:2" json:"recorded_at"`
}

// ArticleRecord is an archived news item, unique by link
type ArticleRecord struct {
	Link         string    `gorm:"primaryKey" json:"link"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Source       string    `gorm:"index" json:"source"`
	FeedCategory string    `json:"feed_category"`
	PublishedAt  time.Time `json:"published_at"`
	FirstSeenAt  time.Time `gorm:"index" json:"first_seen_at"`
}
