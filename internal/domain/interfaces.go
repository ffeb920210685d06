package domain

import (
	"context"
	"time"
)

// MarketSource defines the interface for prediction-market connectors
type MarketSource interface {
	FetchMarkets(ctx context.Context) ([]Market, error)
}

// NewsSource defines the interface for news feed connectors.
// Partial failures are reported through the error while still returning the items that were fetched.
type NewsSource interface {
	FetchNews(ctx context.Context) ([]NewsItem, error)
}

// SnapshotArchive defines how published snapshots are persisted for history queries
type SnapshotArchive interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	History(ctx context.Context, ticker string, since time.Time) ([]HeatRecord, error)
	Articles(ctx context.Context, since time.Time, limit int) ([]ArticleRecord, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}
