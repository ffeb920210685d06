package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kalshi_news/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const batchSize = 200

// Archive persists published snapshots for history queries
type Archive struct {
	db           *gorm.DB
	saveArticles bool
}

// Open creates (or opens) the SQLite archive at path
func Open(path string, saveArticles bool) (*Archive, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newArchive(db, saveArticles)
}

func newArchive(db *gorm.DB, saveArticles bool) (*Archive, error) {
	// Auto Migration
	if err := db.AutoMigrate(&domain.HeatRecord{}, &domain.ArticleRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Archive{db: db, saveArticles: saveArticles}, nil
}

// Close releases the underlying connection pool
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Snapshot Operations
// ======================================================================================

// SaveSnapshot records one heat observation per market and, if enabled, the matched articles
func (a *Archive) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil || len(snap.Markets) == 0 {
		return nil
	}

	records := make([]domain.HeatRecord, 0, len(snap.Markets))
	for _, sm := range snap.Markets {
		records = append(records, domain.HeatRecord{
			SnapshotID:   snap.ID.String(),
			Ticker:       sm.Ticker,
			Category:     sm.Category.String(),
			YesPrice:     sm.YesPrice,
			Volume:       sm.Volume,
			OpenInterest: sm.OpenInterest,
			Heat:         sm.Heat,
			Combined:     sm.Combined,
			MatchCount:   len(sm.Matches),
			RecordedAt:   snap.UpdatedAt,
		})
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(records, batchSize).Error; err != nil {
			return fmt.Errorf("save heat records: %w", err)
		}
		if !a.saveArticles {
			return nil
		}
		articles := matchedArticles(snap)
		if len(articles) == 0 {
			return nil
		}
		// Existing links keep their first-seen time
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(articles, batchSize).Error
		if err != nil {
			return fmt.Errorf("save articles: %w", err)
		}
		return nil
	})
}

// matchedArticles collects every distinct linked article referenced by the snapshot
func matchedArticles(snap *domain.Snapshot) []domain.ArticleRecord {
	seen := make(map[string]bool)
	var out []domain.ArticleRecord
	for _, sm := range snap.Markets {
		for _, m := range sm.Matches {
			n := m.News
			if n.Link == "" || seen[n.Link] {
				continue
			}
			seen[n.Link] = true
			out = append(out, domain.ArticleRecord{
				Link:         n.Link,
				Title:        n.Title,
				Summary:      n.Summary,
				Source:       n.Source,
				FeedCategory: string(n.FeedCategory),
				PublishedAt:  n.Published,
				FirstSeenAt:  snap.UpdatedAt,
			})
		}
	}
	return out
}

// History returns observations for ticker recorded at or after since, oldest first
func (a *Archive) History(ctx context.Context, ticker string, since time.Time) ([]domain.HeatRecord, error) {
	var records []domain.HeatRecord
	err := a.db.WithContext(ctx).
		Where("ticker = ? AND recorded_at >= ?", ticker, since).
		Order("recorded_at ASC").
		Find(&records).Error
	return records, err
}

// Articles returns archived articles first seen at or after since, newest first
func (a *Archive) Articles(ctx context.Context, since time.Time, limit int) ([]domain.ArticleRecord, error) {
	var articles []domain.ArticleRecord
	q := a.db.WithContext(ctx).
		Where("first_seen_at >= ?", since).
		Order("first_seen_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&articles).Error
	return articles, err
}

// ======================================================================================
// Retention
// ======================================================================================

// Prune deletes observations and articles older than before, returning the number of rows removed
func (a *Archive) Prune(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("recorded_at < ?", before).Delete(&domain.HeatRecord{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected

		res = tx.Where("first_seen_at < ?", before).Delete(&domain.ArticleRecord{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		return nil
	})
	return removed, err
}

// Stats summarizes archive contents
type Stats struct {
	HeatRecords int64
	Articles    int64
	Tickers     int64
	Oldest      time.Time
}

// Stats returns row counts and the oldest observation time
func (a *Archive) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	db := a.db.WithContext(ctx)
	if err := db.Model(&domain.HeatRecord{}).Count(&s.HeatRecords).Error; err != nil {
		return s, err
	}
	if err := db.Model(&domain.ArticleRecord{}).Count(&s.Articles).Error; err != nil {
		return s, err
	}
	if err := db.Model(&domain.HeatRecord{}).Distinct("ticker").Count(&s.Tickers).Error; err != nil {
		return s, err
	}
	if s.HeatRecords > 0 {
		var oldest domain.HeatRecord
		if err := db.Order("recorded_at ASC").First(&oldest).Error; err != nil {
			return s, err
		}
		s.Oldest = oldest.RecordedAt
	}
	return s, nil
}
