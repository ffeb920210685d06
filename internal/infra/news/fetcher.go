// Package news fetches articles from RSS and Atom feeds.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"kalshi_news/internal/domain"
	"kalshi_news/internal/infra"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// Feed is one configured news source
type Feed struct {
	Name     string
	URL      string
	Category domain.FeedCategory
}

// FeedsFromConfig converts the configured feed list.
func FeedsFromConfig(cfg *infra.Config) []Feed {
	feeds := make([]Feed, 0, len(cfg.News.Feeds))
	for _, f := range cfg.News.Feeds {
		feeds = append(feeds, Feed{
			Name:     f.Name,
			URL:      f.URL,
			Category: domain.FeedCategory(strings.ToLower(f.Category)),
		})
	}
	return feeds
}

// Fetcher pulls every configured feed concurrently
type Fetcher struct {
	feeds       []Feed
	timeout     time.Duration
	maxItems    int
	summaryLen  int
	concurrency int
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewFetcher creates a Fetcher for feeds using the news settings in cfg.
func NewFetcher(cfg *infra.Config, feeds []Feed) *Fetcher {
	return &Fetcher{
		feeds:       feeds,
		timeout:     time.Duration(cfg.News.TimeoutSec) * time.Second,
		maxItems:    cfg.News.MaxItemsPerFeed,
		summaryLen:  cfg.News.SummaryMaxLen,
		concurrency: max(cfg.News.Concurrency, 1),
		httpClient:  &http.Client{Timeout: time.Duration(cfg.News.TimeoutSec) * time.Second},
		logger:      slog.Default().With("module", "news_fetcher"),
	}
}

type feedResult struct {
	items []domain.NewsItem
	err   error
}

// FetchNews fetches all feeds and returns their items newest first.
// Failing feeds are skipped; their errors are combined into the returned error
// (see multierr.Errors) alongside whatever items the other feeds produced.
func (f *Fetcher) FetchNews(ctx context.Context) ([]domain.NewsItem, error) {
	if len(f.feeds) == 0 {
		return nil, nil
	}

	p := pool.NewWithResults[feedResult]().WithMaxGoroutines(f.concurrency)
	for _, feed := range f.feeds {
		p.Go(func() feedResult {
			items, err := f.fetchFeed(ctx, feed)
			return feedResult{items: items, err: err}
		})
	}
	results := p.Wait()

	var (
		all  []domain.NewsItem
		errs error
	)
	for _, r := range results {
		if r.err != nil {
			errs = multierr.Append(errs, r.err)
			continue
		}
		all = append(all, r.items...)
	}

	sortNewestFirst(all)

	failed := len(multierr.Errors(errs))
	if failed > 0 {
		f.logger.Warn("Some feeds failed",
			slog.Int("failed", failed),
			slog.Int("feeds", len(f.feeds)),
			slog.Int("items", len(all)),
		)
	}
	if failed == len(f.feeds) {
		return all, domain.NewUpstreamError("news", errs)
	}
	return all, errs
}

func (f *Fetcher) fetchFeed(ctx context.Context, feed Feed) ([]domain.NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.UserAgent = infra.DefaultUserAgent
	parser.Client = f.httpClient

	parsed, err := parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", feed.Name, domain.NewNetworkError("fetch feed", err))
	}

	n := min(len(parsed.Items), f.maxItems)
	items := make([]domain.NewsItem, 0, n)
	for _, it := range parsed.Items[:n] {
		if it == nil || strings.TrimSpace(it.Title) == "" {
			continue
		}

		var published time.Time
		if it.PublishedParsed != nil {
			published = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			published = *it.UpdatedParsed
		}

		summary := it.Description
		if summary == "" {
			summary = it.Content
		}

		items = append(items, domain.NewsItem{
			Title:        strings.TrimSpace(it.Title),
			Summary:      truncate(StripHTML(summary), f.summaryLen),
			Link:         it.Link,
			Source:       feed.Name,
			Published:    published.UTC(),
			FeedCategory: feed.Category,
		})
	}
	return items, nil
}

// sortNewestFirst orders items by publication time; undated items go last.
func sortNewestFirst(items []domain.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Published.After(items[j].Published)
	})
}

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}

	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				b.WriteString(c.Text())
				b.WriteByte(' ')
			case "script", "style":
			default:
				walk(c)
			}
		})
	}
	walk(doc.Selection)
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
