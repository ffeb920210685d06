package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"kalshi_news/internal/api"
	"kalshi_news/internal/domain"
	"kalshi_news/internal/heat"
	"kalshi_news/internal/infra"
	"kalshi_news/internal/infra/kalshi"
	"kalshi_news/internal/infra/news"
	"kalshi_news/internal/infra/storage"
	"kalshi_news/internal/match"
	"kalshi_news/internal/service"
)

const (
	archiveQueueSize = 16
	shutdownTimeout  = 15 * time.Second
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	ConfigPath string
	Quiet      bool // Log warnings and errors only

	Config  *infra.Config
	Metrics *infra.Metrics
	Archive *storage.Archive // nil when archiving is disabled
	Cache   *service.Cache
	Service *service.MarketService
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(configPath string) *Bootstrap {
	return &Bootstrap{ConfigPath: configPath, Metrics: infra.GlobalMetrics}
}

// Initialize performs full initialization: config, logger, archive and engine.
func (b *Bootstrap) Initialize() error {
	if err := b.LoadConfig(); err != nil {
		return err
	}
	if err := b.OpenArchive(); err != nil {
		return err
	}
	return b.BuildEngine()
}

// LoadConfig loads configuration and installs the default logger.
func (b *Bootstrap) LoadConfig() error {
	cfg, err := infra.LoadConfig(b.ConfigPath)
	if err != nil {
		return err
	}
	if b.Quiet {
		cfg.Logging.Level = "warn"
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("🚀 Bootstrapping Kalshi News Tracker...", slog.String("version", cfg.App.Version))
	return nil
}

// OpenArchive opens the snapshot archive if enabled.
func (b *Bootstrap) OpenArchive() error {
	if b.Archive != nil {
		return nil
	}
	if !b.Config.Archive.Enabled {
		slog.Info("Archive disabled")
		return nil
	}
	archive, err := storage.Open(b.Config.Archive.Path, b.Config.Archive.SaveArticles)
	if err != nil {
		return err
	}
	b.Archive = archive
	slog.Info("✅ Archive initialized", slog.String("path", b.Config.Archive.Path))
	return nil
}

// RequireArchive opens the archive or fails with ErrArchiveDisabled.
func (b *Bootstrap) RequireArchive() (*storage.Archive, error) {
	if err := b.OpenArchive(); err != nil {
		return nil, err
	}
	if b.Archive == nil {
		return nil, domain.ErrArchiveDisabled
	}
	return b.Archive, nil
}

// BuildEngine wires sources, matcher, heat calculator, cache and service.
func (b *Bootstrap) BuildEngine() error {
	cfg := b.Config

	matcher, err := match.NewMatcher(MatchOptions(cfg))
	if err != nil {
		return err
	}
	calc, err := heat.NewCalculator(cfg.Engine.Heat)
	if err != nil {
		return err
	}

	engineCfg := EngineConfig(cfg)
	markets := kalshi.NewClient(cfg)
	feeds := news.NewFetcher(cfg, news.FeedsFromConfig(cfg))
	agg := service.NewAggregator(markets, feeds, matcher, calc, engineCfg)

	b.Cache = service.NewCache(agg, engineCfg.TTL,
		service.WithRecorder(b.Metrics),
		service.WithRetryBackoff(time.Duration(cfg.Engine.RetryBackoffSec)*time.Second),
	)

	var archive domain.SnapshotArchive
	if b.Archive != nil {
		archive = b.Archive
	}
	b.Service = service.NewMarketService(b.Cache, engineCfg, archive)
	slog.Info("✅ Engine ready",
		slog.Int("feeds", len(cfg.News.Feeds)),
		slog.Duration("ttl", engineCfg.TTL),
	)
	return nil
}

// EngineConfig converts the engine section of cfg.
func EngineConfig(cfg *infra.Config) service.EngineConfig {
	e := cfg.Engine
	return service.EngineConfig{
		TTL:           time.Duration(e.CacheTTLSec) * time.Second,
		NewsWeight:    e.NewsWeight,
		TopicMarkets:  e.TopicMarkets,
		HotSize:       e.HotSize,
		HotMatches:    e.HotMatches,
		ListMatches:   e.ListMatches,
		DetailMatches: e.DetailMatches,
		DefaultLimit:  e.DefaultLimit,
		DedupeTitles:  e.DedupeTitles,
	}
}

// MatchOptions converts the matcher settings of cfg. The matcher keeps as
// many matches as the most detailed view needs.
func MatchOptions(cfg *infra.Config) match.Options {
	return match.Options{
		Threshold:  cfg.Engine.RelevanceThreshold,
		MaxMatches: cfg.Engine.DetailMatches,
	}
}

// Serve runs the HTTP API, websocket hub, scheduler and archiver until ctx is done.
func (b *Bootstrap) Serve(parent context.Context) error {
	cfg := b.Config
	ctx, stop := context.WithCancel(parent)
	defer stop()

	hub := api.NewHub(cfg.Server.AllowOrigin, b.Metrics)
	b.Cache.OnPublish(hub.Publish)

	var archiveDone chan struct{}
	if b.Archive != nil {
		arch := newArchiver(b.Archive, archiveQueueSize)
		b.Cache.OnPublish(arch.enqueue)
		archiveDone = make(chan struct{})
		go func() {
			defer close(archiveDone)
			arch.run(ctx)
		}()
	}

	sched := NewScheduler(ctx)
	if err := b.scheduleJobs(sched); err != nil {
		return err
	}
	sched.Start()

	srv := api.NewHTTPServer(cfg, api.NewServer(cfg, b.Service, hub, b.Metrics).Handler())
	errCh := make(chan error, 1)
	go func() {
		slog.Info("✅ HTTP server listening", slog.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Warm the cache so the first request is served immediately
	go func() {
		if _, err := b.Service.Refresh(ctx); err != nil {
			slog.Warn("Initial refresh failed", slog.Any("error", err))
		}
	}()

	slog.Info("✨ Kalshi News Tracker fully operational. Press Ctrl+C to exit.")

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	slog.Info("👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", slog.Any("error", err))
	}
	stop()
	sched.Stop()
	if archiveDone != nil {
		<-archiveDone
	}
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

func (b *Bootstrap) scheduleJobs(sched *Scheduler) error {
	cfg := b.Config

	err := sched.Add("refresh", cfg.Scheduler.RefreshSpec, func(ctx context.Context) error {
		_, err := b.Service.Refresh(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if b.Archive == nil || cfg.Archive.RetentionDays <= 0 {
		return nil
	}
	return sched.Add("prune", cfg.Scheduler.PruneSpec, func(ctx context.Context) error {
		_, err := b.Prune(ctx, RetentionWindow(cfg))
		return err
	})
}

// RetentionWindow returns the configured archive retention.
func RetentionWindow(cfg *infra.Config) time.Duration {
	return time.Duration(cfg.Archive.RetentionDays) * 24 * time.Hour
}

// Prune removes archived rows older than window.
func (b *Bootstrap) Prune(ctx context.Context, window time.Duration) (int64, error) {
	if b.Archive == nil {
		return 0, domain.ErrArchiveDisabled
	}
	removed, err := b.Archive.Prune(ctx, time.Now().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("prune archive: %w", err)
	}
	slog.Info("Archive pruned", slog.Int64("removed", removed), slog.Duration("window", window))
	return removed, nil
}

// Close releases resources opened during initialization.
func (b *Bootstrap) Close() error {
	if b.Archive == nil {
		return nil
	}
	return b.Archive.Close()
}
