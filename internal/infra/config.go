package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"kalshi_news/internal/domain"
	"kalshi_news/internal/heat"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	// AppDirName is the per-user directory name under the XDG base directories
	AppDirName = "kalshi-news"

	// DefaultUserAgent identifies the service to upstream APIs and feed hosts
	DefaultUserAgent = "Mozilla/5.0 (compatible; KalshiNewsTracker/1.0; +https://kalshi.com)"
)

// FeedConfig describes one RSS/Atom source.
type FeedConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
		WriteTimeoutSec int    `yaml:"write_timeout_sec"`
		AllowOrigin     string `yaml:"allow_origin"`
	} `yaml:"server"`

	Kalshi struct {
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		Status      string `yaml:"status"`
		PageSize    int    `yaml:"page_size"`
		MaxMarkets  int    `yaml:"max_markets"`
		TimeoutSec  int    `yaml:"timeout_sec"`  // Per request
		DeadlineSec int    `yaml:"deadline_sec"` // Whole fetch, pages and retries included
		MaxRetries  int    `yaml:"max_retries"`
	} `yaml:"kalshi"`

	News struct {
		TimeoutSec      int          `yaml:"timeout_sec"`
		MaxItemsPerFeed int          `yaml:"max_items_per_feed"`
		SummaryMaxLen   int          `yaml:"summary_max_len"`
		Concurrency     int          `yaml:"concurrency"`
		Feeds           []FeedConfig `yaml:"feeds"`
	} `yaml:"news"`

	Engine struct {
		CacheTTLSec        int          `yaml:"cache_ttl_sec"`
		RetryBackoffSec    int          `yaml:"retry_backoff_sec"`
		RelevanceThreshold float64      `yaml:"relevance_threshold"`
		NewsWeight         float64      `yaml:"news_weight"`
		TopicMarkets       int          `yaml:"topic_markets"`
		HotSize            int          `yaml:"hot_size"`
		HotMatches         int          `yaml:"hot_matches"`
		ListMatches        int          `yaml:"list_matches"`
		DetailMatches      int          `yaml:"detail_matches"`
		DefaultLimit       int          `yaml:"default_limit"`
		DedupeTitles       bool         `yaml:"dedupe_titles"`
		Heat               heat.Weights `yaml:"heat"`
	} `yaml:"engine"`

	Archive struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
		SaveArticles  bool   `yaml:"save_articles"`
	} `yaml:"archive"`

	Scheduler struct {
		RefreshSpec string `yaml:"refresh_spec"` // Empty disables background refresh
		PruneSpec   string `yaml:"prune_spec"`
	} `yaml:"scheduler"`

	Logging struct {
		Level      string `yaml:"level"`
		Dir        string `yaml:"dir"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration that runs without a config file.
func DefaultConfig() *Config {
	var cfg Config

	cfg.App.Name = "Kalshi News Tracker"
	cfg.App.Version = "1.0.0"

	cfg.Server.Addr = ":8000"
	cfg.Server.ReadTimeoutSec = 10
	cfg.Server.WriteTimeoutSec = 90
	cfg.Server.AllowOrigin = "*"

	cfg.Kalshi.BaseURL = "https://api.elections.kalshi.com/trade-api/v2"
	cfg.Kalshi.Status = "open"
	cfg.Kalshi.PageSize = 200
	cfg.Kalshi.MaxMarkets = 300
	cfg.Kalshi.TimeoutSec = 30
	cfg.Kalshi.DeadlineSec = 60
	cfg.Kalshi.MaxRetries = 3

	cfg.News.TimeoutSec = 15
	cfg.News.MaxItemsPerFeed = 50
	cfg.News.SummaryMaxLen = 300
	cfg.News.Concurrency = 8
	cfg.News.Feeds = defaultFeeds()

	cfg.Engine.CacheTTLSec = 300
	cfg.Engine.RetryBackoffSec = 30
	cfg.Engine.RelevanceThreshold = 0.15
	cfg.Engine.NewsWeight = 2
	cfg.Engine.TopicMarkets = 5
	cfg.Engine.HotSize = 50
	cfg.Engine.HotMatches = 3
	cfg.Engine.ListMatches = 5
	cfg.Engine.DetailMatches = 10
	cfg.Engine.DefaultLimit = 50
	cfg.Engine.DedupeTitles = true
	cfg.Engine.Heat = heat.DefaultWeights()

	cfg.Archive.Enabled = true
	cfg.Archive.Path = filepath.Join(xdg.DataHome, AppDirName, "archive.db")
	cfg.Archive.RetentionDays = 30
	cfg.Archive.SaveArticles = true

	cfg.Scheduler.RefreshSpec = "@every 5m"
	cfg.Scheduler.PruneSpec = "@daily"

	cfg.Logging.Level = "info"
	cfg.Logging.Dir = filepath.Join(xdg.StateHome, AppDirName, "logs")
	cfg.Logging.MaxSizeMB = 10
	cfg.Logging.MaxBackups = 3
	cfg.Logging.MaxAgeDays = 28
	cfg.Logging.Compress = true

	return &cfg
}

func defaultFeeds() []FeedConfig {
	return []FeedConfig{
		{"Reuters", "https://feeds.reuters.com/reuters/topNews", "general"},
		{"AP News", "https://rsshub.app/apnews/topics/apf-topnews", "general"},
		{"NPR", "https://feeds.npr.org/1001/rss.xml", "general"},
		{"BBC World", "http://feeds.bbci.co.uk/news/world/rss.xml", "general"},
		{"CNN", "http://rss.cnn.com/rss/cnn_topstories.rss", "general"},
		{"NYT", "https://rss.nytimes.com/services/xml/rss/nyt/HomePage.xml", "general"},
		{"Politico", "https://www.politico.com/rss/politicopicks.xml", "politics"},
		{"The Hill", "https://thehill.com/feed/", "politics"},
		{"RealClearPolitics", "https://www.realclearpolitics.com/index.xml", "politics"},
		{"CNN Politics", "http://rss.cnn.com/rss/cnn_allpolitics.rss", "politics"},
		{"Fox News Politics", "https://moxie.foxnews.com/google-publisher/politics.xml", "politics"},
		{"WSJ Markets", "https://feeds.content.dowjones.io/public/rss/RSSMarketsMain", "economy"},
		{"CNBC", "https://www.cnbc.com/id/100003114/device/rss/rss.html", "economy"},
		{"Bloomberg", "https://feeds.bloomberg.com/markets/news.rss", "economy"},
		{"Yahoo Finance", "https://finance.yahoo.com/news/rssindex", "economy"},
		{"MarketWatch", "http://feeds.marketwatch.com/marketwatch/topstories/", "economy"},
		{"TechCrunch", "https://techcrunch.com/feed/", "technology"},
		{"Ars Technica", "https://feeds.arstechnica.com/arstechnica/technology-lab", "technology"},
		{"The Verge", "https://www.theverge.com/rss/index.xml", "technology"},
		{"Wired", "https://www.wired.com/feed/rss", "technology"},
		{"Engadget", "https://www.engadget.com/rss.xml", "technology"},
		{"ScienceDaily", "https://www.sciencedaily.com/rss/top_news.xml", "science"},
		{"NASA", "https://www.nasa.gov/rss/dyn/breaking_news.rss", "science"},
		{"CoinDesk", "https://www.coindesk.com/arc/outboundfeeds/rss/", "crypto"},
		{"CoinTelegraph", "https://cointelegraph.com/rss", "crypto"},
		{"ESPN", "https://www.espn.com/espn/rss/news", "sports"},
		{"CBS Sports", "https://www.cbssports.com/rss/headlines/", "sports"},
		{"Variety", "https://variety.com/feed/", "entertainment"},
		{"Hollywood Reporter", "https://www.hollywoodreporter.com/feed/", "entertainment"},
	}
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// 파일 값은 DefaultConfig 위에 덮어쓰며, 경로가 비어 있으면 기본값만 사용합니다.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.ConfigError{Field: ".env", Err: err}
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &domain.ConfigError{Field: path, Err: domain.ErrConfigNotFound}
			}
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &domain.ConfigError{Field: path, Err: err}
		}
	}

	// 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return &domain.ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
	}

	// Kalshi
	if u, err := url.Parse(c.Kalshi.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("kalshi.base_url", "invalid URL: %q", c.Kalshi.BaseURL)
	}
	if c.Kalshi.PageSize <= 0 || c.Kalshi.PageSize > 1000 {
		return invalid("kalshi.page_size", "must be in 1..1000, got %d", c.Kalshi.PageSize)
	}
	if c.Kalshi.MaxMarkets <= 0 {
		return invalid("kalshi.max_markets", "must be positive")
	}
	if c.Kalshi.TimeoutSec <= 0 {
		return invalid("kalshi.timeout_sec", "must be positive")
	}
	if c.Kalshi.MaxRetries < 1 {
		return invalid("kalshi.max_retries", "must be at least 1")
	}
	if c.Kalshi.DeadlineSec <= 0 {
		return invalid("kalshi.deadline_sec", "must be positive")
	}

	// News
	if c.News.TimeoutSec <= 0 {
		return invalid("news.timeout_sec", "must be positive")
	}
	if c.News.MaxItemsPerFeed <= 0 {
		return invalid("news.max_items_per_feed", "must be positive")
	}
	if c.News.Concurrency <= 0 {
		return invalid("news.concurrency", "must be positive")
	}
	for i, f := range c.News.Feeds {
		if u, err := url.Parse(f.URL); err != nil || u.Host == "" {
			return invalid(fmt.Sprintf("news.feeds[%d].url", i), "invalid URL: %q", f.URL)
		}
		if strings.TrimSpace(f.Name) == "" {
			return invalid(fmt.Sprintf("news.feeds[%d].name", i), "must not be empty")
		}
	}

	// Engine
	if c.Engine.CacheTTLSec <= 0 {
		return invalid("engine.cache_ttl_sec", "must be positive")
	}
	if c.Engine.RetryBackoffSec < 0 {
		return invalid("engine.retry_backoff_sec", "must not be negative")
	}
	if t := c.Engine.RelevanceThreshold; !(t >= 0 && t <= 1) {
		return invalid("engine.relevance_threshold", "must be in [0,1], got %v", t)
	}
	if !(c.Engine.NewsWeight >= 0) {
		return invalid("engine.news_weight", "must not be negative")
	}
	for field, v := range map[string]int{
		"engine.topic_markets":  c.Engine.TopicMarkets,
		"engine.hot_size":       c.Engine.HotSize,
		"engine.detail_matches": c.Engine.DetailMatches,
		"engine.default_limit":  c.Engine.DefaultLimit,
	} {
		if v <= 0 {
			return invalid(field, "must be positive, got %d", v)
		}
	}
	if c.Engine.HotMatches < 0 || c.Engine.HotMatches > c.Engine.DetailMatches {
		return invalid("engine.hot_matches", "must be in 0..detail_matches")
	}
	if c.Engine.ListMatches < 0 || c.Engine.ListMatches > c.Engine.DetailMatches {
		return invalid("engine.list_matches", "must be in 0..detail_matches")
	}
	if err := c.Engine.Heat.Validate(); err != nil {
		return err
	}

	// Server
	// A stale read recomputes synchronously: markets first, then news.
	if c.Server.WriteTimeoutSec > 0 && c.Kalshi.DeadlineSec+c.News.TimeoutSec >= c.Server.WriteTimeoutSec {
		return invalid("server.write_timeout_sec",
			"must exceed kalshi.deadline_sec + news.timeout_sec (%d), got %d",
			c.Kalshi.DeadlineSec+c.News.TimeoutSec, c.Server.WriteTimeoutSec)
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.Path == "" {
			return invalid("archive.path", "required when archive is enabled")
		}
		if c.Archive.RetentionDays <= 0 {
			return invalid("archive.retention_days", "must be positive")
		}
	}

	// Scheduler
	for field, spec := range map[string]string{
		"scheduler.refresh_spec": c.Scheduler.RefreshSpec,
		"scheduler.prune_spec":   c.Scheduler.PruneSpec,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return &domain.ConfigError{Field: field, Err: err}
		}
	}

	// Logging
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", "unknown level %q", c.Logging.Level)
	}

	return nil
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("KALSHI_API_KEY"); key != "" {
		cfg.Kalshi.APIKey = key
	}
	if addr := os.Getenv("KALSHI_NEWS_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := os.Getenv("KALSHI_NEWS_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
	if db := os.Getenv("KALSHI_NEWS_DB"); db != "" {
		cfg.Archive.Path = db
	}
}
