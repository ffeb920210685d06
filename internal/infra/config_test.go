package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"kalshi_news/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if len(cfg.News.Feeds) == 0 {
		t.Error("default config should carry feeds")
	}
	if cfg.Engine.CacheTTLSec != 300 {
		t.Errorf("CacheTTLSec = %d, want 300", cfg.Engine.CacheTTLSec)
	}
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
engine:
  hot_size: 20
  heat:
    uncertainty: 5
news:
  feeds:
    - name: Local
      url: http://localhost/rss
      category: general
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("Addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.Engine.HotSize != 20 {
		t.Errorf("HotSize = %d, want 20", cfg.Engine.HotSize)
	}
	if cfg.Engine.Heat.Uncertainty != 5 || cfg.Engine.Heat.VolumeScale != 10000 {
		t.Errorf("heat weights not merged: %+v", cfg.Engine.Heat)
	}
	if cfg.Engine.TopicMarkets != 5 {
		t.Errorf("untouched default lost: TopicMarkets = %d", cfg.Engine.TopicMarkets)
	}
	if len(cfg.News.Feeds) != 1 || cfg.News.Feeds[0].Name != "Local" {
		t.Errorf("feeds not replaced: %+v", cfg.News.Feeds)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("KALSHI_API_KEY", "secret-key")
	t.Setenv("KALSHI_NEWS_ADDR", ":7777")
	t.Setenv("KALSHI_NEWS_LOG_LEVEL", "DEBUG")
	t.Setenv("KALSHI_NEWS_DB", "/tmp/override.db")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Kalshi.APIKey != "secret-key" {
		t.Errorf("APIKey = %q", cfg.Kalshi.APIKey)
	}
	if cfg.Server.Addr != ":7777" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	if cfg.Archive.Path != "/tmp/override.db" {
		t.Errorf("Archive.Path = %q", cfg.Archive.Path)
	}
}

func TestLoadConfig_ShippedFile(t *testing.T) {
	t.Setenv("KALSHI_NEWS_ADDR", "")
	t.Setenv("KALSHI_NEWS_LOG_LEVEL", "")
	t.Setenv("KALSHI_NEWS_DB", "")

	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("shipped config should load: %v", err)
	}
	def := DefaultConfig()
	if cfg.Engine != def.Engine {
		t.Errorf("shipped engine section drifted from defaults:\n got %+v\nwant %+v", cfg.Engine, def.Engine)
	}
	if len(cfg.News.Feeds) != len(def.News.Feeds) {
		t.Errorf("shipped config should keep the built-in feeds, got %d", len(cfg.News.Feeds))
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad base url", func(c *Config) { c.Kalshi.BaseURL = "ftp//nope" }, "kalshi.base_url"},
		{"threshold above one", func(c *Config) { c.Engine.RelevanceThreshold = 1.5 }, "engine.relevance_threshold"},
		{"negative weight", func(c *Config) { c.Engine.Heat.Volume = -1 }, "heat.volume"},
		{"zero ttl", func(c *Config) { c.Engine.CacheTTLSec = 0 }, "engine.cache_ttl_sec"},
		{"hot matches above detail", func(c *Config) { c.Engine.HotMatches = 20 }, "engine.hot_matches"},
		{"bad cron", func(c *Config) { c.Scheduler.RefreshSpec = "every now and then" }, "scheduler.refresh_spec"},
		{"zero fetch deadline", func(c *Config) { c.Kalshi.DeadlineSec = 0 }, "kalshi.deadline_sec"},
		{"write timeout below recompute", func(c *Config) { c.Server.WriteTimeoutSec = 60 }, "server.write_timeout_sec"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"feed without url", func(c *Config) { c.News.Feeds = []FeedConfig{{Name: "x"}} }, "news.feeds[0].url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}
