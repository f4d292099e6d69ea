// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/blogharvest/internal/blog"
	"github.com/JakeFAU/blogharvest/internal/storage"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Selectors blog.Selectors  `mapstructure:"selectors"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// CrawlConfig governs the index traversal.
type CrawlConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	MaxPages      int    `mapstructure:"max_pages"`
	UserAgent     string `mapstructure:"user_agent"`
	RespectRobots bool   `mapstructure:"respect_robots"`
	DelayMs       int    `mapstructure:"delay_ms"`
}

// HTTPConfig configures the HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// RateLimitConfig is the sliding-window call budget shared by every request.
type RateLimitConfig struct {
	Calls         int `mapstructure:"calls"`
	PeriodSeconds int `mapstructure:"period_seconds"`
}

// StorageConfig selects the post store backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int    `mapstructure:"max_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// LoggingConfig toggles zap development features and file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
}

// MetricsConfig enables the in-run metrics endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Selectors = cfg.Selectors.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Every key gets a default so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	sel := blog.DefaultSelectors()

	v.SetDefault("crawl.base_url", "https://cognitivesciencesociety.org/blog/")
	v.SetDefault("crawl.max_pages", 500)
	v.SetDefault("crawl.user_agent", "blogharvest/0.1")
	v.SetDefault("crawl.respect_robots", false)
	v.SetDefault("crawl.delay_ms", 0)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("rate_limit.calls", 100)
	v.SetDefault("rate_limit.period_seconds", 300)
	v.SetDefault("selectors.container", sel.Container)
	v.SetDefault("selectors.post", sel.Post)
	v.SetDefault("selectors.title", sel.Title)
	v.SetDefault("selectors.link", sel.Link)
	v.SetDefault("selectors.published", sel.Published)
	v.SetDefault("selectors.tags", sel.Tags)
	v.SetDefault("selectors.next_label", sel.NextLabel)
	v.SetDefault("selectors.body", sel.Body)
	v.SetDefault("selectors.detail_title", sel.DetailTitle)
	v.SetDefault("selectors.detail_published", sel.DetailPublished)
	v.SetDefault("selectors.detail_tags", sel.DetailTags)
	v.SetDefault("storage.driver", storage.DriverPostgres)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "blog_posts")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Crawl.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("crawl.base_url must be an absolute URL, got %q", c.Crawl.BaseURL)
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Crawl.DelayMs < 0 {
		return fmt.Errorf("crawl.delay_ms must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.RateLimit.Calls <= 0 {
		return fmt.Errorf("rate_limit.calls must be > 0")
	}
	if c.RateLimit.PeriodSeconds <= 0 {
		return fmt.Errorf("rate_limit.period_seconds must be > 0")
	}
	if !storage.Known(c.Storage.Driver) {
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	if storage.RequiresDSN(c.Storage.Driver) && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set for storage.driver %q", c.Storage.Driver)
	}
	if c.DB.MaxConns < 0 || c.DB.MaxConns > 1024 {
		return fmt.Errorf("db.max_conns must be between 0 and 1024")
	}
	if err := c.Selectors.Validate(); err != nil {
		return err
	}
	return nil
}

// HTTPTimeout converts the configured timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RateLimitPeriod converts the window length into a duration.
func (c Config) RateLimitPeriod() time.Duration {
	return time.Duration(c.RateLimit.PeriodSeconds) * time.Second
}

// CrawlDelay converts the per-host politeness delay into a duration.
func (c Config) CrawlDelay() time.Duration {
	return time.Duration(c.Crawl.DelayMs) * time.Millisecond
}

// StoreConfig maps the storage and db sections onto the store factory's config.
func (c Config) StoreConfig() storage.Config {
	return storage.Config{
		Driver:          c.Storage.Driver,
		DSN:             c.DB.DSN,
		Table:           c.DB.Table,
		MaxConns:        c.DB.MaxConns,
		MaxConnLifetime: time.Duration(c.DB.MaxConnLifetimeMinutes) * time.Minute,
	}
}
