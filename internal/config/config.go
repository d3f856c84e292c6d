// Package config loads and validates listing-extractor configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/listing-extractor/internal/analytics"
	"github.com/JakeFAU/listing-extractor/internal/browser"
	"github.com/JakeFAU/listing-extractor/internal/extract"
	"github.com/JakeFAU/listing-extractor/internal/listing"
	"github.com/JakeFAU/listing-extractor/internal/pacing"
	"github.com/JakeFAU/listing-extractor/internal/retry"
	"github.com/JakeFAU/listing-extractor/internal/storage/gcs"
	"github.com/JakeFAU/listing-extractor/internal/storage/local"
	"github.com/JakeFAU/listing-extractor/internal/storage/postgres"
	"github.com/JakeFAU/listing-extractor/internal/zones"
)

// DefaultIndexPage is the flatfy.ua Kharkiv apartment-sale index.
const DefaultIndexPage = "https://flatfy.ua/uk/%D0%BF%D1%80%D0%BE%D0%B4%D0%B0%D0%B6-%D0%BA%D0%B2%D0%B0%D1%80%D1%82%D0%B8%D1%80-%D1%85%D0%B0%D1%80%D0%BA%D1%96%D0%B2"

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Export backends.
const (
	ExportNone  = "none"
	ExportLocal = "local"
	ExportGCS   = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Browser browser.Profile `mapstructure:"browser"`
	Scrape  ScrapeConfig    `mapstructure:"scrape"`
	Extract ExtractConfig   `mapstructure:"extract"`
	Storage StorageConfig   `mapstructure:"storage"`
	Export  ExportConfig    `mapstructure:"export"`
	PubSub  PubSubConfig    `mapstructure:"pubsub"`
	Metrics MetricsConfig   `mapstructure:"metrics"`
	Logging LoggingConfig   `mapstructure:"logging"`
	Analyze AnalyzeConfig   `mapstructure:"analyze"`
	Zones   ZonesConfig     `mapstructure:"zones"`
}

// ScrapeConfig bounds a scrape run.
type ScrapeConfig struct {
	Pages   []string     `mapstructure:"pages"`
	Limit   int          `mapstructure:"limit"`
	Retries int          `mapstructure:"retries"`
	Backoff pacing.Range `mapstructure:"backoff"`
}

// ExtractConfig tunes field extraction.
type ExtractConfig struct {
	Selectors    listing.Selectors `mapstructure:"selectors"`
	AreaMarker   string            `mapstructure:"area_marker"`
	DateStrategy string            `mapstructure:"date_strategy"`
	DateIndex    int               `mapstructure:"date_index"`
}

// StorageConfig picks the document store.
type StorageConfig struct {
	Backend  string          `mapstructure:"backend"`
	Postgres postgres.Config `mapstructure:"postgres"`
}

// ExportConfig picks where run and zone exports are written.
type ExportConfig struct {
	Backend string       `mapstructure:"backend"`
	Prefix  string       `mapstructure:"prefix"`
	Local   local.Config `mapstructure:"local"`
	GCS     gcs.Config   `mapstructure:"gcs"`
}

// PubSubConfig holds metadata for run-complete notifications. An empty topic disables them.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// MetricsConfig enables the operator HTTP server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// AnalyzeConfig tunes the price-density analysis.
type AnalyzeConfig struct {
	TopN int `mapstructure:"top_n"`
}

// ZonesConfig lists the zoning-code sources and the export object name.
type ZonesConfig struct {
	Sources []zones.Source `mapstructure:"sources"`
	Output  string         `mapstructure:"output"`
}

// Load builds a validated Config from v, which pkg/config.InitConfig has prepared. Defaults
// are registered on v first.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Zones.Sources) == 0 {
		cfg.Zones.Sources = zones.DefaultSources()
	}
	cfg.Browser = cfg.Browser.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	sel := listing.DefaultSelectors()
	ext := extract.DefaultConfig()

	v.SetDefault("browser.identity_pool", browser.DefaultIdentityPool)
	v.SetDefault("browser.wait_range.min", browser.DefaultWaitRange.Min)
	v.SetDefault("browser.wait_range.max", browser.DefaultWaitRange.Max)
	v.SetDefault("browser.page_load_timeout", browser.DefaultPageLoadTimeout)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_qps", 0)

	v.SetDefault("scrape.pages", []string{DefaultIndexPage})
	v.SetDefault("scrape.limit", 10)
	v.SetDefault("scrape.retries", retry.DefaultMaxAttempts)
	v.SetDefault("scrape.backoff.min", browser.DefaultWaitRange.Min)
	v.SetDefault("scrape.backoff.max", browser.DefaultWaitRange.Max)

	v.SetDefault("extract.selectors.listing", sel.Listing)
	v.SetDefault("extract.selectors.title", sel.Title)
	v.SetDefault("extract.selectors.location_parts", sel.LocationParts)
	v.SetDefault("extract.selectors.price", sel.Price)
	v.SetDefault("extract.selectors.size_items", sel.SizeItems)
	v.SetDefault("extract.selectors.date_values", sel.DateValues)
	v.SetDefault("extract.selectors.description", sel.Description)
	v.SetDefault("extract.selectors.detail_trigger", sel.DetailTrigger)
	v.SetDefault("extract.area_marker", ext.AreaMarker)
	v.SetDefault("extract.date_strategy", string(ext.DateStrategy))
	v.SetDefault("extract.date_index", ext.DateIndex)

	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.table", postgres.DefaultTable)
	v.SetDefault("storage.postgres.max_conns", 4)
	v.SetDefault("storage.postgres.max_conn_lifetime", time.Hour)

	v.SetDefault("export.backend", ExportLocal)
	v.SetDefault("export.prefix", "runs")
	v.SetDefault("export.local.base_dir", "data/exports")
	v.SetDefault("export.gcs.bucket", "")

	// Empty defaults make these keys visible to environment overrides.
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_id", "")
	v.SetDefault("metrics.addr", "")

	v.SetDefault("logging.development", true)
	v.SetDefault("analyze.top_n", analytics.DefaultTopN)
	v.SetDefault("zones.output", "zones.json")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return err
	}
	if c.Scrape.Retries <= 0 {
		return errors.New("scrape.retries must be > 0")
	}
	if c.Scrape.Limit < 0 {
		return errors.New("scrape.limit must be >= 0")
	}
	if err := c.Scrape.Backoff.Validate(); err != nil {
		return fmt.Errorf("scrape.backoff: %w", err)
	}
	switch extract.DateStrategy(c.Extract.DateStrategy) {
	case extract.DatePosition, extract.DateMarker:
	default:
		return fmt.Errorf("extract.date_strategy %q must be %q or %q",
			c.Extract.DateStrategy, extract.DatePosition, extract.DateMarker)
	}
	if c.Extract.DateIndex < 0 {
		return errors.New("extract.date_index must be >= 0")
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn must be set when storage.backend is postgres")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Export.Backend {
	case ExportNone:
	case ExportLocal:
		if c.Export.Local.BaseDir == "" {
			return errors.New("export.local.base_dir must be set when export.backend is local")
		}
	case ExportGCS:
		if c.Export.GCS.Bucket == "" {
			return errors.New("export.gcs.bucket must be set when export.backend is gcs")
		}
	default:
		return fmt.Errorf("unknown export.backend %q", c.Export.Backend)
	}
	if c.PubSub.TopicID != "" && c.PubSub.ProjectID == "" {
		return errors.New("pubsub.project_id must be set when pubsub.topic_id is set")
	}
	for i, src := range c.Zones.Sources {
		if err := src.Validate(); err != nil {
			return fmt.Errorf("zones.sources[%d]: %w", i, err)
		}
	}
	return nil
}

// ExtractorConfig converts the extract section into extractor settings.
func (c Config) ExtractorConfig() extract.Config {
	cfg := extract.DefaultConfig()
	cfg.Selectors = c.Extract.Selectors.WithDefaults()
	if c.Extract.AreaMarker != "" {
		cfg.AreaMarker = c.Extract.AreaMarker
	}
	cfg.DateStrategy = extract.DateStrategy(c.Extract.DateStrategy)
	cfg.DateIndex = c.Extract.DateIndex
	return cfg
}

// RetryController converts the scrape section into a retry controller.
func (c Config) RetryController() retry.Controller {
	return retry.Controller{MaxAttempts: c.Scrape.Retries, Backoff: c.Scrape.Backoff}
}
