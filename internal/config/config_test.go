package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-extractor/internal/browser"
	"github.com/JakeFAU/listing-extractor/internal/extract"
	"github.com/JakeFAU/listing-extractor/internal/listing"
	"github.com/JakeFAU/listing-extractor/internal/pacing"
	"github.com/JakeFAU/listing-extractor/internal/zones"
	pkgconfig "github.com/JakeFAU/listing-extractor/pkg/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func loadFile(t *testing.T, path string) (Config, error) {
	t.Helper()
	v := viper.New()
	if err := pkgconfig.InitConfig(v, path, nil); err != nil {
		return Config{}, err
	}
	return Load(v)
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	require.Equal(t, browser.DefaultIdentityPool, cfg.Browser.IdentityPool)
	require.Equal(t, browser.DefaultWaitRange, cfg.Browser.WaitRange)
	require.Equal(t, browser.DefaultPageLoadTimeout, cfg.Browser.PageLoadTimeout)
	require.True(t, cfg.Browser.Headless)
	require.Equal(t, []string{DefaultIndexPage}, cfg.Scrape.Pages)
	require.Equal(t, 10, cfg.Scrape.Limit)
	require.Equal(t, 3, cfg.Scrape.Retries)
	require.Equal(t, listing.DefaultSelectors(), cfg.Extract.Selectors)
	require.Equal(t, StorageMemory, cfg.Storage.Backend)
	require.Equal(t, ExportLocal, cfg.Export.Backend)
	require.Equal(t, "data/exports", cfg.Export.Local.BaseDir)
	require.Len(t, cfg.Zones.Sources, len(zones.DefaultSources()))
	require.Equal(t, "zones.json", cfg.Zones.Output)

	ext := cfg.ExtractorConfig()
	require.Equal(t, extract.DatePosition, ext.DateStrategy)
	require.Equal(t, extract.DefaultDateIndex, ext.DateIndex)
	require.Equal(t, "м²", ext.AreaMarker)

	ctrl := cfg.RetryController()
	require.Equal(t, 3, ctrl.MaxAttempts)
	require.Equal(t, browser.DefaultWaitRange, ctrl.Backoff)
}

func TestLoadFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
browser:
  identity_pool: ["agent-a", "agent-b"]
  wait_range:
    min: 1s
    max: 2s
  page_load_timeout: 30s
  headless: false
  navigation_qps: 0.5
scrape:
  pages:
    - https://flatfy.ua/uk/a
    - https://flatfy.ua/uk/b
  limit: 25
  retries: 5
  backoff:
    min: 100ms
    max: 200ms
extract:
  selectors:
    title: h2.title
  date_strategy: marker
storage:
  backend: postgres
  postgres:
    dsn: postgres://u:p@localhost/listings
    table: flats
export:
  backend: gcs
  prefix: exports
  gcs:
    bucket: listing-exports
pubsub:
  project_id: demo
  topic_id: runs
metrics:
  addr: ":9090"
logging:
  development: false
zones:
  output: out/zones.json
  sources:
    - url: https://codes.example/town
      clicks: ["#toc"]
      link_selector: a.zone
      skip_words: 1
      require: Zone
      description_selectors: [".P1"]
`)
	cfg, err := loadFile(t, path)
	require.NoError(t, err)

	require.Equal(t, []string{"agent-a", "agent-b"}, cfg.Browser.IdentityPool)
	require.Equal(t, pacing.Range{Min: time.Second, Max: 2 * time.Second}, cfg.Browser.WaitRange)
	require.Equal(t, 30*time.Second, cfg.Browser.PageLoadTimeout)
	require.False(t, cfg.Browser.Headless)
	require.InDelta(t, 0.5, cfg.Browser.NavigationQPS, 1e-9)
	require.Equal(t, []string{"https://flatfy.ua/uk/a", "https://flatfy.ua/uk/b"}, cfg.Scrape.Pages)
	require.Equal(t, 25, cfg.Scrape.Limit)
	require.Equal(t, 5, cfg.Scrape.Retries)
	require.Equal(t, pacing.Range{Min: 100 * time.Millisecond, Max: 200 * time.Millisecond}, cfg.Scrape.Backoff)
	require.Equal(t, "h2.title", cfg.Extract.Selectors.Title)
	require.Equal(t, listing.DefaultSelectors().Price, cfg.Extract.Selectors.Price)
	require.Equal(t, extract.DateMarker, cfg.ExtractorConfig().DateStrategy)
	require.Equal(t, "flats", cfg.Storage.Postgres.Table)
	require.Equal(t, int32(4), cfg.Storage.Postgres.MaxConns)
	require.Equal(t, "listing-exports", cfg.Export.GCS.Bucket)
	require.Equal(t, "runs", cfg.PubSub.TopicID)
	require.Equal(t, ":9090", cfg.Metrics.Addr)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "out/zones.json", cfg.Zones.Output)
	require.Len(t, cfg.Zones.Sources, 1)
	require.Equal(t, zones.Source{
		URL:                  "https://codes.example/town",
		Clicks:               []string{"#toc"},
		LinkSelector:         "a.zone",
		SkipWords:            1,
		Require:              "Zone",
		DescriptionSelectors: []string{".P1"},
	}, cfg.Zones.Sources[0])
}

func TestLoadFileEnvOverrides(t *testing.T) {
	t.Setenv("LISTINGS_SCRAPE_LIMIT", "3")
	t.Setenv("LISTINGS_STORAGE_BACKEND", "memory")
	t.Setenv("LISTINGS_METRICS_ADDR", ":2112")

	cfg, err := loadFile(t, writeConfig(t, "storage:\n  backend: postgres\n"))
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Scrape.Limit)
	require.Equal(t, StorageMemory, cfg.Storage.Backend)
	require.Equal(t, ":2112", cfg.Metrics.Addr)
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	_, err := loadFile(t, filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	base, err := Load(viper.New())
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"scrape.retries":        func(c *Config) { c.Scrape.Retries = 0 },
		"scrape.limit":          func(c *Config) { c.Scrape.Limit = -1 },
		"scrape.backoff":        func(c *Config) { c.Scrape.Backoff = pacing.Range{Min: 2, Max: 1} },
		"browser.wait_range":    func(c *Config) { c.Browser.WaitRange = pacing.Range{Min: -1} },
		"extract.date_strategy": func(c *Config) { c.Extract.DateStrategy = "newest" },
		"extract.date_index":    func(c *Config) { c.Extract.DateIndex = -1 },
		"storage.postgres.dsn":  func(c *Config) { c.Storage.Backend = StoragePostgres },
		"storage.backend":       func(c *Config) { c.Storage.Backend = "mongo" },
		"export.gcs.bucket":     func(c *Config) { c.Export.Backend = ExportGCS },
		"export.local.base_dir": func(c *Config) { c.Export.Local.BaseDir = "" },
		"export.backend":        func(c *Config) { c.Export.Backend = "s3" },
		"pubsub.project_id":     func(c *Config) { c.PubSub.TopicID = "runs" },
		"zones.sources[0]":      func(c *Config) { c.Zones.Sources = []zones.Source{{URL: "https://x"}} },
	}
	for want, mutate := range cases {
		cfg := base
		cfg.Zones.Sources = append([]zones.Source(nil), base.Zones.Sources...)
		mutate(&cfg)
		err := cfg.Validate()
		require.Error(t, err, want)
		require.True(t, strings.Contains(err.Error(), want), "%s: %v", want, err)
	}

	none := base
	none.Export.Backend = ExportNone
	require.NoError(t, none.Validate())
}
