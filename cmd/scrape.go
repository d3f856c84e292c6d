package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/browser"
	"github.com/JakeFAU/listing-extractor/internal/export"
	"github.com/JakeFAU/listing-extractor/internal/extract"
	"github.com/JakeFAU/listing-extractor/internal/locator"
	"github.com/JakeFAU/listing-extractor/internal/navigator"
	"github.com/JakeFAU/listing-extractor/internal/pipeline"
	"github.com/JakeFAU/listing-extractor/internal/sink"
)

// newScrapeCmd extracts listings from index pages, stores them and exports the run report.
func newScrapeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [index-url...]",
		Short: "Extract listings from index pages and store them",
		Long: `Scrape opens one browser session per index page, extracts up to --limit
listings with bounded retries, stores every complete record and writes the run
report to the export backend. URLs given as arguments replace scrape.pages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := resolveApp(ctx)
			if err != nil {
				return err
			}
			cfg := a.Config
			logger := a.Logger
			pages := cfg.Scrape.Pages
			if len(args) > 0 {
				pages = args
			}
			if len(pages) == 0 {
				return errors.New("no index pages to scrape")
			}

			mgr := browser.NewManager(cfg.Browser, newLauncher, logger.Named("browser"))
			profile := mgr.Profile()
			extractCfg := cfg.ExtractorConfig()
			retryCtrl := cfg.RetryController()

			runner := pipeline.New(
				pipeline.Config{Limit: cfg.Scrape.Limit, Retry: retryCtrl, Progress: a.Progress},
				pipeline.SessionsFrom(mgr),
				locator.New(extractCfg.Selectors.Listing, profile.WaitRange, nil, logger.Named("locator")),
				extract.New(extractCfg, logger.Named("extract")),
				navigator.New(navigator.Config{
					DetailTrigger: extractCfg.Selectors.DetailTrigger,
					Settle:        profile.WaitRange,
				}, logger.Named("navigator")),
				sink.New(a.Documents, logger.Named("sink")),
				logger.Named("pipeline"),
			)

			logger.Info("Starting scrape", zap.Strings("pages", pages), zap.Int("limit", cfg.Scrape.Limit))
			report, runErr := runner.Run(ctx, pages)

			// The report is exported even when the run ended early or was interrupted.
			exporter := export.New(a.Blobs, a.Publisher, cfg.Export.Prefix, logger.Named("export"))
			summary, exportErr := exporter.Run(context.WithoutCancel(ctx), report)
			if exportErr != nil {
				logger.Error("Failed to export run", zap.String("run_id", report.RunID), zap.Error(exportErr))
			}
			logger.Info("Scrape finished",
				zap.String("run_id", summary.RunID),
				zap.Int("pages", summary.Pages),
				zap.Int("stored", summary.Stored),
				zap.Int("skipped", summary.Skipped),
				zap.String("export", summary.Export),
			)
			if runErr != nil {
				return fmt.Errorf("scrape: %w", runErr)
			}
			return exportErr
		},
	}

	cmd.Flags().Int("limit", 0, "maximum listings per index page (0 means no cap; default from config)")
	cmd.Flags().Int("retries", 0, "attempts per listing (default from config)")
	_ = v.BindPFlag("scrape.limit", cmd.Flags().Lookup("limit"))
	_ = v.BindPFlag("scrape.retries", cmd.Flags().Lookup("retries"))
	return cmd
}
