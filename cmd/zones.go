package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/browser"
	"github.com/JakeFAU/listing-extractor/internal/export"
	"github.com/JakeFAU/listing-extractor/internal/logging"
	"github.com/JakeFAU/listing-extractor/internal/navigator"
	"github.com/JakeFAU/listing-extractor/internal/progress"
	"github.com/JakeFAU/listing-extractor/internal/zones"
)

// newZonesCmd scrapes municipal zoning codes and exports them as one JSON document.
func newZonesCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "zones",
		Short: "Scrape zoning codes from municipal code sites",
		Long: `Zones visits every configured zoning source in one browser session, follows
each zone link in its own tab and writes the zone names, descriptions and links
to the export backend.`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			a, err := resolveApp(ctx)
			if err != nil {
				return err
			}
			cfg := a.Config
			logger := a.Logger
			if output == "" {
				output = cfg.Zones.Output
			}

			runID := uuid.NewString()
			logger = logging.ForRun(logger, "zones", runID)
			emit := func(stage progress.Stage, note string) {
				a.Progress.Emit(progress.Event{
					RunID: runID, TS: time.Now().UTC(), Stage: stage, Command: "zones", Note: note,
				})
			}
			emit(progress.StageRunStart, "")
			defer func() {
				if err != nil {
					emit(progress.StageRunError, err.Error())
					return
				}
				emit(progress.StageRunDone, "")
			}()

			mgr := browser.NewManager(cfg.Browser, newLauncher, logger.Named("browser"))
			sess, err := mgr.Start(ctx)
			if err != nil {
				return fmt.Errorf("zones: %w", err)
			}
			defer func() {
				if terr := sess.Teardown(); terr != nil {
					logger.Warn("Session teardown failed", zap.Error(terr))
				}
			}()

			profile := mgr.Profile()
			nav := navigator.New(navigator.Config{Settle: profile.WaitRange}, logger.Named("navigator"))
			scraper := zones.New(nav, profile.WaitRange, nil, logger.Named("zones"))
			result, scrapeErr := scraper.Scrape(ctx, sess, cfg.Zones.Sources)

			exporter := export.New(a.Blobs, a.Publisher, cfg.Export.Prefix, logger.Named("export"))
			uri, exportErr := exporter.Zones(context.WithoutCancel(ctx), output, result)
			if exportErr != nil {
				logger.Error("Failed to export zones", zap.Error(exportErr))
			}
			logger.Info("Zones finished",
				zap.Int("sources", len(result)),
				zap.String("export", uri),
			)
			return errors.Join(scrapeErr, exportErr)
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "export object for the zone result (default from config)")
	return cmd
}
