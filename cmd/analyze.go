package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/analytics"
	"github.com/JakeFAU/listing-extractor/internal/logging"
	"github.com/JakeFAU/listing-extractor/internal/progress"
)

// newAnalyzeCmd labels stored listings by price density and ranks locations.
func newAnalyzeCmd() *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Categorize stored listings by price per square meter",
		Long: `Analyze reads every stored listing, computes its price per square meter,
labels it Cheap, Moderate or Expensive against the 33rd and 67th percentiles and
logs the most expensive locations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := resolveApp(ctx)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("top") {
				topN = a.Config.Analyze.TopN
			}

			runID := uuid.NewString()
			logger := logging.ForRun(a.Logger, "analyze", runID)
			emit := func(stage progress.Stage, note string) {
				a.Progress.Emit(progress.Event{
					RunID: runID, TS: time.Now().UTC(), Stage: stage, Command: "analyze", Note: note,
				})
			}
			emit(progress.StageRunStart, "")

			summary, err := analytics.New(a.Documents, topN, logger.Named("analytics")).Run(ctx)
			if err != nil {
				emit(progress.StageRunError, err.Error())
				return fmt.Errorf("analyze: %w", err)
			}
			emit(progress.StageRunDone, "")
			logger.Info("Analysis finished",
				zap.Int("categorized", summary.Categorized),
				zap.Int("skipped", summary.Skipped),
				zap.Float64("low_threshold", summary.Thresholds.Low),
				zap.Float64("high_threshold", summary.Thresholds.High),
			)
			return nil
		},
	}
	cmd.Flags().IntVar(&topN, "top", analytics.DefaultTopN, "number of locations to rank")
	return cmd
}
