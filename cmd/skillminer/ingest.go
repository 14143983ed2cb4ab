package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillminer/skillminer/pkg/aggregator"
	"github.com/skillminer/skillminer/pkg/ingest"
	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/presenter"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Ingest telemetry files and mine skill-update candidates",
	Long: `Read telemetry files (JSONL record streams from shadow replay and
sentinel monitors, YAML manual annotation entries), aggregate them
into per-skill candidates and merge the candidates into the store.

Re-ingesting the same telemetry folds statistics into the existing
candidates instead of creating duplicates; review status and notes
are never touched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		config, err := loadConfig()
		if err != nil {
			return err
		}

		records, stats, err := ingest.ReadPaths(ctx, args)
		if err != nil {
			return err
		}

		presenter.Info(fmt.Sprintf("Read %d records from %d files (%d malformed skipped)",
			stats.Records, stats.Files, stats.Skipped))

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		agg := aggregator.New(config.Aggregator)

		if dryRun {
			result := agg.Aggregate(ctx, records)
			reportSkips(cmd, result)
			presenter.Success(fmt.Sprintf("Dry run: %d candidates mined, %d records skipped", len(result.Candidates), result.Skipped))
			for _, c := range result.Candidates {
				presenter.Info(fmt.Sprintf("  %s (%d selectors, %d workflows)", c.Identity(), len(c.Selectors), len(c.Workflows)))
			}
			return nil
		}

		st, err := openStore(ctx, config)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.G(ctx).WithError(closeErr).Error("failed to close candidate store")
			}
		}()

		result, err := agg.Run(ctx, st, records)
		if err != nil {
			return err
		}
		reportSkips(cmd, result)

		presenter.Success(fmt.Sprintf("Merged %d candidates (%d records skipped)", result.Merged, result.Skipped))
		return nil
	},
}

func reportSkips(cmd *cobra.Command, result aggregator.Result) {
	if result.Skipped == 0 || result.SkipErrors == nil {
		return
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		presenter.Warning(fmt.Sprintf("Skipped records:\n%v", result.SkipErrors))
	}
}

func init() {
	ingestCmd.Flags().Int("min-selector-usage", 1, "Drop selectors observed fewer times than this")
	ingestCmd.Flags().Bool("dry-run", false, "Mine candidates without writing to the store")
	ingestCmd.Flags().BoolP("verbose", "v", false, "Print each skipped record's validation error")

	viper.BindPFlag("aggregator.min_selector_usage", ingestCmd.Flags().Lookup("min-selector-usage"))
}
