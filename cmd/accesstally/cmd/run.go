package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/accesstally/internal/config"
	"github.com/dbsmedya/accesstally/internal/database"
	"github.com/dbsmedya/accesstally/internal/logger"
	"github.com/dbsmedya/accesstally/internal/observability"
	"github.com/dbsmedya/accesstally/internal/report"
	"github.com/dbsmedya/accesstally/internal/runner"
)

var (
	runJob     string
	runNoColor bool
	runTop     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Count order accesses and publish the output layer",
	Long: `Run collects the availability set of every spacecraft and day of the
lookahead window, counts the accesses of each order and publishes the
annotated output layer.

The run follows these steps:
  1. Load the orders layer and build the availability source
  2. Collect availability sets, skipping keys whose source is absent
  3. Count accesses per order
  4. Stage the annotated layer and verify it (count or SHA256)
  5. Clear the output directory and publish the staged layer
  6. Optionally write the counts back to the catalog under a job lock

Example:
  accesstally run --config accesstally.yaml --job nightly`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeJob(cmd, runJob, false)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runJob, "job", "j", "",
		"Job name from configuration file (required)")
	runCmd.MarkFlagRequired("job")
	addReportFlags(runCmd)

	rootCmd.AddCommand(runCmd)
}

func addReportFlags(c *cobra.Command) {
	c.Flags().BoolVar(&runNoColor, "no-color", false, "Disable colored report output")
	c.Flags().IntVar(&runTop, "top", 10, "Number of most accessible orders listed in the report")
}

// executeJob runs jobName end to end. dryRun stops after counting.
func executeJob(cmd *cobra.Command, jobName string, dryRun bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	overrides := GetCLIOverrides()
	if _, err := cfg.GetJob(jobName); err != nil {
		return err
	}
	processing := cfg.ApplyJobOverrides(jobName, overrides.Workers, overrides.LookaheadDays)

	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Infow("Starting access tally",
		"job", jobName,
		"config", GetConfigFile(),
		"dry_run", dryRun,
	)

	ctx, stop := database.SetupSignalHandler(context.Background(), func(sig os.Signal) {
		log.Warnw("Received shutdown signal, cancelling run", "signal", sig.String())
	})
	defer stop()

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, os.Stderr, log)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	metrics, err := observability.NewRunMetrics(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	var dbManager *database.Manager
	if cfg.Catalog.Enabled {
		dbManager = database.NewManager(&cfg.Catalog, log)
		defer dbManager.Close()
	}

	r, err := runner.New(cfg, jobName, runner.Options{
		Logger:    log,
		DBManager: dbManager,
		Metrics:   metrics,
		DryRun:    dryRun,
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}
	r.UpdateProcessingConfig(processing)

	if err := r.Initialize(ctx); err != nil {
		return fmt.Errorf("runner initialization failed: %w", err)
	}

	result, err := r.Execute(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Run cancelled by user")
			return nil
		}
		return fmt.Errorf("run failed: %w", err)
	}

	return writeReport(cmd, result)
}

func writeReport(cmd *cobra.Command, result *runner.Result) error {
	opts := report.DefaultOptions()
	opts.Color = !runNoColor
	opts.Top = runTop

	return report.New(opts).Write(cmd.OutOrStdout(), report.Summary{
		Job:          result.JobName,
		RunID:        result.RunID,
		Source:       result.Source,
		DryRun:       result.DryRun,
		Availability: result.Availability,
		Skipped:      result.Skipped,
		Counts:       result.Counts,
		OutputPath:   result.OutputPath,
	})
}

// jobSource describes where a job reads availability from.
func jobSource(job *config.JobConfig) string {
	switch job.SourceKind() {
	case config.SourceLayers:
		return fmt.Sprintf("layers (%s/%s)", job.RevDir, job.RevPattern)
	case config.SourceCatalog:
		return fmt.Sprintf("catalog (%s)", job.RevTablePattern)
	default:
		return job.SourceKind()
	}
}
