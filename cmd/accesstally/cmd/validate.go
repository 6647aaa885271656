package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/accesstally/internal/config"
	"github.com/dbsmedya/accesstally/internal/database"
	"github.com/dbsmedya/accesstally/internal/logger"
	"github.com/dbsmedya/accesstally/internal/runner"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and run preflight checks",
	Long: `Validate checks the configuration file and runs preflight checks
for every job to ensure it can run.

Checks performed:
  - Configuration syntax and required fields
  - Orders layer presence and order attributes
  - Rev directory and per-day rev layers (missing days are reported)
  - Catalog connectivity, tables and spatial columns
  - TLE parsing for orbit jobs
  - Job lock state when counts are written back to the catalog

Example:
  accesstally validate --config accesstally.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cmd.Printf("\n=== Configuration Validation ===\n")
	cmd.Printf("Config file: %s\n", configFile)
	cmd.Printf("Jobs found: %d\n\n", len(cfg.Jobs))

	if err := cfg.Validate(); err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			for _, e := range verrs {
				cmd.Printf("❌ %s\n", e.Error())
			}
		}
		return fmt.Errorf("configuration is invalid")
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	var db *sql.DB
	if cfg.Catalog.Enabled {
		dbManager := database.NewManager(&cfg.Catalog, log)
		if err := dbManager.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to catalog: %w", err)
		}
		defer dbManager.Close()
		db = dbManager.Catalog
	}

	checker, err := runner.NewPreflightChecker(afero.NewOsFs(), db, cfg.Catalog.Database, log)
	if err != nil {
		return fmt.Errorf("failed to create preflight checker: %w", err)
	}

	jobNames := cfg.ListJobs()
	sort.Strings(jobNames)

	hasErrors := false
	for _, jobName := range jobNames {
		job, _ := cfg.GetJob(jobName)
		cmd.Printf("--- Job: %s ---\n", jobName)
		cmd.Printf("Source: %s\n", jobSource(job))
		cmd.Printf("Spacecraft: %d, lookahead: %d days\n", len(job.Spacecraft), job.LookaheadDays)

		if err := checker.RunAllChecks(ctx, cfg, jobName); err != nil {
			cmd.Printf("❌ Preflight checks failed: %v\n\n", err)
			hasErrors = true
			continue
		}

		cmd.Printf("✅ All checks passed\n\n")
	}

	if hasErrors {
		return fmt.Errorf("validation failed for one or more jobs")
	}

	cmd.Println("=== Validation Complete ===")
	cmd.Println("✅ All jobs validated successfully")
	return nil
}
