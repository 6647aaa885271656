package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var listJobsCmd = &cobra.Command{
	Use:   "list-jobs",
	Short: "List all jobs defined in configuration",
	Long: `List-jobs displays all access tally jobs defined in the configuration
file along with their basic settings.

Example:
  accesstally list-jobs --config accesstally.yaml`,
	RunE: runListJobs,
}

func init() {
	rootCmd.AddCommand(listJobsCmd)
}

func runListJobs(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	jobNames := cfg.ListJobs()
	if len(jobNames) == 0 {
		cmd.Printf("No jobs defined in %s\n", configFile)
		return nil
	}

	// Sort job names for consistent output
	sort.Strings(jobNames)

	cmd.Printf("Jobs defined in %s:\n\n", configFile)

	for i, jobName := range jobNames {
		job, err := cfg.GetJob(jobName)
		if err != nil {
			return fmt.Errorf("failed to get job %q: %w", jobName, err)
		}

		cmd.Printf("%d. %s\n", i+1, jobName)
		cmd.Printf("   Spacecraft:    %s\n", strings.Join(job.SpacecraftIDs(), ", "))
		cmd.Printf("   Lookahead:     %d day(s)\n", job.LookaheadDays)
		cmd.Printf("   Source:        %s\n", jobSource(job))
		cmd.Printf("   Orders:        %s\n", job.OrdersLayer)
		cmd.Printf("   Output:        %s/%s\n", job.OutputDir, job.FeatureName)

		if job.WriteCatalog {
			cmd.Printf("   Catalog:       write back to %s.%s\n", cfg.Catalog.OrdersTable, cfg.Catalog.AccessesColumn)
		}

		if job.Selection != nil && len(job.Selection.ONAThresholds) > 0 {
			cmd.Printf("   Selection:     Custom (ona_thresholds=%v)\n", job.Selection.ONAThresholds)
		}

		if job.Processing != nil {
			cmd.Printf("   Processing:    Custom (workers=%d)\n", job.Processing.Workers)
		}

		// Add spacing between jobs
		if i < len(jobNames)-1 {
			cmd.Println()
		}
	}

	cmd.Printf("\nTotal: %d job(s)\n", len(jobNames))
	return nil
}
