package cmd

import (
	"github.com/spf13/cobra"
)

var dryrunJob string

var dryrunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Count order accesses without writing any output",
	Long: `Dry-run collects availability and counts accesses exactly like run,
then prints the report without staging, publishing or writing back to
the catalog.

The dry-run shows:
  - Availability set size per spacecraft and day
  - Keys skipped because their source is absent
  - Access count histogram and the most accessible orders

Example:
  accesstally dry-run --config accesstally.yaml --job nightly`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeJob(cmd, dryrunJob, true)
	},
}

func init() {
	dryrunCmd.Flags().StringVarP(&dryrunJob, "job", "j", "",
		"Job name from configuration file (required)")
	dryrunCmd.MarkFlagRequired("job")
	addReportFlags(dryrunCmd)

	rootCmd.AddCommand(dryrunCmd)
}
