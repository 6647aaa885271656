package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/accesstally/internal/config"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile       string
	logLevel      string
	logFormat     string
	workers       int
	lookaheadDays int
	skipVerify    bool
)

var rootCmd = &cobra.Command{
	Use:   "accesstally",
	Short: "Satellite order access counter",
	Long: `Counts, for every collection order, how many spacecraft/day combinations
of the lookahead window can collect it, and writes the count into the
output layer as an integer attribute.

Availability sources:
  - layers:  rev GeoJSON layers, one per spacecraft and day
  - catalog: rev tables in a MySQL spatial catalog
  - orbit:   SGP4 propagation of spacecraft TLEs`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "accesstally.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Processing overrides
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0,
		"Override number of concurrent availability lookups")
	rootCmd.PersistentFlags().IntVar(&lookaheadDays, "lookahead-days", 0,
		"Override the number of days in the lookahead window")

	rootCmd.PersistentFlags().BoolVar(&skipVerify, "skip-verify", false,
		"Skip verification of the staged output layer")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel      string
	LogFormat     string
	Workers       int
	LookaheadDays int
	SkipVerify    bool
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:      logLevel,
		LogFormat:     logFormat,
		Workers:       workers,
		LookaheadDays: lookaheadDays,
		SkipVerify:    skipVerify,
	}
}

// loadConfig reads the config file and applies the global CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	o := GetCLIOverrides()
	cfg.ApplyOverrides(o.LogLevel, o.LogFormat, o.Workers, o.SkipVerify)
	return cfg, nil
}
