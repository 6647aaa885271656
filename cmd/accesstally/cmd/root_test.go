package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetConfigFile(t *testing.T) {
	originalCfgFile := cfgFile
	defer func() {
		cfgFile = originalCfgFile
	}()

	tests := []struct {
		name     string
		cfgValue string
		want     string
	}{
		{name: "empty", cfgValue: "", want: ""},
		{name: "custom config file", cfgValue: "/etc/accesstally/prod.yaml", want: "/etc/accesstally/prod.yaml"},
		{name: "config file with spaces", cfgValue: "/path/to/my config.yaml", want: "/path/to/my config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgFile = tt.cfgValue
			assert.Equal(t, tt.want, GetConfigFile())
		})
	}
}

func TestGetCLIOverrides(t *testing.T) {
	originalLogLevel := logLevel
	originalLogFormat := logFormat
	originalWorkers := workers
	originalLookahead := lookaheadDays
	originalSkipVerify := skipVerify
	defer func() {
		logLevel = originalLogLevel
		logFormat = originalLogFormat
		workers = originalWorkers
		lookaheadDays = originalLookahead
		skipVerify = originalSkipVerify
	}()

	tests := []struct {
		name      string
		logLevel  string
		logFormat string
		workers   int
		lookahead int
		skip      bool
		want      CLIOverrides
	}{
		{
			name: "empty overrides",
			want: CLIOverrides{},
		},
		{
			name:      "all overrides",
			logLevel:  "debug",
			logFormat: "text",
			workers:   8,
			lookahead: 14,
			skip:      true,
			want: CLIOverrides{
				LogLevel:      "debug",
				LogFormat:     "text",
				Workers:       8,
				LookaheadDays: 14,
				SkipVerify:    true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logLevel = tt.logLevel
			logFormat = tt.logFormat
			workers = tt.workers
			lookaheadDays = tt.lookahead
			skipVerify = tt.skip
			assert.Equal(t, tt.want, GetCLIOverrides())
		})
	}
}

func TestRootPersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()
	for _, name := range []string{"config", "log-level", "log-format", "workers", "lookahead-days", "skip-verify"} {
		assert.NotNil(t, flags.Lookup(name), "missing flag %s", name)
	}
	assert.Equal(t, "accesstally.yaml", flags.Lookup("config").DefValue)
	assert.Equal(t, "c", flags.Lookup("config").Shorthand)
}

func TestRootSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "dry-run", "validate", "list-jobs", "version"} {
		assert.True(t, names[want], "%s command should be added to root command", want)
	}
}
