package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	if err := substituteEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) error {
	cfg.Catalog.Host = expandEnvVar(cfg.Catalog.Host)
	cfg.Catalog.User = expandEnvVar(cfg.Catalog.User)
	cfg.Catalog.Password = expandEnvVar(cfg.Catalog.Password)
	cfg.Catalog.Database = expandEnvVar(cfg.Catalog.Database)

	// Paths in jobs commonly point at per-user data directories
	for name, job := range cfg.Jobs {
		job.OrdersLayer = expandEnvVar(job.OrdersLayer)
		job.RevDir = expandEnvVar(job.RevDir)
		job.StagingDir = expandEnvVar(job.StagingDir)
		job.OutputDir = expandEnvVar(job.OutputDir)
		cfg.Jobs[name] = job
	}

	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
	cfg.Metrics.Textfile = expandEnvVar(cfg.Metrics.Textfile)
	cfg.Tracing.Endpoint = expandEnvVar(cfg.Tracing.Endpoint)

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// GetJob retrieves a specific job configuration by name.
func (c *Config) GetJob(name string) (*JobConfig, error) {
	job, exists := c.Jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %q not found in configuration", name)
	}
	return &job, nil
}

// ListJobs returns all job names defined in the configuration.
func (c *Config) ListJobs() []string {
	jobs := make([]string, 0, len(c.Jobs))
	for name := range c.Jobs {
		jobs = append(jobs, name)
	}
	return jobs
}

// ApplyOverrides applies CLI flag overrides to the global configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, workers int, skipVerify bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if workers > 0 {
		c.Processing.Workers = workers
	}
	if skipVerify {
		c.Output.SkipVerification = true
	}
}

// ApplyJobOverrides applies CLI flag overrides to a specific job's configuration.
// The returned ProcessingConfig combines global, job-specific, and CLI values.
func (c *Config) ApplyJobOverrides(jobName string, workers, lookaheadDays int) ProcessingConfig {
	processing := c.GetJobProcessing(jobName)

	if workers > 0 {
		processing.Workers = workers
	}

	if lookaheadDays > 0 {
		if job, ok := c.Jobs[jobName]; ok {
			job.LookaheadDays = lookaheadDays
			c.Jobs[jobName] = job
		}
	}

	return processing
}
