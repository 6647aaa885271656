// Package config provides configuration structures and loading for accesstally.
package config

// Config represents the complete application configuration.
type Config struct {
	Catalog    DatabaseConfig       `yaml:"catalog" mapstructure:"catalog"`
	Jobs       map[string]JobConfig `yaml:"jobs" mapstructure:"jobs"`
	Selection  SelectionConfig      `yaml:"selection" mapstructure:"selection"`
	Processing ProcessingConfig     `yaml:"processing" mapstructure:"processing"`
	Output     OutputConfig         `yaml:"output" mapstructure:"output"`
	Logging    LoggingConfig        `yaml:"logging" mapstructure:"logging"`
	Metrics    MetricsConfig        `yaml:"metrics" mapstructure:"metrics"`
	Tracing    TracingConfig        `yaml:"tracing" mapstructure:"tracing"`
}

// DatabaseConfig represents the MySQL spatial catalog connection.
type DatabaseConfig struct {
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled"`
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
	OrdersTable        string `yaml:"orders_table" mapstructure:"orders_table"`
	AccessesColumn     string `yaml:"accesses_column" mapstructure:"accesses_column"`
}

// Source kinds for availability sets.
const (
	SourceLayers  = "layers"
	SourceCatalog = "catalog"
	SourceOrbit   = "orbit"
)

// JobConfig represents one access counting run.
type JobConfig struct {
	Spacecraft      []SpacecraftConfig `yaml:"spacecraft" mapstructure:"spacecraft"`
	LookaheadDays   int                `yaml:"lookahead_days" mapstructure:"lookahead_days"`
	StartDate       string             `yaml:"start_date" mapstructure:"start_date"` // YYYY-MM-DD, orbit source only
	Source          string             `yaml:"source" mapstructure:"source"`         // layers, catalog, orbit
	OrdersLayer     string             `yaml:"orders_layer" mapstructure:"orders_layer"`
	RevDir          string             `yaml:"rev_dir" mapstructure:"rev_dir"`
	RevPattern      string             `yaml:"rev_pattern" mapstructure:"rev_pattern"`
	RevTablePattern string             `yaml:"rev_table_pattern" mapstructure:"rev_table_pattern"`
	StagingDir      string             `yaml:"staging_dir" mapstructure:"staging_dir"`
	OutputDir       string             `yaml:"output_dir" mapstructure:"output_dir"`
	FeatureName     string             `yaml:"feature_name" mapstructure:"feature_name"`
	WriteCatalog    bool               `yaml:"write_catalog" mapstructure:"write_catalog"`
	Selection       *SelectionConfig   `yaml:"selection,omitempty" mapstructure:"selection"`
	Processing      *ProcessingConfig  `yaml:"processing,omitempty" mapstructure:"processing"`
}

// SpacecraftConfig identifies a spacecraft and, for the orbit source, its TLE.
type SpacecraftConfig struct {
	ID       string `yaml:"id" mapstructure:"id"`
	RevName  string `yaml:"rev_name" mapstructure:"rev_name"` // substituted for {spacecraft} in rev patterns
	TLELine1 string `yaml:"tle_line1" mapstructure:"tle_line1"`
	TLELine2 string `yaml:"tle_line2" mapstructure:"tle_line2"`
}

// LayerName returns the name used for this spacecraft in rev layer patterns.
func (s SpacecraftConfig) LayerName() string {
	if s.RevName != "" {
		return s.RevName
	}
	return s.ID
}

// SelectionConfig holds the off-nadir angle bucket thresholds in degrees.
type SelectionConfig struct {
	ONAThresholds []float64 `yaml:"ona_thresholds" mapstructure:"ona_thresholds"`
}

// ProcessingConfig represents run processing settings.
type ProcessingConfig struct {
	Workers          int     `yaml:"workers" mapstructure:"workers"`
	OrbitStepSeconds float64 `yaml:"orbit_step_seconds" mapstructure:"orbit_step_seconds"`
	CatalogBatchSize int     `yaml:"catalog_batch_size" mapstructure:"catalog_batch_size"`
}

// OutputConfig represents output layer settings.
type OutputConfig struct {
	Field              string `yaml:"field" mapstructure:"field"`
	VerificationMethod string `yaml:"verification_method" mapstructure:"verification_method"` // count, sha256, skip
	SkipVerification   bool   `yaml:"skip_verification" mapstructure:"skip_verification"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter    string  `yaml:"exporter" mapstructure:"exporter"` // stdout or otlp
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	ServiceName string  `yaml:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultONAThresholds are the five fixed off-nadir buckets of the access workflow.
var DefaultONAThresholds = []float64{10, 15, 20, 25, 30}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Catalog: DatabaseConfig{
			Enabled:            false,
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
			OrdersTable:        "orders",
			AccessesColumn:     "accesses",
		},
		Processing: ProcessingConfig{
			Workers:          1,
			OrbitStepSeconds: 30,
			CatalogBatchSize: 500,
		},
		Output: OutputConfig{
			Field:              "Accesses",
			VerificationMethod: "count",
			SkipVerification:   false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "stdout",
			ServiceName: "accesstally",
			SampleRatio: 1,
		},
	}
}

// applyDefaults fills values that cannot be preset before unmarshalling.
// Slices are left nil in DefaultConfig so a shorter list in the file replaces
// the defaults instead of being merged into them.
func (c *Config) applyDefaults() {
	if len(c.Selection.ONAThresholds) == 0 {
		c.Selection.ONAThresholds = append([]float64(nil), DefaultONAThresholds...)
	}
}

// GetJobSelection returns the selection config for a job by name, falling back to global if not set.
func (c *Config) GetJobSelection(jobName string) SelectionConfig {
	job, err := c.GetJob(jobName)
	if err != nil {
		return c.Selection
	}
	return job.GetJobSelection(c.Selection)
}

// GetJobProcessing returns the processing config for a job by name, falling back to global if not set.
func (c *Config) GetJobProcessing(jobName string) ProcessingConfig {
	job, err := c.GetJob(jobName)
	if err != nil {
		return c.Processing
	}
	return job.GetJobProcessing(c.Processing)
}

// GetJobSelection returns the selection config for a job, falling back to global if not set.
func (jc *JobConfig) GetJobSelection(global SelectionConfig) SelectionConfig {
	if jc.Selection == nil || len(jc.Selection.ONAThresholds) == 0 {
		return global
	}
	return SelectionConfig{
		ONAThresholds: append([]float64(nil), jc.Selection.ONAThresholds...),
	}
}

// GetJobProcessing returns the processing config for a job, falling back to global if not set.
func (jc *JobConfig) GetJobProcessing(global ProcessingConfig) ProcessingConfig {
	if jc.Processing == nil {
		return global
	}

	result := global
	if jc.Processing.Workers > 0 {
		result.Workers = jc.Processing.Workers
	}
	if jc.Processing.OrbitStepSeconds > 0 {
		result.OrbitStepSeconds = jc.Processing.OrbitStepSeconds
	}
	if jc.Processing.CatalogBatchSize > 0 {
		result.CatalogBatchSize = jc.Processing.CatalogBatchSize
	}
	return result
}

// SourceKind returns the job's availability source, defaulting to layers.
func (jc *JobConfig) SourceKind() string {
	if jc.Source == "" {
		return SourceLayers
	}
	return jc.Source
}

// SpacecraftIDs returns the configured spacecraft identifiers in order.
func (jc *JobConfig) SpacecraftIDs() []string {
	ids := make([]string, 0, len(jc.Spacecraft))
	for _, sc := range jc.Spacecraft {
		ids = append(ids, sc.ID)
	}
	return ids
}
