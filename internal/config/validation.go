package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// StartDateLayout is the layout of jobs.<name>.start_date.
const StartDateLayout = "2006-01-02"

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if c.Catalog.Enabled {
		errors = append(errors, c.validateCatalog()...)
	}

	if len(c.Jobs) == 0 {
		errors = append(errors, ValidationError{
			Field:   "jobs",
			Message: "at least one job must be defined",
		})
	}
	for name, job := range c.Jobs {
		errors = append(errors, c.validateJob(name, &job)...)
	}

	errors = append(errors, validateSelection("selection", &c.Selection)...)
	errors = append(errors, c.validateProcessing()...)
	errors = append(errors, c.validateOutput()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateTracing()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateCatalog() ValidationErrors {
	var errors ValidationErrors
	db := &c.Catalog

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "catalog.host",
			Message: "host is required when catalog is enabled",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "catalog.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   "catalog.user",
			Message: "user is required when catalog is enabled",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "catalog.database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   "catalog.tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "catalog.max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "catalog.max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	if db.OrdersTable == "" {
		errors = append(errors, ValidationError{
			Field:   "catalog.orders_table",
			Message: "orders_table is required",
		})
	}

	if db.AccessesColumn == "" {
		errors = append(errors, ValidationError{
			Field:   "catalog.accesses_column",
			Message: "accesses_column is required",
		})
	}

	return errors
}

func (c *Config) validateJob(name string, job *JobConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("jobs.%s", name)

	if len(job.Spacecraft) == 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".spacecraft",
			Message: "at least one spacecraft is required",
		})
	}

	seen := make(map[string]bool)
	for i, sc := range job.Spacecraft {
		scPrefix := fmt.Sprintf("%s.spacecraft[%d]", prefix, i)
		if sc.ID == "" {
			errors = append(errors, ValidationError{
				Field:   scPrefix + ".id",
				Message: "id is required",
			})
			continue
		}
		if seen[sc.ID] {
			errors = append(errors, ValidationError{
				Field:   scPrefix + ".id",
				Message: fmt.Sprintf("duplicate spacecraft %q", sc.ID),
			})
		}
		seen[sc.ID] = true

		if job.SourceKind() == SourceOrbit && (sc.TLELine1 == "" || sc.TLELine2 == "") {
			errors = append(errors, ValidationError{
				Field:   scPrefix + ".tle_line1",
				Message: "tle_line1 and tle_line2 are required for the orbit source",
			})
		}
	}

	if job.LookaheadDays <= 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".lookahead_days",
			Message: "lookahead_days must be positive",
		})
	}

	if job.OrdersLayer == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".orders_layer",
			Message: "orders_layer is required",
		})
	}

	switch job.SourceKind() {
	case SourceLayers:
		if job.RevDir == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".rev_dir",
				Message: "rev_dir is required for the layers source",
			})
		}
		if !strings.Contains(job.RevPattern, "{spacecraft}") || !strings.Contains(job.RevPattern, "{day}") {
			errors = append(errors, ValidationError{
				Field:   prefix + ".rev_pattern",
				Message: "rev_pattern must contain {spacecraft} and {day}",
			})
		}
	case SourceCatalog:
		if !c.Catalog.Enabled {
			errors = append(errors, ValidationError{
				Field:   prefix + ".source",
				Message: "catalog source requires catalog.enabled",
			})
		}
		if !strings.Contains(job.RevTablePattern, "{spacecraft}") || !strings.Contains(job.RevTablePattern, "{day}") {
			errors = append(errors, ValidationError{
				Field:   prefix + ".rev_table_pattern",
				Message: "rev_table_pattern must contain {spacecraft} and {day}",
			})
		}
	case SourceOrbit:
		if job.StartDate != "" {
			if _, err := time.Parse(StartDateLayout, job.StartDate); err != nil {
				errors = append(errors, ValidationError{
					Field:   prefix + ".start_date",
					Message: "start_date must be formatted YYYY-MM-DD",
				})
			}
		}
	default:
		errors = append(errors, ValidationError{
			Field:   prefix + ".source",
			Message: "source must be 'layers', 'catalog', or 'orbit'",
		})
	}

	if job.StagingDir == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".staging_dir",
			Message: "staging_dir is required",
		})
	}

	if job.OutputDir == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".output_dir",
			Message: "output_dir is required",
		})
	} else if samePath(job.OutputDir, job.StagingDir) {
		errors = append(errors, ValidationError{
			Field:   prefix + ".output_dir",
			Message: "output_dir must differ from staging_dir",
		})
	}

	if job.FeatureName == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".feature_name",
			Message: "feature_name is required",
		})
	}

	if job.WriteCatalog && !c.Catalog.Enabled {
		errors = append(errors, ValidationError{
			Field:   prefix + ".write_catalog",
			Message: "write_catalog requires catalog.enabled",
		})
	}

	if job.Selection != nil && len(job.Selection.ONAThresholds) > 0 {
		errors = append(errors, validateSelection(prefix+".selection", job.Selection)...)
	}

	return errors
}

func validateSelection(prefix string, sel *SelectionConfig) ValidationErrors {
	var errors ValidationErrors

	if len(sel.ONAThresholds) == 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".ona_thresholds",
			Message: "at least one threshold is required",
		})
		return errors
	}

	for i, t := range sel.ONAThresholds {
		if t < 0 || t > 90 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.ona_thresholds[%d]", prefix, i),
				Message: "threshold must be between 0 and 90 degrees",
			})
		}
		if i > 0 && t <= sel.ONAThresholds[i-1] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.ona_thresholds[%d]", prefix, i),
				Message: "thresholds must be strictly ascending",
			})
		}
	}

	return errors
}

func (c *Config) validateProcessing() ValidationErrors {
	var errors ValidationErrors

	if c.Processing.Workers <= 0 {
		errors = append(errors, ValidationError{
			Field:   "processing.workers",
			Message: "workers must be positive",
		})
	}

	if c.Processing.OrbitStepSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "processing.orbit_step_seconds",
			Message: "orbit_step_seconds must be positive",
		})
	}

	if c.Processing.CatalogBatchSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "processing.catalog_batch_size",
			Message: "catalog_batch_size must be positive",
		})
	}

	return errors
}

func (c *Config) validateOutput() ValidationErrors {
	var errors ValidationErrors

	if c.Output.Field == "" {
		errors = append(errors, ValidationError{
			Field:   "output.field",
			Message: "field is required",
		})
	}

	validMethods := map[string]bool{"count": true, "sha256": true, "skip": true, "": true}
	if !validMethods[c.Output.VerificationMethod] {
		errors = append(errors, ValidationError{
			Field:   "output.verification_method",
			Message: "verification_method must be 'count', 'sha256', or 'skip'",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}

func (c *Config) validateTracing() ValidationErrors {
	var errors ValidationErrors

	if !c.Tracing.Enabled {
		return errors
	}

	validExporters := map[string]bool{"stdout": true, "otlp": true, "": true}
	if !validExporters[c.Tracing.Exporter] {
		errors = append(errors, ValidationError{
			Field:   "tracing.exporter",
			Message: "exporter must be 'stdout' or 'otlp'",
		})
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errors = append(errors, ValidationError{
			Field:   "tracing.sample_ratio",
			Message: "sample_ratio must be between 0 and 1",
		})
	}

	return errors
}

// samePath reports whether a and b name the same directory once cleaned and,
// where possible, made absolute. Publishing clears the files directly inside
// the output directory, so it must never be the staging directory.
func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return absClean(a) == absClean(b)
}

func absClean(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
