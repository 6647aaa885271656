package config

import (
	"strings"
	"testing"
)

func validLayersJob() JobConfig {
	return JobConfig{
		Spacecraft:    []SpacecraftConfig{{ID: "WV01"}, {ID: "WV02"}},
		LookaheadDays: 3,
		Source:        SourceLayers,
		OrdersLayer:   "/data/orders.geojson",
		RevDir:        "/data/revs",
		RevPattern:    "{spacecraft}_day{day}.geojson",
		StagingDir:    "/data/staging",
		OutputDir:     "/data/output",
		FeatureName:   "order_accesses",
	}
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.applyDefaults()
	cfg.Jobs = map[string]JobConfig{"test_job": validLayersJob()}
	return cfg
}

func assertFieldError(t *testing.T, err error, field string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error for %s", field)
	}
	if !strings.Contains(err.Error(), field) {
		t.Errorf("expected error to mention %s, got: %v", field, err)
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no validation errors, got: %v", err)
	}
}

func TestNoJobs(t *testing.T) {
	cfg := validConfig()
	cfg.Jobs = nil
	assertFieldError(t, cfg.Validate(), "jobs")
}

func TestJobValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(j *JobConfig)
		field  string
	}{
		{"no spacecraft", func(j *JobConfig) { j.Spacecraft = nil }, "jobs.test_job.spacecraft"},
		{"empty spacecraft id", func(j *JobConfig) { j.Spacecraft = []SpacecraftConfig{{}} }, "spacecraft[0].id"},
		{"duplicate spacecraft", func(j *JobConfig) { j.Spacecraft = []SpacecraftConfig{{ID: "A"}, {ID: "A"}} }, "spacecraft[1].id"},
		{"zero lookahead", func(j *JobConfig) { j.LookaheadDays = 0 }, "lookahead_days"},
		{"no orders layer", func(j *JobConfig) { j.OrdersLayer = "" }, "orders_layer"},
		{"no rev dir", func(j *JobConfig) { j.RevDir = "" }, "rev_dir"},
		{"pattern without day", func(j *JobConfig) { j.RevPattern = "{spacecraft}.geojson" }, "rev_pattern"},
		{"unknown source", func(j *JobConfig) { j.Source = "shapefile" }, "jobs.test_job.source"},
		{"no staging dir", func(j *JobConfig) { j.StagingDir = "" }, "staging_dir"},
		{"no output dir", func(j *JobConfig) { j.OutputDir = "" }, "output_dir"},
		{"output equals staging", func(j *JobConfig) { j.OutputDir = j.StagingDir }, "output_dir"},
		{"output equals staging with trailing slash", func(j *JobConfig) {
			j.StagingDir = "/out"
			j.OutputDir = "/out/"
		}, "output_dir"},
		{"output equals staging with dot segments", func(j *JobConfig) {
			j.StagingDir = "./work/out"
			j.OutputDir = "work/./out/"
		}, "output_dir"},
		{"output equals staging through parent segment", func(j *JobConfig) {
			j.StagingDir = "/data/out"
			j.OutputDir = "/data/staging/../out"
		}, "output_dir"},
		{"no feature name", func(j *JobConfig) { j.FeatureName = "" }, "feature_name"},
		{"write catalog without catalog", func(j *JobConfig) { j.WriteCatalog = true }, "write_catalog"},
		{"catalog source without catalog", func(j *JobConfig) {
			j.Source = SourceCatalog
			j.RevTablePattern = "rev_{spacecraft}_{day}"
		}, "jobs.test_job.source"},
		{"orbit without tle", func(j *JobConfig) { j.Source = SourceOrbit }, "tle_line1"},
		{"orbit bad start date", func(j *JobConfig) {
			j.Source = SourceOrbit
			j.StartDate = "03/01/2024"
			for i := range j.Spacecraft {
				j.Spacecraft[i].TLELine1 = "1"
				j.Spacecraft[i].TLELine2 = "2"
			}
		}, "start_date"},
		{"descending job thresholds", func(j *JobConfig) {
			j.Selection = &SelectionConfig{ONAThresholds: []float64{20, 10}}
		}, "jobs.test_job.selection.ona_thresholds[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			job := validLayersJob()
			tt.mutate(&job)
			cfg.Jobs["test_job"] = job
			assertFieldError(t, cfg.Validate(), tt.field)
		})
	}
}

func TestJobValidation_StagingInsideOutput(t *testing.T) {
	cfg := validConfig()
	job := validLayersJob()
	job.OutputDir = "/data/out"
	job.StagingDir = "/data/out/staging"
	cfg.Jobs["test_job"] = job

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected staging inside output to be accepted, got: %v", err)
	}
}

func TestCatalogValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.Enabled = true

	err := cfg.Validate()
	assertFieldError(t, err, "catalog.host")
	assertFieldError(t, err, "catalog.user")
	assertFieldError(t, err, "catalog.database")

	cfg.Catalog.Host = "db"
	cfg.Catalog.User = "gis"
	cfg.Catalog.Database = "tasking"
	cfg.Catalog.TLS = "sometimes"
	assertFieldError(t, cfg.Validate(), "catalog.tls")

	cfg.Catalog.TLS = "required"
	job := validLayersJob()
	job.Source = SourceCatalog
	job.RevTablePattern = "rev_{spacecraft}_{day}"
	job.WriteCatalog = true
	cfg.Jobs["test_job"] = job
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected catalog job to validate, got: %v", err)
	}
}

func TestSelectionValidation(t *testing.T) {
	tests := []struct {
		name       string
		thresholds []float64
		field      string
	}{
		{"empty", nil, "selection.ona_thresholds"},
		{"negative", []float64{-1, 10}, "selection.ona_thresholds[0]"},
		{"above ninety", []float64{10, 95}, "selection.ona_thresholds[1]"},
		{"duplicate", []float64{10, 10}, "selection.ona_thresholds[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Selection.ONAThresholds = tt.thresholds
			assertFieldError(t, cfg.Validate(), tt.field)
		})
	}
}

func TestProcessingValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Processing.Workers = 0
	cfg.Processing.OrbitStepSeconds = 0
	cfg.Processing.CatalogBatchSize = -1

	err := cfg.Validate()
	assertFieldError(t, err, "processing.workers")
	assertFieldError(t, err, "processing.orbit_step_seconds")
	assertFieldError(t, err, "processing.catalog_batch_size")
}

func TestOutputValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Output.Field = ""
	cfg.Output.VerificationMethod = "md5"

	err := cfg.Validate()
	assertFieldError(t, err, "output.field")
	assertFieldError(t, err, "output.verification_method")
}

func TestLoggingValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	assertFieldError(t, err, "logging.level")
	assertFieldError(t, err, "logging.format")
}

func TestTracingValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Tracing.Exporter = "zipkin"
	cfg.Tracing.SampleRatio = 2
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled tracing should not be validated, got: %v", err)
	}

	cfg.Tracing.Enabled = true
	err := cfg.Validate()
	assertFieldError(t, err, "tracing.exporter")
	assertFieldError(t, err, "tracing.sample_ratio")
}

func TestValidationErrorsFormat(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Message: "first"},
		{Field: "b", Message: "second"},
	}
	msg := errs.Error()
	if !strings.HasPrefix(msg, "validation failed:") {
		t.Errorf("unexpected prefix: %s", msg)
	}
	if !strings.Contains(msg, "a: first") || !strings.Contains(msg, "b: second") {
		t.Errorf("expected both errors in message: %s", msg)
	}
	if (ValidationErrors{}).Error() != "" {
		t.Error("expected empty message for no errors")
	}
}
