package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test catalog defaults
	if cfg.Catalog.Enabled {
		t.Errorf("expected catalog disabled by default")
	}
	if cfg.Catalog.Port != 3306 {
		t.Errorf("expected catalog port 3306, got %d", cfg.Catalog.Port)
	}
	if cfg.Catalog.TLS != "preferred" {
		t.Errorf("expected catalog TLS 'preferred', got %s", cfg.Catalog.TLS)
	}
	if cfg.Catalog.OrdersTable != "orders" {
		t.Errorf("expected orders table 'orders', got %s", cfg.Catalog.OrdersTable)
	}

	// Test processing defaults
	if cfg.Processing.Workers != 1 {
		t.Errorf("expected workers 1, got %d", cfg.Processing.Workers)
	}
	if cfg.Processing.OrbitStepSeconds != 30 {
		t.Errorf("expected orbit_step_seconds 30, got %v", cfg.Processing.OrbitStepSeconds)
	}

	// Test output defaults
	if cfg.Output.Field != "Accesses" {
		t.Errorf("expected output field 'Accesses', got %s", cfg.Output.Field)
	}
	if cfg.Output.VerificationMethod != "count" {
		t.Errorf("expected verification method 'count', got %s", cfg.Output.VerificationMethod)
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected logging level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected logging format 'json', got %s", cfg.Logging.Format)
	}

	// Thresholds are filled after unmarshal
	if len(cfg.Selection.ONAThresholds) != 0 {
		t.Errorf("expected thresholds unset before applyDefaults, got %v", cfg.Selection.ONAThresholds)
	}
	cfg.applyDefaults()
	if len(cfg.Selection.ONAThresholds) != 5 {
		t.Errorf("expected 5 default thresholds, got %v", cfg.Selection.ONAThresholds)
	}
}

func TestApplyDefaultsDoesNotAliasDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.applyDefaults()
	cfg.Selection.ONAThresholds[0] = 99

	if DefaultONAThresholds[0] == 99 {
		t.Fatal("applyDefaults must copy DefaultONAThresholds")
	}
}

func TestSpacecraftLayerName(t *testing.T) {
	if got := (SpacecraftConfig{ID: "WV01"}).LayerName(); got != "WV01" {
		t.Errorf("expected WV01, got %s", got)
	}
	if got := (SpacecraftConfig{ID: "WV01", RevName: "wv1"}).LayerName(); got != "wv1" {
		t.Errorf("expected wv1, got %s", got)
	}
}

func TestJobSourceKind(t *testing.T) {
	job := JobConfig{}
	if job.SourceKind() != SourceLayers {
		t.Errorf("expected default source %q, got %q", SourceLayers, job.SourceKind())
	}
	job.Source = SourceOrbit
	if job.SourceKind() != SourceOrbit {
		t.Errorf("expected source %q, got %q", SourceOrbit, job.SourceKind())
	}
}

func TestGetJobProcessing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jobs = map[string]JobConfig{
		"plain": {},
		"custom": {
			Processing: &ProcessingConfig{Workers: 4, CatalogBatchSize: 50},
		},
	}

	plain := cfg.GetJobProcessing("plain")
	if plain.Workers != 1 {
		t.Errorf("expected global workers 1, got %d", plain.Workers)
	}

	custom := cfg.GetJobProcessing("custom")
	if custom.Workers != 4 {
		t.Errorf("expected job workers 4, got %d", custom.Workers)
	}
	if custom.CatalogBatchSize != 50 {
		t.Errorf("expected job catalog_batch_size 50, got %d", custom.CatalogBatchSize)
	}
	if custom.OrbitStepSeconds != 30 {
		t.Errorf("expected inherited orbit_step_seconds 30, got %v", custom.OrbitStepSeconds)
	}

	missing := cfg.GetJobProcessing("missing")
	if missing.Workers != 1 {
		t.Errorf("expected global processing for missing job, got %d", missing.Workers)
	}
}

func TestGetJobSelection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.applyDefaults()
	cfg.Jobs = map[string]JobConfig{
		"plain":  {},
		"custom": {Selection: &SelectionConfig{ONAThresholds: []float64{12, 24}}},
		"empty":  {Selection: &SelectionConfig{}},
	}

	if got := cfg.GetJobSelection("plain").ONAThresholds; len(got) != 5 {
		t.Errorf("expected global thresholds, got %v", got)
	}
	if got := cfg.GetJobSelection("custom").ONAThresholds; len(got) != 2 || got[1] != 24 {
		t.Errorf("expected job thresholds [12 24], got %v", got)
	}
	if got := cfg.GetJobSelection("empty").ONAThresholds; len(got) != 5 {
		t.Errorf("expected global thresholds for empty override, got %v", got)
	}
}

func TestSpacecraftIDs(t *testing.T) {
	job := JobConfig{Spacecraft: []SpacecraftConfig{{ID: "WV01"}, {ID: "WV02"}, {ID: "GE01"}}}
	ids := job.SpacecraftIDs()
	if len(ids) != 3 || ids[0] != "WV01" || ids[2] != "GE01" {
		t.Errorf("unexpected spacecraft ids %v", ids)
	}
}
