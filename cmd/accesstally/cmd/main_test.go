package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	// Execute calls os.Exit(1) on error, so only its presence is checked
	assert.NotNil(t, Execute)
}

func TestVersionVariables(t *testing.T) {
	assert.NotEmpty(t, Version, "Version should not be empty")
	assert.NotEmpty(t, Commit, "Commit should not be empty")
}

const testOrders = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"order_id": "A", "max_ona": 12}, "geometry": {"type": "Point", "coordinates": [5, 5]}},
    {"type": "Feature", "properties": {"order_id": "B", "max_ona": 22}, "geometry": {"type": "Point", "coordinates": [15, 5]}},
    {"type": "Feature", "properties": {"order_id": "C", "max_ona": 30}, "geometry": {"type": "Point", "coordinates": [50, 5]}}
  ]
}`

const testRev = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ona": 8},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]}},
    {"type": "Feature", "properties": {"ona": 18},
     "geometry": {"type": "Polygon", "coordinates": [[[10,0],[20,0],[20,10],[10,10],[10,0]]]}}
  ]
}`

// writeWorkspace creates a layers job named nightly under a temp dir and
// returns the config path and the directory.
func writeWorkspace(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"orders.geojson":         testOrders,
		"revs/WV01_day0.geojson": testRev,
		"revs/WV01_day1.geojson": testRev,
		"revs/WV02_day0.geojson": testRev,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	configContent := `jobs:
  nightly:
    spacecraft:
      - id: WV01
      - id: WV02
    lookahead_days: 2
    source: layers
    orders_layer: ` + filepath.Join(dir, "orders.geojson") + `
    rev_dir: ` + filepath.Join(dir, "revs") + `
    rev_pattern: "{spacecraft}_day{day}.geojson"
    staging_dir: ` + filepath.Join(dir, "staging") + `
    output_dir: ` + filepath.Join(dir, "out") + `
    feature_name: accesses

logging:
  level: error
  format: text
  output: stderr
`
	configPath := filepath.Join(dir, "accesstally.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))
	return configPath, dir
}

// withConfig points the config flag at path for the duration of the test.
func withConfig(t *testing.T, path string) {
	t.Helper()
	original := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = original })
}
