package export

import (
	"fmt"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/afero"
)

// LayerExt is the file extension of staged layers.
const LayerExt = ".geojson"

// StageGeoJSON writes fc to dir/<name>.geojson and returns the path. The file
// is written under a temporary name and renamed so a reader never sees a
// partial layer.
func StageGeoJSON(fs afero.Fs, dir, name string, fc *geojson.FeatureCollection) (string, error) {
	if name == "" {
		return "", fmt.Errorf("feature name is empty")
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory %s: %w", dir, err)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode layer %s: %w", name, err)
	}

	path := filepath.Join(dir, name+LayerExt)
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return "", fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return path, nil
}
