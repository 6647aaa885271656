package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListJobsCommandStructure(t *testing.T) {
	assert.NotNil(t, listJobsCmd)
	assert.Equal(t, "list-jobs", listJobsCmd.Use)
	assert.NotEmpty(t, listJobsCmd.Short)
	assert.NotEmpty(t, listJobsCmd.Long)
	assert.NotNil(t, listJobsCmd.RunE)
}

func TestRunListJobs(t *testing.T) {
	configPath, dir := writeWorkspace(t)

	tests := []struct {
		name       string
		configFile string
		wantErr    bool
	}{
		{name: "valid config with jobs", configFile: configPath},
		{name: "nonexistent config", configFile: filepath.Join(dir, "nope.yaml"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withConfig(t, tt.configFile)

			var buf bytes.Buffer
			listJobsCmd.SetOut(&buf)
			listJobsCmd.SetErr(&buf)

			err := runListJobs(listJobsCmd, []string{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			output := buf.String()
			assert.Contains(t, output, "Jobs defined in")
			assert.Contains(t, output, "1. nightly")
			assert.Contains(t, output, "Spacecraft:    WV01, WV02")
			assert.Contains(t, output, "Lookahead:     2 day(s)")
			assert.Contains(t, output, "layers (")
			assert.Contains(t, output, "Total: 1 job(s)")
		})
	}
}
