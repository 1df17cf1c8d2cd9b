package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/assay.report/internal/register"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRegistrationConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "partial.json", `{"particle_count": 4000, "grid_rows": 8}`)

	cfg, err := LoadRegistrationConfig(path)
	require.NoError(t, err)

	filter := cfg.GetFilterConfig(7)
	assert.Equal(t, 4000, filter.ParticleCount)
	assert.Equal(t, register.DefaultFilterConfig().MaxIterations, filter.MaxIterations)
	assert.Equal(t, uint64(7), filter.Seed)

	spec := cfg.GetGridSpec()
	assert.Equal(t, register.GridSpec{Rows: 8, Cols: 6, Spacing: 82}, spec)
}

func TestLoadRegistrationConfig_RejectsNonJSON(t *testing.T) {
	path := writeConfig(t, "config.yaml", `grid_rows: 6`)
	_, err := LoadRegistrationConfig(path)
	assert.Error(t, err, "non-JSON extension must be rejected")
}

func TestLoadRegistrationConfig_MissingFile(t *testing.T) {
	_, err := LoadRegistrationConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadRegistrationConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad background order", `{"background_order": 5}`},
		{"fiducial outside grid", `{"grid_rows": 2, "grid_cols": 2, "fiducial_indexes": [0, 7]}`},
		{"negative particle count", `{"particle_count": -5}`},
		{"threshold overflow", `{"threshold": 400}`},
		{"zero jitter decay", `{"jitter_decay": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "bad.json", tt.content)
			_, err := LoadRegistrationConfig(path)
			assert.Error(t, err, "config %s must be rejected", tt.content)
		})
	}
}

func TestEmptyConfig_MatchesDomainDefaults(t *testing.T) {
	cfg := EmptyRegistrationConfig()

	assert.Equal(t, register.DefaultNoiseStds(), cfg.GetNoiseStds())
	assert.Equal(t, register.DefaultFilterConfig(), cfg.GetFilterConfig(0))

	prior := cfg.GetPrior(register.Point{X: 10, Y: 20})
	assert.Equal(t, register.Point{X: 10, Y: 20}, prior.Mean)
	assert.Equal(t, 1.0, prior.ScaleMean)
	assert.Equal(t, 0.0, prior.AngleMean)

	assert.Equal(t, []int{0, 5, 6, 30, 35}, cfg.GetFiducialIndexes())
}

// The shipped defaults file must stay in lockstep with the code defaults.
func TestDefaultsFile_MatchesCodeDefaults(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	assert.Equal(t, EmptyRegistrationConfig().GetGridSpec(), cfg.GetGridSpec())
	assert.Equal(t, register.DefaultNoiseStds(), cfg.GetNoiseStds())

	got, want := cfg.GetFilterConfig(3), register.DefaultFilterConfig()
	assert.Equal(t, want.ParticleCount, got.ParticleCount)
	assert.Equal(t, want.MaxIterations, got.MaxIterations)
	assert.Equal(t, want.ConvergenceTol, got.ConvergenceTol)
}
