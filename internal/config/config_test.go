package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewcarbone/multimodal-molecules/internal/experiment"
	"github.com/matthewcarbone/multimodal-molecules/internal/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0.6, cfg.Experiment.TestSize)
	assert.Equal(t, int64(42), cfg.Experiment.Seed)
	assert.Equal(t, 0.02, cfg.Experiment.MinOccurrence)
	assert.Equal(t, 0.98, cfg.Experiment.MaxOccurrence)
	assert.Equal(t, 2, cfg.Run.Workers)
	assert.Equal(t, -1, cfg.Run.Debug)
	assert.True(t, cfg.Run.ComputeFeatureImportance)
	assert.Equal(t, models.AlgorithmForest, cfg.Run.Algorithm)
	assert.Empty(t, cfg.OutputDir)

	assert.Error(t, cfg.Validate(), "conditions have no default")
	cfg.Experiment.Conditions = "C-XANES"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
input_dir: /data/221205
output_dir: /results
experiment:
  conditions: O-XANES,C-XANES
  offset_left: 10
  test_size: 0.5
run:
  workers: 8
  debug: 3
forest:
  n_trees: 50
  max_depth: 12
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/data/221205", cfg.InputDir)
	assert.Equal(t, "/results", cfg.OutputDir)
	assert.Equal(t, "O-XANES,C-XANES", cfg.Experiment.Conditions)
	require.NotNil(t, cfg.Experiment.Left)
	assert.Equal(t, 10, *cfg.Experiment.Left)
	assert.Nil(t, cfg.Experiment.Right)
	assert.Equal(t, 0.5, cfg.Experiment.TestSize)
	assert.Equal(t, int64(42), cfg.Experiment.Seed, "unset fields keep their default")
	assert.Equal(t, experiment.DefaultSpectraFile, cfg.Experiment.SpectraFile)

	opts := cfg.Options()
	assert.Equal(t, 8, opts.Workers)
	assert.Equal(t, 3, opts.Debug)
	assert.Equal(t, 50, opts.Forest.NTrees)
	assert.Equal(t, 12, opts.Forest.MaxDepth)
	assert.True(t, opts.KeepModels)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvInputDir, "/env/in")
	t.Setenv(EnvOutputDir, "/env/out")
	t.Setenv(EnvWorkers, "6")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/env/in", cfg.InputDir)
	assert.Equal(t, "/env/out", cfg.OutputDir)
	assert.Equal(t, 6, cfg.Run.Workers)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestEnvOverrides_InvalidWorkers(t *testing.T) {
	t.Setenv(EnvWorkers, "many")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"workers":   func(c *Config) { c.Run.Workers = 0 },
		"trees":     func(c *Config) { c.Forest.NTrees = 0 },
		"algorithm": func(c *Config) { c.Run.Algorithm = "knn" },
		"log level": func(c *Config) { c.Logging.Level = "loud" },
		"input dir": func(c *Config) { c.InputDir = "" },
		"test size": func(c *Config) { c.Experiment.TestSize = 1.2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Experiment.Conditions = "C-XANES"
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Experiment.Conditions = "C-XANES,!N"
	right := -5
	cfg.Experiment.Right = &right
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
