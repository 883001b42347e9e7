package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/matthewcarbone/multimodal-molecules/internal/experiment"
	"github.com/matthewcarbone/multimodal-molecules/internal/models"
)

// Environment variables that override file values.
const (
	EnvInputDir  = "MMFG_INPUT_DIR"
	EnvOutputDir = "MMFG_OUTPUT_DIR"
	EnvWorkers   = "MMFG_WORKERS"
	EnvLogLevel  = "MMFG_LOG_LEVEL"
)

// Config holds everything a run or a validation needs.
type Config struct {
	InputDir string `yaml:"input_dir"`
	// OutputDir receives the report and model store. Empty keeps results in
	// memory only.
	OutputDir string `yaml:"output_dir"`

	Experiment experiment.Settings `yaml:"experiment"`
	Run        RunConfig           `yaml:"run"`
	Forest     models.ForestConfig `yaml:"forest"`
	Logging    LoggingConfig       `yaml:"logging"`
}

type RunConfig struct {
	Workers                  int    `yaml:"workers"`
	Debug                    int    `yaml:"debug"`
	ComputeFeatureImportance bool   `yaml:"compute_feature_importance"`
	PermutationRepeats       int    `yaml:"permutation_repeats"`
	Algorithm                string `yaml:"algorithm"` // forest, tree
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func DefaultConfig() *Config {
	defaults := experiment.DefaultOptions()
	return &Config{
		InputDir:   "data",
		Experiment: experiment.DefaultSettings(""),
		Run: RunConfig{
			Workers:                  defaults.Workers,
			Debug:                    defaults.Debug,
			ComputeFeatureImportance: defaults.ComputeFeatureImportance,
			PermutationRepeats:       defaults.PermutationRepeats,
			Algorithm:                defaults.Algorithm,
		},
		Forest: models.DefaultForestConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults and applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if dir := os.Getenv(EnvInputDir); dir != "" {
		c.InputDir = dir
	}
	if dir := os.Getenv(EnvOutputDir); dir != "" {
		c.OutputDir = dir
	}
	if raw := os.Getenv(EnvWorkers); raw != "" {
		workers, err := cast.ToIntE(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWorkers, err)
		}
		c.Run.Workers = workers
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
	return nil
}

var validAlgorithms = []string{models.AlgorithmForest, models.AlgorithmTree}

// Validate checks the configuration after flags have been applied.
func (c *Config) Validate() error {
	if err := c.Experiment.Validate(); err != nil {
		return err
	}
	if c.InputDir == "" {
		return fmt.Errorf("input directory not configured (set input_dir or %s)", EnvInputDir)
	}
	if c.Run.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Run.Workers)
	}
	if c.Forest.NTrees < 1 {
		return fmt.Errorf("forest needs at least one tree, got %d", c.Forest.NTrees)
	}

	validAlgorithm := false
	for _, a := range validAlgorithms {
		if c.Run.Algorithm == a {
			validAlgorithm = true
			break
		}
	}
	if !validAlgorithm {
		return fmt.Errorf("invalid algorithm: %s (valid: %v)", c.Run.Algorithm, validAlgorithms)
	}

	if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// Options returns the runner options the configuration describes. Models are
// always kept so that they can be saved or inspected by the caller.
func (c *Config) Options() experiment.Options {
	return experiment.Options{
		Workers:                  c.Run.Workers,
		Debug:                    c.Run.Debug,
		ComputeFeatureImportance: c.Run.ComputeFeatureImportance,
		PermutationRepeats:       c.Run.PermutationRepeats,
		KeepModels:               true,
		Algorithm:                c.Run.Algorithm,
		Forest:                   c.Forest,
	}
}
