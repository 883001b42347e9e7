package experiment

import (
	"errors"
	"fmt"

	"github.com/matthewcarbone/multimodal-molecules/internal/data"
)

const (
	DefaultSpectraFile   = "xanes.msgp.sz"
	DefaultIndexFile     = "index.csv"
	DefaultTestSize      = 0.6
	DefaultSeed          = 42
	DefaultMinOccurrence = 0.02
	DefaultMaxOccurrence = 0.98
)

var ErrInvalidSettings = errors.New("invalid experiment settings")

// Settings describe one experiment. They are echoed verbatim into the report
// so that a persisted report is enough to rebuild the session.
type Settings struct {
	Conditions    string `yaml:"conditions" json:"conditions"`
	SpectraFile   string `yaml:"spectra_file" json:"xanes_data_name"`
	IndexFile     string `yaml:"index_file" json:"index_data_name"`
	data.Crop     `yaml:",inline"`
	TestSize      float64 `yaml:"test_size" json:"test_size"`
	Seed          int64   `yaml:"random_state" json:"random_state"`
	MinOccurrence float64 `yaml:"min_fg_occurrence" json:"min_fg_occurrence"`
	MaxOccurrence float64 `yaml:"max_fg_occurrence" json:"max_fg_occurrence"`
}

func DefaultSettings(conditions string) Settings {
	return Settings{
		Conditions:    conditions,
		SpectraFile:   DefaultSpectraFile,
		IndexFile:     DefaultIndexFile,
		TestSize:      DefaultTestSize,
		Seed:          DefaultSeed,
		MinOccurrence: DefaultMinOccurrence,
		MaxOccurrence: DefaultMaxOccurrence,
	}
}

func (s Settings) Validate() error {
	if s.Conditions == "" {
		return fmt.Errorf("%w: conditions are required", ErrInvalidSettings)
	}
	if _, err := data.ParseExpression(s.Conditions); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if s.SpectraFile == "" || s.IndexFile == "" {
		return fmt.Errorf("%w: spectra and index file names are required", ErrInvalidSettings)
	}
	if s.TestSize <= 0 || s.TestSize >= 1 {
		return fmt.Errorf("%w: test_size %v outside (0, 1)", ErrInvalidSettings, s.TestSize)
	}
	if s.MinOccurrence < 0 || s.MaxOccurrence > 1 || s.MinOccurrence >= s.MaxOccurrence {
		return fmt.Errorf("%w: occurrence window (%v, %v)", ErrInvalidSettings, s.MinOccurrence, s.MaxOccurrence)
	}
	return nil
}

// Window returns the occurrence gate the settings describe.
func (s Settings) Window() OccurrenceWindow {
	return NewOccurrenceWindow(s.MinOccurrence, s.MaxOccurrence)
}
