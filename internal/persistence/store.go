package persistence

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/golang/snappy"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/matthewcarbone/multimodal-molecules/internal/data"
	"github.com/matthewcarbone/multimodal-molecules/internal/experiment"
	"github.com/matthewcarbone/multimodal-molecules/internal/models"
)

var ErrKeyMismatch = errors.New("model keys do not match report keys")

const (
	reportSuffix = ".json"
	modelsSuffix = "_models.gob.sz"
)

// modelBundle is the on-disk form of a model set.
type modelBundle struct {
	Conditions string
	Entries    []modelEntry
}

type modelEntry struct {
	Key   string
	Model models.Classifier
}

// Artifacts describes what Save wrote.
type Artifacts struct {
	ReportPath string
	ModelsPath string
	ReportSize int64
	ModelsSize int64
}

// Store writes and reads run results under one output directory.
type Store struct {
	fs     afero.Fs
	dir    string
	logger *zap.Logger
}

// NewStore returns a store rooted at dir. An empty dir makes Save a no-op so
// that results stay in memory with the caller.
func NewStore(fs afero.Fs, dir string, logger *zap.Logger) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{fs: fs, dir: dir, logger: logger}
}

func (s *Store) Dir() string {
	return s.dir
}

func ReportPath(dir, base string) string {
	return filepath.Join(dir, base+reportSuffix)
}

func ModelsPath(dir, base string) string {
	return filepath.Join(dir, base+modelsSuffix)
}

func registerModels() {
	gob.Register(&models.DecisionTree{})
	gob.Register(&models.RandomForest{})
}

// Save writes the report and the models of result side by side. The model
// keys must equal the report keys, in the same order, and every model must be
// fitted.
func (s *Store) Save(result *experiment.Result) (*Artifacts, error) {
	if s.dir == "" {
		s.logger.Info("no output directory configured, results kept in memory",
			zap.String("base", result.BaseName))
		return nil, nil
	}

	reportKeys := result.Report.Records.Keys()
	modelKeys := result.Models.Keys()
	if !slices.Equal(reportKeys, modelKeys) {
		return nil, fmt.Errorf("%w: %d records, %d models", ErrKeyMismatch, len(reportKeys), len(modelKeys))
	}
	for _, key := range modelKeys {
		model, _ := result.Models.Get(key)
		if err := models.CheckFitted(model); err != nil {
			return nil, fmt.Errorf("model %s: %w", key, err)
		}
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	artifacts := &Artifacts{
		ReportPath: ReportPath(s.dir, result.BaseName),
		ModelsPath: ModelsPath(s.dir, result.BaseName),
	}

	encoded, err := json.MarshalIndent(result.Report, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	if err := afero.WriteFile(s.fs, artifacts.ReportPath, encoded, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	artifacts.ReportSize = int64(len(encoded))

	bundle := modelBundle{Conditions: result.Report.Conditions}
	for _, key := range modelKeys {
		model, _ := result.Models.Get(key)
		bundle.Entries = append(bundle.Entries, modelEntry{Key: key, Model: model})
	}
	if artifacts.ModelsSize, err = s.writeModels(artifacts.ModelsPath, &bundle); err != nil {
		return nil, err
	}

	s.logger.Info("results saved",
		zap.String("report", artifacts.ReportPath),
		zap.String("report_size", humanize.Bytes(uint64(artifacts.ReportSize))),
		zap.String("models", artifacts.ModelsPath),
		zap.String("models_size", humanize.Bytes(uint64(artifacts.ModelsSize))),
		zap.Int("records", len(reportKeys)))
	return artifacts, nil
}

func (s *Store) writeModels(path string, bundle *modelBundle) (int64, error) {
	registerModels()

	file, err := s.fs.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create model store: %w", err)
	}
	defer file.Close()

	w := snappy.NewBufferedWriter(file)
	if err := gob.NewEncoder(w).Encode(bundle); err != nil {
		return 0, fmt.Errorf("failed to encode models: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to flush model store: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// LoadReport reads a report written by Save.
func (s *Store) LoadReport(path string) (*experiment.Report, error) {
	raw, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var report experiment.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	s.logger.Debug("report loaded",
		zap.String("path", path),
		zap.String("size", humanize.Bytes(uint64(len(raw)))),
		zap.Int("records", report.Records.Len()))
	return &report, nil
}

// LoadModels reads the model store that sits next to the report at reportPath.
func (s *Store) LoadModels(reportPath string, report *experiment.Report) (*experiment.ModelSet, error) {
	expr, err := data.ParseExpression(report.Conditions)
	if err != nil {
		return nil, err
	}
	path := ModelsPath(filepath.Dir(reportPath), expr.BaseName())

	registerModels()

	file, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model store: %w", err)
	}
	defer file.Close()

	var bundle modelBundle
	if err := gob.NewDecoder(snappy.NewReader(file)).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("failed to decode model store %s: %w", path, err)
	}

	set := experiment.NewModelSet()
	for _, entry := range bundle.Entries {
		if err := models.CheckFitted(entry.Model); err != nil {
			return nil, fmt.Errorf("model store %s, model %s: %w", path, entry.Key, err)
		}
		if err := set.Add(entry.Key, entry.Model); err != nil {
			return nil, err
		}
	}
	s.logger.Debug("models loaded", zap.String("path", path), zap.Int("models", set.Len()))
	return set, nil
}
