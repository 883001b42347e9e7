package experiment

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/matthewcarbone/multimodal-molecules/internal/data"
	"github.com/matthewcarbone/multimodal-molecules/internal/evaluation"
)

// Binder turns Settings into a Session. It owns the file cache and the split
// cache, both of which live as long as the binder.
type Binder struct {
	Loader   *data.Loader
	Splits   *evaluation.SplitCache
	InputDir string
	Logger   *zap.Logger
}

func NewBinder(fs afero.Fs, inputDir string, logger *zap.Logger) *Binder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binder{
		Loader:   data.NewLoader(fs, logger),
		Splits:   evaluation.NewSplitCache(),
		InputDir: inputDir,
		Logger:   logger,
	}
}

// Bind loads and assembles the dataset the settings select and fixes its split.
// It returns either a complete session or an error.
func (b *Binder) Bind(settings Settings) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	expr, err := data.ParseExpression(settings.Conditions)
	if err != nil {
		return nil, err
	}
	settings.Conditions = expr.Canonical()

	dataset, err := b.Loader.Load(
		filepath.Join(b.InputDir, settings.SpectraFile),
		filepath.Join(b.InputDir, settings.IndexFile),
		expr, settings.Crop)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset for %s: %w", settings.Conditions, err)
	}

	partition, err := b.Splits.Get(dataset.Len(), settings.TestSize, settings.Seed)
	if err != nil {
		return nil, err
	}
	if dataset.Len() > 0 && (len(partition.Test) == 0 || len(partition.Train) == 0) {
		return nil, fmt.Errorf("%w: test_size %v splits %d rows into %d train and %d test",
			ErrInvalidSettings, settings.TestSize, dataset.Len(), len(partition.Train), len(partition.Test))
	}

	session := &Session{
		settings:  settings,
		expr:      expr,
		dataset:   dataset,
		features:  dataset.Pack(),
		partition: partition,
	}

	b.Logger.Info("session bound",
		zap.String("conditions", settings.Conditions),
		zap.Int("rows", dataset.Len()),
		zap.Int("features", session.features.Width(allPositions(len(dataset.Modalities)))),
		zap.Int("functional_groups", len(dataset.Groups.Names)),
		zap.Int("train", len(partition.Train)),
		zap.Int("test", len(partition.Test)))

	if len(dataset.Modalities) == 0 {
		b.Logger.Warn("conditions select no spectral modality; nothing will be trained",
			zap.String("conditions", settings.Conditions))
	}
	return session, nil
}

// Reset drops every cached file and split.
func (b *Binder) Reset() {
	b.Loader.Purge()
	b.Splits.Reset()
}

// Session is a bound experiment: settings plus the dataset and split they
// resolve to. It is never modified after Bind returns.
type Session struct {
	settings  Settings
	expr      data.Expression
	dataset   *data.Dataset
	features  *data.FeatureBlock
	partition evaluation.Partition
}

// Settings returns the settings with conditions in canonical order.
func (s *Session) Settings() Settings {
	return s.settings
}

func (s *Session) Expression() data.Expression {
	return s.expr
}

func (s *Session) Dataset() *data.Dataset {
	return s.dataset
}

func (s *Session) Features() *data.FeatureBlock {
	return s.features
}

func (s *Session) Partition() evaluation.Partition {
	return s.partition
}

func (s *Session) Modalities() []data.Tag {
	return s.dataset.Modalities
}

// BaseName is the file stem shared by the report and model store.
func (s *Session) BaseName() string {
	return s.expr.BaseName()
}

// Positions maps tags to their positions in the session's modality list.
func (s *Session) Positions(tags []data.Tag) ([]int, error) {
	index := make(map[data.Tag]int, len(s.dataset.Modalities))
	for i, tag := range s.dataset.Modalities {
		index[tag] = i
	}
	positions := make([]int, len(tags))
	for i, tag := range tags {
		p, ok := index[tag]
		if !ok {
			return nil, fmt.Errorf("modality %s is not part of %s", tag, s.settings.Conditions)
		}
		positions[i] = p
	}
	return positions, nil
}

func allPositions(n int) []int {
	positions := make([]int, n)
	for i := range positions {
		positions[i] = i
	}
	return positions
}
