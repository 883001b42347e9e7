package data

import (
	"fmt"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const defaultCacheSize = 8

// Loader reads spectral stores and index tables and memoizes them by resolved
// path. It is owned by one experiment session; Purge drops everything it holds.
type Loader struct {
	fs     afero.Fs
	cache  *lru.Cache[string, any]
	logger *zap.Logger
}

func NewLoader(fs afero.Fs, logger *zap.Logger) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, any](defaultCacheSize)
	if err != nil {
		panic(err)
	}
	return &Loader{fs: fs, cache: cache, logger: logger}
}

func (l *Loader) key(kind, path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return kind + ":" + filepath.Clean(path)
}

// Spectra returns the spectral store at path.
func (l *Loader) Spectra(path string) (*SpectralStore, error) {
	key := l.key("spectra", path)
	if cached, ok := l.cache.Get(key); ok {
		return cached.(*SpectralStore), nil
	}

	f, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spectra: %w", err)
	}
	defer f.Close()

	store, err := ReadSpectra(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read spectra %s: %w", path, err)
	}

	l.logger.Debug("loaded spectra", zap.String("path", path), zap.Int("samples", len(store.Data)))
	l.cache.Add(key, store)
	return store, nil
}

// Index returns the index table at path.
func (l *Loader) Index(path string) (*IndexTable, error) {
	key := l.key("index", path)
	if cached, ok := l.cache.Get(key); ok {
		return cached.(*IndexTable), nil
	}

	f, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()

	table, err := ReadIndexCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", path, err)
	}

	l.logger.Debug("loaded index", zap.String("path", path), zap.Int("rows", table.Len()))
	l.cache.Add(key, table)
	return table, nil
}

// Load selects the rows matching expr and assembles their dataset.
func (l *Loader) Load(spectraPath, indexPath string, expr Expression, crop Crop) (*Dataset, error) {
	store, err := l.Spectra(spectraPath)
	if err != nil {
		return nil, err
	}
	index, err := l.Index(indexPath)
	if err != nil {
		return nil, err
	}

	l.logger.Info("applying conditions",
		zap.String("conditions", expr.Canonical()),
		zap.Stringer("expanded", expr.Expand()))

	filtered, err := expr.Apply(index)
	if err != nil {
		return nil, err
	}

	dataset, err := Assemble(filtered, store, expr.Modalities(), crop)
	if err != nil {
		return nil, err
	}
	if err := dataset.Validate(); err != nil {
		return nil, err
	}
	return dataset, nil
}

// Cached reports how many files are currently memoized.
func (l *Loader) Cached() int {
	return l.cache.Len()
}

func (l *Loader) Purge() {
	l.cache.Purge()
}
