package validation

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
	"go.uber.org/zap"

	"github.com/matthewcarbone/multimodal-molecules/internal/data"
	"github.com/matthewcarbone/multimodal-molecules/internal/evaluation"
	"github.com/matthewcarbone/multimodal-molecules/internal/experiment"
	"github.com/matthewcarbone/multimodal-molecules/internal/jobs"
	"github.com/matthewcarbone/multimodal-molecules/internal/persistence"
)

// Tolerances of the balanced accuracy comparison: |recomputed - stored| must
// not exceed AbsTolerance + RelTolerance*|stored|.
const (
	AbsTolerance = 1e-8
	RelTolerance = 1e-5
)

var ErrMismatch = errors.New("persisted results do not reproduce")

// MismatchError reports the first record whose recomputed test balanced
// accuracy differs from the stored one.
type MismatchError struct {
	Key        string
	Stored     float64
	Recomputed float64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: stored test balanced accuracy %v, recomputed %v", e.Key, e.Stored, e.Recomputed)
}

func (e *MismatchError) Unwrap() error {
	return ErrMismatch
}

// Summary describes a successful validation.
type Summary struct {
	ReportPath   string
	Checked      int
	MaxDeviation float64
}

// Validator re-derives a persisted report from its own settings and models.
type Validator struct {
	Binder *experiment.Binder
	Store  *persistence.Store
	Logger *zap.Logger
	// Progress draws a progress bar while records are checked.
	Progress bool
	// Job, when set, advances once per checked record.
	Job *jobs.Job
}

func New(binder *experiment.Binder, store *persistence.Store, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{Binder: binder, Store: store, Logger: logger}
}

// Validate reloads the report at reportPath, rebuilds its session and models,
// and checks every stored test balanced accuracy. It stops at the first
// mismatch.
func (v *Validator) Validate(reportPath string) (*Summary, error) {
	summary, err := v.validate(reportPath)
	if err != nil {
		v.Job.Fail(err)
		return nil, err
	}
	v.Job.Complete(summary)
	return summary, nil
}

func (v *Validator) validate(reportPath string) (*Summary, error) {
	report, err := v.Store.LoadReport(reportPath)
	if err != nil {
		return nil, err
	}

	session, err := v.Binder.Bind(report.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild session: %w", err)
	}
	if n := session.Dataset().Len(); n != report.DataSize {
		return nil, fmt.Errorf("%w: report was built on %d rows, data now has %d", ErrMismatch, report.DataSize, n)
	}

	modelSet, err := v.Store.LoadModels(reportPath, report)
	if err != nil {
		return nil, err
	}
	keys := report.Records.Keys()
	if !slices.Equal(keys, modelSet.Keys()) {
		return nil, fmt.Errorf("%w: %d records, %d models", persistence.ErrKeyMismatch, len(keys), modelSet.Len())
	}

	summary := &Summary{ReportPath: reportPath}
	v.Job.Start(len(keys))
	check := func(i int) error {
		key := keys[i]
		v.Job.Advance(key)
		recomputed, err := v.recompute(session, modelSet, key)
		if err != nil {
			return err
		}
		record, _ := report.Records.Get(key)
		deviation := math.Abs(recomputed - record.TestBalancedAccuracy)
		if deviation > AbsTolerance+RelTolerance*math.Abs(record.TestBalancedAccuracy) {
			return &MismatchError{Key: key, Stored: record.TestBalancedAccuracy, Recomputed: recomputed}
		}
		summary.Checked++
		summary.MaxDeviation = math.Max(summary.MaxDeviation, deviation)
		return nil
	}

	if err := v.each(len(keys), check); err != nil {
		v.Logger.Error("validation failed", zap.String("report", reportPath), zap.Error(err))
		return nil, err
	}

	v.Logger.Info("validation passed",
		zap.String("report", reportPath),
		zap.Int("checked", summary.Checked),
		zap.Float64("max_deviation", summary.MaxDeviation))
	return summary, nil
}

func (v *Validator) each(n int, fn func(int) error) error {
	if !v.Progress {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var firstErr error
	err := tqdm.With(iterators.Interval(0, n), "Validating models", func(c interface{}) (brk bool) {
		if firstErr = fn(c.(int)); firstErr != nil {
			return true
		}
		return false
	})
	if firstErr != nil {
		return firstErr
	}
	return err
}

func (v *Validator) recompute(session *experiment.Session, modelSet *experiment.ModelSet, key string) (float64, error) {
	tags, group, err := experiment.ParseRecordKey(key)
	if err != nil {
		return 0, err
	}
	positions, err := session.Positions(tags)
	if err != nil {
		return 0, fmt.Errorf("record %s: %w", key, err)
	}
	labels, ok := session.Dataset().Groups.Labels[group]
	if !ok {
		return 0, fmt.Errorf("record %s: functional group %q not in dataset", key, group)
	}
	model, _ := modelSet.Get(key)

	test := session.Partition().Test
	xTest := data.TakeRows(session.Features().Columns(positions), test)
	yTest := data.TakeLabels(labels, test)

	metrics, err := evaluation.CalculateMetrics(yTest, model.Predict(xTest))
	if err != nil {
		return 0, fmt.Errorf("record %s: %w", key, err)
	}
	return metrics.BalancedAccuracy, nil
}
