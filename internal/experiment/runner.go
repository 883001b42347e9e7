package experiment

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewcarbone/multimodal-molecules/internal/data"
	"github.com/matthewcarbone/multimodal-molecules/internal/evaluation"
	"github.com/matthewcarbone/multimodal-molecules/internal/jobs"
	"github.com/matthewcarbone/multimodal-molecules/internal/models"
)

type Options struct {
	// Workers bounds the parallelism of forest fitting and permutation
	// importance.
	Workers int
	// Debug, when positive, stops the run after that many trained pairs.
	Debug                    int
	ComputeFeatureImportance bool
	PermutationRepeats       int
	// KeepModels retains every fitted model in the result.
	KeepModels bool
	Algorithm  string
	Forest     models.ForestConfig
}

func DefaultOptions() Options {
	return Options{
		Workers:                  2,
		Debug:                    -1,
		ComputeFeatureImportance: true,
		PermutationRepeats:       evaluation.DefaultPermutationRepeats,
		KeepModels:               true,
		Algorithm:                models.AlgorithmForest,
		Forest:                   models.DefaultForestConfig(),
	}
}

type Runner struct {
	Options Options
	Logger  *zap.Logger
	// Job, when set, receives progress and log lines.
	Job *jobs.Job
}

func NewRunner(options Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Options: options, Logger: logger}
}

// Run trains one model per eligible (combination, functional group) pair of
// the session, in combination order then functional group order. When a fit
// fails the run stops and the records gathered so far are returned alongside
// the error.
func (r *Runner) Run(ctx context.Context, session *Session) (*Result, error) {
	settings := session.Settings()
	dataset := session.Dataset()
	partition := session.Partition()
	window := settings.Window()

	forest := r.Options.Forest
	forest.Seed = settings.Seed

	repeats := 0
	if r.Options.ComputeFeatureImportance {
		repeats = r.Options.PermutationRepeats
		if repeats <= 0 {
			repeats = evaluation.DefaultPermutationRepeats
		}
	}

	algorithm := r.Options.Algorithm
	if algorithm == "" {
		algorithm = models.AlgorithmForest
	}

	report := &Report{
		Settings:           settings,
		DataSize:           dataset.Len(),
		Algorithm:          algorithm,
		Forest:             forest,
		PermutationRepeats: repeats,
		Records:            NewRecords(),
		Run:                &RunInfo{ID: uuid.NewString(), Started: time.Now().UTC()},
	}
	result := &Result{Report: report, Models: NewModelSet(), BaseName: session.BaseName()}

	combos := AllCombinations(len(session.Modalities()))
	groups := dataset.Groups.Names
	total := len(combos) * len(groups)

	r.Logger.Info("starting run",
		zap.String("run_id", report.Run.ID),
		zap.String("conditions", settings.Conditions),
		zap.Int("rows", dataset.Len()),
		zap.Int("combinations", len(combos)),
		zap.Int("functional_groups", len(groups)),
		zap.Int("workers", r.Options.Workers))
	r.Job.Start(total)

	trained := 0
	finish := func(err error) (*Result, error) {
		report.Run.Finished = time.Now().UTC()
		if err != nil {
			r.Logger.Error("run failed", zap.Int("records", report.Records.Len()), zap.Error(err))
			r.Job.Fail(err)
			return result, err
		}
		r.Logger.Info("run finished",
			zap.Int("records", report.Records.Len()),
			zap.Duration("elapsed", report.Run.Finished.Sub(report.Run.Started)))
		r.Job.Complete(result)
		return result, nil
	}

	for _, combo := range combos {
		comboName := CombinationName(session.Modalities(), combo)
		X := session.Features().Columns(combo)
		r.Logger.Info("combination",
			zap.String("name", comboName),
			zap.Ints("positions", combo),
			zap.Int("width", session.Features().Width(combo)))

		for _, group := range groups {
			if err := ctx.Err(); err != nil {
				return finish(err)
			}
			key := RecordKey(comboName, group)
			r.Job.Advance(key)
			labels := dataset.Groups.Labels[group]

			positives, _ := data.Occurrence(labels)
			if !window.Admits(positives, len(labels)) {
				r.Logger.Info("occurrence outside window, skipping",
					zap.String("key", key),
					zap.String("p_total", Fraction(positives, len(labels))))
				r.Job.Skipped()
				continue
			}

			record, model, err := r.train(ctx, X, labels, partition, algorithm, forest, key)
			if err != nil {
				return finish(err)
			}
			if err := report.Records.Add(key, record); err != nil {
				return finish(err)
			}
			if r.Options.KeepModels {
				if err := result.Models.Add(key, model); err != nil {
					return finish(err)
				}
			}

			trained++
			r.Job.Trained()
			if r.Options.Debug > 0 && trained >= r.Options.Debug {
				r.Logger.Info("debug limit reached, ending early", zap.Int("trained", trained))
				return finish(nil)
			}
		}
	}

	return finish(nil)
}

func (r *Runner) train(ctx context.Context, X [][]float64, labels []int, partition evaluation.Partition, algorithm string, forest models.ForestConfig, key string) (Record, models.Classifier, error) {
	xTrain := data.TakeRows(X, partition.Train)
	xTest := data.TakeRows(X, partition.Test)
	yTrain := data.TakeLabels(labels, partition.Train)
	yTest := data.TakeLabels(labels, partition.Test)

	_, pTotal := data.Occurrence(labels)
	_, pTrain := data.Occurrence(yTrain)
	_, pTest := data.Occurrence(yTest)

	model, err := models.CreateModel(models.ModelConfig{
		Algorithm: algorithm,
		Forest:    forest,
		Workers:   r.Options.Workers,
	})
	if err != nil {
		return Record{}, nil, err
	}

	start := time.Now()
	if err := model.Fit(xTrain, yTrain); err != nil {
		return Record{}, nil, fmt.Errorf("failed to fit %s: %w", key, err)
	}
	fitTime := time.Since(start)

	start = time.Now()
	trainMetrics, err := evaluation.CalculateMetrics(yTrain, model.Predict(xTrain))
	if err != nil {
		return Record{}, nil, fmt.Errorf("failed to score %s on train rows: %w", key, err)
	}
	testMetrics, err := evaluation.CalculateMetrics(yTest, model.Predict(xTest))
	if err != nil {
		return Record{}, nil, fmt.Errorf("failed to score %s on test rows: %w", key, err)
	}

	record := Record{
		PTotal:                pTotal,
		PTrain:                pTrain,
		PTest:                 pTest,
		TestAccuracy:          testMetrics.Accuracy,
		TrainAccuracy:         trainMetrics.Accuracy,
		TestBalancedAccuracy:  testMetrics.BalancedAccuracy,
		TrainBalancedAccuracy: trainMetrics.BalancedAccuracy,
	}

	if r.Options.ComputeFeatureImportance {
		standard, err := evaluation.StandardImportance(memberImportances(model))
		if err != nil {
			return Record{}, nil, fmt.Errorf("standard importance for %s: %w", key, err)
		}
		permutation, err := evaluation.PermutationImportance(ctx, model, xTest, yTest, evaluation.PermutationConfig{
			Repeats: r.Options.PermutationRepeats,
			Seed:    forest.Seed,
			Workers: r.Options.Workers,
		})
		if err != nil {
			return Record{}, nil, fmt.Errorf("permutation importance for %s: %w", key, err)
		}
		record.FeatureImportance = &standard
		record.PermutationImportance = &permutation
	}

	r.Logger.Info("trained",
		zap.String("key", key),
		zap.String("model", model.GetName()),
		zap.Any("params", model.GetParams()),
		zap.Float64("p_total", pTotal),
		zap.Float64("p_train", pTrain),
		zap.Float64("p_test", pTest),
		zap.Float64("test_balanced_accuracy", record.TestBalancedAccuracy),
		zap.Duration("training", fitTime),
		zap.Duration("scoring", time.Since(start)))
	r.Job.Log("%s test balanced accuracy %.4f", key, record.TestBalancedAccuracy)

	return record, model, nil
}

// memberImportances returns one importance vector per ensemble member, or the
// model's own vector when it is a single tree.
func memberImportances(model models.Classifier) [][]float64 {
	switch m := model.(type) {
	case models.Ensemble:
		return m.MemberImportances()
	case *models.DecisionTree:
		return [][]float64{m.FeatureImportances()}
	default:
		return nil
	}
}

// ExportSummary writes one CSV row per record with its headline scores.
func ExportSummary(report *Report, w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{
		"Key", "Combination", "FunctionalGroup", "PTotal", "PTrain", "PTest",
		"TrainAccuracy", "TestAccuracy", "TrainBalancedAccuracy", "TestBalancedAccuracy",
	}); err != nil {
		return err
	}

	format := func(v float64) string {
		return strconv.FormatFloat(v, 'f', 4, 64)
	}
	for _, key := range report.Records.Keys() {
		record, _ := report.Records.Get(key)
		tags, group, err := ParseRecordKey(key)
		if err != nil {
			return err
		}
		if err := writer.Write([]string{
			key,
			strings.Join(data.TagNames(tags), comboSeparator),
			group,
			format(record.PTotal),
			format(record.PTrain),
			format(record.PTest),
			format(record.TrainAccuracy),
			format(record.TestAccuracy),
			format(record.TrainBalancedAccuracy),
			format(record.TestBalancedAccuracy),
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
