package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
)

const DefaultPermutationRepeats = 5

// Importance is the per-feature mean and population standard deviation of an
// importance estimate.
type Importance struct {
	Mean []float64 `json:"importances_mean"`
	Std  []float64 `json:"importances_std"`
}

// Predictor is the inference capability permutation importance needs.
// Predict must be safe for concurrent use.
type Predictor interface {
	Predict(X [][]float64) []int
}

type PermutationConfig struct {
	Repeats int
	Seed    int64
	Workers int
}

// StandardImportance aggregates per-member importance vectors, one row per
// member, into a mean and standard deviation for every feature.
func StandardImportance(members [][]float64) (Importance, error) {
	if len(members) == 0 {
		return Importance{}, errors.New("no member importances")
	}
	width := len(members[0])
	for i, row := range members {
		if len(row) != width {
			return Importance{}, fmt.Errorf("member %d has %d importances, expected %d", i, len(row), width)
		}
	}

	columns := make([][]float64, width)
	for f := range columns {
		columns[f] = make([]float64, len(members))
		for m, row := range members {
			columns[f][m] = row[f]
		}
	}
	return summarize(columns)
}

// PermutationImportance measures, for every feature column of X, how much the
// accuracy of model drops when that column is shuffled. Each feature is
// shuffled Repeats times from a source seeded with Seed plus the feature
// position, so the result does not depend on Workers.
func PermutationImportance(ctx context.Context, model Predictor, X [][]float64, y []int, cfg PermutationConfig) (Importance, error) {
	if len(X) == 0 {
		return Importance{}, errors.New("permutation importance needs at least one row")
	}
	if len(X) != len(y) {
		return Importance{}, fmt.Errorf("%w: %d rows, %d labels", ErrLengthMismatch, len(X), len(y))
	}
	if cfg.Repeats <= 0 {
		cfg.Repeats = DefaultPermutationRepeats
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	baseline := Accuracy(y, model.Predict(X))
	width := len(X[0])
	decreases := make([][]float64, width)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for f := 0; f < width; f++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			decreases[f] = permuteFeature(model, X, y, f, baseline, cfg.Repeats, cfg.Seed+int64(f))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Importance{}, err
	}

	return summarize(decreases)
}

func permuteFeature(model Predictor, X [][]float64, y []int, feature int, baseline float64, repeats int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))

	shuffled := make([][]float64, len(X))
	for i, row := range X {
		shuffled[i] = append([]float64(nil), row...)
	}
	column := make([]float64, len(X))
	for i, row := range X {
		column[i] = row[feature]
	}

	scores := make([]float64, repeats)
	for rep := 0; rep < repeats; rep++ {
		r.Shuffle(len(column), func(i, j int) {
			column[i], column[j] = column[j], column[i]
		})
		for i := range shuffled {
			shuffled[i][feature] = column[i]
		}
		scores[rep] = baseline - Accuracy(y, model.Predict(shuffled))
	}
	return scores
}

func summarize(columns [][]float64) (Importance, error) {
	imp := Importance{
		Mean: make([]float64, len(columns)),
		Std:  make([]float64, len(columns)),
	}
	for f, values := range columns {
		mean, err := stats.Mean(values)
		if err != nil {
			return Importance{}, fmt.Errorf("feature %d: %w", f, err)
		}
		std, err := stats.StandardDeviationPopulation(values)
		if err != nil {
			return Importance{}, fmt.Errorf("feature %d: %w", f, err)
		}
		imp.Mean[f] = mean
		imp.Std[f] = std
	}
	return imp, nil
}
