package evaluation

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitIndices_Invariants(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 10, 101, 1000} {
		for _, fraction := range []float64{0.1, 0.25, 0.5, 0.6, 0.9} {
			for _, seed := range []int64{0, 1, 42, -7} {
				p, err := SplitIndices(n, fraction, seed)
				require.NoError(t, err)

				assert.Len(t, p.Test, int(fraction*float64(n)))
				assert.True(t, sort.IntsAreSorted(p.Train))
				assert.True(t, sort.IntsAreSorted(p.Test))

				seen := make(map[int]int, n)
				for _, idx := range append(append([]int{}, p.Train...), p.Test...) {
					seen[idx]++
				}
				require.Len(t, seen, n)
				for i := 0; i < n; i++ {
					assert.Equal(t, 1, seen[i], "row %d of %d", i, n)
				}
			}
		}
	}
}

func TestSplitIndices_Deterministic(t *testing.T) {
	first, err := SplitIndices(500, 0.6, 42)
	require.NoError(t, err)
	second, err := SplitIndices(500, 0.6, 42)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := SplitIndices(500, 0.6, 43)
	require.NoError(t, err)
	assert.NotEqual(t, first.Test, other.Test)
}

func TestSplitIndices_RejectsFraction(t *testing.T) {
	for _, fraction := range []float64{0, 1, -0.1, 1.5} {
		_, err := SplitIndices(10, fraction, 42)
		assert.ErrorIs(t, err, ErrInvalidFraction)
	}
}

func TestPartitionCheck(t *testing.T) {
	assert.NoError(t, Partition{Train: []int{0, 2}, Test: []int{1}}.Check(3))
	assert.ErrorIs(t, Partition{Train: []int{0, 1}, Test: []int{1}}.Check(3), ErrSplitInvariant)
	assert.ErrorIs(t, Partition{Train: []int{0}, Test: []int{1, 1}}.Check(3), ErrSplitInvariant)
	assert.ErrorIs(t, Partition{Train: []int{0}, Test: []int{1}}.Check(3), ErrSplitInvariant)
	assert.ErrorIs(t, Partition{Train: []int{0, 5}, Test: []int{1}}.Check(3), ErrSplitInvariant)
}

func TestSplitCache(t *testing.T) {
	cache := NewSplitCache()

	var wg sync.WaitGroup
	results := make([]Partition, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := cache.Get(100, 0.6, 42)
			assert.NoError(t, err)
			results[i] = p
		}()
	}
	wg.Wait()

	direct, err := SplitIndices(100, 0.6, 42)
	require.NoError(t, err)
	for _, p := range results {
		assert.Equal(t, direct, p)
	}
	assert.Equal(t, 1, cache.Len())

	_, err = cache.Get(100, 0.5, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	_, err = cache.Get(100, 2, 42)
	assert.ErrorIs(t, err, ErrInvalidFraction)
	assert.Equal(t, 2, cache.Len())

	cache.Reset()
	assert.Zero(t, cache.Len())
}

func TestCalculateMetrics(t *testing.T) {
	yTrue := []int{0, 0, 0, 0, 1, 1}
	yPred := []int{0, 0, 0, 1, 1, 0}

	m, err := CalculateMetrics(yTrue, yPred)
	require.NoError(t, err)

	assert.InDelta(t, 4.0/6.0, m.Accuracy, 1e-12)
	assert.InDelta(t, (0.75+0.5)/2, m.BalancedAccuracy, 1e-12)
	assert.Equal(t, [][]int{{3, 1}, {1, 1}}, m.ConfusionMatrix)
	assert.Equal(t, []int{0, 1}, m.Classes)
	assert.Equal(t, 4, m.PerClassMetrics[0].Support)
	assert.InDelta(t, 0.75, m.PerClassMetrics[0].Precision, 1e-12)
}

func TestCalculateMetrics_BalancedAccuracyIgnoresAbsentClasses(t *testing.T) {
	m, err := CalculateMetrics([]int{0, 0, 0, 0}, []int{0, 0, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.BalancedAccuracy, 1e-12)
	assert.Equal(t, []int{0, 1}, m.Classes)
}

func TestCalculateMetrics_Errors(t *testing.T) {
	_, err := CalculateMetrics([]int{0, 1}, []int{0})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = CalculateMetrics(nil, nil)
	assert.Error(t, err)
}

func TestStandardImportance(t *testing.T) {
	imp, err := StandardImportance([][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0.5, 0.5, 0},
		{0.5, 0.5, 0},
	})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0}, imp.Mean, 1e-12)
	assert.InDelta(t, 0.3535533905932738, imp.Std[0], 1e-12)
	assert.Zero(t, imp.Std[2])

	_, err = StandardImportance(nil)
	assert.Error(t, err)
	_, err = StandardImportance([][]float64{{1, 0}, {1}})
	assert.Error(t, err)
}

// thresholdModel predicts 1 when the first feature is positive.
type thresholdModel struct{}

func (thresholdModel) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, row := range X {
		if row[0] > 0 {
			out[i] = 1
		}
	}
	return out
}

func permutationFixture() ([][]float64, []int) {
	X := make([][]float64, 40)
	y := make([]int, 40)
	for i := range X {
		sign := -1.0
		if i%2 == 0 {
			sign = 1
			y[i] = 1
		}
		X[i] = []float64{sign * float64(i+1), float64(i % 7)}
	}
	return X, y
}

func TestPermutationImportance(t *testing.T) {
	X, y := permutationFixture()

	imp, err := PermutationImportance(context.Background(), thresholdModel{}, X, y, PermutationConfig{Seed: 42, Workers: 2})
	require.NoError(t, err)

	require.Len(t, imp.Mean, 2)
	assert.Greater(t, imp.Mean[0], 0.2, "shuffling the informative feature must hurt")
	assert.Zero(t, imp.Mean[1], "the model ignores the second feature")
	assert.Zero(t, imp.Std[1])
}

func TestPermutationImportance_IndependentOfWorkers(t *testing.T) {
	X, y := permutationFixture()

	serial, err := PermutationImportance(context.Background(), thresholdModel{}, X, y, PermutationConfig{Repeats: 3, Seed: 7, Workers: 1})
	require.NoError(t, err)
	parallel, err := PermutationImportance(context.Background(), thresholdModel{}, X, y, PermutationConfig{Repeats: 3, Seed: 7, Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, serial, parallel)

	assert.Equal(t, []float64{1, 0}, X[0], "input rows must not be modified")
}

func TestPermutationImportance_Errors(t *testing.T) {
	_, err := PermutationImportance(context.Background(), thresholdModel{}, nil, nil, PermutationConfig{})
	assert.Error(t, err)

	_, err = PermutationImportance(context.Background(), thresholdModel{}, [][]float64{{1}}, []int{1, 0}, PermutationConfig{})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
