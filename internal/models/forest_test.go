package models

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// separable builds rows where feature 0 alone decides the label and the
// remaining features are noise.
func separable(n, nFeatures int, seed int64) ([][]float64, []int) {
	r := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		row := make([]float64, nFeatures)
		for j := range row {
			row[j] = r.Float64()
		}
		if row[0] > 0.5 {
			y[i] = 1
		}
		X[i] = row
	}
	return X, y
}

func TestDecisionTree_FitsSeparableData(t *testing.T) {
	X, y := separable(200, 3, 1)

	tree := NewDecisionTree(0, 2)
	require.NoError(t, tree.Fit(X, y))

	assert.Equal(t, y, tree.Predict(X))
	assert.Equal(t, []int{0, 1}, tree.GetClasses())

	importances := tree.FeatureImportances()
	require.Len(t, importances, 3)
	assert.InDelta(t, 1.0, importances[0]+importances[1]+importances[2], 1e-12)
	assert.Greater(t, importances[0], 0.9)
}

func TestDecisionTree_PureLabelsGiveZeroImportances(t *testing.T) {
	X := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	y := []int{1, 1, 1}

	tree := NewDecisionTree(0, 2)
	require.NoError(t, tree.Fit(X, y))

	assert.True(t, tree.Root.IsLeaf)
	assert.Equal(t, []float64{0, 0}, tree.FeatureImportances())
	assert.Equal(t, []int{1, 1}, tree.Predict([][]float64{{0, 0}, {9, 9}}))
}

func TestDecisionTree_MaxDepthLimitsGrowth(t *testing.T) {
	X, y := separable(100, 2, 3)

	tree := NewDecisionTree(1, 2)
	require.NoError(t, tree.Fit(X, y))

	require.False(t, tree.Root.IsLeaf)
	assert.True(t, tree.Root.Left.IsLeaf)
	assert.True(t, tree.Root.Right.IsLeaf)
}

func TestUnfittedModels(t *testing.T) {
	X := [][]float64{{0, 1}, {2, 3}}

	tree := NewDecisionTree(0, 2)
	assert.False(t, tree.IsFitted())
	assert.ErrorIs(t, CheckFitted(tree), ErrNotFitted)
	assert.NotPanics(t, func() { tree.Predict(X) })
	assert.Equal(t, []int{0, 0}, tree.Predict(X))

	forest := NewRandomForest(ForestConfig{NTrees: 2}, 1)
	assert.ErrorIs(t, CheckFitted(forest), ErrNotFitted)

	forest.Trees = []*DecisionTree{NewDecisionTree(0, 2)}
	forest.FeatureIndices = [][]int{{0}}
	assert.False(t, forest.IsFitted(), "a member without a root")
	assert.NotPanics(t, func() { forest.Predict(X) })

	assert.ErrorIs(t, CheckFitted(nil), ErrNotFitted)

	Xfit, y := separable(40, 2, 5)
	require.NoError(t, tree.Fit(Xfit, y))
	assert.NoError(t, CheckFitted(tree))
	require.NoError(t, forest.Fit(Xfit, y))
	assert.NoError(t, CheckFitted(forest))
}

func TestFit_RejectsBadInput(t *testing.T) {
	forest := NewRandomForest(ForestConfig{NTrees: 3}, 1)

	assert.ErrorIs(t, forest.Fit(nil, nil), ErrEmptyTrainingSet)
	assert.ErrorIs(t, forest.Fit([][]float64{{1}, {2}}, []int{1}), ErrShapeMismatch)
	assert.ErrorIs(t, forest.Fit([][]float64{{1}, {2, 3}}, []int{0, 1}), ErrShapeMismatch)
	assert.ErrorIs(t, forest.Fit([][]float64{{}, {}}, []int{0, 1}), ErrNoFeatures)
}

func TestRandomForest_LearnsSeparableData(t *testing.T) {
	X, y := separable(300, 4, 7)
	XTest, yTest := separable(100, 4, 8)

	forest := NewRandomForest(ForestConfig{NTrees: 25, Seed: 42, MaxFeatures: 4}, 4)
	require.NoError(t, forest.Fit(X, y))

	predictions := forest.Predict(XTest)
	correct := 0
	for i := range predictions {
		if predictions[i] == yTest[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(yTest)), 0.9)
}

func TestRandomForest_IndependentOfWorkerCount(t *testing.T) {
	X, y := separable(150, 9, 11)

	serial := NewRandomForest(ForestConfig{NTrees: 12, Seed: 5}, 1)
	require.NoError(t, serial.Fit(X, y))

	parallel := NewRandomForest(ForestConfig{NTrees: 12, Seed: 5}, 6)
	require.NoError(t, parallel.Fit(X, y))

	assert.Equal(t, serial.FeatureIndices, parallel.FeatureIndices)
	assert.Equal(t, serial.Predict(X), parallel.Predict(X))
	assert.Equal(t, serial.MemberImportances(), parallel.MemberImportances())
}

func TestRandomForest_MembersReconstructPrediction(t *testing.T) {
	X, y := separable(120, 5, 13)

	forest := NewRandomForest(ForestConfig{NTrees: 10, Seed: 1}, 2)
	require.NoError(t, forest.Fit(X, y))

	members := forest.PredictMembers(X)
	require.Len(t, members, len(X))
	for _, row := range members {
		require.Len(t, row, 10)
	}
	assert.Equal(t, forest.Predict(X), MajorityVote(members, forest.GetClasses()))
}

func TestRandomForest_MemberImportancesCoverFullFeatureSpace(t *testing.T) {
	X, y := separable(120, 16, 17)

	forest := NewRandomForest(ForestConfig{NTrees: 8, Seed: 3}, 2)
	require.NoError(t, forest.Fit(X, y))

	for i, importances := range forest.MemberImportances() {
		require.Len(t, importances, 16)
		total := 0.0
		for feature, value := range importances {
			if !contains(forest.FeatureIndices[i], feature) {
				assert.Zero(t, value)
			}
			total += value
		}
		if total > 0 {
			assert.InDelta(t, 1.0, total, 1e-9)
		}
	}
}

func TestMajorityVote_TieGoesToSmallestClass(t *testing.T) {
	votes := [][]int{{0, 1}, {1, 1}, {1, 0, 0}}
	assert.Equal(t, []int{0, 1, 0}, MajorityVote(votes, []int{0, 1}))
}

func TestCreateModel(t *testing.T) {
	model, err := CreateModel(DefaultConfig(AlgorithmForest))
	require.NoError(t, err)
	assert.Equal(t, "RandomForest", model.GetName())
	_, isEnsemble := model.(Ensemble)
	assert.True(t, isEnsemble)

	model, err = CreateModel(DefaultConfig(AlgorithmTree))
	require.NoError(t, err)
	assert.Equal(t, "DecisionTree", model.GetName())

	_, err = CreateModel(ModelConfig{Algorithm: "knn"})
	assert.Error(t, err)
}

func TestExtractClasses_Sorted(t *testing.T) {
	assert.Equal(t, []int{-1, 0, 3}, ExtractClasses([]int{3, 0, -1, 3, 0}))
	assert.False(t, math.IsNaN(gini([]int{0, 0}, 0)))
}

func contains(values []int, target int) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
