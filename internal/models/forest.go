package models

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// ForestConfig holds the hyperparameters that change what a forest learns.
// Workers only changes how fast it learns and is kept on the forest itself.
type ForestConfig struct {
	NTrees              int     `yaml:"n_trees" json:"n_trees"`
	MaxDepth            int     `yaml:"max_depth" json:"max_depth"`
	MinSamplesSplit     int     `yaml:"min_samples_split" json:"min_samples_split"`
	MinImpurityDecrease float64 `yaml:"min_impurity_decrease" json:"min_impurity_decrease"`
	// MaxFeatures is the size of each tree's random feature subspace; zero means
	// the square root of the feature count.
	MaxFeatures int   `yaml:"max_features" json:"max_features"`
	Seed        int64 `yaml:"-" json:"random_state"`
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NTrees:          100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
	}
}

type RandomForest struct {
	BaseModel
	Config         ForestConfig
	NFeatures      int
	Trees          []*DecisionTree
	FeatureIndices [][]int
	Workers        int
}

func NewRandomForest(config ForestConfig, workers int) *RandomForest {
	if config.NTrees <= 0 {
		config.NTrees = 100
	}
	if config.MinSamplesSplit < 2 {
		config.MinSamplesSplit = 2
	}
	if workers <= 0 {
		workers = 1
	}

	return &RandomForest{
		Config:  config,
		Workers: workers,
		BaseModel: BaseModel{
			Name: "RandomForest",
			Params: map[string]any{
				"n_trees":               config.NTrees,
				"max_depth":             config.MaxDepth,
				"min_samples_split":     config.MinSamplesSplit,
				"min_impurity_decrease": config.MinImpurityDecrease,
				"max_features":          config.MaxFeatures,
				"random_state":          config.Seed,
			},
		},
	}
}

func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if err := validateTrainingData(X, y); err != nil {
		return err
	}

	rf.Classes = ExtractClasses(y)
	rf.NFeatures = len(X[0])
	rf.Trees = make([]*DecisionTree, rf.Config.NTrees)
	rf.FeatureIndices = make([][]int, rf.Config.NTrees)

	return rf.trainParallel(X, y)
}

// trainParallel fits every tree on a bounded worker pool. Each tree draws from
// its own seeded source and writes to its own slot, so the fitted forest does
// not depend on the number of workers.
func (rf *RandomForest) trainParallel(X [][]float64, y []int) error {
	var wg sync.WaitGroup
	errors := make([]error, rf.Config.NTrees)

	workers := rf.Workers
	if workers > rf.Config.NTrees {
		workers = rf.Config.NTrees
	}

	jobs := make(chan int, rf.Config.NTrees)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				tree, features, err := rf.trainSingleTree(X, y, rf.Config.Seed+int64(i))
				rf.Trees[i] = tree
				rf.FeatureIndices[i] = features
				errors[i] = err
			}
		}()
	}

	for i := 0; i < rf.Config.NTrees; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	for i, err := range errors {
		if err != nil {
			return fmt.Errorf("tree %d training failed: %w", i, err)
		}
	}

	return nil
}

func (rf *RandomForest) trainSingleTree(X [][]float64, y []int, seed int64) (*DecisionTree, []int, error) {
	r := rand.New(rand.NewSource(seed))

	n := len(X)
	bootstrap := make([]int, n)
	for i := range bootstrap {
		bootstrap[i] = r.Intn(n)
	}

	features := rf.selectRandomFeatures(r)

	XSelected := make([][]float64, n)
	yBoot := make([]int, n)
	for i, idx := range bootstrap {
		row := make([]float64, len(features))
		for j, feat := range features {
			row[j] = X[idx][feat]
		}
		XSelected[i] = row
		yBoot[i] = y[idx]
	}

	tree := NewDecisionTree(rf.Config.MaxDepth, rf.Config.MinSamplesSplit)
	tree.MinImpurityDecrease = rf.Config.MinImpurityDecrease
	err := tree.Fit(XSelected, yBoot)

	return tree, features, err
}

func (rf *RandomForest) subspaceSize() int {
	size := rf.Config.MaxFeatures
	if size <= 0 {
		size = int(math.Sqrt(float64(rf.NFeatures)))
	}
	if size < 1 {
		size = 1
	}
	if size > rf.NFeatures {
		size = rf.NFeatures
	}
	return size
}

// selectRandomFeatures runs a partial Fisher-Yates shuffle and returns the
// chosen feature positions in ascending order.
func (rf *RandomForest) selectRandomFeatures(r *rand.Rand) []int {
	features := make([]int, rf.NFeatures)
	for i := range features {
		features[i] = i
	}

	size := rf.subspaceSize()
	for i := 0; i < size; i++ {
		j := i + r.Intn(rf.NFeatures-i)
		features[i], features[j] = features[j], features[i]
	}

	selected := append([]int(nil), features[:size]...)
	sort.Ints(selected)
	return selected
}

func (rf *RandomForest) project(sample []float64, member int) []float64 {
	selected := make([]float64, len(rf.FeatureIndices[member]))
	for k, feat := range rf.FeatureIndices[member] {
		selected[k] = sample[feat]
	}
	return selected
}

// PredictMembers returns the per-tree predictions, one row per sample.
func (rf *RandomForest) PredictMembers(X [][]float64) [][]int {
	votes := make([][]int, len(X))
	for i, sample := range X {
		votes[i] = make([]int, len(rf.Trees))
		for j, tree := range rf.Trees {
			votes[i][j] = tree.predictSample(rf.project(sample, j), tree.Root)
		}
	}
	return votes
}

// Predict returns the majority vote of the members; ties go to the smallest class.
func (rf *RandomForest) Predict(X [][]float64) []int {
	if !rf.IsFitted() {
		return make([]int, len(X))
	}
	return MajorityVote(rf.PredictMembers(X), rf.Classes)
}

// MajorityVote reduces per-member predictions to one label per row.
func MajorityVote(memberVotes [][]int, classes []int) []int {
	classIdx := make(map[int]int, len(classes))
	for i, class := range classes {
		classIdx[class] = i
	}

	predictions := make([]int, len(memberVotes))
	counts := make([]int, len(classes))
	for i, votes := range memberVotes {
		for c := range counts {
			counts[c] = 0
		}
		for _, vote := range votes {
			counts[classIdx[vote]]++
		}
		predictions[i] = classes[majority(counts)]
	}
	return predictions
}

// MemberImportances maps every tree's normalized importances back onto the full
// feature space. Features outside a tree's subspace get zero.
func (rf *RandomForest) MemberImportances() [][]float64 {
	importances := make([][]float64, len(rf.Trees))
	for i, tree := range rf.Trees {
		full := make([]float64, rf.NFeatures)
		for k, value := range tree.FeatureImportances() {
			full[rf.FeatureIndices[i][k]] = value
		}
		importances[i] = full
	}
	return importances
}

// IsFitted reports whether every member is fitted and has its feature subspace.
func (rf *RandomForest) IsFitted() bool {
	if rf == nil || len(rf.Trees) == 0 || len(rf.FeatureIndices) != len(rf.Trees) {
		return false
	}
	for _, tree := range rf.Trees {
		if !tree.IsFitted() {
			return false
		}
	}
	return true
}

func (rf *RandomForest) GetClasses() []int {
	return rf.Classes
}
