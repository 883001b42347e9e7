package models

import (
	"sort"
)

type TreeNode struct {
	IsLeaf    bool
	Class     int
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
	Samples   int
	Impurity  float64
	// ImpurityDecrease is the parent impurity minus the sample-weighted impurity
	// of both children.
	ImpurityDecrease float64
}

type DecisionTree struct {
	BaseModel
	Root                *TreeNode
	MaxDepth            int
	MinSamplesSplit     int
	MinImpurityDecrease float64
	NFeatures           int
}

// NewDecisionTree returns an unfitted gini tree. A maxDepth of zero or less grows
// the tree until leaves are pure or too small to split.
func NewDecisionTree(maxDepth, minSamplesSplit int) *DecisionTree {
	if maxDepth < 0 {
		maxDepth = 0
	}

	if minSamplesSplit < 2 {
		minSamplesSplit = 2
	}

	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		BaseModel: BaseModel{
			Name: "DecisionTree",
			Params: map[string]any{
				"max_depth":         maxDepth,
				"min_samples_split": minSamplesSplit,
			},
		},
	}
}

func (dt *DecisionTree) Fit(X [][]float64, y []int) error {
	if err := validateTrainingData(X, y); err != nil {
		return err
	}

	dt.Classes = ExtractClasses(y)
	dt.NFeatures = len(X[0])

	classIdx := make(map[int]int, len(dt.Classes))
	for i, class := range dt.Classes {
		classIdx[class] = i
	}
	encoded := make([]int, len(y))
	for i, label := range y {
		encoded[i] = classIdx[label]
	}

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}

	b := &treeBuilder{tree: dt, X: X, y: encoded, nClasses: len(dt.Classes)}
	dt.Root = b.build(indices, 0)
	return nil
}

type treeBuilder struct {
	tree     *DecisionTree
	X        [][]float64
	y        []int
	nClasses int
}

func (b *treeBuilder) counts(indices []int) []int {
	counts := make([]int, b.nClasses)
	for _, idx := range indices {
		counts[b.y[idx]]++
	}
	return counts
}

func (b *treeBuilder) leaf(node *TreeNode, counts []int) *TreeNode {
	node.IsLeaf = true
	node.Class = b.tree.Classes[majority(counts)]
	return node
}

func (b *treeBuilder) build(indices []int, depth int) *TreeNode {
	counts := b.counts(indices)
	node := &TreeNode{
		Samples:  len(indices),
		Impurity: gini(counts, len(indices)),
	}

	if (b.tree.MaxDepth > 0 && depth >= b.tree.MaxDepth) ||
		len(indices) < b.tree.MinSamplesSplit ||
		node.Impurity == 0 {
		return b.leaf(node, counts)
	}

	feature, threshold, decrease, ok := b.bestSplit(indices, counts, node.Impurity)
	if !ok || decrease < b.tree.MinImpurityDecrease {
		return b.leaf(node, counts)
	}

	var left, right []int
	for _, idx := range indices {
		if b.X[idx][feature] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}

	node.Feature = feature
	node.Threshold = threshold
	node.ImpurityDecrease = decrease
	node.Left = b.build(left, depth+1)
	node.Right = b.build(right, depth+1)
	return node
}

// bestSplit sweeps every feature in sorted order and returns the midpoint
// threshold with the largest impurity decrease. Ties keep the first candidate
// found, scanning features and thresholds in ascending order.
func (b *treeBuilder) bestSplit(indices []int, counts []int, parentImpurity float64) (int, float64, float64, bool) {
	n := len(indices)
	bestFeature, bestThreshold, bestDecrease := 0, 0.0, 0.0
	found := false

	sorted := make([]int, n)
	leftCounts := make([]int, b.nClasses)
	rightCounts := make([]int, b.nClasses)

	for feature := 0; feature < b.tree.NFeatures; feature++ {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.X[sorted[i]][feature] < b.X[sorted[j]][feature]
		})

		for c := range leftCounts {
			leftCounts[c] = 0
		}
		copy(rightCounts, counts)

		for i := 0; i < n-1; i++ {
			label := b.y[sorted[i]]
			leftCounts[label]++
			rightCounts[label]--

			current := b.X[sorted[i]][feature]
			next := b.X[sorted[i+1]][feature]
			if current == next {
				continue
			}

			nLeft, nRight := i+1, n-i-1
			weighted := (float64(nLeft)*gini(leftCounts, nLeft) +
				float64(nRight)*gini(rightCounts, nRight)) / float64(n)
			decrease := parentImpurity - weighted

			if !found || decrease > bestDecrease {
				found = true
				bestFeature = feature
				bestThreshold = current + (next-current)/2
				bestDecrease = decrease
			}
		}
	}

	return bestFeature, bestThreshold, bestDecrease, found
}

// Predict returns the class of every row. An unfitted tree predicts zeros;
// callers holding decoded models check them with CheckFitted first.
func (dt *DecisionTree) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	if !dt.IsFitted() {
		return predictions
	}

	for i, sample := range X {
		predictions[i] = dt.predictSample(sample, dt.Root)
	}

	return predictions
}

func (dt *DecisionTree) IsFitted() bool {
	return dt != nil && dt.Root != nil
}

func (dt *DecisionTree) predictSample(sample []float64, node *TreeNode) int {
	for !node.IsLeaf {
		if sample[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Class
}

// FeatureImportances returns the normalized total impurity decrease contributed
// by each feature. A tree that never split returns all zeros.
func (dt *DecisionTree) FeatureImportances() []float64 {
	importances := make([]float64, dt.NFeatures)
	if dt.Root == nil {
		return importances
	}

	var walk func(node *TreeNode)
	walk = func(node *TreeNode) {
		if node.IsLeaf {
			return
		}
		importances[node.Feature] += float64(node.Samples) * node.ImpurityDecrease
		walk(node.Left)
		walk(node.Right)
	}
	walk(dt.Root)

	total := 0.0
	for _, v := range importances {
		total += v
	}
	if total > 0 {
		for i := range importances {
			importances[i] /= total
		}
	}
	return importances
}

func (dt *DecisionTree) GetClasses() []int {
	return dt.Classes
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0.0
	}

	impurity := 1.0
	for _, count := range counts {
		p := float64(count) / float64(n)
		impurity -= p * p
	}
	return impurity
}

// majority returns the index of the largest count; ties resolve to the lowest index.
func majority(counts []int) int {
	best := 0
	for i, count := range counts {
		if count > counts[best] {
			best = i
		}
	}
	return best
}
