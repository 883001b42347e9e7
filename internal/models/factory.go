package models

import (
	"fmt"
)

const (
	AlgorithmForest = "forest"
	AlgorithmTree   = "tree"
)

type ModelConfig struct {
	Algorithm string
	Forest    ForestConfig
	Workers   int
}

func CreateModel(config ModelConfig) (Classifier, error) {
	switch config.Algorithm {
	case AlgorithmForest, "":
		return NewRandomForest(config.Forest, config.Workers), nil

	case AlgorithmTree:
		tree := NewDecisionTree(config.Forest.MaxDepth, config.Forest.MinSamplesSplit)
		tree.MinImpurityDecrease = config.Forest.MinImpurityDecrease
		return tree, nil

	default:
		return nil, fmt.Errorf("unknown algorithm: %s", config.Algorithm)
	}
}

func DefaultConfig(algorithm string) ModelConfig {
	return ModelConfig{
		Algorithm: algorithm,
		Forest:    DefaultForestConfig(),
		Workers:   1,
	}
}
