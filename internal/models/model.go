package models

import (
	"sort"
)

// Classifier is a binary or multi-class model trained on dense float features.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
	GetName() string
	GetParams() map[string]any
	GetClasses() []int
	// IsFitted reports whether Fit has completed, or a fitted model was decoded.
	IsFitted() bool
}

// Ensemble is a Classifier made of independently fitted members.
type Ensemble interface {
	Classifier
	// PredictMembers returns one prediction column per member, rows aligned with X.
	PredictMembers(X [][]float64) [][]int
	// MemberImportances returns one normalized importance vector per member over
	// the full feature space.
	MemberImportances() [][]float64
}

type BaseModel struct {
	Name    string
	Params  map[string]any
	Classes []int
}

func (bm *BaseModel) GetName() string {
	return bm.Name
}

func (bm *BaseModel) GetParams() map[string]any {
	return bm.Params
}

// CheckFitted returns ErrNotFitted unless model is a fitted classifier.
func CheckFitted(model Classifier) error {
	if model == nil || !model.IsFitted() {
		return ErrNotFitted
	}
	return nil
}

// ExtractClasses returns the distinct labels of y in ascending order.
func ExtractClasses(y []int) []int {
	classMap := make(map[int]bool)
	for _, label := range y {
		classMap[label] = true
	}

	classes := make([]int, 0, len(classMap))
	for class := range classMap {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	return classes
}

func validateTrainingData(X [][]float64, y []int) error {
	if len(X) == 0 {
		return ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return ErrShapeMismatch
	}
	nFeatures := len(X[0])
	if nFeatures == 0 {
		return ErrNoFeatures
	}
	for _, row := range X {
		if len(row) != nFeatures {
			return ErrShapeMismatch
		}
	}
	return nil
}
