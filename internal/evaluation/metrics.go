package evaluation

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrLengthMismatch = errors.New("label arrays differ in length")

type ClassificationMetrics struct {
	Accuracy         float64              `json:"accuracy"`
	BalancedAccuracy float64              `json:"balanced_accuracy"`
	MacroPrecision   float64              `json:"macro_precision"`
	MacroRecall      float64              `json:"macro_recall"`
	MacroF1          float64              `json:"macro_f1"`
	PerClassMetrics  map[int]ClassMetrics `json:"per_class_metrics"`
	ConfusionMatrix  [][]int              `json:"confusion_matrix"`
	Classes          []int                `json:"classes"`
	NumSamples       int                  `json:"num_samples"`
}

type ClassMetrics struct {
	Precision   float64 `json:"precision"`
	Recall      float64 `json:"recall"`
	F1Score     float64 `json:"f1_score"`
	Specificity float64 `json:"specificity"`
	Support     int     `json:"support"`
}

// CalculateMetrics scores predictions against the true labels. Classes are the
// sorted union of both arrays. Balanced accuracy is the mean recall over the
// classes that occur in yTrue.
func CalculateMetrics(yTrue, yPred []int) (*ClassificationMetrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("%w: %d true, %d predicted", ErrLengthMismatch, len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, errors.New("cannot score an empty prediction")
	}

	classes := unionClasses(yTrue, yPred)
	confusionMatrix := buildConfusionMatrix(yTrue, yPred, classes)

	classSupport := make(map[int]int)
	for _, class := range yTrue {
		classSupport[class]++
	}

	perClassMetrics := make(map[int]ClassMetrics, len(classes))
	var macroPrec, macroRec, macroF1 float64
	var balanced float64
	present := 0

	for i, class := range classes {
		tp := confusionMatrix[i][i]
		fp, fn, tn := 0, 0, 0
		for j := range classes {
			for k := range classes {
				switch {
				case j == i && k != i:
					fn += confusionMatrix[j][k]
				case j != i && k == i:
					fp += confusionMatrix[j][k]
				case j != i && k != i:
					tn += confusionMatrix[j][k]
				}
			}
		}

		precision := safeDivide(float64(tp), float64(tp+fp))
		recall := safeDivide(float64(tp), float64(tp+fn))
		f1 := safeDivide(2*precision*recall, precision+recall)

		support := classSupport[class]
		perClassMetrics[class] = ClassMetrics{
			Precision:   precision,
			Recall:      recall,
			F1Score:     f1,
			Specificity: safeDivide(float64(tn), float64(tn+fp)),
			Support:     support,
		}

		macroPrec += precision
		macroRec += recall
		macroF1 += f1
		if support > 0 {
			balanced += recall
			present++
		}
	}

	correct := 0
	for i, pred := range yPred {
		if pred == yTrue[i] {
			correct++
		}
	}

	n := float64(len(classes))
	return &ClassificationMetrics{
		Accuracy:         float64(correct) / float64(len(yTrue)),
		BalancedAccuracy: safeDivide(balanced, float64(present)),
		MacroPrecision:   macroPrec / n,
		MacroRecall:      macroRec / n,
		MacroF1:          macroF1 / n,
		PerClassMetrics:  perClassMetrics,
		ConfusionMatrix:  confusionMatrix,
		Classes:          classes,
		NumSamples:       len(yTrue),
	}, nil
}

// Accuracy is the fraction of positions where the arrays agree.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

func unionClasses(yTrue, yPred []int) []int {
	seen := make(map[int]bool)
	for _, v := range yTrue {
		seen[v] = true
	}
	for _, v := range yPred {
		seen[v] = true
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

func buildConfusionMatrix(yTrue, yPred []int, classes []int) [][]int {
	matrix := make([][]int, len(classes))
	for i := range matrix {
		matrix[i] = make([]int, len(classes))
	}

	classToIdx := make(map[int]int, len(classes))
	for i, class := range classes {
		classToIdx[class] = i
	}

	for i := range yTrue {
		matrix[classToIdx[yTrue[i]]][classToIdx[yPred[i]]]++
	}
	return matrix
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0.0
	}
	result := numerator / denominator
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0.0
	}
	return result
}
