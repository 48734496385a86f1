package ml

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Classifier is a multi-class model over a fixed-width feature space.
type Classifier interface {
	Train(features mat.Matrix, labels []int, numClasses int) error
	// PredictProba returns one probability per class index, summing to 1.
	PredictProba(features []float64) ([]float64, error)
	Name() string
}

// Predict returns the most probable class and its probability. Ties go to the
// lowest class index.
func Predict(model Classifier, features []float64) (int, float64, error) {
	proba, err := model.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	return ArgMax(proba)
}

func ArgMax(proba []float64) (int, float64, error) {
	if len(proba) == 0 {
		return 0, 0, ErrNotFitted
	}
	best := floats.MaxIdx(proba)
	return best, proba[best], nil
}

// PredictBatch runs Predict on every row of features.
func PredictBatch(model Classifier, features mat.Matrix) ([]int, error) {
	rows, _ := features.Dims()
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		label, _, err := Predict(model, mat.Row(nil, i, features))
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		out[i] = label
	}
	return out, nil
}
