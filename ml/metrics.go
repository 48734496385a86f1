package ml

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sjwhitworth/golearn/evaluation"
)

// Metrics are held-out scores. Precision, recall and F1 are per-class values
// averaged by class support.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ConfusionMatrix tallies actual against predicted labels, rows keyed by the actual label.
func ConfusionMatrix(actual, predicted []int, codec *LabelCodec) (evaluation.ConfusionMatrix, error) {
	if len(actual) != len(predicted) {
		return nil, errors.Errorf("%d actual labels but %d predictions", len(actual), len(predicted))
	}
	cm := make(evaluation.ConfusionMatrix)
	for i := range actual {
		want, err := codec.Decode(actual[i])
		if err != nil {
			return nil, err
		}
		got, err := codec.Decode(predicted[i])
		if err != nil {
			return nil, err
		}
		if cm[want] == nil {
			cm[want] = make(map[string]int)
		}
		cm[want][got]++
	}
	return cm, nil
}

func Evaluate(actual, predicted []int, codec *LabelCodec) (Metrics, error) {
	if len(actual) == 0 {
		return Metrics{}, errors.Wrap(ErrInsufficientData, "nothing to evaluate")
	}
	cm, err := ConfusionMatrix(actual, predicted, codec)
	if err != nil {
		return Metrics{}, err
	}

	m := Metrics{Accuracy: finite(evaluation.GetAccuracy(cm)), Support: len(actual)}
	total := float64(len(actual))
	for _, class := range codec.Labels() {
		row, ok := cm[class]
		if !ok {
			continue
		}
		var support int
		for _, n := range row {
			support += n
		}
		weight := float64(support) / total
		m.Precision += weight * finite(evaluation.GetPrecision(class, cm))
		m.Recall += weight * finite(evaluation.GetRecall(class, cm))
		m.F1 += weight * finite(evaluation.GetF1Score(class, cm))
	}
	return m, nil
}

// finite maps the NaN of an undefined ratio to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
