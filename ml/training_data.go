package ml

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"fixturecast/pipeline"
)

// LabeledRows keeps the rows whose outcome is known.
func LabeledRows(set *pipeline.RowSet, outcomeColumn string) *pipeline.RowSet {
	return set.Filter(func(row pipeline.Row) bool {
		return !row.Get(outcomeColumn).IsMissing()
	})
}

// FixtureRows keeps the rows whose outcome is missing.
func FixtureRows(set *pipeline.RowSet, outcomeColumn string) *pipeline.RowSet {
	return set.Filter(func(row pipeline.Row) bool {
		return row.Get(outcomeColumn).IsMissing()
	})
}

// EncodeLabels maps the outcome of every row through codec.
func EncodeLabels(set *pipeline.RowSet, outcomeColumn string, codec *LabelCodec) ([]int, error) {
	labels := make([]int, set.Len())
	for i, row := range set.Rows {
		v := row.Get(outcomeColumn)
		if v.IsMissing() {
			return nil, errors.Errorf("%s:%d has no %s", row.Source, row.Line, outcomeColumn)
		}
		idx, err := codec.Encode(v.String())
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", row.Source, row.Line)
		}
		labels[i] = idx
	}
	return labels, nil
}

func SelectRows(features mat.Matrix, indices []int) *mat.Dense {
	_, cols := features.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for i, idx := range indices {
		out.SetRow(i, mat.Row(nil, idx, features))
	}
	return out
}

func SelectLabels(labels []int, indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = labels[idx]
	}
	return out
}
