package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"fixturecast/pipeline"
)

func TestLabeledAndFixtureRows(t *testing.T) {
	set := opponentHistory()
	set.Rows = append(set.Rows, row(6, map[string]pipeline.Value{"Oponente": text("C")}))

	labeled := LabeledRows(set, "Resultado")
	fixtures := FixtureRows(set, "Resultado")
	assert.Equal(t, 4, labeled.Len())
	require.Equal(t, 1, fixtures.Len())
	assert.Equal(t, 6, fixtures.Rows[0].Line)
	assert.Equal(t, set.Columns, fixtures.Columns)
}

func TestEncodeLabels(t *testing.T) {
	set := opponentHistory()
	codec := NewLabelCodec()
	require.NoError(t, codec.Fit(set.Column("Resultado")))

	labels, err := EncodeLabels(set, "Resultado", codec)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1, 0}, labels)

	set.Rows = append(set.Rows, row(6, map[string]pipeline.Value{"Oponente": text("C")}))
	_, err = EncodeLabels(set, "Resultado", codec)
	assert.Error(t, err)
}

func TestSelectRows(t *testing.T) {
	features := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	picked := SelectRows(features, []int{2, 0})
	assert.True(t, mat.Equal(picked, mat.NewDense(2, 2, []float64{5, 6, 1, 2})))
	assert.Equal(t, []int{30, 10}, SelectLabels([]int{10, 20, 30}, []int{2, 0}))
}
