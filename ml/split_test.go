package ml

import (
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(10, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 2)
	assert.Len(t, train, 8)

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)

	again, againTest, err := TrainTestSplit(10, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, again)
	assert.Equal(t, test, againTest)
}

func TestTrainTestSplitRoundsTestUp(t *testing.T) {
	train, test, err := TrainTestSplit(4, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 1)
	assert.Len(t, train, 3)
}

func TestTrainTestSplitErrors(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		ratio float64
	}{
		{name: "single row", n: 1, ratio: 0.2},
		{name: "no rows", n: 0, ratio: 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := TrainTestSplit(tt.n, tt.ratio, 42)
			assert.True(t, errors.Is(err, ErrInsufficientData), "got %v", err)
		})
	}

	_, _, err := TrainTestSplit(10, 1.5, 42)
	assert.Error(t, err)
}
