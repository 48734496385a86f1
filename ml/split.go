package ml

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// TrainTestSplit shuffles 0..n-1 with seed and holds out ceil(n*testRatio) of
// them. Both index lists come back sorted.
func TrainTestSplit(n int, testRatio float64, seed int64) (train, test []int, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, errors.Errorf("test ratio %v not in (0, 1)", testRatio)
	}
	testSize := int(math.Ceil(float64(n) * testRatio))
	if n <= 0 || testSize >= n {
		return nil, nil, errors.Wrapf(ErrInsufficientData, "%d labeled rows cannot be split at ratio %v", n, testRatio)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test = append([]int(nil), perm[:testSize]...)
	train = append([]int(nil), perm[testSize:]...)
	sort.Ints(test)
	sort.Ints(train)
	return train, test, nil
}
