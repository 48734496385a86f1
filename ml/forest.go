package ml

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RandomForest averages the class distributions of bagged decision trees.
// Tree i is grown from the seed Seed+i, so a forest is reproducible.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	// MaxFeatures of zero draws sqrt(features) candidates per split.
	MaxFeatures int
	Bootstrap   bool
	Seed        int64

	trees      []*DecisionTree
	numClasses int
}

type ForestOption func(*RandomForest)

func WithNEstimators(n int) ForestOption {
	return func(f *RandomForest) { f.NEstimators = n }
}

func WithMaxDepth(depth int) ForestOption {
	return func(f *RandomForest) { f.MaxDepth = depth }
}

func WithMinSamplesSplit(n int) ForestOption {
	return func(f *RandomForest) { f.MinSamplesSplit = n }
}

func WithMaxFeatures(n int) ForestOption {
	return func(f *RandomForest) { f.MaxFeatures = n }
}

func WithBootstrap(enabled bool) ForestOption {
	return func(f *RandomForest) { f.Bootstrap = enabled }
}

func WithSeed(seed int64) ForestOption {
	return func(f *RandomForest) { f.Seed = seed }
}

func NewRandomForest(opts ...ForestOption) *RandomForest {
	f := &RandomForest{
		NEstimators:     100,
		MinSamplesSplit: 2,
		Bootstrap:       true,
		Seed:            42,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *RandomForest) Name() string { return "random_forest" }

func (f *RandomForest) Train(features mat.Matrix, labels []int, numClasses int) error {
	if f.NEstimators <= 0 {
		return errors.Errorf("invalid tree count %d", f.NEstimators)
	}
	rows, cols := features.Dims()
	if rows == 0 {
		return errors.New("features or labels empty")
	}

	maxFeatures := f.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(cols)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	trees := make([]*DecisionTree, 0, f.NEstimators)
	for i := 0; i < f.NEstimators; i++ {
		seed := f.Seed + int64(i)
		rng := rand.New(rand.NewSource(seed))

		samples := make([]int, rows)
		for j := range samples {
			if f.Bootstrap {
				samples[j] = rng.Intn(rows)
			} else {
				samples[j] = j
			}
		}

		tree := &DecisionTree{
			MaxDepth:        f.MaxDepth,
			MinSamplesSplit: f.MinSamplesSplit,
			MaxFeatures:     maxFeatures,
			Seed:            seed,
		}
		if err := tree.fit(features, labels, samples, numClasses, rng); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		trees = append(trees, tree)
	}

	f.trees = trees
	f.numClasses = numClasses
	return nil
}

func (f *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(f.trees) == 0 {
		return nil, ErrNotFitted
	}
	proba := make([]float64, f.numClasses)
	for _, tree := range f.trees {
		p, err := tree.PredictProba(features)
		if err != nil {
			return nil, err
		}
		floats.Add(proba, p)
	}
	floats.Scale(1/float64(len(f.trees)), proba)
	return proba, nil
}

func (f *RandomForest) Trees() int { return len(f.trees) }
