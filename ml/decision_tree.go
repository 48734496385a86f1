package ml

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DecisionTree is a CART classifier split on gini impurity.
type DecisionTree struct {
	// MaxDepth of zero grows until leaves are pure.
	MaxDepth        int
	MinSamplesSplit int
	// MaxFeatures is the number of features drawn per split; zero means all.
	MaxFeatures int
	Seed        int64

	nodes      []TreeNode
	numClasses int
	width      int
}

type TreeNode struct {
	FeatureIdx   int
	Threshold    float64
	LeftChild    int
	RightChild   int
	ClassLabel   int
	IsLeaf       bool
	Distribution []float64
}

func NewDecisionTree(maxDepth int) *DecisionTree {
	return &DecisionTree{MaxDepth: maxDepth, MinSamplesSplit: 2}
}

func (dt *DecisionTree) Name() string { return "decision_tree" }

func (dt *DecisionTree) Train(features mat.Matrix, labels []int, numClasses int) error {
	rows, _ := features.Dims()
	samples := make([]int, rows)
	for i := range samples {
		samples[i] = i
	}
	return dt.fit(features, labels, samples, numClasses, rand.New(rand.NewSource(dt.Seed)))
}

// fit grows the tree on the given sample indices, which may repeat.
func (dt *DecisionTree) fit(features mat.Matrix, labels []int, samples []int, numClasses int, rng *rand.Rand) error {
	rows, cols := features.Dims()
	if rows == 0 || len(labels) == 0 || len(samples) == 0 {
		return errors.New("features or labels empty")
	}
	if rows != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if numClasses <= 0 {
		return errors.Errorf("invalid class count %d", numClasses)
	}
	for _, label := range labels {
		if label < 0 || label >= numClasses {
			return errors.Wrapf(ErrUnknownIndex, "%d not in [0, %d)", label, numClasses)
		}
	}

	dt.nodes = nil
	dt.numClasses = numClasses
	dt.width = cols
	dt.buildNode(features, labels, samples, 0, rng)
	return nil
}

func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), leaf.Distribution...), nil
}

// Predict returns the leaf's majority class and the share of training samples
// in that leaf carrying it.
func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return 0, 0, err
	}
	return leaf.ClassLabel, leaf.Distribution[leaf.ClassLabel], nil
}

func (dt *DecisionTree) leaf(features []float64) (*TreeNode, error) {
	if len(dt.nodes) == 0 {
		return nil, ErrNotFitted
	}
	if len(features) != dt.width {
		return nil, errors.Errorf("expected %d features, got %d", dt.width, len(features))
	}
	idx := 0
	for {
		node := &dt.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

// Depth is the length of the longest root to leaf path.
func (dt *DecisionTree) Depth() int {
	if len(dt.nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return 0
		}
		l, r := walk(node.LeftChild), walk(node.RightChild)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

// buildNode appends the subtree for samples and returns the index of its root.
func (dt *DecisionTree) buildNode(features mat.Matrix, labels []int, samples []int, depth int, rng *rand.Rand) int {
	dist := distribution(labels, samples, dt.numClasses)
	idx := len(dt.nodes)
	dt.nodes = append(dt.nodes, TreeNode{
		FeatureIdx:   -1,
		LeftChild:    -1,
		RightChild:   -1,
		ClassLabel:   floats.MaxIdx(dist),
		IsLeaf:       true,
		Distribution: dist,
	})

	minSplit := dt.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}
	if (dt.MaxDepth > 0 && depth >= dt.MaxDepth) || len(samples) < minSplit || isPure(labels, samples) {
		return idx
	}

	feature, threshold, ok := dt.findBestSplit(features, labels, samples, rng)
	if !ok {
		return idx
	}
	left, right := splitSamples(features, samples, feature, threshold)
	if len(left) == 0 || len(right) == 0 {
		return idx
	}

	leftIdx := dt.buildNode(features, labels, left, depth+1, rng)
	rightIdx := dt.buildNode(features, labels, right, depth+1, rng)

	node := &dt.nodes[idx]
	node.FeatureIdx = feature
	node.Threshold = threshold
	node.LeftChild = leftIdx
	node.RightChild = rightIdx
	node.IsLeaf = false
	return idx
}

// findBestSplit scans candidate features in random order. Constant features do
// not count towards MaxFeatures, so a split is found whenever one exists.
func (dt *DecisionTree) findBestSplit(features mat.Matrix, labels []int, samples []int, rng *rand.Rand) (int, float64, bool) {
	_, cols := features.Dims()
	order := make([]int, cols)
	for i := range order {
		order[i] = i
	}
	limit := cols
	if dt.MaxFeatures > 0 && dt.MaxFeatures < cols {
		limit = dt.MaxFeatures
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := 0.0
	visited := 0

	for _, featureIdx := range order {
		if visited >= limit && bestFeature >= 0 {
			break
		}
		threshold, impurity, ok := bestThresholdFor(features, labels, samples, featureIdx, dt.numClasses)
		if !ok {
			continue
		}
		visited++
		if bestFeature == -1 || impurity < bestImpurity {
			bestFeature = featureIdx
			bestThreshold = threshold
			bestImpurity = impurity
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

type sampleValue struct {
	value float64
	label int
}

// bestThresholdFor sweeps the sorted values of one feature and returns the
// midpoint threshold with the lowest weighted gini.
func bestThresholdFor(features mat.Matrix, labels []int, samples []int, featureIdx, numClasses int) (float64, float64, bool) {
	values := make([]sampleValue, len(samples))
	for i, s := range samples {
		values[i] = sampleValue{value: features.At(s, featureIdx), label: labels[s]}
	}
	sort.SliceStable(values, func(i, j int) bool { return values[i].value < values[j].value })
	if values[0].value == values[len(values)-1].value {
		return 0, 0, false
	}

	total := make([]int, numClasses)
	for _, v := range values {
		total[v.label]++
	}
	left := make([]int, numClasses)
	right := append([]int(nil), total...)

	n := len(values)
	found := false
	bestThreshold, bestImpurity := 0.0, 0.0
	for i := 0; i < n-1; i++ {
		left[values[i].label]++
		right[values[i].label]--
		if values[i].value == values[i+1].value {
			continue
		}
		impurity := weightedGini(left, i+1, right, n-i-1)
		if !found || impurity < bestImpurity {
			threshold := (values[i].value + values[i+1].value) / 2
			if threshold >= values[i+1].value {
				threshold = values[i].value
			}
			bestThreshold, bestImpurity, found = threshold, impurity, true
		}
	}
	return bestThreshold, bestImpurity, found
}

func splitSamples(features mat.Matrix, samples []int, featureIdx int, threshold float64) ([]int, []int) {
	left := make([]int, 0)
	right := make([]int, 0)
	for _, s := range samples {
		if features.At(s, featureIdx) <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	return left, right
}

func weightedGini(left []int, leftN int, right []int, rightN int) float64 {
	total := float64(leftN + rightN)
	return (float64(leftN)/total)*gini(left, leftN) + (float64(rightN)/total)*gini(right, rightN)
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(n)
		impurity -= prob * prob
	}
	return impurity
}

// distribution is the class share of samples.
func distribution(labels []int, samples []int, numClasses int) []float64 {
	dist := make([]float64, numClasses)
	for _, s := range samples {
		dist[labels[s]]++
	}
	floats.Scale(1/float64(len(samples)), dist)
	return dist
}

func isPure(labels []int, samples []int) bool {
	if len(samples) == 0 {
		return true
	}
	first := labels[samples[0]]
	for _, s := range samples[1:] {
		if labels[s] != first {
			return false
		}
	}
	return true
}
