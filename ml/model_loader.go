package ml

import (
	"github.com/pkg/errors"
)

const (
	ModelRandomForest = "random_forest"
	ModelDecisionTree = "decision_tree"
)

type ModelConfig struct {
	Type            string `yaml:"type"`
	Trees           int    `yaml:"trees"`
	MaxDepth        int    `yaml:"max_depth"`
	MinSamplesSplit int    `yaml:"min_samples_split"`
	MaxFeatures     int    `yaml:"max_features"`
	// Bootstrap is on unless explicitly disabled.
	Bootstrap *bool `yaml:"bootstrap"`
}

// NewClassifier builds an untrained classifier from config.
func NewClassifier(config ModelConfig, seed int64) (Classifier, error) {
	switch config.Type {
	case "", ModelRandomForest:
		opts := []ForestOption{
			WithSeed(seed),
			WithMaxDepth(config.MaxDepth),
			WithMaxFeatures(config.MaxFeatures),
		}
		if config.Trees > 0 {
			opts = append(opts, WithNEstimators(config.Trees))
		}
		if config.MinSamplesSplit > 0 {
			opts = append(opts, WithMinSamplesSplit(config.MinSamplesSplit))
		}
		if config.Bootstrap != nil {
			opts = append(opts, WithBootstrap(*config.Bootstrap))
		}
		return NewRandomForest(opts...), nil
	case ModelDecisionTree:
		tree := NewDecisionTree(config.MaxDepth)
		tree.MaxFeatures = config.MaxFeatures
		tree.Seed = seed
		if config.MinSamplesSplit > 0 {
			tree.MinSamplesSplit = config.MinSamplesSplit
		}
		return tree, nil
	default:
		return nil, errors.Errorf("unsupported model type %q", config.Type)
	}
}
