package ml

import (
	"sort"

	"github.com/pkg/errors"

	"fixturecast/pipeline"
)

// LabelCodec maps outcome labels to dense class indices. Indices follow the
// sorted order of the labels, so the same training set always yields the same mapping.
type LabelCodec struct {
	labels []string
	index  map[string]int
}

func NewLabelCodec() *LabelCodec {
	return &LabelCodec{index: make(map[string]int)}
}

// Fit replaces the mapping with the distinct non-missing labels in values.
func (c *LabelCodec) Fit(values []pipeline.Value) error {
	seen := make(map[string]struct{})
	labels := make([]string, 0)
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		label := v.String()
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	sort.Strings(labels)

	c.labels = labels
	c.index = make(map[string]int, len(labels))
	for i, label := range labels {
		c.index[label] = i
	}
	return nil
}

func (c *LabelCodec) Encode(label string) (int, error) {
	idx, ok := c.index[label]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownLabel, "%q", label)
	}
	return idx, nil
}

func (c *LabelCodec) Decode(index int) (string, error) {
	if index < 0 || index >= len(c.labels) {
		return "", errors.Wrapf(ErrUnknownIndex, "%d not in [0, %d)", index, len(c.labels))
	}
	return c.labels[index], nil
}

func (c *LabelCodec) Labels() []string {
	return append([]string(nil), c.labels...)
}

func (c *LabelCodec) Len() int {
	return len(c.labels)
}
