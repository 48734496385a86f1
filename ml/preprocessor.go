package ml

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"fixturecast/pipeline"
)

// UnknownCategoryPolicy decides what happens to indicator columns a fixture row
// produces that the trained column space has never seen.
type UnknownCategoryPolicy string

const (
	// UnknownIgnore drops the column; the category contributes nothing.
	UnknownIgnore UnknownCategoryPolicy = "ignore"
	UnknownReject UnknownCategoryPolicy = "reject"
)

func ParseUnknownCategoryPolicy(s string) (UnknownCategoryPolicy, error) {
	switch p := UnknownCategoryPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return UnknownIgnore, nil
	case UnknownIgnore, UnknownReject:
		return p, nil
	default:
		return "", errors.Errorf("unknown category policy %q", s)
	}
}

// Alignment is a fixture row rebuilt in a trained column space.
type Alignment struct {
	Vector  []float64
	Unknown []string
}

// Aligner rebuilds feature vectors for rows that were not part of training.
type Aligner struct {
	Schema *FeatureSchema
	Policy UnknownCategoryPolicy
}

func NewAligner(schema *FeatureSchema, policy UnknownCategoryPolicy) *Aligner {
	if policy == "" {
		policy = UnknownIgnore
	}
	return &Aligner{Schema: schema, Policy: policy}
}

func (a *Aligner) Align(row pipeline.Row) (*Alignment, error) {
	return EncodeInference(row, a.Schema, a.Policy)
}

// EncodeInference expands row exactly as training did and reorders the result to
// the schema's column space. Trained columns the row does not produce are zero
// (numeric columns take their fill value); columns the model never saw are
// handled by policy.
func EncodeInference(row pipeline.Row, schema *FeatureSchema, policy UnknownCategoryPolicy) (*Alignment, error) {
	if schema == nil || schema.Space.Len() == 0 {
		return nil, ErrEmptyColumnSpace
	}

	expanded := expandRow(row, schema)

	vector := make([]float64, schema.Space.Len())
	for i, name := range schema.Space.names {
		if v, ok := expanded[name]; ok {
			vector[i] = v
			continue
		}
		fill, numeric := schema.NumericFill[name]
		if !numeric {
			continue
		}
		if schema.MissingNumeric == MissingReject {
			return nil, errors.Wrapf(ErrMissingValue, "column %q at %s:%d", name, row.Source, row.Line)
		}
		vector[i] = fill
	}

	var unknown []string
	for name := range expanded {
		if _, ok := schema.Space.Index(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)

	if len(unknown) > 0 && policy == UnknownReject {
		return nil, errors.Wrapf(ErrUnknownCategory, "%s", strings.Join(unknown, ", "))
	}
	return &Alignment{Vector: vector, Unknown: unknown}, nil
}

func expandRow(row pipeline.Row, schema *FeatureSchema) map[string]float64 {
	expanded := make(map[string]float64, len(row.Values))
	for column, v := range row.Values {
		if v.IsMissing() || schema.skip(column) {
			continue
		}
		if schema.isNumeric(column) {
			if f, ok := v.Float(); ok {
				expanded[column] = f
				continue
			}
		}
		expanded[IndicatorName(column, v.String())] = 1
	}
	return expanded
}
