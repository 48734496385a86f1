package ml

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"fixturecast/pipeline"
)

const IndicatorSeparator = "_"

// IndicatorName names the 0/1 column standing for value in a categorical column.
func IndicatorName(column, value string) string {
	return column + IndicatorSeparator + value
}

type MissingNumericPolicy string

const (
	MissingZero   MissingNumericPolicy = "zero"
	MissingMean   MissingNumericPolicy = "mean"
	MissingReject MissingNumericPolicy = "reject"
)

func ParseMissingNumericPolicy(s string) (MissingNumericPolicy, error) {
	switch p := MissingNumericPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return MissingZero, nil
	case MissingZero, MissingMean, MissingReject:
		return p, nil
	default:
		return "", errors.Errorf("unknown missing numeric policy %q", s)
	}
}

// ColumnSpace is the ordered, immutable list of feature names a model was trained on.
type ColumnSpace struct {
	names []string
	index map[string]int
}

func NewColumnSpace(names []string) ColumnSpace {
	space := ColumnSpace{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		space.index[name] = i
	}
	return space
}

func (s ColumnSpace) Names() []string {
	return append([]string(nil), s.names...)
}

func (s ColumnSpace) Len() int {
	return len(s.names)
}

func (s ColumnSpace) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// FeatureSchema is everything inference needs to rebuild a training feature vector.
type FeatureSchema struct {
	Space          ColumnSpace
	OutcomeColumn  string
	Excluded       []string
	Categorical    []string
	NumericFill    map[string]float64
	MissingNumeric MissingNumericPolicy
}

func (s *FeatureSchema) skip(column string) bool {
	if column == s.OutcomeColumn {
		return true
	}
	for _, ex := range s.Excluded {
		if ex == column {
			return true
		}
	}
	return false
}

func (s *FeatureSchema) isNumeric(column string) bool {
	_, ok := s.NumericFill[column]
	return ok
}

type FeatureEncoder struct {
	OutcomeColumn  string
	Exclude        []string
	MissingNumeric MissingNumericPolicy
}

// EncodeTraining expands every feature column of set into a numeric matrix.
// Numeric columns come first in set column order, then the indicator columns of
// each categorical column with values sorted.
func (e *FeatureEncoder) EncodeTraining(set *pipeline.RowSet) (*mat.Dense, *FeatureSchema, error) {
	if set.Len() == 0 {
		return nil, nil, errors.Wrap(ErrInsufficientData, "no rows to encode")
	}
	policy := e.MissingNumeric
	if policy == "" {
		policy = MissingZero
	}

	schema := &FeatureSchema{
		OutcomeColumn:  e.OutcomeColumn,
		Excluded:       append([]string(nil), e.Exclude...),
		NumericFill:    make(map[string]float64),
		MissingNumeric: policy,
	}

	var numeric []string
	for _, column := range set.Columns {
		if schema.skip(column) {
			continue
		}
		if isNumericColumn(set, column) {
			numeric = append(numeric, column)
		} else {
			schema.Categorical = append(schema.Categorical, column)
		}
	}

	names := make([]string, 0, len(numeric))
	for _, column := range numeric {
		fill, err := numericFill(set, column, policy)
		if err != nil {
			return nil, nil, err
		}
		schema.NumericFill[column] = fill
		names = append(names, column)
	}
	for _, column := range schema.Categorical {
		for _, value := range distinctValues(set, column) {
			names = append(names, IndicatorName(column, value))
		}
	}
	if len(names) == 0 {
		return nil, nil, ErrEmptyColumnSpace
	}
	schema.Space = NewColumnSpace(names)

	width := len(names)
	data := make([]float64, set.Len()*width)
	for r, row := range set.Rows {
		offset := r * width
		for _, column := range numeric {
			i, _ := schema.Space.Index(column)
			v := row.Get(column)
			if v.IsMissing() {
				data[offset+i] = schema.NumericFill[column]
				continue
			}
			f, _ := v.Float()
			data[offset+i] = f
		}
		for _, column := range schema.Categorical {
			v := row.Get(column)
			if v.IsMissing() {
				continue
			}
			i, _ := schema.Space.Index(IndicatorName(column, v.String()))
			data[offset+i] = 1
		}
	}

	return mat.NewDense(set.Len(), width, data), schema, nil
}

// isNumericColumn reports whether a column holds no text. A column with no values
// at all counts as numeric.
func isNumericColumn(set *pipeline.RowSet, column string) bool {
	for _, row := range set.Rows {
		if row.Get(column).Kind == pipeline.Text {
			return false
		}
	}
	return true
}

func numericFill(set *pipeline.RowSet, column string, policy MissingNumericPolicy) (float64, error) {
	var sum float64
	var present int
	for _, row := range set.Rows {
		v := row.Get(column)
		if v.IsMissing() {
			if policy == MissingReject {
				return 0, errors.Wrapf(ErrMissingValue, "column %q at %s:%d", column, row.Source, row.Line)
			}
			continue
		}
		f, _ := v.Float()
		sum += f
		present++
	}
	if policy == MissingMean && present > 0 {
		return sum / float64(present), nil
	}
	return 0, nil
}

func distinctValues(set *pipeline.RowSet, column string) []string {
	seen := make(map[string]struct{})
	values := make([]string, 0)
	for _, row := range set.Rows {
		v := row.Get(column)
		if v.IsMissing() {
			continue
		}
		s := v.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		values = append(values, s)
	}
	sort.Strings(values)
	return values
}
