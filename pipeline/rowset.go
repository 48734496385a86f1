package pipeline

import (
	"sort"
	"strconv"
)

// Kind 值类型
type Kind int

const (
	Missing Kind = iota
	Text
	Number
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Number:
		return "number"
	default:
		return "missing"
	}
}

// Value 单元格原始值
// 数值保留 Str 中的原始文本，用于展示和指示列命名
type Value struct {
	Kind Kind
	Str  string
	Num  float64
}

func TextValue(s string) Value {
	return Value{Kind: Text, Str: s}
}

func NumberValue(f float64) Value {
	return Value{Kind: Number, Num: f}
}

func MissingValue() Value {
	return Value{Kind: Missing}
}

func (v Value) IsMissing() bool {
	return v.Kind == Missing
}

// String 返回用于指示列命名的文本形式
func (v Value) String() string {
	switch v.Kind {
	case Text:
		return v.Str
	case Number:
		if v.Str != "" {
			return v.Str
		}
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	default:
		return ""
	}
}

// Float 返回数值形式，可解析的文本也接受
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case Number:
		return v.Num, true
	case Text:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Row 表格行
type Row struct {
	Source string
	Line   int
	Values map[string]Value
}

func NewRow(values map[string]Value) Row {
	if values == nil {
		values = make(map[string]Value)
	}
	return Row{Values: values}
}

// Get 获取列值，缺失列返回 Missing
func (r Row) Get(column string) Value {
	v, ok := r.Values[column]
	if !ok {
		return MissingValue()
	}
	return v
}

func (r Row) Has(column string) bool {
	return !r.Get(column).IsMissing()
}

// RowSet 行集合，Columns 为按发现顺序排列的列并集
type RowSet struct {
	Columns []string
	Rows    []Row
}

// NewRowSet 创建行集合
// 未在 columns 中声明的列按行内排序追加
func NewRowSet(columns []string, rows []Row) *RowSet {
	set := &RowSet{Rows: rows}
	seen := make(map[string]struct{})
	for _, c := range columns {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		set.Columns = append(set.Columns, c)
	}
	for _, row := range rows {
		for _, c := range sortedKeys(row.Values) {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			set.Columns = append(set.Columns, c)
		}
	}
	return set
}

func (s *RowSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

func (s *RowSet) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column 按行顺序返回某列的值
func (s *RowSet) Column(name string) []Value {
	values := make([]Value, len(s.Rows))
	for i, row := range s.Rows {
		values[i] = row.Get(name)
	}
	return values
}

// Filter 过滤行，保留列定义
func (s *RowSet) Filter(keep func(Row) bool) *RowSet {
	out := &RowSet{Columns: append([]string(nil), s.Columns...)}
	for _, row := range s.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// InferNumeric 数值列推断
// 非缺失值全部可解析为浮点数的列转换为 Number，全缺失列保持不变
func (s *RowSet) InferNumeric() []string {
	var numeric []string
	for _, column := range s.Columns {
		present := 0
		parsable := true
		for _, row := range s.Rows {
			v := row.Get(column)
			if v.IsMissing() {
				continue
			}
			present++
			if _, ok := v.Float(); !ok {
				parsable = false
				break
			}
		}
		if present == 0 || !parsable {
			continue
		}
		for _, row := range s.Rows {
			v, ok := row.Values[column]
			if !ok || v.IsMissing() {
				continue
			}
			f, _ := v.Float()
			row.Values[column] = Value{Kind: Number, Num: f, Str: v.Str}
		}
		numeric = append(numeric, column)
	}
	return numeric
}

func sortedKeys(values map[string]Value) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
