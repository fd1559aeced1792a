package table

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind 列类型
type Kind string

const (
	KindInt      Kind = "int64"
	KindFloat    Kind = "float64"
	KindBool     Kind = "bool"
	KindDatetime Kind = "datetime"
	KindString   Kind = "string"
)

// datetimeLayouts 重新解析日期时可接受的格式
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// InferKind 根据非缺失值推断列类型
func InferKind(vals []any) Kind {
	var sawInt, sawFloat, sawBool, sawTime, sawString bool
	for _, v := range vals {
		switch v.(type) {
		case nil:
		case int64:
			sawInt = true
		case float64:
			sawFloat = true
		case bool:
			sawBool = true
		case time.Time:
			sawTime = true
		default:
			if !IsMissing(v) {
				sawString = true
			}
		}
	}
	switch {
	case sawString:
		return KindString
	case sawTime && !sawInt && !sawFloat && !sawBool:
		return KindDatetime
	case sawBool && !sawInt && !sawFloat && !sawTime:
		return KindBool
	case sawFloat && !sawBool && !sawTime:
		return KindFloat
	case sawInt && !sawBool && !sawTime:
		return KindInt
	}
	return KindString
}

// DTypes 返回每列推断出的类型
func (t *Table) DTypes() map[string]Kind {
	out := make(map[string]Kind, len(t.columns))
	for _, c := range t.columns {
		out[c] = InferKind(t.data[c])
	}
	return out
}

// DTypeHints 以字符串形式返回列类型，用于持久化
func (t *Table) DTypeHints() map[string]string {
	out := make(map[string]string, len(t.columns))
	for c, k := range t.DTypes() {
		out[c] = string(k)
	}
	return out
}

// ApplyHints 按持久化的类型提示重新转换列值
// JSON/Blob 往返后整数会变成 float64，日期会退化为字符串，这里将其恢复
func (t *Table) ApplyHints(hints map[string]string) {
	for col, hint := range hints {
		vals, ok := t.data[col]
		if !ok {
			continue
		}
		kind := Kind(hint)
		for i, v := range vals {
			vals[i] = coerce(v, kind)
		}
	}
}

// coerce 将单个值转换为目标类型，无法转换时保留原值
func coerce(v any, kind Kind) any {
	if IsMissing(v) {
		return nil
	}
	if n, ok := v.(json.Number); ok {
		v = number(n, kind)
	}
	switch kind {
	case KindInt:
		switch x := v.(type) {
		case int64:
			return x
		case float64:
			if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
				return int64(x)
			}
			return x
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return n
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil && f == math.Trunc(f) {
				return int64(f)
			}
		}
	case KindFloat:
		switch x := v.(type) {
		case float64:
			return x
		case int64:
			return float64(x)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil && !math.IsNaN(f) {
				return f
			}
		}
	case KindBool:
		switch x := v.(type) {
		case bool:
			return x
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b
			}
		case float64:
			return x != 0
		case int64:
			return x != 0
		}
	case KindDatetime:
		switch x := v.(type) {
		case time.Time:
			return x
		case string:
			if ts, ok := ParseTime(x); ok {
				return ts
			}
		}
	case KindString:
		switch x := v.(type) {
		case string:
			return x
		case time.Time:
			return x.Format(time.RFC3339)
		default:
			return fmt.Sprint(x)
		}
	}
	return v
}

// ParseTime 尝试按常见格式解析时间
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// IsNumeric 列中所有非缺失值均为数值且至少有一个值
func (t *Table) IsNumeric(col string) bool {
	vals, ok := t.data[col]
	if !ok {
		return false
	}
	seen := false
	for _, v := range vals {
		switch v.(type) {
		case nil:
		case int64, float64:
			seen = true
		default:
			return false
		}
	}
	return seen
}

// IsDatetime 列中所有非缺失值均为时间
func (t *Table) IsDatetime(col string) bool {
	vals, ok := t.data[col]
	if !ok {
		return false
	}
	seen := false
	for _, v := range vals {
		switch v.(type) {
		case nil:
		case time.Time:
			seen = true
		default:
			return false
		}
	}
	return seen
}

// NumericColumns 返回数值列（保持列序）
func (t *Table) NumericColumns() []string {
	var out []string
	for _, c := range t.columns {
		if t.IsNumeric(c) {
			out = append(out, c)
		}
	}
	return out
}

// CategoricalColumns 返回非数值、非时间的列
func (t *Table) CategoricalColumns() []string {
	var out []string
	for _, c := range t.columns {
		if !t.IsNumeric(c) && !t.IsDatetime(c) {
			out = append(out, c)
		}
	}
	return out
}

// DatetimeColumns 返回时间列
func (t *Table) DatetimeColumns() []string {
	var out []string
	for _, c := range t.columns {
		if t.IsDatetime(c) {
			out = append(out, c)
		}
	}
	return out
}

// MissingCount 缺失值数量
func (t *Table) MissingCount(col string) int {
	n := 0
	for _, v := range t.data[col] {
		if IsMissing(v) {
			n++
		}
	}
	return n
}

// NUnique 非缺失值的去重数量
func (t *Table) NUnique(col string) int {
	seen := make(map[string]struct{})
	for _, v := range t.data[col] {
		if IsMissing(v) {
			continue
		}
		seen[Key(v)] = struct{}{}
	}
	return len(seen)
}

// Floats 返回列的数值形式，ok[i] 为 false 表示缺失或非数值
func (t *Table) Floats(col string) ([]float64, []bool) {
	vals := t.data[col]
	out := make([]float64, len(vals))
	ok := make([]bool, len(vals))
	for i, v := range vals {
		if f, isNum := ToFloat(v); isNum {
			out[i] = f
			ok[i] = true
		}
	}
	return out, ok
}

// Present 返回列中所有非缺失数值
func (t *Table) Present(col string) []float64 {
	vals, ok := t.Floats(col)
	out := make([]float64, 0, len(vals))
	for i, v := range vals {
		if ok[i] {
			out = append(out, v)
		}
	}
	return out
}

// ToFloat 将数值转换为 float64
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case int64:
		return float64(x), true
	}
	return 0, false
}

// Key 返回值的字符串键，用于计数与编码
func Key(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// ValueCount 值计数
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts 按出现次数降序返回值计数，次数相同按值升序
func (t *Table) ValueCounts(col string) []ValueCount {
	counts := make(map[string]int)
	for _, v := range t.data[col] {
		if IsMissing(v) {
			continue
		}
		counts[Key(v)]++
	}
	out := make([]ValueCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, ValueCount{Value: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}
