// Package table 提供列式存储的内存表格
// 每列是一个有序值序列，值类型限定为 float64、int64、bool、time.Time、string 或 nil（缺失）
package table

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// Table 列式表格
type Table struct {
	columns []string
	data    map[string][]any
	rows    int
}

// New 创建空表
func New(columns []string) *Table {
	t := &Table{
		columns: make([]string, 0, len(columns)),
		data:    make(map[string][]any, len(columns)),
	}
	for _, c := range columns {
		if _, ok := t.data[c]; ok {
			continue
		}
		t.columns = append(t.columns, c)
		t.data[c] = []any{}
	}
	return t
}

// FromRows 按行构造表格
func FromRows(columns []string, rows [][]any) *Table {
	t := New(columns)
	for _, row := range rows {
		t.AppendRow(row)
	}
	return t
}

// FromColumns 按列构造表格，所有列长度必须一致
func FromColumns(columns []string, data map[string][]any) (*Table, error) {
	t := New(columns)
	n := -1
	for _, c := range t.columns {
		vals := data[c]
		if n >= 0 && len(vals) != n {
			return nil, fmt.Errorf("column %q has %d values, want %d", c, len(vals), n)
		}
		n = len(vals)
		t.data[c] = normalizeValues(vals)
	}
	if n > 0 {
		t.rows = n
	}
	return t, nil
}

// AppendRow 追加一行，缺少的单元格视为缺失
func (t *Table) AppendRow(row []any) {
	for i, c := range t.columns {
		var v any
		if i < len(row) {
			v = normalize(row[i])
		}
		t.data[c] = append(t.data[c], v)
	}
	t.rows++
}

// Columns 返回列名（副本）
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// NumRows 行数
func (t *Table) NumRows() int {
	return t.rows
}

// NumCols 列数
func (t *Table) NumCols() int {
	return len(t.columns)
}

// Has 判断列是否存在
func (t *Table) Has(col string) bool {
	_, ok := t.data[col]
	return ok
}

// Column 返回列数据，调用方不得修改
func (t *Table) Column(col string) []any {
	return t.data[col]
}

// Value 返回单元格值
func (t *Table) Value(col string, row int) any {
	vals, ok := t.data[col]
	if !ok || row < 0 || row >= len(vals) {
		return nil
	}
	return vals[row]
}

// Set 设置单元格值
func (t *Table) Set(col string, row int, v any) {
	if vals, ok := t.data[col]; ok && row >= 0 && row < len(vals) {
		vals[row] = normalize(v)
	}
}

// SetColumn 替换或新增一列
func (t *Table) SetColumn(col string, vals []any) error {
	if len(t.columns) > 0 && len(vals) != t.rows {
		return fmt.Errorf("column %q has %d values, want %d", col, len(vals), t.rows)
	}
	if _, ok := t.data[col]; !ok {
		t.columns = append(t.columns, col)
	}
	t.data[col] = normalizeValues(vals)
	t.rows = len(vals)
	return nil
}

// Clone 深拷贝，修改副本不影响原表
func (t *Table) Clone() *Table {
	out := &Table{
		columns: t.Columns(),
		data:    make(map[string][]any, len(t.data)),
		rows:    t.rows,
	}
	for c, vals := range t.data {
		cp := make([]any, len(vals))
		copy(cp, vals)
		out.data[c] = cp
	}
	return out
}

// Select 选取部分列（忽略不存在的列）
func (t *Table) Select(cols []string) *Table {
	out := &Table{data: make(map[string][]any, len(cols)), rows: t.rows}
	for _, c := range cols {
		vals, ok := t.data[c]
		if !ok {
			continue
		}
		if _, dup := out.data[c]; dup {
			continue
		}
		cp := make([]any, len(vals))
		copy(cp, vals)
		out.columns = append(out.columns, c)
		out.data[c] = cp
	}
	return out
}

// Take 按行号选取行
func (t *Table) Take(idx []int) *Table {
	out := &Table{columns: t.Columns(), data: make(map[string][]any, len(t.data)), rows: len(idx)}
	for c, vals := range t.data {
		cp := make([]any, len(idx))
		for i, r := range idx {
			cp[i] = vals[r]
		}
		out.data[c] = cp
	}
	return out
}

// DropNA 删除指定列中任一值缺失的行；cols 为空时检查所有列
func (t *Table) DropNA(cols []string) *Table {
	if len(cols) == 0 {
		cols = t.columns
	}
	keep := make([]int, 0, t.rows)
	for r := 0; r < t.rows; r++ {
		complete := true
		for _, c := range cols {
			if vals, ok := t.data[c]; ok && IsMissing(vals[r]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, r)
		}
	}
	return t.Take(keep)
}

// Sample 按固定种子无放回抽样 n 行，保持原始行序
func (t *Table) Sample(n int, seed int64) *Table {
	if n >= t.rows {
		return t.Clone()
	}
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(t.rows)[:n]
	sort.Ints(idx)
	return t.Take(idx)
}

// Records 以行记录形式导出
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, t.rows)
	for r := 0; r < t.rows; r++ {
		rec := make(map[string]any, len(t.columns))
		for _, c := range t.columns {
			rec[c] = t.data[c][r]
		}
		out[r] = rec
	}
	return out
}

// Rows 以二维切片导出
func (t *Table) Rows() [][]any {
	out := make([][]any, t.rows)
	for r := 0; r < t.rows; r++ {
		row := make([]any, len(t.columns))
		for i, c := range t.columns {
			row[i] = t.data[c][r]
		}
		out[r] = row
	}
	return out
}

// Head 返回前 n 行
func (t *Table) Head(n int) *Table {
	if n > t.rows {
		n = t.rows
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.Take(idx)
}

// IsMissing 判断值是否缺失
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case string:
		return x == ""
	}
	return false
}

// normalize 将值规整为受支持的类型
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		return normalize(float64(x))
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case bool:
		return x
	case time.Time:
		return x
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func normalizeValues(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = normalize(v)
	}
	return out
}

// rowKey 行的字符串键，用于去重
func (t *Table) rowKey(r int) string {
	var b strings.Builder
	for _, c := range t.columns {
		b.WriteString(Key(t.data[c][r]))
		b.WriteByte('\x1f')
	}
	return b.String()
}

// DuplicateRows 重复行数量（首次出现的行不计）
func (t *Table) DuplicateRows() int {
	seen := make(map[string]struct{}, t.rows)
	dup := 0
	for r := 0; r < t.rows; r++ {
		k := t.rowKey(r)
		if _, ok := seen[k]; ok {
			dup++
			continue
		}
		seen[k] = struct{}{}
	}
	return dup
}

// DropDuplicates 删除重复行，保留首次出现
func (t *Table) DropDuplicates() *Table {
	seen := make(map[string]struct{}, t.rows)
	keep := make([]int, 0, t.rows)
	for r := 0; r < t.rows; r++ {
		k := t.rowKey(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, r)
	}
	return t.Take(keep)
}
