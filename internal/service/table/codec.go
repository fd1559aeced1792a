package table

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireTable 表格的持久化格式
type wireTable struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Encode 序列化为 JSON（行式）
func (t *Table) Encode() ([]byte, error) {
	data, err := json.Marshal(wireTable{Columns: t.columns, Rows: t.Rows()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode table: %w", err)
	}
	return data, nil
}

// Decode 从 JSON 反序列化，并按类型提示恢复列类型
func Decode(data []byte, hints map[string]string) (*Table, error) {
	var w wireTable
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to decode table: %w", err)
	}
	for _, row := range w.Rows {
		for j, v := range row {
			if n, ok := v.(json.Number); ok && j < len(w.Columns) {
				row[j] = number(n, Kind(hints[w.Columns[j]]))
			}
		}
	}
	t := FromRows(w.Columns, w.Rows)
	if len(hints) > 0 {
		t.ApplyHints(hints)
	}
	return t, nil
}

// number 整数列按 int64 精确解析，其余按 float64
func number(n json.Number, kind Kind) any {
	if kind == KindInt {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
