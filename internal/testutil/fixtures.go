// Package testutil 提供测试辅助工具
package testutil

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/ashwinyue/next-analytics/internal/service/table"
)

// ========== 表格夹具 ==========

// RegressionTable 生成 n 行回归数据：target = 3*feature1 - 2*feature2 + 0.5*feature3 + 噪声
// target 几乎每行唯一
func RegressionTable(n int, seed int64) *table.Table {
	rng := rand.New(rand.NewSource(seed))
	cols := []string{"feature1", "feature2", "feature3", "target"}
	rows := make([][]any, n)
	for i := range rows {
		f1 := rng.Float64() * 100
		f2 := rng.Float64() * 50
		f3 := float64(rng.Intn(10))
		target := 3*f1 - 2*f2 + 0.5*f3 + rng.NormFloat64()
		rows[i] = []any{f1, f2, f3, target}
	}
	return table.FromRows(cols, rows)
}

// RegressionCSV 将 RegressionTable 渲染为 CSV
func RegressionCSV(n int, seed int64) string {
	tb := RegressionTable(n, seed)
	var b strings.Builder
	b.WriteString(strings.Join(tb.Columns(), ","))
	b.WriteByte('\n')
	for _, row := range tb.Rows() {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = fmt.Sprintf("%.6f", v)
		}
		b.WriteString(strings.Join(parts, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// ClassificationTable 生成 n 行二分类数据，label 为 "yes"/"no"
func ClassificationTable(n int, seed int64) *table.Table {
	rng := rand.New(rand.NewSource(seed))
	cols := []string{"x1", "x2", "segment", "label"}
	segments := []string{"north", "south", "east"}
	rows := make([][]any, n)
	for i := range rows {
		x1 := rng.NormFloat64()
		x2 := rng.NormFloat64()
		label := "no"
		if x1+x2 > 0 {
			label = "yes"
		}
		rows[i] = []any{x1, x2, segments[rng.Intn(len(segments))], label}
	}
	return table.FromRows(cols, rows)
}

// CategoricalColumn 生成循环取值的类别列，共 distinct 个取值
func CategoricalColumn(n, distinct int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = fmt.Sprintf("cat_%03d", i%distinct)
	}
	return out
}
