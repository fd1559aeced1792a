package table

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ColumnStats 单列描述统计
type ColumnStats struct {
	Name     string   `json:"name"`
	DType    Kind     `json:"dtype"`
	Count    int      `json:"count"`
	Missing  int      `json:"missing"`
	Unique   int      `json:"unique"`
	Mean     *float64 `json:"mean,omitempty"`
	Std      *float64 `json:"std,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Q25      *float64 `json:"q25,omitempty"`
	Median   *float64 `json:"median,omitempty"`
	Q75      *float64 `json:"q75,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Top      string   `json:"top,omitempty"`
	TopCount int      `json:"top_count,omitempty"`
}

// Describe 计算列的描述统计
func (t *Table) Describe(col string) ColumnStats {
	s := ColumnStats{
		Name:    col,
		DType:   InferKind(t.data[col]),
		Missing: t.MissingCount(col),
		Unique:  t.NUnique(col),
	}
	s.Count = t.rows - s.Missing

	if t.IsNumeric(col) {
		vals := t.Present(col)
		if len(vals) > 0 {
			sorted := make([]float64, len(vals))
			copy(sorted, vals)
			sort.Float64s(sorted)
			mean, std := stat.MeanStdDev(vals, nil)
			if len(vals) < 2 {
				std = 0
			}
			s.Mean = ptr(mean)
			s.Std = ptr(std)
			s.Min = ptr(sorted[0])
			s.Max = ptr(sorted[len(sorted)-1])
			s.Q25 = ptr(stat.Quantile(0.25, stat.LinInterp, sorted, nil))
			s.Median = ptr(stat.Quantile(0.5, stat.LinInterp, sorted, nil))
			s.Q75 = ptr(stat.Quantile(0.75, stat.LinInterp, sorted, nil))
		}
		return s
	}

	if counts := t.ValueCounts(col); len(counts) > 0 {
		s.Top = counts[0].Value
		s.TopCount = counts[0].Count
	}
	return s
}

// Variance 非缺失值的样本方差，少于两个值时为 0
func (t *Table) Variance(col string) float64 {
	vals := t.Present(col)
	if len(vals) < 2 {
		return 0
	}
	v := stat.Variance(vals, nil)
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Pearson 两数值列在成对完整行上的相关系数
// 成对样本少于 3 或任一列方差为 0 时返回 false
func (t *Table) Pearson(a, b string) (float64, bool) {
	xa, oka := t.Floats(a)
	xb, okb := t.Floats(b)
	var x, y []float64
	for i := range xa {
		if oka[i] && okb[i] {
			x = append(x, xa[i])
			y = append(y, xb[i])
		}
	}
	if len(x) < 3 {
		return 0, false
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return r, true
}

func ptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
