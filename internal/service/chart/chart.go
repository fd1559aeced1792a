// Package chart 根据数据特征推荐图表，只生成图表描述与数据，不负责渲染
package chart

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ashwinyue/next-analytics/internal/service/table"
	"github.com/ashwinyue/next-analytics/internal/service/training"
)

// Type 图表类型
type Type string

const (
	TypeHistogram       Type = "histogram"
	TypeBox             Type = "box"
	TypeBar             Type = "bar"
	TypeScatter         Type = "scatter"
	TypeLine            Type = "line"
	TypeHeatmap         Type = "heatmap"
	TypeModelComparison Type = "model_comparison"
)

const (
	maxNumericCharts = 6
	maxBarCharts     = 4
	maxBarCategories = 50
	histogramBins    = 10
	maxPoints        = 500
	topBars          = 10
)

// Spec 图表描述
type Spec struct {
	ID      string      `json:"id"`
	Type    Type        `json:"type"`
	Title   string      `json:"title"`
	X       string      `json:"x,omitempty"`
	Y       string      `json:"y,omitempty"`
	Columns []string    `json:"columns,omitempty"`
	Data    interface{} `json:"data"`
	Reason  string      `json:"reason"`
}

// Skipped 未生成的图表及原因
type Skipped struct {
	Type   Type   `json:"type"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

// Input 推荐参数
type Input struct {
	// Target 为空时散点图以相关性最强的一对数值列为轴
	Target string
	Models []training.ModelResult
}

// Result 推荐结果，两个列表都不为 nil
type Result struct {
	Charts  []Spec    `json:"auto_charts"`
	Skipped []Skipped `json:"skipped_charts"`
}

// Recommend 生成图表推荐
func Recommend(tb *table.Table, in Input) Result {
	r := &Result{Charts: []Spec{}, Skipped: []Skipped{}}
	if tb == nil || tb.NumRows() == 0 {
		r.skip(TypeHistogram, "", "dataset is empty")
		return *r
	}

	numeric := tb.NumericColumns()
	r.distributions(tb, numeric)
	r.bars(tb)
	r.scatter(tb, numeric, in.Target)
	r.line(tb, numeric, in.Target)
	r.heatmap(tb, numeric)
	r.modelComparison(in.Models)
	return *r
}

func (r *Result) add(s Spec) {
	s.ID = fmt.Sprintf("%s_%d", s.Type, len(r.Charts)+1)
	r.Charts = append(r.Charts, s)
}

func (r *Result) skip(t Type, col, reason string) {
	r.Skipped = append(r.Skipped, Skipped{Type: t, Column: col, Reason: reason})
}

// ========== 分布图 ==========

// HistogramBin 直方图分箱
type HistogramBin struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Count float64 `json:"count"`
}

// BoxStats 箱线图统计量
type BoxStats struct {
	Min      float64   `json:"min"`
	Q1       float64   `json:"q1"`
	Median   float64   `json:"median"`
	Q3       float64   `json:"q3"`
	Max      float64   `json:"max"`
	Outliers []float64 `json:"outliers"`
}

func (r *Result) distributions(tb *table.Table, numeric []string) {
	for i, col := range numeric {
		if i >= maxNumericCharts {
			r.skip(TypeHistogram, col, fmt.Sprintf("only the first %d numeric columns are charted", maxNumericCharts))
			continue
		}
		vals := tb.Present(col)
		if len(vals) < 2 {
			r.skip(TypeHistogram, col, "not enough values")
			continue
		}
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		if sorted[0] == sorted[len(sorted)-1] {
			r.skip(TypeHistogram, col, "column is constant")
			continue
		}

		r.add(Spec{
			Type:   TypeHistogram,
			Title:  fmt.Sprintf("Distribution of %s", col),
			X:      col,
			Data:   Histogram(sorted, histogramBins),
			Reason: "numeric column distribution",
		})
		r.add(Spec{
			Type:   TypeBox,
			Title:  fmt.Sprintf("Spread of %s", col),
			Y:      col,
			Data:   Box(sorted),
			Reason: "outlier inspection",
		})
	}
}

// Histogram 对已排序数据等宽分箱
func Histogram(sorted []float64, bins int) []HistogramBin {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram 的区间右开，最大值需要落在最后一个分箱内
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	out := make([]HistogramBin, bins)
	for i := range out {
		out[i] = HistogramBin{Start: dividers[i], End: dividers[i+1], Count: counts[i]}
	}
	out[bins-1].End = hi
	return out
}

// Box 计算箱线图统计量，异常值为超出 1.5 倍四分位距的点
func Box(sorted []float64) BoxStats {
	q1 := stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	iqr := q3 - q1
	b := BoxStats{
		Min:      sorted[0],
		Q1:       q1,
		Median:   stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		Q3:       q3,
		Max:      sorted[len(sorted)-1],
		Outliers: []float64{},
	}
	for _, v := range sorted {
		if v < q1-1.5*iqr || v > q3+1.5*iqr {
			b.Outliers = append(b.Outliers, v)
		}
	}
	return b
}

// ========== 类别图 ==========

func (r *Result) bars(tb *table.Table) {
	count := 0
	for _, col := range tb.CategoricalColumns() {
		counts := tb.ValueCounts(col)
		switch {
		case len(counts) < 2:
			r.skip(TypeBar, col, "fewer than 2 categories")
			continue
		case len(counts) > maxBarCategories:
			r.skip(TypeBar, col, fmt.Sprintf("too many categories (%d > %d)", len(counts), maxBarCategories))
			continue
		case count >= maxBarCharts:
			r.skip(TypeBar, col, fmt.Sprintf("only the first %d categorical columns are charted", maxBarCharts))
			continue
		}
		if len(counts) > topBars {
			counts = counts[:topBars]
		}
		count++
		r.add(Spec{
			Type:   TypeBar,
			Title:  fmt.Sprintf("Top categories of %s", col),
			X:      col,
			Data:   counts,
			Reason: "categorical frequency",
		})
	}
}

// ========== 关系图 ==========

// Point 散点
type Point struct {
	X interface{} `json:"x"`
	Y float64     `json:"y"`
}

func (r *Result) scatter(tb *table.Table, numeric []string, target string) {
	if len(numeric) < 2 {
		r.skip(TypeScatter, "", "fewer than 2 numeric columns")
		return
	}
	if !tb.IsNumeric(target) {
		target = ""
	}

	var x, y string
	best := -1.0
	for i, a := range numeric {
		for _, b := range numeric[i+1:] {
			if target != "" && a != target && b != target {
				continue
			}
			c, ok := tb.Pearson(a, b)
			if !ok || math.Abs(c) <= best {
				continue
			}
			best = math.Abs(c)
			x, y = a, b
			if b != target && a == target {
				x, y = b, a
			}
		}
	}
	if x == "" {
		r.skip(TypeScatter, target, "no correlated numeric pair")
		return
	}

	r.add(Spec{
		Type:    TypeScatter,
		Title:   fmt.Sprintf("%s vs %s", y, x),
		X:       x,
		Y:       y,
		Columns: []string{x, y},
		Data:    points(tb, x, y),
		Reason:  fmt.Sprintf("strongest correlation (|r| = %.2f)", best),
	})
}

func (r *Result) line(tb *table.Table, numeric []string, target string) {
	dts := tb.DatetimeColumns()
	if len(dts) == 0 {
		r.skip(TypeLine, "", "no datetime column")
		return
	}
	if len(numeric) == 0 {
		r.skip(TypeLine, dts[0], "no numeric column to plot over time")
		return
	}
	y := numeric[0]
	if target != "" && tb.IsNumeric(target) {
		y = target
	}
	x := dts[0]

	sub := tb.Select([]string{x, y}).DropNA([]string{x, y})
	idx := make([]int, sub.NumRows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		ti, _ := sub.Value(x, idx[i]).(time.Time)
		tj, _ := sub.Value(x, idx[j]).(time.Time)
		return ti.Before(tj)
	})
	r.add(Spec{
		Type:    TypeLine,
		Title:   fmt.Sprintf("%s over time", y),
		X:       x,
		Y:       y,
		Columns: []string{x, y},
		Data:    points(sub.Take(idx), x, y),
		Reason:  "time-ordered trend",
	})
}

// points 取两列均非缺失的点，超过上限时等间隔抽取
func points(tb *table.Table, x, y string) []Point {
	sub := tb.DropNA([]string{x, y})
	n := sub.NumRows()
	step := 1
	if n > maxPoints {
		step = int(math.Ceil(float64(n) / maxPoints))
	}
	out := make([]Point, 0, n/step+1)
	for i := 0; i < n; i += step {
		yv, ok := table.ToFloat(sub.Value(y, i))
		if !ok {
			continue
		}
		out = append(out, Point{X: sub.Value(x, i), Y: yv})
	}
	return out
}

// HeatmapData 相关矩阵
type HeatmapData struct {
	Labels []string     `json:"labels"`
	Matrix [][]*float64 `json:"matrix"`
}

func (r *Result) heatmap(tb *table.Table, numeric []string) {
	if len(numeric) < 2 {
		r.skip(TypeHeatmap, "", "fewer than 2 numeric columns")
		return
	}
	m := make([][]*float64, len(numeric))
	for i, a := range numeric {
		m[i] = make([]*float64, len(numeric))
		for j, b := range numeric {
			if i == j {
				one := 1.0
				m[i][j] = &one
				continue
			}
			if c, ok := tb.Pearson(a, b); ok {
				v := math.Round(c*1000) / 1000
				m[i][j] = &v
			}
		}
	}
	r.add(Spec{
		Type:    TypeHeatmap,
		Title:   "Correlation matrix",
		Columns: numeric,
		Data:    HeatmapData{Labels: numeric, Matrix: m},
		Reason:  "pairwise numeric correlation",
	})
}

// ========== 模型对比 ==========

// ModelScore 模型主指标
type ModelScore struct {
	Model  string  `json:"model"`
	Target string  `json:"target"`
	Metric string  `json:"metric"`
	Score  float64 `json:"score"`
}

func (r *Result) modelComparison(models []training.ModelResult) {
	if len(models) == 0 {
		r.skip(TypeModelComparison, "", "no trained models")
		return
	}
	scores := make([]ModelScore, 0, len(models))
	for _, m := range models {
		s, ok := m.PrimaryScore()
		if !ok {
			continue
		}
		scores = append(scores, ModelScore{
			Model:  m.ModelName,
			Target: m.Target,
			Metric: training.PrimaryMetric(m.ProblemType),
			Score:  s,
		})
	}
	r.add(Spec{
		Type:   TypeModelComparison,
		Title:  "Model comparison",
		X:      "model",
		Y:      "score",
		Data:   scores,
		Reason: "compare trained models on their primary metric",
	})
}
