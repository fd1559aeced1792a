package chart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/service/table"
	"github.com/ashwinyue/next-analytics/internal/service/training"
	"github.com/ashwinyue/next-analytics/internal/testutil"
)

func chartsOf(r Result, t Type) []Spec {
	var out []Spec
	for _, c := range r.Charts {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

func skippedOf(r Result, t Type) []Skipped {
	var out []Skipped
	for _, s := range r.Skipped {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// ========== Recommend 测试 ==========

func TestRecommend_Regression(t *testing.T) {
	tb := testutil.RegressionTable(100, 7)
	models := []training.ModelResult{
		{ModelName: "linear_regression", Target: "target", ProblemType: model.ProblemRegression, Metrics: map[string]float64{"r2_score": 0.9}},
	}
	r := Recommend(tb, Input{Target: "target", Models: models})

	assert.Len(t, chartsOf(r, TypeHistogram), 4)
	assert.Len(t, chartsOf(r, TypeBox), 4)
	require.Len(t, chartsOf(r, TypeHeatmap), 1)
	require.Len(t, chartsOf(r, TypeModelComparison), 1)

	scatter := chartsOf(r, TypeScatter)
	require.Len(t, scatter, 1)
	assert.Equal(t, "target", scatter[0].Y)
	assert.Equal(t, "feature1", scatter[0].X)

	// 无日期列、无类别列
	assert.Len(t, skippedOf(r, TypeLine), 1)
	assert.Empty(t, chartsOf(r, TypeBar))

	ids := map[string]bool{}
	for _, c := range r.Charts {
		assert.False(t, ids[c.ID], "duplicate chart id %s", c.ID)
		ids[c.ID] = true
	}
}

func TestRecommend_EmptyTable(t *testing.T) {
	r := Recommend(table.New([]string{"a"}), Input{})
	assert.Empty(t, r.Charts)
	assert.NotNil(t, r.Charts)
	require.Len(t, r.Skipped, 1)
	assert.Equal(t, "dataset is empty", r.Skipped[0].Reason)
}

func TestRecommend_SkipReasons(t *testing.T) {
	tb, err := table.FromColumns([]string{"flat", "x", "zip", "one"}, map[string][]any{
		"flat": {1.0, 1.0, 1.0, 1.0, 1.0, 1.0},
		"x":    {1.0, 2.0, 3.0, 4.0, 5.0, 6.0},
		"zip":  testutil.CategoricalColumn(6, 6),
		"one":  {"a", "a", "a", "a", "a", "a"},
	})
	require.NoError(t, err)
	r := Recommend(tb, Input{})

	reasons := map[string]string{}
	for _, s := range r.Skipped {
		reasons[string(s.Type)+":"+s.Column] = s.Reason
	}
	assert.Equal(t, "column is constant", reasons["histogram:flat"])
	assert.Equal(t, "fewer than 2 categories", reasons["bar:one"])
	assert.Equal(t, "no trained models", reasons["model_comparison:"])
	assert.Len(t, chartsOf(r, TypeBar), 1)
}

func TestRecommend_TooManyCategories(t *testing.T) {
	tb, err := table.FromColumns([]string{"code"}, map[string][]any{"code": testutil.CategoricalColumn(120, 60)})
	require.NoError(t, err)
	r := Recommend(tb, Input{})
	skipped := skippedOf(r, TypeBar)
	require.Len(t, skipped, 1)
	assert.Equal(t, "too many categories (60 > 50)", skipped[0].Reason)
}

func TestRecommend_Line(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tb, err := table.FromColumns([]string{"ts", "cpu"}, map[string][]any{
		"ts":  {base.Add(2 * time.Hour), base, base.Add(time.Hour)},
		"cpu": {30.0, 10.0, 20.0},
	})
	require.NoError(t, err)

	r := Recommend(tb, Input{Target: "cpu"})
	lines := chartsOf(r, TypeLine)
	require.Len(t, lines, 1)
	pts := lines[0].Data.([]Point)
	require.Len(t, pts, 3)
	assert.Equal(t, []float64{10, 20, 30}, []float64{pts[0].Y, pts[1].Y, pts[2].Y})
}

// ========== 统计量测试 ==========

func TestHistogram(t *testing.T) {
	sorted := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	bins := Histogram(sorted, 5)
	require.Len(t, bins, 5)
	total := 0.0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 11.0, total)
	assert.Equal(t, 0.0, bins[0].Start)
	assert.Equal(t, 10.0, bins[4].End)
}

func TestBox(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 100}
	b := Box(sorted)
	assert.Equal(t, 1.0, b.Min)
	assert.Equal(t, 100.0, b.Max)
	assert.Equal(t, []float64{100}, b.Outliers)
	assert.LessOrEqual(t, b.Q1, b.Median)
	assert.LessOrEqual(t, b.Median, b.Q3)
}
