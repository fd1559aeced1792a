package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/next-analytics/internal/logger"
	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/service/table"
	"github.com/ashwinyue/next-analytics/internal/service/training"
	"github.com/ashwinyue/next-analytics/internal/testutil"
)

func regressionModel(name, target string, r2 float64) training.ModelResult {
	return training.ModelResult{
		ModelName:         name,
		Target:            target,
		ProblemType:       model.ProblemRegression,
		Features:          []string{"a", "b"},
		Metrics:           map[string]float64{"r2_score": r2, "rmse": 1, "mae": 1},
		FeatureImportance: map[string]float64{"a": 0.75, "b": 0.25},
	}
}

// ========== BestModel 测试 ==========

func TestBestModel(t *testing.T) {
	tests := []struct {
		name   string
		models []training.ModelResult
		want   string
	}{
		{"empty", nil, ""},
		{"highest wins", []training.ModelResult{
			regressionModel("linear_regression", "y", 0.5),
			regressionModel("ridge_regression", "y", 0.9),
		}, "ridge_regression"},
		{"tie keeps first", []training.ModelResult{
			regressionModel("linear_regression", "y", 0.8),
			regressionModel("ridge_regression", "y", 0.8),
			regressionModel("mean_baseline", "y", 0.1),
		}, "linear_regression"},
		{"negative scores", []training.ModelResult{
			regressionModel("mean_baseline", "y", -0.2),
			regressionModel("linear_regression", "y", -0.1),
		}, "linear_regression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best := BestModel(tt.models)
			if tt.want == "" {
				assert.Nil(t, best)
				return
			}
			require.NotNil(t, best)
			assert.Equal(t, tt.want, best.ModelName)
		})
	}
}

func TestBestModel_Classification(t *testing.T) {
	models := []training.ModelResult{
		{ModelName: "majority_baseline", ProblemType: model.ProblemClassification, Metrics: map[string]float64{"accuracy": 0.6}},
		{ModelName: "knn_classifier", ProblemType: model.ProblemClassification, Metrics: map[string]float64{"accuracy": 0.85}},
	}
	best := BestModel(models)
	require.NotNil(t, best)
	assert.Equal(t, "knn_classifier", best.ModelName)
}

// ========== Merge 测试 ==========

func TestMerge(t *testing.T) {
	results := []training.TargetResult{
		{
			Target:      "y1",
			ProblemType: model.ProblemRegression,
			Models:      []training.ModelResult{regressionModel("linear_regression", "y1", 0.7)},
			Excluded:    []string{"zip"},
			Notes:       []string{"Excluded 'zip': too many categories (80 > 50)"},
		},
		{
			Target:      "y2",
			ProblemType: model.ProblemRegression,
			Err:         errors.New("single class"),
			Excluded:    []string{"zip"},
		},
		{
			Target:      "y3",
			ProblemType: model.ProblemRegression,
			Models:      []training.ModelResult{regressionModel("ridge_regression", "y3", 0.9)},
			Corrected:   "Target 'y3' is continuous; using regression",
		},
	}

	agg := Merge(results, model.ProblemAuto)
	assert.Len(t, agg.Models, 2)
	assert.Equal(t, []string{"y1", "y3"}, agg.Targets)
	require.NotNil(t, agg.Best)
	assert.Equal(t, "y3", agg.Best.Target)
	assert.Equal(t, model.ProblemRegression, agg.ProblemType)
	assert.Equal(t, []string{"zip"}, agg.Excluded)
	require.Len(t, agg.Failures, 1)
	assert.Equal(t, "Training failed for target 'y2': single class", agg.Failures[0])
	assert.Contains(t, agg.Notes, "Target 'y3' is continuous; using regression")
}

func TestMerge_NoModels(t *testing.T) {
	agg := Merge(nil, model.ProblemClassification)
	assert.Empty(t, agg.Models)
	assert.NotNil(t, agg.Models)
	assert.Nil(t, agg.Best)
	assert.Equal(t, model.ProblemClassification, agg.ProblemType)
}

// ========== Recorder 测试 ==========

func TestRecorder_Persist(t *testing.T) {
	ctx := context.Background()
	stores := testutil.NewMemoryStores()
	repos := stores.Repositories()
	require.NoError(t, repos.Dataset.Create(ctx, &model.Dataset{ID: "ds-1", Name: "sales"}))

	rec := NewRecorder(repos.Training, repos.Dataset, logger.Nop())
	models := []training.ModelResult{
		regressionModel("linear_regression", "y", 0.7),
		regressionModel("ridge_regression", "y", 0.8),
	}
	records, err := rec.Persist(ctx, "ds-1", "default", models)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	saved := stores.TrainingRecords()
	require.Len(t, saved, 2)
	assert.Equal(t, "default", saved[0].WorkspaceName)
	assert.Equal(t, 0.7, saved[0].Metrics.Data()["r2_score"])
	assert.NotEqual(t, saved[0].ID, saved[1].ID)

	ds := stores.Dataset("ds-1")
	assert.Equal(t, 1, ds.TrainingCount)
	assert.NotNil(t, ds.LastTrainedAt)
}

func TestRecorder_PersistEmpty(t *testing.T) {
	stores := testutil.NewMemoryStores()
	repos := stores.Repositories()
	rec := NewRecorder(repos.Training, repos.Dataset, logger.Nop())

	records, err := rec.Persist(context.Background(), "missing", "default", nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecorder_PersistStorageError(t *testing.T) {
	stores := testutil.NewMemoryStores()
	stores.Err = errors.New("connection refused")
	repos := stores.Repositories()
	rec := NewRecorder(repos.Training, repos.Dataset, logger.Nop())

	_, err := rec.Persist(context.Background(), "ds-1", "default", []training.ModelResult{regressionModel("linear_regression", "y", 0.5)})
	assert.Error(t, err)
}

func TestRecorder_PersistKeepsRecordsWhenCounterFails(t *testing.T) {
	stores := testutil.NewMemoryStores()
	repos := stores.Repositories()
	rec := NewRecorder(repos.Training, repos.Dataset, logger.Nop())

	// 数据集不存在，计数更新失败
	records, err := rec.Persist(context.Background(), "ds-gone", "default", []training.ModelResult{regressionModel("linear_regression", "y", 0.5)})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, stores.TrainingRecords(), 1)
}

// ========== ImportanceRollup 测试 ==========

func TestImportanceRollup(t *testing.T) {
	m1 := regressionModel("linear_regression", "y", 0.5)
	m2 := regressionModel("ridge_regression", "y", 0.5)
	m2.FeatureImportance = map[string]float64{"a": 0.25, "b": 0.75, "c": 1}

	got := ImportanceRollup([]training.ModelResult{m1, m2})
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Feature)
	assert.Equal(t, 1, got[0].Models)
	// a 与 b 平均均为 0.5，按名称排序
	assert.Equal(t, "a", got[1].Feature)
	assert.InDelta(t, 0.5, got[1].Importance, 1e-9)
	assert.Equal(t, 2, got[2].Models)
}

// ========== Profile 测试 ==========

func TestBuildProfile(t *testing.T) {
	tb := table.FromRows([]string{"x", "city"}, [][]any{
		{1.0, "a"},
		{2.0, "b"},
		{nil, "b"},
		{2.0, "b"},
	})
	p := BuildProfile(tb)
	assert.Equal(t, 4, p.Rows)
	assert.Equal(t, 2, p.Columns)
	assert.Equal(t, 1, p.MissingTotal)
	assert.Equal(t, 1, p.MissingByColumn["x"])
	assert.Equal(t, 1, p.DuplicateRows)
	assert.Equal(t, 12.5, p.MissingPercent)
	assert.Equal(t, []string{"x"}, p.NumericColumns)
	assert.Equal(t, []string{"city"}, p.CategoricalColumns)
	assert.Empty(t, p.DatetimeColumns)
	assert.Len(t, p.Statistics, 2)
	assert.Less(t, p.QualityScore, 100.0)
}

// ========== Correlations 测试 ==========

func TestCorrelations(t *testing.T) {
	tb := table.FromRows([]string{"a", "b", "c", "d"}, [][]any{
		{1.0, 2.0, 5.0, 1.0},
		{2.0, 4.1, 3.0, -1.0},
		{3.0, 6.0, 4.0, 1.0},
		{4.0, 8.2, 1.0, -1.0},
		{5.0, 9.9, 2.0, 1.0},
	})
	got := Correlations(tb)
	require.NotEmpty(t, got)
	assert.Equal(t, "a", got[0].Feature1)
	assert.Equal(t, "b", got[0].Feature2)
	assert.Equal(t, "strong", got[0].Strength)

	for i, c := range got {
		assert.Greater(t, abs(c.Correlation), MinCorrelation)
		if i > 0 {
			assert.LessOrEqual(t, abs(c.Correlation), abs(got[i-1].Correlation))
		}
	}
}

func TestCorrelationMatrix(t *testing.T) {
	tb := testutil.RegressionTable(50, 1)
	m := CorrelationMatrix(tb)
	require.Contains(t, m, "feature1")
	require.NotNil(t, m["feature1"]["feature1"])
	assert.Equal(t, 1.0, *m["feature1"]["feature1"])
	assert.Equal(t, *m["feature1"]["target"], *m["target"]["feature1"])
}

// ========== Volume 测试 ==========

func TestVolume(t *testing.T) {
	region := make([]any, 0, 10)
	for i := 0; i < 8; i++ {
		region = append(region, "north")
	}
	region = append(region, "south", "east")
	tier := []any{"a", "a", "a", "a", "a", "a", "b", "b", "c", "c"}
	even := []any{"p", "q", "p", "q", "p", "q", "p", "q", "p", "q"}

	tb, err := table.FromColumns([]string{"region", "tier", "even"}, map[string][]any{
		"region": region, "tier": tier, "even": even,
	})
	require.NoError(t, err)

	va := Volume(tb)
	assert.Equal(t, 10, va.TotalRecords)
	require.Len(t, va.Categorical, 3)

	byCol := map[string]CategoryBreakdown{}
	for _, b := range va.Categorical {
		byCol[b.Column] = b
	}
	assert.True(t, byCol["region"].HighlyImbalanced)
	assert.True(t, byCol["region"].Imbalanced)
	assert.Equal(t, "north", byCol["region"].TopCategories[0].Value)
	assert.InDelta(t, 0.8, byCol["region"].TopShare, 1e-9)

	assert.True(t, byCol["tier"].Imbalanced)
	assert.False(t, byCol["tier"].HighlyImbalanced)

	assert.False(t, byCol["even"].Imbalanced)
	assert.Len(t, va.Warnings, 2)
}

func TestVolume_TopFive(t *testing.T) {
	tb, err := table.FromColumns([]string{"code"}, map[string][]any{"code": testutil.CategoricalColumn(40, 8)})
	require.NoError(t, err)
	va := Volume(tb)
	require.Len(t, va.Categorical, 1)
	assert.Len(t, va.Categorical[0].TopCategories, 5)
	assert.Equal(t, 8, va.Categorical[0].Unique)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
