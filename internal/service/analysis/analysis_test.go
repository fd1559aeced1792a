package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/logger"
	pmodel "github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/service/aggregate"
	"github.com/ashwinyue/next-analytics/internal/service/ai"
	"github.com/ashwinyue/next-analytics/internal/service/dfcache"
	"github.com/ashwinyue/next-analytics/internal/service/insight"
	"github.com/ashwinyue/next-analytics/internal/service/selection"
	"github.com/ashwinyue/next-analytics/internal/service/table"
	"github.com/ashwinyue/next-analytics/internal/service/training"
	"github.com/ashwinyue/next-analytics/internal/testutil"
)

// ========== Mock ChatModel ==========

type mockChatModel struct {
	responses []string
	err       error
	calls     int
}

func (m *mockChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return &schema.Message{Role: schema.Assistant, Content: resp}, nil
}

func (m *mockChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

// ========== 测试夹具 ==========

type fixture struct {
	stores  *testutil.MemoryStores
	storage *testutil.MemoryStorage
	svc     *Service
}

func newFixture(t *testing.T, cm model.BaseChatModel) *fixture {
	t.Helper()
	log := logger.Nop()
	stores, storage := testutil.NewMemoryStores(), testutil.NewMemoryStorage()
	repos := stores.Repositories()

	var client *ai.Client
	if cm != nil {
		client = ai.NewClient(cm, time.Second)
	}
	cache := dfcache.New(repos.Dataset, storage, dfcache.Options{TTL: time.Minute, Size: 10}, log)
	orch := training.NewOrchestrator(training.NewBuiltin(42), training.Config{
		MaxWorkers:     4,
		TaskTimeout:    10 * time.Second,
		MaxCategories:  50,
		ClassThreshold: 20,
	}, log)

	svc := NewService(Deps{
		Repo:         repos,
		Storage:      storage,
		Frames:       cache,
		Resolver:     selection.NewResolver(client, 20, log),
		Orchestrator: orch,
		Recorder:     aggregate.NewRecorder(repos.Training, repos.Dataset, log),
		Insights:     insight.NewGenerator(client, log),
	}, Config{
		SampleThreshold:  10000,
		SampleSize:       5000,
		SampleSeed:       42,
		InlineThreshold:  2 << 20,
		ChatHistoryLimit: 3,
	}, log)
	return &fixture{stores: stores, storage: storage, svc: svc}
}

func (f *fixture) seed(t *testing.T, id string, tb *table.Table) {
	t.Helper()
	data, err := tb.Encode()
	require.NoError(t, err)
	require.NoError(t, f.stores.Repositories().Dataset.Create(context.Background(), &pmodel.Dataset{
		ID:          id,
		Name:        id,
		RowCount:    tb.NumRows(),
		ColumnCount: tb.NumCols(),
		Columns:     datatypes.NewJSONSlice(tb.Columns()),
		DTypes:      datatypes.NewJSONType(tb.DTypeHints()),
		StorageType: pmodel.StorageTypeDirect,
		InlineData:  datatypes.JSON(data),
	}))
}

func parseSelection(t *testing.T, raw string) *selection.Selection {
	t.Helper()
	var sel selection.Selection
	require.NoError(t, json.Unmarshal([]byte(raw), &sel))
	return &sel
}

// ========== 整体分析测试 ==========

func TestHolistic_AutoRegression(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "ds", testutil.RegressionTable(100, 1))

	resp, err := f.svc.Holistic(context.Background(), &HolisticRequest{DatasetID: "ds"})
	require.NoError(t, err)

	assert.Equal(t, pmodel.ProblemRegression, resp.ProblemType)
	assert.Equal(t, []string{"target"}, resp.Targets)
	assert.Equal(t, DefaultWorkspace, resp.WorkspaceName)
	require.NotEmpty(t, resp.MLModels)
	for _, m := range resp.MLModels {
		for _, k := range []string{"r2_score", "rmse", "mae"} {
			assert.Contains(t, m.Metrics, k)
		}
	}
	require.NotNil(t, resp.BestModel)
	assert.Greater(t, resp.BestModel.Metrics["r2_score"], 0.9)

	assert.Equal(t, selection.StatusInfo, resp.SelectionFeedback.Status)
	assert.Len(t, resp.TrainingMetadata, len(resp.MLModels))
	assert.Len(t, f.stores.TrainingRecords(), len(resp.MLModels))
	assert.Equal(t, 1, f.stores.Dataset("ds").TrainingCount)

	assert.Equal(t, 100, resp.Profile.Rows)
	assert.NotEmpty(t, resp.AutoCharts)
	assert.NotEmpty(t, resp.Correlations)
	assert.True(t, resp.Explainability.Available)
	assert.NotEmpty(t, resp.BusinessRecommendations)
	assert.Contains(t, resp.HistoricalTrends, "target")
	assert.False(t, resp.PerformanceInfo.Sampled)
	assert.Empty(t, resp.OmittedSections)
}

func TestHolistic_AIUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "ds", testutil.RegressionTable(60, 2))

	resp, err := f.svc.Holistic(context.Background(), &HolisticRequest{
		DatasetID:       "ds",
		UserExpectation: "forecast cpu latency for next week",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Insights)
	assert.Contains(t, resp.Insights, insight.FallbackMessage)
	assert.Equal(t, "template", resp.InsightsSource)
	assert.Nil(t, resp.SREForecast)
	assert.Equal(t, insight.DomainITInfrastructure, resp.DomainInfo.Domain)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "sre_forecast")
}

func TestHolistic_AIInsightsAndForecast(t *testing.T) {
	cm := &mockChatModel{responses: []string{
		`[{"title":"Strong fit","description":"feature1 explains the target","recommendation":"Track feature1"}]`,
		`{"summary":"Target keeps rising","alerts":["watch capacity"],"recommendations":["scale out"]}`,
	}}
	f := newFixture(t, cm)
	f.seed(t, "ds", testutil.RegressionTable(60, 3))

	resp, err := f.svc.Holistic(context.Background(), &HolisticRequest{DatasetID: "ds", UserExpectation: "revenue forecast"})
	require.NoError(t, err)
	assert.Equal(t, "ai", resp.InsightsSource)
	require.Len(t, resp.AIInsights, 1)
	assert.Equal(t, "Strong fit", resp.AIInsights[0].Title)
	require.NotNil(t, resp.SREForecast)
	assert.Equal(t, "Target keeps rising", resp.SREForecast.Summary)
	assert.Equal(t, insight.DomainFinance, resp.SREForecast.Domain)
}

func TestHolistic_ForecastFailureOmitted(t *testing.T) {
	cm := &mockChatModel{err: errors.New("upstream 503")}
	f := newFixture(t, cm)
	f.seed(t, "ds", testutil.RegressionTable(60, 4))

	resp, err := f.svc.Holistic(context.Background(), &HolisticRequest{DatasetID: "ds", UserExpectation: "predict sales"})
	require.NoError(t, err)
	assert.Nil(t, resp.SREForecast)
	assert.Contains(t, resp.OmittedSections, "sre_forecast")
	assert.Equal(t, "template", resp.InsightsSource)
	assert.NotEmpty(t, resp.MLModels)
}

func TestHolistic_TargetFailureIsolated(t *testing.T) {
	f := newFixture(t, nil)
	tb := testutil.RegressionTable(60, 5)
	flat := make([]any, tb.NumRows())
	for i := range flat {
		flat[i] = 1.0
	}
	require.NoError(t, tb.SetColumn("flat", flat))
	f.seed(t, "ds", tb)

	resp, err := f.svc.Holistic(context.Background(), &HolisticRequest{
		DatasetID:     "ds",
		UserSelection: parseSelection(t, `[{"target":"target","features":["feature1","feature2"]},{"target":"flat","features":["feature1"]}]`),
	})
	require.NoError(t, err)

	assert.Equal(t, selection.StatusModified, resp.SelectionFeedback.Status)
	require.NotEmpty(t, resp.MLModels)
	for _, m := range resp.MLModels {
		assert.Equal(t, "target", m.Target)
	}
	joined := strings.Join(resp.SelectionFeedback.Notes, "\n")
	assert.Contains(t, joined, "Training failed for target 'flat'")
}

func TestHolistic_AllTargetsFail(t *testing.T) {
	f := newFixture(t, nil)
	tb, err := table.FromColumns([]string{"a", "b"}, map[string][]any{
		"a": {1.0, 2.0, 3.0, nil, nil, nil, nil},
		"b": {1.0, nil, nil, 4.0, 5.0, 6.0, 7.0},
	})
	require.NoError(t, err)
	f.seed(t, "ds", tb)

	resp, err := f.svc.Holistic(context.Background(), &HolisticRequest{DatasetID: "ds"})
	require.NoError(t, err)
	assert.Empty(t, resp.MLModels)
	assert.NotNil(t, resp.MLModels)
	assert.Nil(t, resp.BestModel)
	assert.Contains(t, resp.SelectionFeedback.Notes, "No models could be trained for the selected targets.")
	assert.NotEmpty(t, resp.Insights)
	assert.Empty(t, f.stores.TrainingRecords())
}

func TestHolistic_ProblemTypeCorrected(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "ds", testutil.RegressionTable(80, 6))

	resp, err := f.svc.Holistic(context.Background(), &HolisticRequest{DatasetID: "ds", ProblemType: "classification"})
	require.NoError(t, err)
	assert.Equal(t, pmodel.ProblemRegression, resp.ProblemType)
	assert.Contains(t, strings.Join(resp.SelectionFeedback.Notes, "\n"), "corrected from classification to regression")
}

func TestHolistic_TimeSeries(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "ds", testutil.RegressionTable(30, 7))

	resp, err := f.svc.Holistic(context.Background(), &HolisticRequest{DatasetID: "ds", ProblemType: "time_series"})
	require.NoError(t, err)
	require.NotNil(t, resp.TimeSeriesAdvisory)
	assert.Empty(t, resp.MLModels)
	assert.Equal(t, pmodel.ProblemTimeSeries, resp.ProblemType)
	assert.Equal(t, resp.TimeSeriesAdvisory.Message, resp.SelectionFeedback.Message)
	assert.Zero(t, f.stores.Dataset("ds").TrainingCount)
}

func TestHolistic_Errors(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "ds", testutil.RegressionTable(30, 8))

	tests := []struct {
		name  string
		req   *HolisticRequest
		check func(error) bool
	}{
		{"missing dataset id", &HolisticRequest{}, apperr.IsValidation},
		{"unknown dataset", &HolisticRequest{DatasetID: "nope"}, apperr.IsNotFound},
		{"bad problem type", &HolisticRequest{DatasetID: "ds", ProblemType: "clustering"}, apperr.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Holistic(context.Background(), tt.req)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

// ========== Enrichment 测试 ==========

func TestEnrich(t *testing.T) {
	log := logger.Nop()

	ok := Enrich(log, "step", 0, func() (int, error) { return 7, nil })
	assert.Equal(t, 7, ok.Value)
	assert.False(t, ok.Omitted)

	failed := Enrich(log, "step", -1, func() (int, error) { return 0, errors.New("boom") })
	assert.Equal(t, -1, failed.Value)
	assert.True(t, failed.Omitted)
	assert.Equal(t, "boom", failed.Reason)

	panicked := Enrich(log, "step", "fallback", func() (string, error) { panic("bad index") })
	assert.Equal(t, "fallback", panicked.Value)
	assert.Equal(t, "panic: bad index", panicked.Reason)

	c := newComposer(log)
	_ = compose(c, "a", 0, func() (int, error) { return 1, nil })
	_ = compose(c, "b", 0, func() (int, error) { return 0, errors.New("x") })
	assert.Equal(t, []string{"b"}, c.omitted)
}

// ========== 单项分析测试 ==========

func TestRun(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "ds", testutil.ClassificationTable(40, 1))
	ctx := context.Background()

	t.Run("profile", func(t *testing.T) {
		resp, err := f.svc.Run(ctx, &RunRequest{DatasetID: "ds", AnalysisType: "profile"})
		require.NoError(t, err)
		require.NotNil(t, resp.Profile)
		assert.Equal(t, 40, resp.Profile.Rows)
		require.NotNil(t, resp.VolumeAnalysis)
		require.Contains(t, resp.CorrelationMatrix, "x1")
		require.NotNil(t, resp.CorrelationMatrix["x1"]["x1"])
		assert.Equal(t, 1.0, *resp.CorrelationMatrix["x1"]["x1"])
		assert.Contains(t, resp.CorrelationMatrix["x1"], "x2")
	})

	t.Run("clean", func(t *testing.T) {
		resp, err := f.svc.Run(ctx, &RunRequest{DatasetID: "ds", AnalysisType: "clean"})
		require.NoError(t, err)
		require.NotNil(t, resp.CleaningReport)
		assert.Len(t, resp.Preview, 10)
	})

	t.Run("visualize", func(t *testing.T) {
		resp, err := f.svc.Run(ctx, &RunRequest{DatasetID: "ds", AnalysisType: "Visualize"})
		require.NoError(t, err)
		assert.Equal(t, RunVisualize, resp.AnalysisType)
		assert.NotEmpty(t, resp.AutoCharts)
	})

	t.Run("insights", func(t *testing.T) {
		resp, err := f.svc.Run(ctx, &RunRequest{DatasetID: "ds", AnalysisType: "insights"})
		require.NoError(t, err)
		assert.Contains(t, resp.Insights, insight.FallbackMessage)
		require.NotNil(t, resp.DomainInfo)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := f.svc.Run(ctx, &RunRequest{DatasetID: "ds", AnalysisType: "forecast"})
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestClean(t *testing.T) {
	tb, err := table.FromColumns([]string{"n", "skewed", "city", "count"}, map[string][]any{
		"n":      {1.0, 2.0, 3.0, nil, 4.0, 4.0},
		"skewed": {1.0, 1.0, 1.0, 1.0, 100.0, nil},
		"city":   {"a", "b", "b", nil, "c", "c"},
		"count":  {int64(1), int64(2), nil, int64(4), int64(4), int64(4)},
	})
	require.NoError(t, err)

	cleaned, rep := Clean(tb)
	assert.Equal(t, 6, rep.RowsBefore)
	assert.Equal(t, 4, rep.MissingBefore)
	assert.Zero(t, rep.MissingAfter)

	byCol := map[string]Imputation{}
	for _, imp := range rep.Imputations {
		byCol[imp.Column] = imp
	}
	assert.Equal(t, "mean", byCol["n"].Strategy)
	assert.Equal(t, 2.8, byCol["n"].Value)
	assert.Equal(t, "median", byCol["skewed"].Strategy)
	assert.Equal(t, 1.0, byCol["skewed"].Value)
	assert.Equal(t, "mode", byCol["city"].Strategy)
	assert.Equal(t, "b", byCol["city"].Value)
	assert.Equal(t, int64(3), byCol["count"].Value)

	// 原表不受影响
	assert.Equal(t, 1, tb.MissingCount("n"))
	assert.Equal(t, rep.RowsBefore-rep.DuplicatesRemoved, cleaned.NumRows())
}

// ========== 工作区测试 ==========

func TestWorkspaceLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "ds", testutil.RegressionTable(10, 1))
	ctx := context.Background()

	state := map[string]interface{}{
		"charts": []interface{}{
			map[string]interface{}{"id": "histogram_1", "type": "histogram", "title": "t", "data": []interface{}{1, 2, 3}},
		},
		"chat_history": []interface{}{"m1", "m2", "m3", "m4", "m5"},
		"notes":        "keep",
	}
	ws, err := f.svc.SaveState(ctx, &SaveStateRequest{DatasetID: "ds", WorkspaceName: "q3", State: state})
	require.NoError(t, err)
	assert.Equal(t, pmodel.StorageTypeDirect, ws.StorageType)

	loaded, err := f.svc.LoadState(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "q3", loaded.Name)
	assert.Equal(t, "keep", loaded.State["notes"])
	assert.Equal(t, []interface{}{"m3", "m4", "m5"}, loaded.State["chat_history"])
	charts := loaded.State["charts"].([]interface{})
	require.Len(t, charts, 1)
	assert.NotContains(t, charts[0], "data")
	assert.Equal(t, "histogram", charts[0].(map[string]interface{})["type"])

	// 同名覆盖
	again, err := f.svc.SaveState(ctx, &SaveStateRequest{DatasetID: "ds", WorkspaceName: "q3", State: map[string]interface{}{"v": 2}})
	require.NoError(t, err)
	assert.Equal(t, ws.ID, again.ID)
	list, err := f.svc.ListStates(ctx, "ds")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.svc.DeleteState(ctx, ws.ID))
	_, err = f.svc.LoadState(ctx, ws.ID)
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(f.svc.DeleteState(ctx, ws.ID)))
}

func TestWorkspace_Blob(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.cfg.InlineThreshold = 32
	f.seed(t, "ds", testutil.RegressionTable(10, 1))
	ctx := context.Background()

	ws, err := f.svc.SaveState(ctx, &SaveStateRequest{DatasetID: "ds", State: map[string]interface{}{"summary": strings.Repeat("x", 100)}})
	require.NoError(t, err)
	assert.Equal(t, pmodel.StorageTypeBlob, ws.StorageType)
	assert.Equal(t, DefaultWorkspace, ws.Name)
	assert.True(t, f.storage.Has(ws.BlobPath))

	loaded, err := f.svc.LoadState(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 100), loaded.State["summary"])

	require.NoError(t, f.svc.DeleteState(ctx, ws.ID))
	assert.False(t, f.storage.Has(ws.BlobPath))
}

func TestSaveState_UnknownDataset(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.SaveState(context.Background(), &SaveStateRequest{DatasetID: "missing"})
	assert.True(t, apperr.IsNotFound(err))
}

// ========== 评价与训练记录测试 ==========

func TestFeedback(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "ds", testutil.RegressionTable(10, 1))
	ctx := context.Background()

	for _, bad := range []*FeedbackRequest{
		{ModelName: "m", Rating: 3},
		{DatasetID: "ds", Rating: 3},
		{DatasetID: "ds", ModelName: "m", Rating: 6},
	} {
		_, err := f.svc.SubmitFeedback(ctx, bad)
		assert.True(t, apperr.IsValidation(err))
	}
	_, err := f.svc.SubmitFeedback(ctx, &FeedbackRequest{DatasetID: "missing", ModelName: "m", Rating: 3})
	assert.True(t, apperr.IsNotFound(err))

	_, err = f.svc.SubmitFeedback(ctx, &FeedbackRequest{DatasetID: "ds", ModelName: "ridge_regression", Rating: 5})
	require.NoError(t, err)
	_, err = f.svc.SubmitFeedback(ctx, &FeedbackRequest{DatasetID: "ds", ModelName: "mean_baseline", Rating: 2})
	require.NoError(t, err)

	stats, err := f.svc.FeedbackStats(ctx, "ds")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, 3.5, stats.AverageRating)
	assert.Equal(t, 5.0, stats.ByModel["ridge_regression"])
}

func TestTrainingHistory(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "ds", testutil.RegressionTable(50, 1))
	ctx := context.Background()

	empty, err := f.svc.TrainingHistory(ctx, "ds", "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	resp, err := f.svc.Holistic(ctx, &HolisticRequest{DatasetID: "ds", WorkspaceName: "w1"})
	require.NoError(t, err)

	records, err := f.svc.TrainingHistory(ctx, "ds", "w1")
	require.NoError(t, err)
	assert.Len(t, records, len(resp.MLModels))
	other, err := f.svc.TrainingHistory(ctx, "ds", "w2")
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = f.svc.TrainingHistory(ctx, "missing", "")
	assert.True(t, apperr.IsNotFound(err))
}
