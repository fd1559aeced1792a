package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/metrics"
	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/service/aggregate"
	"github.com/ashwinyue/next-analytics/internal/service/chart"
	"github.com/ashwinyue/next-analytics/internal/service/insight"
	"github.com/ashwinyue/next-analytics/internal/service/selection"
	"github.com/ashwinyue/next-analytics/internal/service/table"
	"github.com/ashwinyue/next-analytics/internal/service/training"
)

// HolisticRequest 整体分析请求
type HolisticRequest struct {
	DatasetID       string               `json:"dataset_id"`
	WorkspaceName   string               `json:"workspace_name"`
	UserSelection   *selection.Selection `json:"user_selection"`
	ProblemType     string               `json:"problem_type"`
	SelectedModels  []string             `json:"selected_models"`
	UserExpectation string               `json:"user_expectation"`
}

// Explainability 模型解释（基于特征重要性）
type Explainability struct {
	Method            string                        `json:"method"`
	Available         bool                          `json:"available"`
	FeatureImportance []aggregate.FeatureImportance `json:"feature_importance"`
	Message           string                        `json:"message"`
}

// HolisticResponse 整体分析结果
// 可选部分失败时填入空值，不影响其他部分
type HolisticResponse struct {
	DatasetID               string                    `json:"dataset_id"`
	WorkspaceName           string                    `json:"workspace_name"`
	Profile                 aggregate.Profile         `json:"profile"`
	MLModels                []training.ModelResult    `json:"ml_models"`
	BestModel               *training.ModelResult     `json:"best_model"`
	ProblemType             model.ProblemType         `json:"problem_type"`
	Targets                 []string                  `json:"targets"`
	AutoCharts              []chart.Spec              `json:"auto_charts"`
	SkippedCharts           []chart.Skipped           `json:"skipped_charts"`
	Correlations            []aggregate.Correlation   `json:"correlations"`
	Insights                string                    `json:"insights"`
	InsightsSource          string                    `json:"insights_source"`
	TrainingMetadata        []*model.TrainingMetadata `json:"training_metadata"`
	VolumeAnalysis          aggregate.VolumeAnalysis  `json:"volume_analysis"`
	AIInsights              []insight.Insight         `json:"ai_insights"`
	Explainability          Explainability            `json:"explainability"`
	BusinessRecommendations []insight.Recommendation  `json:"business_recommendations"`
	DomainInfo              insight.DomainInfo        `json:"domain_info"`
	SREForecast             *insight.Forecast         `json:"sre_forecast,omitempty"`
	HistoricalTrends        map[string]insight.Trend  `json:"historical_trends"`
	SelectionFeedback       *selection.Feedback       `json:"selection_feedback"`
	PerformanceInfo         training.PerformanceInfo  `json:"performance_info"`
	TimeSeriesAdvisory      *selection.Advisory       `json:"time_series_advisory,omitempty"`
	OmittedSections         []string                  `json:"omitted_sections,omitempty"`
}

// Holistic 执行整体分析
// 数据加载与请求校验失败直接返回错误；训练失败按目标隔离；其余步骤尽力而为
func (s *Service) Holistic(ctx context.Context, req *HolisticRequest) (resp *HolisticResponse, err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.AnalysisRequests.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(req.DatasetID) == "" {
		return nil, apperr.Validation("dataset_id is required")
	}
	pt, ok := model.ParseProblemType(req.ProblemType)
	if !ok {
		return nil, apperr.Validation("unsupported problem_type: %s", req.ProblemType)
	}
	workspace := strings.TrimSpace(req.WorkspaceName)
	if workspace == "" {
		workspace = DefaultWorkspace
	}
	sel := selection.Selection{Kind: selection.KindAuto}
	if req.UserSelection != nil {
		sel = *req.UserSelection
	}
	expectation := strings.TrimSpace(req.UserExpectation)
	if expectation == "" {
		expectation = sel.UserExpectation
	}

	tb, err := s.Frames.Load(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	s.logger.Infof("holistic analysis for dataset %s: %d rows, %d columns, problem_type=%s", req.DatasetID, tb.NumRows(), tb.NumCols(), pt)

	c := newComposer(s.logger)
	resp = &HolisticResponse{
		DatasetID:        req.DatasetID,
		WorkspaceName:    workspace,
		MLModels:         []training.ModelResult{},
		ProblemType:      pt,
		Targets:          []string{},
		TrainingMetadata: []*model.TrainingMetadata{},
	}

	// 画像使用全量数据，训练与图表使用抽样数据
	resp.Profile = compose(c, "profile", aggregate.Profile{}, pure(func() aggregate.Profile { return aggregate.BuildProfile(tb) }))
	work, perf := training.SampleForAnalysis(tb, s.cfg.SampleThreshold, s.cfg.SampleSize, s.cfg.SampleSeed)
	resp.PerformanceInfo = perf
	if perf.Sampled {
		s.logger.Infof("dataset %s sampled: %d -> %d rows", req.DatasetID, perf.OriginalSize, perf.SampleSize)
	}

	resolved, err := s.Resolver.Resolve(ctx, selection.Input{Selection: sel, ProblemType: pt}, work)
	if err != nil {
		return nil, err
	}
	fb := resolved.Feedback
	if fb == nil {
		fb = &selection.Feedback{Status: selection.StatusInfo, Targets: []string{}}
	}

	var agg *aggregate.Aggregation
	if resolved.Advisory != nil {
		resp.TimeSeriesAdvisory = resolved.Advisory
		fb.Message = resolved.Advisory.Message
		agg = aggregate.Merge(nil, pt)
	} else {
		resp.Targets = resolved.Targets()
		agg = s.train(ctx, work, resolved, pt, req.SelectedModels)
		resp.ProblemType = agg.ProblemType
		resp.MLModels = agg.Models
		resp.BestModel = agg.Best
		annotate(fb, agg)

		resp.TrainingMetadata = compose(c, "training_metadata", []*model.TrainingMetadata{}, func() ([]*model.TrainingMetadata, error) {
			return s.Recorder.Persist(ctx, req.DatasetID, workspace, agg.Models)
		})
	}
	resp.SelectionFeedback = fb

	charts := compose(c, "auto_charts", chart.Result{Charts: []chart.Spec{}, Skipped: []chart.Skipped{}}, pure(func() chart.Result {
		return chart.Recommend(work, chart.Input{Target: firstOf(resp.Targets), Models: agg.Models})
	}))
	resp.AutoCharts, resp.SkippedCharts = charts.Charts, charts.Skipped

	resp.Correlations = compose(c, "correlations", []aggregate.Correlation{}, pure(func() []aggregate.Correlation {
		return aggregate.Correlations(work)
	}))
	resp.VolumeAnalysis = compose(c, "volume_analysis", aggregate.VolumeAnalysis{Categorical: []aggregate.CategoryBreakdown{}, Warnings: []string{}}, pure(func() aggregate.VolumeAnalysis {
		return aggregate.Volume(tb)
	}))
	importance := compose(c, "explainability", []aggregate.FeatureImportance{}, pure(func() []aggregate.FeatureImportance {
		return aggregate.ImportanceRollup(agg.Models)
	}))
	resp.Explainability = explain(importance)

	summary := insight.Summary{
		Rows:            tb.NumRows(),
		Columns:         tb.NumCols(),
		Targets:         resp.Targets,
		ProblemType:     resp.ProblemType,
		Models:          agg.Models,
		Best:            agg.Best,
		Profile:         &resp.Profile,
		Correlations:    resp.Correlations,
		Failures:        agg.Failures,
		UserExpectation: expectation,
	}
	report := compose(c, "insights", insight.Report{Text: insight.TemplateText(summary), Source: "template"}, pure(func() insight.Report {
		return s.Insights.Insights(ctx, summary)
	}))
	resp.Insights, resp.InsightsSource = report.Text, report.Source
	resp.AIInsights = report.Items
	if resp.AIInsights == nil {
		resp.AIInsights = []insight.Insight{}
	}

	trendCols := resp.Targets
	if len(trendCols) == 0 {
		trendCols = tb.NumericColumns()
	}
	resp.HistoricalTrends = compose(c, "historical_trends", map[string]insight.Trend{}, pure(func() map[string]insight.Trend {
		return insight.HistoricalTrends(tb, trendCols)
	}))
	resp.DomainInfo = insight.DetectDomain(expectation, tb.Columns())
	resp.SREForecast = compose(c, "sre_forecast", (*insight.Forecast)(nil), func() (*insight.Forecast, error) {
		return s.Insights.Forecast(ctx, expectation, resp.HistoricalTrends, resp.DomainInfo)
	})

	resp.BusinessRecommendations = compose(c, "business_recommendations", []insight.Recommendation{}, pure(func() []insight.Recommendation {
		return insight.BusinessRecommendations(insight.RecommendationInput{
			Best:       agg.Best,
			Profile:    &resp.Profile,
			Importance: importance,
			Volume:     &resp.VolumeAnalysis,
			Failures:   agg.Failures,
			Trends:     resp.HistoricalTrends,
		})
	}))

	resp.OmittedSections = c.omitted
	s.logger.Infof("holistic analysis for dataset %s finished: %d models, best=%s, %s",
		req.DatasetID, len(resp.MLModels), bestName(resp.BestModel), time.Since(start).Round(time.Millisecond))
	return resp, nil
}

// train 将解析结果转为训练任务并合并结果
func (s *Service) train(ctx context.Context, tb *table.Table, resolved *selection.Result, pt model.ProblemType, selected []string) *aggregate.Aggregation {
	jobs := make([]training.Job, 0, len(resolved.Mappings))
	for _, m := range resolved.Mappings {
		jobs = append(jobs, training.Job{Target: m.Target, Features: m.Features})
	}
	results := s.Orchestrator.Run(ctx, tb, jobs, training.Options{ProblemType: pt, SelectedModels: selected})
	return aggregate.Merge(results, pt)
}

// annotate 将训练阶段的说明写入选择反馈
func annotate(fb *selection.Feedback, agg *aggregate.Aggregation) {
	for _, n := range agg.Notes {
		fb.AddNote(n)
	}
	fb.Exclude(agg.Excluded...)
	for _, f := range agg.Failures {
		fb.AddNote(f)
	}
	if len(agg.Models) == 0 {
		fb.AddNote("No models could be trained for the selected targets.")
	}
}

func explain(importance []aggregate.FeatureImportance) Explainability {
	e := Explainability{Method: "feature_importance", FeatureImportance: importance}
	if len(importance) == 0 {
		e.Message = "No feature importance available"
		return e
	}
	e.Available = true
	e.Message = fmt.Sprintf("'%s' is the most influential feature across trained models", importance[0].Feature)
	return e
}

func firstOf(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

func bestName(m *training.ModelResult) string {
	if m == nil {
		return "none"
	}
	return m.ModelName
}
