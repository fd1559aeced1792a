package analysis

import (
	"context"
	"strings"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/service/aggregate"
	"github.com/ashwinyue/next-analytics/internal/service/chart"
	"github.com/ashwinyue/next-analytics/internal/service/insight"
	"github.com/ashwinyue/next-analytics/internal/service/training"
)

// 单项分析类型
const (
	RunProfile   = "profile"
	RunClean     = "clean"
	RunVisualize = "visualize"
	RunInsights  = "insights"
)

const cleanPreviewRows = 10

// RunRequest 单项分析请求
type RunRequest struct {
	DatasetID       string `json:"dataset_id"`
	AnalysisType    string `json:"analysis_type"`
	UserExpectation string `json:"user_expectation"`
}

// RunResponse 单项分析结果，只填充与分析类型相关的部分
type RunResponse struct {
	DatasetID         string                         `json:"dataset_id"`
	AnalysisType      string                         `json:"analysis_type"`
	Profile           *aggregate.Profile             `json:"profile,omitempty"`
	Correlations      []aggregate.Correlation        `json:"correlations,omitempty"`
	CorrelationMatrix map[string]map[string]*float64 `json:"correlation_matrix,omitempty"`
	VolumeAnalysis    *aggregate.VolumeAnalysis      `json:"volume_analysis,omitempty"`
	CleaningReport    *CleanReport                   `json:"cleaning_report,omitempty"`
	Preview           []map[string]any               `json:"preview,omitempty"`
	AutoCharts        []chart.Spec                   `json:"auto_charts,omitempty"`
	SkippedCharts     []chart.Skipped                `json:"skipped_charts,omitempty"`
	Insights          string                         `json:"insights,omitempty"`
	AIInsights        []insight.Insight              `json:"ai_insights,omitempty"`
	HistoricalTrends  map[string]insight.Trend       `json:"historical_trends,omitempty"`
	DomainInfo        *insight.DomainInfo            `json:"domain_info,omitempty"`
	PerformanceInfo   *training.PerformanceInfo      `json:"performance_info,omitempty"`
}

// Run 执行单项分析
func (s *Service) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	if strings.TrimSpace(req.DatasetID) == "" {
		return nil, apperr.Validation("dataset_id is required")
	}
	kind := strings.ToLower(strings.TrimSpace(req.AnalysisType))
	switch kind {
	case RunProfile, RunClean, RunVisualize, RunInsights:
	default:
		return nil, apperr.Validation("unsupported analysis_type: %s (expected profile, clean, visualize or insights)", req.AnalysisType)
	}

	tb, err := s.Frames.Load(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	resp := &RunResponse{DatasetID: req.DatasetID, AnalysisType: kind}

	switch kind {
	case RunProfile:
		p := aggregate.BuildProfile(tb)
		v := aggregate.Volume(tb)
		resp.Profile, resp.VolumeAnalysis = &p, &v
		resp.Correlations = aggregate.Correlations(tb)
		resp.CorrelationMatrix = aggregate.CorrelationMatrix(tb)

	case RunClean:
		cleaned, rep := Clean(tb)
		p := aggregate.BuildProfile(cleaned)
		resp.CleaningReport, resp.Profile = &rep, &p
		resp.Preview = cleaned.Head(cleanPreviewRows).Records()
		s.logger.Infof("dataset %s cleaned: %d imputations, %d duplicates removed", req.DatasetID, len(rep.Imputations), rep.DuplicatesRemoved)

	case RunVisualize:
		work, perf := training.SampleForAnalysis(tb, s.cfg.SampleThreshold, s.cfg.SampleSize, s.cfg.SampleSeed)
		r := chart.Recommend(work, chart.Input{})
		resp.AutoCharts, resp.SkippedCharts = r.Charts, r.Skipped
		resp.PerformanceInfo = &perf

	case RunInsights:
		p := aggregate.BuildProfile(tb)
		corr := aggregate.Correlations(tb)
		report := s.Insights.Insights(ctx, insight.Summary{
			Rows:            tb.NumRows(),
			Columns:         tb.NumCols(),
			Profile:         &p,
			Correlations:    corr,
			UserExpectation: req.UserExpectation,
		})
		domain := insight.DetectDomain(req.UserExpectation, tb.Columns())
		resp.Profile, resp.Correlations = &p, corr
		resp.Insights, resp.AIInsights = report.Text, report.Items
		resp.HistoricalTrends = insight.HistoricalTrends(tb, tb.NumericColumns())
		resp.DomainInfo = &domain
	}
	return resp, nil
}
