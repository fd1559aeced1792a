package insight

import (
	"fmt"
	"sort"

	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/service/aggregate"
	"github.com/ashwinyue/next-analytics/internal/service/training"
)

// Recommendation 业务建议
type Recommendation struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
}

// RecommendationInput 生成建议所需的信息
type RecommendationInput struct {
	Best       *training.ModelResult
	Profile    *aggregate.Profile
	Importance []aggregate.FeatureImportance
	Volume     *aggregate.VolumeAnalysis
	Failures   []string
	Trends     map[string]Trend
}

// BusinessRecommendations 根据最佳模型与数据质量生成确定性建议
func BusinessRecommendations(in RecommendationInput) []Recommendation {
	out := []Recommendation{}

	if in.Best != nil {
		out = append(out, modelRecommendation(in.Best))
	} else {
		out = append(out, Recommendation{
			Category: "modeling",
			Priority: "high",
			Title:    "No model could be trained",
			Detail:   "Check that the target column has enough complete rows and more than one distinct value.",
		})
	}

	if len(in.Importance) > 0 {
		top := in.Importance[0]
		out = append(out, Recommendation{
			Category: "drivers",
			Priority: "medium",
			Title:    fmt.Sprintf("Focus on '%s'", top.Feature),
			Detail:   fmt.Sprintf("'%s' carries the largest share of feature importance (%.2f).", top.Feature, top.Importance),
		})
	}

	if in.Profile != nil {
		switch {
		case in.Profile.QualityScore < 70:
			out = append(out, Recommendation{
				Category: "data_quality",
				Priority: "high",
				Title:    "Improve data quality",
				Detail:   fmt.Sprintf("Quality score is %.1f; %.2f%% of cells are missing and %d rows are duplicated.", in.Profile.QualityScore, in.Profile.MissingPercent, in.Profile.DuplicateRows),
			})
		case in.Profile.MissingTotal > 0 || in.Profile.DuplicateRows > 0:
			out = append(out, Recommendation{
				Category: "data_quality",
				Priority: "low",
				Title:    "Clean remaining gaps",
				Detail:   fmt.Sprintf("%d missing values and %d duplicate rows were found; rows with missing values were dropped for training.", in.Profile.MissingTotal, in.Profile.DuplicateRows),
			})
		}
	}

	if in.Volume != nil {
		for _, c := range in.Volume.Categorical {
			if c.HighlyImbalanced {
				out = append(out, Recommendation{
					Category: "sampling",
					Priority: "medium",
					Title:    fmt.Sprintf("Rebalance '%s'", c.Column),
					Detail:   fmt.Sprintf("'%s' makes up %.0f%% of '%s'; collect more data for the other categories.", c.TopCategories[0].Value, c.TopShare*100, c.Column),
				})
			}
		}
	}

	cols := make([]string, 0, len(in.Trends))
	for c := range in.Trends {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		t := in.Trends[c]
		if t.Direction == TrendStable {
			continue
		}
		out = append(out, Recommendation{
			Category: "trend",
			Priority: "medium",
			Title:    fmt.Sprintf("'%s' is %s", c, t.Direction),
			Detail:   fmt.Sprintf("Recent average %.4f vs historical %.4f (%+.2f%%).", t.RecentAverage, t.HistoricalAverage, t.ChangePercent),
		})
	}

	if len(in.Failures) > 0 {
		out = append(out, Recommendation{
			Category: "modeling",
			Priority: "medium",
			Title:    "Some targets failed to train",
			Detail:   fmt.Sprintf("%d target(s) could not be trained; see selection feedback for details.", len(in.Failures)),
		})
	}
	return out
}

func modelRecommendation(best *training.ModelResult) Recommendation {
	metric := training.PrimaryMetric(best.ProblemType)
	score := best.Metrics[metric]
	strong, moderate := 0.8, 0.5
	if best.ProblemType == model.ProblemClassification {
		strong, moderate = 0.9, 0.7
	}

	r := Recommendation{Category: "modeling"}
	switch {
	case score >= strong:
		r.Priority = "low"
		r.Title = "Model is ready for use"
		r.Detail = fmt.Sprintf("%s reaches %s = %.4f for '%s'; it can support decisions and forecasting.", best.ModelName, metric, score, best.Target)
	case score >= moderate:
		r.Priority = "medium"
		r.Title = "Model is moderately predictive"
		r.Detail = fmt.Sprintf("%s reaches %s = %.4f for '%s'; add features or tune hyperparameters before relying on it.", best.ModelName, metric, score, best.Target)
	default:
		r.Priority = "high"
		r.Title = "Model has weak predictive power"
		r.Detail = fmt.Sprintf("%s only reaches %s = %.4f for '%s'; the current features explain little of the target.", best.ModelName, metric, score, best.Target)
	}
	return r
}
