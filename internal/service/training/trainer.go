package training

import (
	"context"
	"encoding/json"

	"github.com/ashwinyue/next-analytics/internal/model"
)

// Trainer 模型训练能力
// Train 对不支持的模型或问题类型返回错误，由编排器记为跳过
type Trainer interface {
	Models(pt model.ProblemType) []string
	Train(ctx context.Context, set *Set, modelName string) (*Fit, error)
}

// Fit 单个模型的训练结果
type Fit struct {
	Metrics           map[string]float64
	FeatureImportance map[string]float64
	Hyperparameters   map[string]interface{}
}

// ModelResult 一个 目标 × 算法 的训练结果，产生后不再修改
type ModelResult struct {
	ModelName         string                 `json:"model_name"`
	Target            string                 `json:"target"`
	ProblemType       model.ProblemType      `json:"problem_type"`
	Features          []string               `json:"features"`
	Metrics           map[string]float64     `json:"metrics"`
	FeatureImportance map[string]float64     `json:"feature_importance"`
	TrainingTime      float64                `json:"training_time"`
	Hyperparameters   map[string]interface{} `json:"hyperparameters"`
}

// MarshalJSON 在嵌套 metrics 之外将各指标平铺到顶层
func (r ModelResult) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"model_name":         r.ModelName,
		"target":             r.Target,
		"problem_type":       r.ProblemType,
		"features":           r.Features,
		"metrics":            r.Metrics,
		"feature_importance": r.FeatureImportance,
		"training_time":      r.TrainingTime,
		"hyperparameters":    r.Hyperparameters,
	}
	for k, v := range r.Metrics {
		out[k] = v
	}
	return json.Marshal(out)
}

// PrimaryMetric 问题类型对应的主指标
func PrimaryMetric(pt model.ProblemType) string {
	if pt == model.ProblemClassification {
		return "accuracy"
	}
	return "r2_score"
}

// PrimaryScore 主指标得分
func (r ModelResult) PrimaryScore() (float64, bool) {
	v, ok := r.Metrics[PrimaryMetric(r.ProblemType)]
	return v, ok
}
