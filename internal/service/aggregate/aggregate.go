// Package aggregate 汇总各目标的训练结果，并计算画像、相关性与类别分布
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/repository"
	"github.com/ashwinyue/next-analytics/internal/service/training"
)

// Aggregation 合并后的训练结果
type Aggregation struct {
	Models []training.ModelResult
	// Best 主指标最高的模型，得分相同时取先出现者
	Best *training.ModelResult
	// ProblemType 最佳模型的问题类型；无模型时为第一个成功构建的目标的类型
	ProblemType model.ProblemType
	Targets     []string
	Failures    []string
	Excluded    []string
	Notes       []string
}

// Merge 按派发顺序合并各目标结果
func Merge(results []training.TargetResult, declared model.ProblemType) *Aggregation {
	agg := &Aggregation{Models: []training.ModelResult{}}
	for _, r := range results {
		agg.Notes = append(agg.Notes, r.Notes...)
		if r.Corrected != "" {
			agg.Notes = append(agg.Notes, r.Corrected)
		}
		agg.Excluded = appendUnique(agg.Excluded, r.Excluded...)
		if agg.ProblemType == "" && r.ProblemType != "" {
			agg.ProblemType = r.ProblemType
		}
		if r.Err != nil {
			agg.Failures = append(agg.Failures, r.FailureMessage())
			continue
		}
		agg.Targets = append(agg.Targets, r.Target)
		agg.Models = append(agg.Models, r.Models...)
	}

	agg.Best = BestModel(agg.Models)
	if agg.Best != nil {
		agg.ProblemType = agg.Best.ProblemType
	}
	if agg.ProblemType == "" {
		agg.ProblemType = declared
	}
	return agg
}

// BestModel 主指标（回归 r2_score，分类 accuracy）最大者
// 只有严格更大才替换，因此得分相同时保留先出现的模型
func BestModel(models []training.ModelResult) *training.ModelResult {
	var best *training.ModelResult
	bestScore := 0.0
	for i := range models {
		score, ok := models[i].PrimaryScore()
		if !ok {
			continue
		}
		if best == nil || score > bestScore {
			best = &models[i]
			bestScore = score
		}
	}
	return best
}

// Records 为每个模型生成训练记录
func Records(datasetID, workspace string, models []training.ModelResult) []*model.TrainingMetadata {
	now := time.Now()
	records := make([]*model.TrainingMetadata, 0, len(models))
	for _, m := range models {
		records = append(records, &model.TrainingMetadata{
			ID:              uuid.New().String(),
			DatasetID:       datasetID,
			WorkspaceName:   workspace,
			Target:          m.Target,
			Features:        datatypes.NewJSONSlice(m.Features),
			ModelName:       m.ModelName,
			ProblemType:     string(m.ProblemType),
			Hyperparameters: datatypes.JSONMap(m.Hyperparameters),
			Metrics:         datatypes.NewJSONType(m.Metrics),
			TrainingTime:    m.TrainingTime,
			CreatedAt:       now,
		})
	}
	return records
}

// Recorder 持久化训练记录
type Recorder struct {
	training repository.TrainingStore
	datasets repository.DatasetStore
	logger   *zap.SugaredLogger
}

// NewRecorder 创建记录器
func NewRecorder(trainingStore repository.TrainingStore, datasets repository.DatasetStore, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{training: trainingStore, datasets: datasets, logger: logger}
}

// Persist 保存训练记录并累加数据集训练次数，只有保存失败才返回错误
func (r *Recorder) Persist(ctx context.Context, datasetID, workspace string, models []training.ModelResult) ([]*model.TrainingMetadata, error) {
	if len(models) == 0 {
		return []*model.TrainingMetadata{}, nil
	}
	records := Records(datasetID, workspace, models)
	if err := r.training.SaveBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to save training metadata: %w", err)
	}
	// 记录已落库，计数更新失败只记录日志
	if err := r.datasets.IncrementTrainingCount(ctx, datasetID, time.Now()); err != nil {
		r.logger.Warnf("failed to update training count for dataset %s: %v", datasetID, err)
	}
	r.logger.Infof("saved %d training records for dataset %s", len(records), datasetID)
	return records, nil
}

// FeatureImportance 特征重要性汇总
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
	Models     int     `json:"models"`
}

// ImportanceRollup 各模型特征重要性的平均值，降序排列
func ImportanceRollup(models []training.ModelResult) []FeatureImportance {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, m := range models {
		for f, v := range m.FeatureImportance {
			sums[f] += v
			counts[f]++
		}
	}
	out := make([]FeatureImportance, 0, len(sums))
	for f, s := range sums {
		out = append(out, FeatureImportance{Feature: f, Importance: s / float64(counts[f]), Models: counts[f]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Feature < out[j].Feature
	})
	return out
}

func appendUnique(list []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, v := range list {
			if v == it {
				found = true
				break
			}
		}
		if !found {
			list = append(list, it)
		}
	}
	return list
}
