package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-analytics/internal/model"
)

// FeedbackRepository 评价仓库
type FeedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository 创建评价仓库
func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Save 保存评价
func (r *FeedbackRepository) Save(ctx context.Context, fb *model.Feedback) error {
	return translate(r.db.WithContext(ctx).Create(fb).Error, "feedback", fb.ID)
}

// Stats 统计评价；datasetID 为空时统计全部
func (r *FeedbackRepository) Stats(ctx context.Context, datasetID string) (*model.FeedbackStats, error) {
	query := r.db.WithContext(ctx).Model(&model.Feedback{})
	if datasetID != "" {
		query = query.Where("dataset_id = ?", datasetID)
	}

	var overall struct {
		Count int64
		Avg   float64
	}
	if err := query.Session(&gorm.Session{}).
		Select("COUNT(*) AS count, COALESCE(AVG(rating), 0) AS avg").
		Scan(&overall).Error; err != nil {
		return nil, translate(err, "feedback", "")
	}

	var rows []struct {
		ModelName string
		Avg       float64
	}
	if err := query.Session(&gorm.Session{}).
		Select("model_name, AVG(rating) AS avg").
		Group("model_name").
		Scan(&rows).Error; err != nil {
		return nil, translate(err, "feedback", "")
	}

	stats := &model.FeedbackStats{
		Count:         overall.Count,
		AverageRating: overall.Avg,
		ByModel:       make(map[string]float64, len(rows)),
	}
	for _, row := range rows {
		stats.ByModel[row.ModelName] = row.Avg
	}
	return stats, nil
}
