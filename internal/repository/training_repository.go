package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-analytics/internal/model"
)

// TrainingRepository 训练元数据仓库
type TrainingRepository struct {
	db *gorm.DB
}

// NewTrainingRepository 创建训练元数据仓库
func NewTrainingRepository(db *gorm.DB) *TrainingRepository {
	return &TrainingRepository{db: db}
}

// SaveBatch 批量保存训练记录
func (r *TrainingRepository) SaveBatch(ctx context.Context, records []*model.TrainingMetadata) error {
	if len(records) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Create(&records).Error, "training metadata", "")
}

// List 按数据集（可选工作区）列出训练记录
func (r *TrainingRepository) List(ctx context.Context, datasetID, workspaceName string) ([]*model.TrainingMetadata, error) {
	var records []*model.TrainingMetadata
	query := r.db.WithContext(ctx).Where("dataset_id = ?", datasetID).Order("created_at DESC")
	if workspaceName != "" {
		query = query.Where("workspace_name = ?", workspaceName)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, translate(err, "training metadata", datasetID)
	}
	return records, nil
}
