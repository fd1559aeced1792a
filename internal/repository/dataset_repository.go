package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-analytics/internal/model"
)

// DatasetRepository 数据集仓库
type DatasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository 创建数据集仓库
func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// Create 创建数据集
func (r *DatasetRepository) Create(ctx context.Context, ds *model.Dataset) error {
	return translate(r.db.WithContext(ctx).Create(ds).Error, "dataset", ds.ID)
}

// GetByID 根据ID获取数据集
func (r *DatasetRepository) GetByID(ctx context.Context, id string) (*model.Dataset, error) {
	var ds model.Dataset
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ds).Error; err != nil {
		return nil, translate(err, "dataset", id)
	}
	return &ds, nil
}

// List 列出数据集（不加载内联数据）
func (r *DatasetRepository) List(ctx context.Context, offset, limit int) ([]*model.Dataset, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Dataset{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "dataset", "")
	}

	var datasets []*model.Dataset
	err := r.db.WithContext(ctx).
		Omit("inline_data").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&datasets).Error
	if err != nil {
		return nil, 0, translate(err, "dataset", "")
	}
	return datasets, total, nil
}

// Update 更新数据集
func (r *DatasetRepository) Update(ctx context.Context, ds *model.Dataset) error {
	return translate(r.db.WithContext(ctx).Save(ds).Error, "dataset", ds.ID)
}

// Delete 删除数据集及其关联的工作区与训练记录
func (r *DatasetRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.TrainingMetadata{}, "dataset_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Workspace{}, "dataset_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Dataset{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return translate(err, "dataset", id)
}

// IncrementTrainingCount 训练计数加一
func (r *DatasetRepository) IncrementTrainingCount(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Dataset{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"training_count":  gorm.Expr("training_count + ?", 1),
			"last_trained_at": at,
		})
	if res.Error != nil {
		return translate(res.Error, "dataset", id)
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "dataset", id)
	}
	return nil
}
