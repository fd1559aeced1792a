package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-analytics/internal/model"
)

// WorkspaceRepository 工作区仓库
type WorkspaceRepository struct {
	db *gorm.DB
}

// NewWorkspaceRepository 创建工作区仓库
func NewWorkspaceRepository(db *gorm.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// Save 创建或更新工作区
func (r *WorkspaceRepository) Save(ctx context.Context, ws *model.Workspace) error {
	return translate(r.db.WithContext(ctx).Save(ws).Error, "workspace", ws.ID)
}

// GetByID 根据ID获取工作区
func (r *WorkspaceRepository) GetByID(ctx context.Context, id string) (*model.Workspace, error) {
	var ws model.Workspace
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ws).Error; err != nil {
		return nil, translate(err, "workspace", id)
	}
	return &ws, nil
}

// ListByDataset 列出数据集的工作区（不含内容）
func (r *WorkspaceRepository) ListByDataset(ctx context.Context, datasetID string) ([]*model.Workspace, error) {
	var list []*model.Workspace
	err := r.db.WithContext(ctx).
		Omit("payload").
		Where("dataset_id = ?", datasetID).
		Order("updated_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, translate(err, "workspace", "")
	}
	return list, nil
}

// Delete 删除工作区
func (r *WorkspaceRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.Workspace{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "workspace", id)
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "workspace", id)
	}
	return nil
}
