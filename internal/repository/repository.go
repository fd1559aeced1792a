package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-analytics/internal/apperr"
)

// Repositories 仓库集合，用于统一管理所有仓库
type Repositories struct {
	DB        *gorm.DB // 直接访问数据库
	Dataset   DatasetStore
	Workspace WorkspaceStore
	Training  TrainingStore
	Feedback  FeedbackStore
}

// NewRepositories 创建所有仓库
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:        db,
		Dataset:   NewDatasetRepository(db),
		Workspace: NewWorkspaceRepository(db),
		Training:  NewTrainingRepository(db),
		Feedback:  NewFeedbackRepository(db),
	}
}

// translate 将 gorm 错误转换为业务错误分类
func translate(err error, what, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %s not found", what, id)
	}
	return apperr.Storage(err)
}
