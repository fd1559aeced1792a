// Package repository 定义数据访问接口
// 接口抽象使存储引擎可替换，也便于 Service 层单元测试
package repository

import (
	"context"
	"time"

	"github.com/ashwinyue/next-analytics/internal/model"
)

// ========== DatasetStore 接口 ==========

// DatasetStore 数据集元数据访问接口
type DatasetStore interface {
	Create(ctx context.Context, ds *model.Dataset) error
	GetByID(ctx context.Context, id string) (*model.Dataset, error)
	List(ctx context.Context, offset, limit int) ([]*model.Dataset, int64, error)
	Update(ctx context.Context, ds *model.Dataset) error
	Delete(ctx context.Context, id string) error
	// IncrementTrainingCount 训练计数加一并更新最近训练时间
	IncrementTrainingCount(ctx context.Context, id string, at time.Time) error
}

// ========== WorkspaceStore 接口 ==========

// WorkspaceStore 工作区访问接口
type WorkspaceStore interface {
	Save(ctx context.Context, ws *model.Workspace) error
	GetByID(ctx context.Context, id string) (*model.Workspace, error)
	ListByDataset(ctx context.Context, datasetID string) ([]*model.Workspace, error)
	Delete(ctx context.Context, id string) error
}

// ========== TrainingStore 接口 ==========

// TrainingStore 训练元数据访问接口
type TrainingStore interface {
	SaveBatch(ctx context.Context, records []*model.TrainingMetadata) error
	List(ctx context.Context, datasetID, workspaceName string) ([]*model.TrainingMetadata, error)
}

// ========== FeedbackStore 接口 ==========

// FeedbackStore 用户评价访问接口
type FeedbackStore interface {
	Save(ctx context.Context, fb *model.Feedback) error
	Stats(ctx context.Context, datasetID string) (*model.FeedbackStats, error)
}

// 确保实现了接口
var (
	_ DatasetStore   = (*DatasetRepository)(nil)
	_ WorkspaceStore = (*WorkspaceRepository)(nil)
	_ TrainingStore  = (*TrainingRepository)(nil)
	_ FeedbackStore  = (*FeedbackRepository)(nil)
)
