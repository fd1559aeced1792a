// Package analysis 编排整体分析流程：加载、变量选择、并行训练、聚合、洞察与响应组装
// 同时提供单项分析、工作区快照与用户评价
package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/ashwinyue/next-analytics/internal/repository"
	"github.com/ashwinyue/next-analytics/internal/service/aggregate"
	"github.com/ashwinyue/next-analytics/internal/service/file"
	"github.com/ashwinyue/next-analytics/internal/service/insight"
	"github.com/ashwinyue/next-analytics/internal/service/selection"
	"github.com/ashwinyue/next-analytics/internal/service/table"
	"github.com/ashwinyue/next-analytics/internal/service/training"
)

// DefaultWorkspace 未指定工作区时使用的名称
const DefaultWorkspace = "default"

// FrameLoader 数据帧加载
type FrameLoader interface {
	Load(ctx context.Context, datasetID string) (*table.Table, error)
}

// Config 分析配置
type Config struct {
	SampleThreshold int
	SampleSize      int
	SampleSeed      int64
	// InlineThreshold 工作区快照内联存储的最大字节数
	InlineThreshold  int64
	ChatHistoryLimit int
}

// Deps 分析服务依赖
type Deps struct {
	Repo         *repository.Repositories
	Storage      file.Storage
	Frames       FrameLoader
	Resolver     *selection.Resolver
	Orchestrator *training.Orchestrator
	Recorder     *aggregate.Recorder
	Insights     *insight.Generator
}

// Service 分析服务
type Service struct {
	Deps
	cfg    Config
	logger *zap.SugaredLogger
}

// NewService 创建分析服务
func NewService(deps Deps, cfg Config, logger *zap.SugaredLogger) *Service {
	if cfg.ChatHistoryLimit <= 0 {
		cfg.ChatHistoryLimit = 50
	}
	return &Service{Deps: deps, cfg: cfg, logger: logger}
}
