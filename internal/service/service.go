package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-analytics/internal/config"
	"github.com/ashwinyue/next-analytics/internal/repository"
	"github.com/ashwinyue/next-analytics/internal/service/aggregate"
	"github.com/ashwinyue/next-analytics/internal/service/ai"
	"github.com/ashwinyue/next-analytics/internal/service/analysis"
	"github.com/ashwinyue/next-analytics/internal/service/callback"
	"github.com/ashwinyue/next-analytics/internal/service/dataset"
	"github.com/ashwinyue/next-analytics/internal/service/dfcache"
	"github.com/ashwinyue/next-analytics/internal/service/file"
	"github.com/ashwinyue/next-analytics/internal/service/insight"
	"github.com/ashwinyue/next-analytics/internal/service/selection"
	"github.com/ashwinyue/next-analytics/internal/service/sqlquery"
	"github.com/ashwinyue/next-analytics/internal/service/training"
)

// Services 服务集合
type Services struct {
	// 业务服务
	Dataset  *dataset.Service
	Analysis *analysis.Service

	// 基础组件
	Config *config.Config
	Cache  *dfcache.Cache
	AI     *ai.Client // AI 不可用时为 nil
}

// NewServices 创建所有服务
// AI 配置缺失或创建失败时降级为模板输出，不影响启动
func NewServices(repo *repository.Repositories, storage file.Storage, cfg *config.Config, redisClient *redis.Client, logger *zap.SugaredLogger) *Services {
	client := newAIClient(context.Background(), cfg, logger)

	cache := dfcache.New(repo.Dataset, storage, dfcache.Options{
		TTL:   cfg.Analysis.CacheTTL,
		Size:  cfg.Analysis.CacheSize,
		Redis: redisClient,
	}, logger.Named("dfcache"))

	orchestrator := training.NewOrchestrator(training.NewBuiltin(cfg.Analysis.SampleSeed), training.Config{
		MaxWorkers:     cfg.Analysis.MaxWorkers,
		TaskTimeout:    cfg.Analysis.TaskTimeout,
		MaxCategories:  cfg.Analysis.MaxCategories,
		ClassThreshold: cfg.Analysis.ClassThreshold,
	}, logger.Named("training"))

	// 避免 nil 指针包装成非 nil 接口
	var validator selection.Validator
	var textGen insight.TextGenerator
	if client != nil {
		validator, textGen = client, client
	}

	inline := int64(cfg.Analysis.InlineThresholdBytes())
	analysisLogger := logger.Named("analysis")
	return &Services{
		Dataset: dataset.NewService(repo, storage, cache,
			sqlquery.NewRunner(cfg.Analysis.QueryMaxRows, cfg.Analysis.QueryTimeout, logger.Named("sqlquery")),
			inline, logger.Named("dataset")),
		Analysis: analysis.NewService(analysis.Deps{
			Repo:         repo,
			Storage:      storage,
			Frames:       cache,
			Resolver:     selection.NewResolver(validator, cfg.Analysis.ClassThreshold, analysisLogger),
			Orchestrator: orchestrator,
			Recorder:     aggregate.NewRecorder(repo.Training, repo.Dataset, analysisLogger),
			Insights:     insight.NewGenerator(textGen, analysisLogger),
		}, analysis.Config{
			SampleThreshold:  cfg.Analysis.SampleThreshold,
			SampleSize:       cfg.Analysis.SampleSize,
			SampleSeed:       cfg.Analysis.SampleSeed,
			InlineThreshold:  inline,
			ChatHistoryLimit: cfg.Analysis.ChatHistoryLimit,
		}, analysisLogger),
		Config: cfg,
		Cache:  cache,
		AI:     client,
	}
}

// Close 释放缓存等资源
func (s *Services) Close() {
	s.Cache.Close()
}

// newAIClient 创建 AI 客户端，失败时返回 nil
func newAIClient(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *ai.Client {
	if !cfg.AI.Enabled {
		logger.Info("AI disabled, insights fall back to templates")
		return nil
	}
	cm, timeout, err := ai.NewChatModel(ctx, cfg.AI)
	if err != nil {
		logger.Warnf("failed to create chat model, insights fall back to templates: %v", err)
		return nil
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger.Infof("AI provider %s enabled (timeout %s)", cfg.AI.Provider, timeout)
	return ai.NewClient(cm, timeout, callback.NewLogger(logger.Named("ai"), cfg.App.Debug))
}
