// Package metrics 定义 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TrainingTasks 按结果统计的训练任务数（每个目标一个任务）
	TrainingTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "next_analytics",
		Name:      "training_tasks_total",
		Help:      "Per-target training tasks by outcome",
	}, []string{"outcome"})

	// TrainingDuration 单个模型训练耗时
	TrainingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "next_analytics",
		Name:      "model_training_seconds",
		Help:      "Time spent training a single model",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"model", "problem_type"})

	// CacheLookups 数据帧缓存命中情况
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "next_analytics",
		Name:      "dataframe_cache_lookups_total",
		Help:      "DataFrame cache lookups by tier and result",
	}, []string{"tier", "result"})

	// AIFallbacks AI 调用失败后降级次数
	AIFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "next_analytics",
		Name:      "ai_fallbacks_total",
		Help:      "Times an AI-assisted step fell back to deterministic behavior",
	}, []string{"step"})

	// AnalysisRequests 整体分析请求耗时
	AnalysisRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "next_analytics",
		Name:      "holistic_analysis_seconds",
		Help:      "End-to-end holistic analysis latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
)

var (
	// AICalls 大模型调用次数
	AICalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "next_analytics",
		Name:      "ai_calls_total",
		Help:      "Chat model calls by outcome",
	}, []string{"outcome"})

	// AITokens 大模型 token 用量
	AITokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "next_analytics",
		Name:      "ai_tokens_total",
		Help:      "Tokens consumed by chat model calls",
	}, []string{"kind"})
)
