// Package callback 提供 Eino 回调：大模型调用日志与用量指标
package callback

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-analytics/internal/metrics"
)

// maxLogChars 日志中截断提示词与回复的长度
const maxLogChars = 200

// Logger 日志回调处理器
// 实现 callbacks.Handler 接口，记录 ChatModel 的执行事件与 token 用量
type Logger struct {
	logger      *zap.SugaredLogger
	enableDebug bool
}

var _ callbacks.Handler = (*Logger)(nil)

// NewLogger 创建日志回调处理器
func NewLogger(logger *zap.SugaredLogger, enableDebug bool) *Logger {
	return &Logger{logger: logger, enableDebug: enableDebug}
}

// OnStart 组件执行开始时调用
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if l.enableDebug {
		l.logger.Debugw("ai call started", "name", info.Name, "component", info.Component, "input", formatInput(input))
	}
	return ctx
}

// OnEnd 组件执行成功结束时调用
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	metrics.AICalls.WithLabelValues("ok").Inc()

	out := model.ConvCallbackOutput(output)
	if out == nil {
		return ctx
	}
	fields := []interface{}{"name", info.Name, "component", info.Component}
	if u := out.TokenUsage; u != nil {
		metrics.AITokens.WithLabelValues("prompt").Add(float64(u.PromptTokens))
		metrics.AITokens.WithLabelValues("completion").Add(float64(u.CompletionTokens))
		fields = append(fields, "prompt_tokens", u.PromptTokens, "completion_tokens", u.CompletionTokens)
	}
	if l.enableDebug && out.Message != nil {
		fields = append(fields, "output", truncate(out.Message.Content))
	}
	l.logger.Infow("ai call finished", fields...)
	return ctx
}

// OnError 组件执行出错时调用
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	metrics.AICalls.WithLabelValues("error").Inc()
	l.logger.Warnw("ai call failed", "name", info.Name, "component", info.Component, "error", err)
	return ctx
}

// OnStartWithStreamInput 流式输入开始时调用，分析流程不使用流式接口
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

// OnEndWithStreamOutput 流式输出结束时调用
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}

// formatInput 只记录最后一条消息
func formatInput(input callbacks.CallbackInput) string {
	in := model.ConvCallbackInput(input)
	if in == nil || len(in.Messages) == 0 {
		return ""
	}
	return truncate(in.Messages[len(in.Messages)-1].Content)
}

func truncate(s string) string {
	if len(s) > maxLogChars {
		return s[:maxLogChars] + "..."
	}
	return s
}
