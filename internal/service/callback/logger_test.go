package callback

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ashwinyue/next-analytics/internal/metrics"
)

var info = &callbacks.RunInfo{Name: "test", Type: "ChatModel", Component: components.ComponentOfChatModel}

func newLogger(debug bool) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewLogger(zap.New(core).Sugar(), debug), logs
}

// ========== OnEnd 测试 ==========

func TestOnEnd_RecordsTokenUsage(t *testing.T) {
	l, logs := newLogger(false)
	prompt := testutil.ToFloat64(metrics.AITokens.WithLabelValues("prompt"))
	calls := testutil.ToFloat64(metrics.AICalls.WithLabelValues("ok"))

	l.OnEnd(context.Background(), info, &model.CallbackOutput{
		Message:    schema.AssistantMessage("done", nil),
		TokenUsage: &model.TokenUsage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16},
	})

	assert.Equal(t, prompt+12, testutil.ToFloat64(metrics.AITokens.WithLabelValues("prompt")))
	assert.Equal(t, calls+1, testutil.ToFloat64(metrics.AICalls.WithLabelValues("ok")))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.EqualValues(t, 12, fields["prompt_tokens"])
	assert.NotContains(t, fields, "output")
}

func TestOnEnd_DebugTruncatesOutput(t *testing.T) {
	l, logs := newLogger(true)
	l.OnEnd(context.Background(), info, schema.AssistantMessage(strings.Repeat("x", 500), nil))

	require.Equal(t, 1, logs.Len())
	out, _ := logs.All()[0].ContextMap()["output"].(string)
	assert.Len(t, out, maxLogChars+3)
}

// ========== OnStart / OnError 测试 ==========

func TestOnStart_OnlyInDebug(t *testing.T) {
	input := &model.CallbackInput{Messages: []*schema.Message{schema.UserMessage("hello")}}

	quiet, logs := newLogger(false)
	quiet.OnStart(context.Background(), info, input)
	assert.Zero(t, logs.Len())

	loud, logs := newLogger(true)
	loud.OnStart(context.Background(), info, input)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello", logs.All()[0].ContextMap()["input"])
}

func TestOnError(t *testing.T) {
	l, logs := newLogger(false)
	before := testutil.ToFloat64(metrics.AICalls.WithLabelValues("error"))

	l.OnError(context.Background(), info, errors.New("rate limited"))

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AICalls.WithLabelValues("error")))
	assert.Equal(t, 1, logs.FilterMessage("ai call failed").Len())
}
