// Package ai 封装大模型能力：选择校验与文本生成
// 所有调用方都必须把 AI 视为可选能力，不可用时走确定性分支
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-analytics/internal/config"
)

// ErrUnavailable AI 未配置
var ErrUnavailable = errors.New("ai capability unavailable")

const defaultTimeout = 30 * time.Second

// Client 大模型客户端，零值与 nil 均表示不可用
type Client struct {
	model    model.BaseChatModel
	timeout  time.Duration
	handlers []callbacks.Handler
}

// NewClient 创建客户端，handlers 在每次调用时挂到 context 上
func NewClient(cm model.BaseChatModel, timeout time.Duration, handlers ...callbacks.Handler) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{model: cm, timeout: timeout, handlers: handlers}
}

// NewChatModel 根据配置创建 ChatModel
func NewChatModel(ctx context.Context, cfg config.AIConfig) (model.BaseChatModel, time.Duration, error) {
	var apiKey, baseURL, modelName string
	var timeout int

	switch cfg.Provider {
	case "openai":
		apiKey = cfg.OpenAI.APIKey
		baseURL = cfg.OpenAI.BaseURL
		modelName = cfg.OpenAI.Model
		timeout = cfg.OpenAI.Timeout
	case "alibaba", "qwen", "dashscope":
		apiKey = cfg.Alibaba.AccessKeySecret
		baseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
		modelName = cfg.Alibaba.Model
		timeout = cfg.Alibaba.Timeout
	case "deepseek":
		apiKey = cfg.DeepSeek.APIKey
		baseURL = cfg.DeepSeek.BaseURL
		modelName = cfg.DeepSeek.Model
		timeout = cfg.DeepSeek.Timeout
	default:
		return nil, 0, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if apiKey == "" {
		return nil, 0, fmt.Errorf("api_key is required for provider: %s", cfg.Provider)
	}

	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	temperature := float32(0.2)
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       modelName,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, 0, err
	}
	return cm, time.Duration(timeout) * time.Second, nil
}

// IsAvailable 是否可用
func (c *Client) IsAvailable() bool {
	return c != nil && c.model != nil
}

// GenerateText 生成文本
func (c *Client) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	if !c.IsAvailable() {
		return "", ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if len(c.handlers) > 0 {
		ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
			Name:      "next-analytics",
			Type:      "ChatModel",
			Component: components.ComponentOfChatModel,
		}, c.handlers...)
	}

	messages := make([]*schema.Message, 0, 2)
	if system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}
	messages = append(messages, schema.UserMessage(prompt))

	resp, err := c.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("ai generate failed: %w", err)
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", errors.New("ai returned empty content")
	}
	return content, nil
}
