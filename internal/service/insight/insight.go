// Package insight 将聚合后的训练结果转换为可读的洞察、趋势与预测
// AI 不可用或调用失败时退化为确定性的模板文本
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ashwinyue/next-analytics/internal/metrics"
	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/service/aggregate"
	"github.com/ashwinyue/next-analytics/internal/service/ai"
	"github.com/ashwinyue/next-analytics/internal/service/training"
)

// FallbackMessage 模板文本的结尾
const FallbackMessage = "Analysis complete. Explore the charts and model results above."

// 提示中最多包含的模型数
const promptModels = 5

// TextGenerator AI 文本生成能力
type TextGenerator interface {
	IsAvailable() bool
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// Insight 单条洞察
type Insight struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// Summary 生成洞察所需的聚合信息
type Summary struct {
	Rows            int
	Columns         int
	Targets         []string
	ProblemType     model.ProblemType
	Models          []training.ModelResult
	Best            *training.ModelResult
	Profile         *aggregate.Profile
	Correlations    []aggregate.Correlation
	Failures        []string
	UserExpectation string
}

// Report 洞察结果
type Report struct {
	// Text 兼容旧字段的段落文本，始终非空
	Text  string
	Items []Insight
	// Source ai 或 template
	Source string
}

// Generator 洞察生成器
type Generator struct {
	ai     TextGenerator
	logger *zap.SugaredLogger
}

// NewGenerator 创建生成器，textGen 可为 nil
func NewGenerator(textGen TextGenerator, logger *zap.SugaredLogger) *Generator {
	return &Generator{ai: textGen, logger: logger}
}

// AIAvailable AI 能力是否可用
func (g *Generator) AIAvailable() bool {
	return g.ai != nil && g.ai.IsAvailable()
}

const insightSystemPrompt = `You are a senior data analyst. You receive a summary of a dataset and of machine learning models trained on it.
Write 3 to 5 concise, actionable insights.

Rules:
1. Respond with a JSON array only, no prose around it.
2. Each element must have the keys "title", "description" and "recommendation".
3. Refer to columns and models by their exact names.`

// Insights 生成洞察，任何 AI 错误都退化为模板
func (g *Generator) Insights(ctx context.Context, s Summary) Report {
	if g.AIAvailable() {
		items, err := g.aiInsights(ctx, s)
		if err == nil {
			return Report{Text: renderText(items), Items: items, Source: "ai"}
		}
		metrics.AIFallbacks.WithLabelValues("insights").Inc()
		g.logger.Warnf("ai insights failed, using template: %v", err)
	}
	items := TemplateInsights(s)
	return Report{Text: TemplateText(s), Items: items, Source: "template"}
}

func (g *Generator) aiInsights(ctx context.Context, s Summary) ([]Insight, error) {
	raw, err := g.ai.GenerateText(ctx, insightSystemPrompt, BuildPrompt(s))
	if err != nil {
		return nil, err
	}
	return ParseInsights(raw)
}

// ParseInsights 解析模型返回的洞察列表，也接受 {"insights": [...]} 形式
func ParseInsights(raw string) ([]Insight, error) {
	fixed := ai.RepairJSON(raw)
	var items []Insight
	if err := json.Unmarshal([]byte(fixed), &items); err != nil {
		var wrapped struct {
			Insights []Insight `json:"insights"`
		}
		if err2 := json.Unmarshal([]byte(fixed), &wrapped); err2 != nil {
			return nil, fmt.Errorf("failed to parse insights: %w", err)
		}
		items = wrapped.Insights
	}

	out := items[:0]
	for _, it := range items {
		if strings.TrimSpace(it.Title) == "" && strings.TrimSpace(it.Description) == "" {
			continue
		}
		out = append(out, it)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ai returned no insights")
	}
	return out, nil
}

// BuildPrompt 构建洞察提示
func BuildPrompt(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset: %d rows, %d columns.\n", s.Rows, s.Columns)
	if len(s.Targets) > 0 {
		fmt.Fprintf(&b, "Targets: %s\n", strings.Join(s.Targets, ", "))
	}
	fmt.Fprintf(&b, "Problem type: %s\n", s.ProblemType)
	if s.Profile != nil {
		fmt.Fprintf(&b, "Missing values: %.2f%%, duplicate rows: %d, quality score: %.1f\n",
			s.Profile.MissingPercent, s.Profile.DuplicateRows, s.Profile.QualityScore)
	}

	models := topModels(s.Models, promptModels)
	if len(models) > 0 {
		b.WriteString("Models:\n")
		for _, m := range models {
			fmt.Fprintf(&b, "- %s (target %s): %s\n", m.ModelName, m.Target, formatMetrics(m.Metrics))
		}
	}
	for i, c := range s.Correlations {
		if i == 3 {
			break
		}
		if i == 0 {
			b.WriteString("Top correlations:\n")
		}
		fmt.Fprintf(&b, "- %s ~ %s: %.3f\n", c.Feature1, c.Feature2, c.Correlation)
	}
	if s.UserExpectation != "" {
		fmt.Fprintf(&b, "User goal: %s\n", s.UserExpectation)
	}
	return b.String()
}

// TemplateText 模板段落
func TemplateText(s Summary) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("The dataset contains %d rows and %d columns.", s.Rows, s.Columns))
	if s.Best != nil {
		metric := training.PrimaryMetric(s.Best.ProblemType)
		parts = append(parts, fmt.Sprintf("The best %s model is %s for target '%s' with %s = %.4f.",
			s.Best.ProblemType, s.Best.ModelName, s.Best.Target, metric, s.Best.Metrics[metric]))
	} else if len(s.Failures) > 0 {
		parts = append(parts, "No model could be trained.")
	}
	if s.Profile != nil && s.Profile.MissingTotal > 0 {
		parts = append(parts, fmt.Sprintf("%.2f%% of cells are missing.", s.Profile.MissingPercent))
	}
	parts = append(parts, FallbackMessage)
	return strings.Join(parts, " ")
}

// TemplateInsights 根据指标生成确定性的洞察
func TemplateInsights(s Summary) []Insight {
	var out []Insight
	if s.Best != nil {
		metric := training.PrimaryMetric(s.Best.ProblemType)
		out = append(out, Insight{
			Title:          "Best model",
			Description:    fmt.Sprintf("%s achieved %s = %.4f on target '%s'.", s.Best.ModelName, metric, s.Best.Metrics[metric], s.Best.Target),
			Recommendation: "Use this model as the baseline for further tuning.",
		})
		if f, ok := topFeature(s.Best.FeatureImportance); ok {
			out = append(out, Insight{
				Title:          "Key driver",
				Description:    fmt.Sprintf("'%s' is the most important feature for '%s'.", f, s.Best.Target),
				Recommendation: fmt.Sprintf("Monitor '%s' closely; changes in it move the target most.", f),
			})
		}
	}
	if len(s.Correlations) > 0 {
		c := s.Correlations[0]
		out = append(out, Insight{
			Title:          "Strongest relationship",
			Description:    fmt.Sprintf("'%s' and '%s' have a %s correlation (%.3f).", c.Feature1, c.Feature2, c.Strength, c.Correlation),
			Recommendation: "Check whether the relationship is causal before acting on it.",
		})
	}
	if s.Profile != nil && s.Profile.MissingTotal > 0 {
		out = append(out, Insight{
			Title:          "Data quality",
			Description:    fmt.Sprintf("%d missing values (%.2f%% of cells).", s.Profile.MissingTotal, s.Profile.MissingPercent),
			Recommendation: "Impute or collect the missing values to improve model accuracy.",
		})
	}
	if len(out) == 0 {
		out = append(out, Insight{Title: "Analysis complete", Description: FallbackMessage})
	}
	return out
}

func renderText(items []Insight) string {
	paras := make([]string, 0, len(items))
	for _, it := range items {
		p := it.Title
		if it.Description != "" {
			p += ": " + it.Description
		}
		if it.Recommendation != "" {
			p += " " + it.Recommendation
		}
		paras = append(paras, p)
	}
	return strings.Join(paras, "\n\n")
}

// topModels 按主指标降序取前 n 个
func topModels(models []training.ModelResult, n int) []training.ModelResult {
	sorted := append([]training.ModelResult(nil), models...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, _ := sorted[i].PrimaryScore()
		b, _ := sorted[j].PrimaryScore()
		return a > b
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func formatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.4f", k, m[k])
	}
	return strings.Join(parts, ", ")
}

func topFeature(importance map[string]float64) (string, bool) {
	best, score := "", -1.0
	for f, v := range importance {
		if v > score || (v == score && f < best) {
			best, score = f, v
		}
	}
	return best, best != ""
}
