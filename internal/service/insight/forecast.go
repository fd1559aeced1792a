package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ashwinyue/next-analytics/internal/service/ai"
)

// Forecast 领域化预测叙述
type Forecast struct {
	Domain          string           `json:"domain"`
	Expectation     string           `json:"user_expectation"`
	Summary         string           `json:"summary"`
	Alerts          []string         `json:"alerts"`
	Recommendations []string         `json:"recommendations"`
	Trends          map[string]Trend `json:"trends"`
}

const forecastSystemPrompt = `You are an analyst specialised in %s, focused on %s.
Using the historical statistics provided, write a short forecast that answers the user's goal.
Use domain vocabulary such as: %s.

Respond with a JSON object only:
{"summary": "...", "alerts": ["..."], "recommendations": ["..."]}`

// Forecast 仅在 AI 可用且用户给出期望时生成；不满足条件时返回 nil, nil
func (g *Generator) Forecast(ctx context.Context, expectation string, trends map[string]Trend, domain DomainInfo) (*Forecast, error) {
	if !g.AIAvailable() || strings.TrimSpace(expectation) == "" {
		return nil, nil
	}

	terms := strings.Join(domain.Terminology, ", ")
	if terms == "" {
		terms = "trend, baseline, outlier"
	}
	system := fmt.Sprintf(forecastSystemPrompt, domainLabel(domain.Domain), domain.Focus, terms)

	raw, err := g.ai.GenerateText(ctx, system, forecastPrompt(expectation, trends))
	if err != nil {
		return nil, fmt.Errorf("forecast generation failed: %w", err)
	}

	fc := &Forecast{
		Domain:          domain.Domain,
		Expectation:     expectation,
		Alerts:          []string{},
		Recommendations: []string{},
		Trends:          trends,
	}
	var parsed struct {
		Summary         string   `json:"summary"`
		Alerts          []string `json:"alerts"`
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(ai.RepairJSON(raw)), &parsed); err != nil || parsed.Summary == "" {
		// 非 JSON 回复按纯文本叙述处理
		fc.Summary = strings.TrimSpace(raw)
		return fc, nil
	}
	fc.Summary = parsed.Summary
	if parsed.Alerts != nil {
		fc.Alerts = parsed.Alerts
	}
	if parsed.Recommendations != nil {
		fc.Recommendations = parsed.Recommendations
	}
	return fc, nil
}

func forecastPrompt(expectation string, trends map[string]Trend) string {
	cols := make([]string, 0, len(trends))
	for c := range trends {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var b strings.Builder
	fmt.Fprintf(&b, "User goal: %s\n", expectation)
	if len(cols) == 0 {
		b.WriteString("No numeric history is available.\n")
	}
	for _, c := range cols {
		t := trends[c]
		fmt.Fprintf(&b, "- %s: mean=%.4f median=%.4f min=%.4f max=%.4f std=%.4f recent_avg=%.4f historical_avg=%.4f trend=%s (%.2f%%)\n",
			c, t.Mean, t.Median, t.Min, t.Max, t.Std, t.RecentAverage, t.HistoricalAverage, t.Direction, t.ChangePercent)
	}
	return b.String()
}

func domainLabel(domain string) string {
	if domain == DomainGeneral || domain == "" {
		return "general business analytics"
	}
	return strings.ReplaceAll(domain, "_", " ")
}
