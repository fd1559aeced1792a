package selection

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/metrics"
	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/service/ai"
	"github.com/ashwinyue/next-analytics/internal/service/table"
)

// Validator AI 校验能力
type Validator interface {
	IsAvailable() bool
	ValidateSelection(ctx context.Context, req ai.SelectionRequest) (*ai.SelectionVerdict, error)
}

// Input 解析输入
type Input struct {
	Selection   Selection
	ProblemType model.ProblemType
}

// Mapping 解析后的目标与特征，特征为空表示除目标外的全部数值列
type Mapping struct {
	Target   string   `json:"target"`
	Features []string `json:"features"`
}

// Outcome 单个层级的结果，Mappings 为空表示交给下一层
type Outcome struct {
	Mappings []Mapping
	Feedback *Feedback
}

// Tier 解析层级
type Tier func(ctx context.Context, in Input, tb *table.Table) Outcome

// Result 最终解析结果
type Result struct {
	Mappings []Mapping
	Feedback *Feedback
	// Advisory 非空时表示时间序列问题，不进行训练
	Advisory *Advisory
}

// Targets 解析出的目标列
func (r *Result) Targets() []string {
	return targetsOf(r.Mappings)
}

// Resolver 变量选择解析器
type Resolver struct {
	tiers  []Tier
	logger *zap.SugaredLogger
}

// NewResolver 创建解析器，validator 可为 nil
// classThreshold 为人工层接受类别目标的最大取值数
func NewResolver(validator Validator, classThreshold int, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{
		tiers: []Tier{
			AITier(validator, logger),
			ManualTier(classThreshold),
			AutoTier,
		},
		logger: logger,
	}
}

// Resolve 依次尝试各层级，直到得到至少一个目标
func (r *Resolver) Resolve(ctx context.Context, in Input, tb *table.Table) (*Result, error) {
	if in.ProblemType == model.ProblemTimeSeries {
		return &Result{Advisory: timeSeriesAdvisory(tb)}, nil
	}

	var fb *Feedback
	for _, tier := range r.tiers {
		out := tier(ctx, in, tb)
		fb = merge(fb, out)
		if len(out.Mappings) > 0 {
			if fb == nil {
				fb = &Feedback{Status: StatusInfo}
			}
			fb.Targets = targetsOf(out.Mappings)
			return &Result{Mappings: out.Mappings, Feedback: fb}, nil
		}
	}

	return nil, apperr.Validation("could not determine a target column: at least two numeric columns are required for automatic detection")
}

// merge 首个反馈作为主反馈，之后层级的说明追加为备注
func merge(fb *Feedback, out Outcome) *Feedback {
	if out.Feedback == nil {
		return fb
	}
	if fb == nil {
		return out.Feedback
	}
	fb.AddNote(out.Feedback.Message)
	for _, n := range out.Feedback.Notes {
		fb.AddNote(n)
	}
	return fb
}

// ========== AI 层 ==========

// AITier 仅在用户给出目标或特征且 AI 可用时尝试
func AITier(validator Validator, logger *zap.SugaredLogger) Tier {
	return func(ctx context.Context, in Input, tb *table.Table) Outcome {
		sel := in.Selection
		if !sel.HasIntent() || validator == nil || !validator.IsAvailable() {
			return Outcome{}
		}

		verdict, err := validator.ValidateSelection(ctx, ai.SelectionRequest{
			Targets:         sel.Targets(),
			Features:        sel.FeatureUnion(),
			ProblemType:     string(in.ProblemType),
			UserExpectation: sel.UserExpectation,
			RowCount:        tb.NumRows(),
			Columns:         summarize(tb),
		})
		if err != nil {
			metrics.AIFallbacks.WithLabelValues("selection").Inc()
			logger.Warnf("ai selection validation failed, falling back to manual validation: %v", err)
			return Outcome{}
		}

		confidence := verdict.Confidence
		if verdict.OverrideNeeded && verdict.SuggestedTarget != "" && tb.Has(verdict.SuggestedTarget) {
			m := Mapping{
				Target:   verdict.SuggestedTarget,
				Features: existing(tb, verdict.SuggestedTarget, verdict.SuggestedFeatures),
			}
			msg := fmt.Sprintf("AI suggested target '%s' instead of %s", m.Target, quoteList(sel.Targets()))
			if verdict.Explanation != "" {
				msg += ": " + verdict.Explanation
			}
			return Outcome{
				Mappings: []Mapping{m},
				Feedback: &Feedback{Status: StatusOverride, Message: msg, Confidence: &confidence},
			}
		}

		if verdict.OverrideNeeded {
			logger.Warnf("ai suggested target %q is not usable, falling back to manual validation", verdict.SuggestedTarget)
			return Outcome{}
		}

		if verdict.Valid {
			var mappings []Mapping
			for _, p := range sel.Pairs {
				if p.Target == "" || !tb.Has(p.Target) {
					continue
				}
				mappings = append(mappings, Mapping{Target: p.Target, Features: existing(tb, p.Target, p.Features)})
			}
			if len(mappings) == 0 {
				return Outcome{}
			}
			msg := "AI validated the requested selection"
			if verdict.Explanation != "" {
				msg += ": " + verdict.Explanation
			}
			return Outcome{
				Mappings: mappings,
				Feedback: &Feedback{Status: StatusUsed, Message: msg, Confidence: &confidence},
			}
		}

		return Outcome{}
	}
}

// ========== 人工规则层 ==========

// ManualTier 目标必须存在且为数值列
// 问题类型为 classification 时，也接受取值数不超过 classThreshold 的类别列
func ManualTier(classThreshold int) Tier {
	return func(ctx context.Context, in Input, tb *table.Table) Outcome {
		sel := in.Selection
		if len(sel.Targets()) == 0 {
			return Outcome{}
		}

		var mappings []Mapping
		var rejected []string
		for _, p := range sel.Pairs {
			if p.Target == "" {
				continue
			}
			if reason := rejectTarget(tb, p.Target, in.ProblemType, classThreshold); reason != "" {
				rejected = append(rejected, fmt.Sprintf("'%s' (%s)", p.Target, reason))
				continue
			}
			mappings = append(mappings, Mapping{Target: p.Target, Features: existing(tb, p.Target, p.Features)})
		}

		fb := &Feedback{Status: StatusModified}
		if len(mappings) > 0 {
			fb.Message = fmt.Sprintf("Selection validated by column checks: %s", quoteList(targetsOf(mappings)))
		} else {
			fb.Message = "None of the requested targets could be used"
		}
		if len(rejected) > 0 {
			fb.AddNote("Rejected targets: " + strings.Join(rejected, ", "))
		}
		return Outcome{Mappings: mappings, Feedback: fb}
	}
}

func rejectTarget(tb *table.Table, target string, pt model.ProblemType, classThreshold int) string {
	if !tb.Has(target) {
		return "column not found"
	}
	if tb.IsNumeric(target) {
		return ""
	}
	if pt == model.ProblemClassification {
		if n := tb.NUnique(target); n >= 2 && n <= classThreshold {
			return ""
		}
		return fmt.Sprintf("categorical with more than %d classes", classThreshold)
	}
	return "not numeric"
}

// ========== 自动检测层 ==========

// AutoTier 在数值列中选择 方差 × 完整度 最大的列作为目标
func AutoTier(ctx context.Context, in Input, tb *table.Table) Outcome {
	numeric := tb.NumericColumns()
	if len(numeric) < 2 {
		return Outcome{}
	}

	best, bestScore := "", -1.0
	n := float64(tb.NumRows())
	for _, col := range numeric {
		completeness := 1 - float64(tb.MissingCount(col))/n
		score := tb.Variance(col) * completeness
		if score > bestScore {
			best, bestScore = col, score
		}
	}

	// 用户只给了特征时沿用其特征
	features := existing(tb, best, in.Selection.FeatureUnion())
	if len(features) == 0 {
		for _, col := range numeric {
			if col != best {
				features = append(features, col)
			}
		}
	}

	return Outcome{
		Mappings: []Mapping{{Target: best, Features: features}},
		Feedback: &Feedback{
			Status:  StatusInfo,
			Message: fmt.Sprintf("Auto-detected target '%s' (highest variance × completeness among %d numeric columns)", best, len(numeric)),
		},
	}
}

// ========== 辅助函数 ==========

func timeSeriesAdvisory(tb *table.Table) *Advisory {
	return &Advisory{
		Type:            "time_series",
		Message:         "Time-series problems are handled by the forecasting workflow; no models were trained. Use historical_trends for a quick overview.",
		DatetimeColumns: nonNil(tb.DatetimeColumns()),
		ValueColumns:    nonNil(tb.NumericColumns()),
	}
}

// existing 过滤掉不存在的列与目标列本身
func existing(tb *table.Table, target string, features []string) []string {
	var out []string
	for _, f := range features {
		if f != target && tb.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func summarize(tb *table.Table) []ai.ColumnSummary {
	dt := tb.DTypes()
	out := make([]ai.ColumnSummary, 0, tb.NumCols())
	for _, c := range tb.Columns() {
		out = append(out, ai.ColumnSummary{
			Name:    c,
			DType:   string(dt[c]),
			Unique:  tb.NUnique(c),
			Missing: tb.MissingCount(c),
		})
	}
	return out
}

func targetsOf(mappings []Mapping) []string {
	out := make([]string, len(mappings))
	for i, m := range mappings {
		out[i] = m.Target
	}
	return out
}

func quoteList(names []string) string {
	if len(names) == 0 {
		return "the requested selection"
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return strings.Join(quoted, ", ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
