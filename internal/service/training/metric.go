package training

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MetricInput 指标计算输入，回归使用 Actual/Predicted，分类使用标签
type MetricInput struct {
	Actual          []float64
	Predicted       []float64
	ActualLabels    []string
	PredictedLabels []string
}

// Metric 指标接口
type Metric interface {
	Compute(input *MetricInput) float64
	Name() string
}

// RegressionMetrics 回归指标，第一个为主指标
func RegressionMetrics() []Metric {
	return []Metric{R2Metric{}, RMSEMetric{}, MAEMetric{}}
}

// ClassificationMetrics 分类指标，第一个为主指标
func ClassificationMetrics() []Metric {
	return []Metric{AccuracyMetric{}, PrecisionMetric{}, RecallMetric{}, F1Metric{}}
}

// Evaluate 计算一组指标
func Evaluate(metrics []Metric, input *MetricInput) map[string]float64 {
	out := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		v := m.Compute(input)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[m.Name()] = v
	}
	return out
}

// ========== 回归指标 ==========

// R2Metric 决定系数
// R2 = 1 - SS_res / SS_tot，SS_tot 为 0 时预测完全正确记 1，否则记 0
type R2Metric struct{}

// Compute 计算 R2
func (R2Metric) Compute(input *MetricInput) float64 {
	if len(input.Actual) == 0 {
		return 0
	}
	if floats.Min(input.Actual) == floats.Max(input.Actual) {
		if floats.Equal(input.Actual, input.Predicted) {
			return 1
		}
		return 0
	}
	return stat.RSquaredFrom(input.Predicted, input.Actual, nil)
}

// Name 返回指标名称
func (R2Metric) Name() string { return "r2_score" }

// RMSEMetric 均方根误差
type RMSEMetric struct{}

// Compute 计算 RMSE
func (RMSEMetric) Compute(input *MetricInput) float64 {
	if len(input.Actual) == 0 {
		return 0
	}
	var sum float64
	for i, v := range input.Actual {
		d := v - input.Predicted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(input.Actual)))
}

// Name 返回指标名称
func (RMSEMetric) Name() string { return "rmse" }

// MAEMetric 平均绝对误差
type MAEMetric struct{}

// Compute 计算 MAE
func (MAEMetric) Compute(input *MetricInput) float64 {
	if len(input.Actual) == 0 {
		return 0
	}
	var sum float64
	for i, v := range input.Actual {
		sum += math.Abs(v - input.Predicted[i])
	}
	return sum / float64(len(input.Actual))
}

// Name 返回指标名称
func (MAEMetric) Name() string { return "mae" }

// ========== 分类指标 ==========

// AccuracyMetric 准确率
type AccuracyMetric struct{}

// Compute 计算准确率
func (AccuracyMetric) Compute(input *MetricInput) float64 {
	if len(input.ActualLabels) == 0 {
		return 0
	}
	hit := 0
	for i, v := range input.ActualLabels {
		if v == input.PredictedLabels[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(input.ActualLabels))
}

// Name 返回指标名称
func (AccuracyMetric) Name() string { return "accuracy" }

// PrecisionMetric 宏平均精确率，某类没有预测时该类记 0
type PrecisionMetric struct{}

// Compute 计算精确率
func (PrecisionMetric) Compute(input *MetricInput) float64 {
	p, _, _ := macroScores(input)
	return p
}

// Name 返回指标名称
func (PrecisionMetric) Name() string { return "precision" }

// RecallMetric 宏平均召回率
type RecallMetric struct{}

// Compute 计算召回率
func (RecallMetric) Compute(input *MetricInput) float64 {
	_, r, _ := macroScores(input)
	return r
}

// Name 返回指标名称
func (RecallMetric) Name() string { return "recall" }

// F1Metric 宏平均 F1
type F1Metric struct{}

// Compute 计算 F1
func (F1Metric) Compute(input *MetricInput) float64 {
	_, _, f := macroScores(input)
	return f
}

// Name 返回指标名称
func (F1Metric) Name() string { return "f1_score" }

// macroScores 按实际与预测标签的并集计算宏平均
func macroScores(input *MetricInput) (precision, recall, f1 float64) {
	classes := make(map[string]bool)
	for _, v := range input.ActualLabels {
		classes[v] = true
	}
	for _, v := range input.PredictedLabels {
		classes[v] = true
	}
	if len(classes) == 0 {
		return 0, 0, 0
	}

	labels := make([]string, 0, len(classes))
	for c := range classes {
		labels = append(labels, c)
	}
	sort.Strings(labels)

	for _, c := range labels {
		var tp, fp, fn float64
		for i, actual := range input.ActualLabels {
			pred := input.PredictedLabels[i]
			switch {
			case actual == c && pred == c:
				tp++
			case actual != c && pred == c:
				fp++
			case actual == c && pred != c:
				fn++
			}
		}
		var p, r, f float64
		if tp+fp > 0 {
			p = tp / (tp + fp)
		}
		if tp+fn > 0 {
			r = tp / (tp + fn)
		}
		if p+r > 0 {
			f = 2 * p * r / (p + r)
		}
		precision += p
		recall += r
		f1 += f
	}
	n := float64(len(labels))
	return precision / n, recall / n, f1 / n
}
