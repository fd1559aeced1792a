package training

import (
	"github.com/ashwinyue/next-analytics/internal/service/table"
)

// PerformanceInfo 大数据集抽样说明
type PerformanceInfo struct {
	Sampled      bool   `json:"sampled"`
	OriginalSize int    `json:"original_size"`
	SampleSize   int    `json:"sample_size"`
	Message      string `json:"message,omitempty"`
}

// SampleForAnalysis 行数超过 threshold 时按固定种子抽取 size 行
// 画像统计应使用原始数据，只有训练与图表使用抽样结果
func SampleForAnalysis(tb *table.Table, threshold, size int, seed int64) (*table.Table, PerformanceInfo) {
	n := tb.NumRows()
	if n <= threshold || size >= n {
		return tb, PerformanceInfo{OriginalSize: n, SampleSize: n}
	}
	return tb.Sample(size, seed), PerformanceInfo{
		Sampled:      true,
		OriginalSize: n,
		SampleSize:   size,
		Message:      "Large dataset: models and charts were computed on a random sample; the profile uses all rows.",
	}
}
