package aggregate

import (
	"fmt"

	"github.com/ashwinyue/next-analytics/internal/service/table"
)

// 类别不平衡阈值（最大类别占比）
const (
	ImbalanceThreshold       = 0.5
	SevereImbalanceThreshold = 0.7
	topCategories            = 5
)

// CategoryShare 类别及其占比
type CategoryShare struct {
	Value string  `json:"value"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// CategoryBreakdown 单个类别列的分布
type CategoryBreakdown struct {
	Column           string          `json:"column"`
	Unique           int             `json:"unique"`
	TopCategories    []CategoryShare `json:"top_categories"`
	TopShare         float64         `json:"top_share"`
	Imbalanced       bool            `json:"imbalanced"`
	HighlyImbalanced bool            `json:"highly_imbalanced"`
}

// VolumeAnalysis 数据量与类别分布
type VolumeAnalysis struct {
	TotalRecords int                 `json:"total_records"`
	Categorical  []CategoryBreakdown `json:"categorical"`
	Warnings     []string            `json:"warnings"`
}

// Volume 计算各类别列的前几位类别与不平衡标记
func Volume(tb *table.Table) VolumeAnalysis {
	va := VolumeAnalysis{
		TotalRecords: tb.NumRows(),
		Categorical:  []CategoryBreakdown{},
		Warnings:     []string{},
	}
	for _, col := range tb.CategoricalColumns() {
		counts := tb.ValueCounts(col)
		present := 0
		for _, vc := range counts {
			present += vc.Count
		}
		if present == 0 {
			continue
		}

		b := CategoryBreakdown{Column: col, Unique: len(counts)}
		for i, vc := range counts {
			if i == topCategories {
				break
			}
			b.TopCategories = append(b.TopCategories, CategoryShare{
				Value: vc.Value,
				Count: vc.Count,
				Share: round4(float64(vc.Count) / float64(present)),
			})
		}
		b.TopShare = b.TopCategories[0].Share
		b.Imbalanced = b.TopShare > ImbalanceThreshold
		b.HighlyImbalanced = b.TopShare > SevereImbalanceThreshold
		if b.HighlyImbalanced {
			va.Warnings = append(va.Warnings, fmt.Sprintf("Column '%s' is highly imbalanced: '%s' accounts for %.0f%% of rows",
				col, b.TopCategories[0].Value, b.TopShare*100))
		} else if b.Imbalanced {
			va.Warnings = append(va.Warnings, fmt.Sprintf("Column '%s' is imbalanced: '%s' accounts for %.0f%% of rows",
				col, b.TopCategories[0].Value, b.TopShare*100))
		}
		va.Categorical = append(va.Categorical, b)
	}
	return va
}
