package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ashwinyue/next-analytics/internal/service/table"
)

// skewThreshold 偏度超过该值时数值列用中位数填充
const skewThreshold = 1.0

// Imputation 单列填充记录
type Imputation struct {
	Column   string      `json:"column"`
	Strategy string      `json:"strategy"` // mean, median, mode
	Value    interface{} `json:"value"`
	Filled   int         `json:"filled"`
}

// CleanReport 清洗报告
type CleanReport struct {
	RowsBefore        int          `json:"rows_before"`
	RowsAfter         int          `json:"rows_after"`
	DuplicatesRemoved int          `json:"duplicates_removed"`
	MissingBefore     int          `json:"missing_before"`
	MissingAfter      int          `json:"missing_after"`
	Imputations       []Imputation `json:"imputations"`
}

// Clean 填充缺失值并去重
// 数值列用均值（偏态时用中位数），类别列用众数；时间列不填充
// 训练路径仍然直接删除缺失行，这里的结果只用于展示
func Clean(tb *table.Table) (*table.Table, CleanReport) {
	out := tb.Clone()
	rep := CleanReport{RowsBefore: tb.NumRows(), Imputations: []Imputation{}}

	for _, col := range out.Columns() {
		missing := out.MissingCount(col)
		rep.MissingBefore += missing
		if missing == 0 || missing == out.NumRows() || out.IsDatetime(col) {
			continue
		}

		var imp Imputation
		if out.IsNumeric(col) {
			imp = numericFill(out, col)
		} else {
			counts := out.ValueCounts(col)
			imp = Imputation{Column: col, Strategy: "mode", Value: modeValue(out, col, counts[0].Value)}
		}
		for r := 0; r < out.NumRows(); r++ {
			if table.IsMissing(out.Value(col, r)) {
				out.Set(col, r, imp.Value)
				imp.Filled++
			}
		}
		rep.Imputations = append(rep.Imputations, imp)
	}

	deduped := out.DropDuplicates()
	rep.DuplicatesRemoved = out.NumRows() - deduped.NumRows()
	rep.RowsAfter = deduped.NumRows()
	for _, col := range deduped.Columns() {
		rep.MissingAfter += deduped.MissingCount(col)
	}
	return deduped, rep
}

func numericFill(tb *table.Table, col string) Imputation {
	vals := tb.Present(col)
	imp := Imputation{Column: col, Strategy: "mean"}
	var v float64
	if len(vals) > 2 && math.Abs(stat.Skew(vals, nil)) > skewThreshold {
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		v = stat.Quantile(0.5, stat.Empirical, sorted, nil)
		imp.Strategy = "median"
	} else {
		v = stat.Mean(vals, nil)
	}

	if tb.Describe(col).DType == table.KindInt {
		imp.Value = int64(math.Round(v))
	} else {
		imp.Value = v
	}
	return imp
}

// modeValue 返回列中与众数键对应的原始值，保持类型不变
func modeValue(tb *table.Table, col, key string) interface{} {
	for _, v := range tb.Column(col) {
		if !table.IsMissing(v) && table.Key(v) == key {
			return v
		}
	}
	return key
}
