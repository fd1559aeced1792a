package aggregate

import (
	"math"
	"sort"

	"github.com/ashwinyue/next-analytics/internal/service/table"
)

// Profile 数据质量画像
type Profile struct {
	Rows               int                   `json:"rows"`
	Columns            int                   `json:"columns"`
	ColumnNames        []string              `json:"column_names"`
	DTypes             map[string]table.Kind `json:"dtypes"`
	MissingTotal       int                   `json:"missing_total"`
	MissingPercent     float64               `json:"missing_percent"`
	MissingByColumn    map[string]int        `json:"missing_by_column"`
	DuplicateRows      int                   `json:"duplicate_rows"`
	NumericColumns     []string              `json:"numeric_columns"`
	CategoricalColumns []string              `json:"categorical_columns"`
	DatetimeColumns    []string              `json:"datetime_columns"`
	Statistics         []table.ColumnStats   `json:"statistics"`
	QualityScore       float64               `json:"quality_score"`
}

// BuildProfile 计算画像
func BuildProfile(tb *table.Table) Profile {
	p := Profile{
		Rows:               tb.NumRows(),
		Columns:            tb.NumCols(),
		ColumnNames:        tb.Columns(),
		DTypes:             tb.DTypes(),
		MissingByColumn:    make(map[string]int, tb.NumCols()),
		DuplicateRows:      tb.DuplicateRows(),
		NumericColumns:     orEmpty(tb.NumericColumns()),
		CategoricalColumns: orEmpty(tb.CategoricalColumns()),
		DatetimeColumns:    orEmpty(tb.DatetimeColumns()),
		Statistics:         make([]table.ColumnStats, 0, tb.NumCols()),
	}
	for _, c := range tb.Columns() {
		m := tb.MissingCount(c)
		p.MissingByColumn[c] = m
		p.MissingTotal += m
		p.Statistics = append(p.Statistics, tb.Describe(c))
	}

	cells := p.Rows * p.Columns
	if cells > 0 {
		p.MissingPercent = round2(float64(p.MissingTotal) / float64(cells) * 100)
	}
	dupPercent := 0.0
	if p.Rows > 0 {
		dupPercent = float64(p.DuplicateRows) / float64(p.Rows) * 100
	}
	p.QualityScore = round2(math.Max(0, 100-p.MissingPercent-dupPercent/2))
	return p
}

// Correlation 数值列之间的相关系数
type Correlation struct {
	Feature1    string  `json:"feature1"`
	Feature2    string  `json:"feature2"`
	Correlation float64 `json:"correlation"`
	Strength    string  `json:"strength"`
}

// MinCorrelation 低于该绝对值的相关性不输出
const MinCorrelation = 0.1

// Correlations |r| > MinCorrelation 的数值列对，按 |r| 降序
func Correlations(tb *table.Table) []Correlation {
	cols := tb.NumericColumns()
	out := []Correlation{}
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			r, ok := tb.Pearson(cols[i], cols[j])
			if !ok || math.Abs(r) <= MinCorrelation {
				continue
			}
			out = append(out, Correlation{
				Feature1:    cols[i],
				Feature2:    cols[j],
				Correlation: round4(r),
				Strength:    strength(r),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Correlation) > math.Abs(out[j].Correlation)
	})
	return out
}

func strength(r float64) string {
	switch a := math.Abs(r); {
	case a >= 0.7:
		return "strong"
	case a >= 0.4:
		return "moderate"
	default:
		return "weak"
	}
}

// CorrelationMatrix 数值列的完整相关矩阵，无法计算的位置为 nil
func CorrelationMatrix(tb *table.Table) map[string]map[string]*float64 {
	cols := tb.NumericColumns()
	out := make(map[string]map[string]*float64, len(cols))
	for _, a := range cols {
		row := make(map[string]*float64, len(cols))
		for _, b := range cols {
			if a == b {
				one := 1.0
				row[b] = &one
				continue
			}
			if r, ok := tb.Pearson(a, b); ok {
				v := round4(r)
				row[b] = &v
			} else {
				row[b] = nil
			}
		}
		out[a] = row
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
