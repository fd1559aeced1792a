package insight

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ashwinyue/next-analytics/internal/service/table"
)

// 趋势方向
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

const (
	// recentFraction 视为“近期”的尾部比例
	recentFraction = 0.2
	// stableBand 变化幅度小于该比例视为平稳
	stableBand  = 0.05
	minTrendObs = 5
)

// Trend 单列历史趋势
type Trend struct {
	Column            string  `json:"column"`
	Count             int     `json:"count"`
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	Std               float64 `json:"std"`
	RecentAverage     float64 `json:"recent_average"`
	HistoricalAverage float64 `json:"historical_average"`
	ChangePercent     float64 `json:"change_percent"`
	Direction         string  `json:"trend"`
	OrderedBy         string  `json:"ordered_by,omitempty"`
}

// HistoricalTrends 计算数值列的趋势
// 有时间列时按第一个时间列排序，否则按行序
func HistoricalTrends(tb *table.Table, columns []string) map[string]Trend {
	out := make(map[string]Trend)
	if tb == nil {
		return out
	}
	order, orderedBy := rowOrder(tb)
	for _, col := range columns {
		if !tb.IsNumeric(col) {
			continue
		}
		vals := make([]float64, 0, len(order))
		for _, r := range order {
			if v, ok := table.ToFloat(tb.Value(col, r)); ok {
				vals = append(vals, v)
			}
		}
		if len(vals) < minTrendObs {
			continue
		}
		tr := ComputeTrend(vals)
		tr.Column = col
		tr.OrderedBy = orderedBy
		out[col] = tr
	}
	return out
}

// ComputeTrend 比较尾部 20% 与其余部分的均值
func ComputeTrend(vals []float64) Trend {
	n := len(vals)
	if n < 2 {
		t := Trend{Count: n, Direction: TrendStable}
		if n == 1 {
			t.Mean, t.Median, t.Min, t.Max = vals[0], vals[0], vals[0], vals[0]
			t.RecentAverage, t.HistoricalAverage = vals[0], vals[0]
		}
		return t
	}
	recentN := int(math.Ceil(float64(n) * recentFraction))
	if recentN < 1 {
		recentN = 1
	}
	if recentN >= n {
		recentN = n - 1
	}
	hist, recent := vals[:n-recentN], vals[n-recentN:]

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mean, std := stat.MeanStdDev(vals, nil)

	t := Trend{
		Count:             n,
		Mean:              round(mean),
		Median:            round(stat.Quantile(0.5, stat.Empirical, sorted, nil)),
		Min:               sorted[0],
		Max:               sorted[n-1],
		Std:               round(std),
		RecentAverage:     round(stat.Mean(recent, nil)),
		HistoricalAverage: round(stat.Mean(hist, nil)),
		Direction:         TrendStable,
	}

	histMean, recentMean := stat.Mean(hist, nil), stat.Mean(recent, nil)
	var change float64
	if histMean != 0 {
		change = (recentMean - histMean) / math.Abs(histMean)
	} else if recentMean != 0 {
		change = math.Copysign(1, recentMean)
	}
	t.ChangePercent = round(change * 100)
	switch {
	case change > stableBand:
		t.Direction = TrendIncreasing
	case change < -stableBand:
		t.Direction = TrendDecreasing
	}
	return t
}

func rowOrder(tb *table.Table) ([]int, string) {
	idx := make([]int, tb.NumRows())
	for i := range idx {
		idx[i] = i
	}
	dts := tb.DatetimeColumns()
	if len(dts) == 0 {
		return idx, ""
	}
	col := dts[0]
	sort.SliceStable(idx, func(i, j int) bool {
		a, aok := tb.Value(col, idx[i]).(time.Time)
		b, bok := tb.Value(col, idx[j]).(time.Time)
		if !aok || !bok {
			return aok && !bok
		}
		return a.Before(b)
	})
	return idx, col
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
