package training

import (
	"fmt"
	"sort"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/service/table"
)

// minRows 删除缺失值后至少保留的行数
const minRows = 5

// Job 单个目标的训练任务，Features 为空表示除目标外的全部数值列
type Job struct {
	Target   string
	Features []string
}

// Set 单个目标的训练数据（已编码）
type Set struct {
	Target      string
	ProblemType model.ProblemType
	// Features 编码后的特征名，类别特征展开为 列名_取值
	Features []string
	// Selected 编码前实际使用的列
	Selected []string
	X        [][]float64
	// Y 回归目标
	Y []float64
	// Labels 分类目标
	Labels []string
}

// Len 样本数
func (s *Set) Len() int {
	return len(s.X)
}

// Assembly 训练集构建过程中的说明
type Assembly struct {
	ProblemType model.ProblemType
	Corrected   string
	Excluded    []string
	Notes       []string
}

// SubsetOptions 构建参数
type SubsetOptions struct {
	ProblemType    model.ProblemType
	MaxCategories  int
	ClassThreshold int
}

// BuildSet 为单个目标构建训练集
// 类别特征取值数超过 MaxCategories 时排除，其余做 drop-first 独热编码；
// 任一选中列缺失的行被删除
func BuildSet(tb *table.Table, job Job, opts SubsetOptions) (*Set, Assembly, error) {
	var asm Assembly
	if !tb.Has(job.Target) {
		return nil, asm, apperr.Validation("target column '%s' not found", job.Target)
	}

	var numeric, categorical []string
	if len(job.Features) == 0 {
		for _, c := range tb.NumericColumns() {
			if c != job.Target {
				numeric = append(numeric, c)
			}
		}
	} else {
		for _, f := range job.Features {
			switch {
			case f == job.Target:
			case !tb.Has(f):
				asm.Excluded = append(asm.Excluded, f)
				asm.Notes = append(asm.Notes, fmt.Sprintf("Feature '%s' not found", f))
			case tb.IsNumeric(f):
				numeric = append(numeric, f)
			case tb.IsDatetime(f):
				asm.Excluded = append(asm.Excluded, f)
				asm.Notes = append(asm.Notes, fmt.Sprintf("Feature '%s' excluded: datetime features are not supported", f))
			default:
				if n := tb.NUnique(f); n > opts.MaxCategories {
					asm.Excluded = append(asm.Excluded, f)
					asm.Notes = append(asm.Notes, fmt.Sprintf("Feature '%s' excluded: too many categories (%d > %d)", f, n, opts.MaxCategories))
					continue
				}
				categorical = append(categorical, f)
			}
		}
	}
	if len(numeric)+len(categorical) == 0 {
		return nil, asm, apperr.Validation("no usable features for target '%s'", job.Target)
	}

	pt, corrected := Reconcile(tb, job.Target, opts.ProblemType, opts.ClassThreshold)
	asm.ProblemType = pt
	asm.Corrected = corrected

	selected := append(append([]string{}, numeric...), categorical...)
	sub := tb.Select(append(append([]string{}, selected...), job.Target)).DropNA(append(append([]string{}, selected...), job.Target))
	if dropped := tb.NumRows() - sub.NumRows(); dropped > 0 {
		asm.Notes = append(asm.Notes, fmt.Sprintf("Dropped %d rows with missing values for target '%s'", dropped, job.Target))
	}
	if sub.NumRows() < minRows {
		return nil, asm, apperr.Validation("only %d complete rows for target '%s'", sub.NumRows(), job.Target)
	}

	set := &Set{
		Target:      job.Target,
		ProblemType: pt,
		Selected:    selected,
	}

	// 列 → 编码后的值
	var encoded [][]float64
	for _, c := range numeric {
		vals, _ := sub.Floats(c)
		set.Features = append(set.Features, c)
		encoded = append(encoded, vals)
	}
	for _, c := range categorical {
		names, cols := oneHot(sub, c)
		set.Features = append(set.Features, names...)
		encoded = append(encoded, cols...)
	}
	if len(set.Features) == 0 {
		return nil, asm, apperr.Validation("no usable features for target '%s' after encoding", job.Target)
	}

	n := sub.NumRows()
	set.X = make([][]float64, n)
	for r := 0; r < n; r++ {
		row := make([]float64, len(encoded))
		for j, col := range encoded {
			row[j] = col[r]
		}
		set.X[r] = row
	}

	if pt == model.ProblemRegression {
		set.Y, _ = sub.Floats(job.Target)
	} else {
		set.Labels = make([]string, n)
		classes := make(map[string]bool)
		for r, v := range sub.Column(job.Target) {
			set.Labels[r] = table.Key(v)
			classes[set.Labels[r]] = true
		}
		if len(classes) < 2 {
			return nil, asm, apperr.Validation("target '%s' has a single class", job.Target)
		}
	}
	return set, asm, nil
}

// oneHot 独热编码，取值按字典序排列并丢弃第一个
func oneHot(tb *table.Table, col string) ([]string, [][]float64) {
	vals := tb.Column(col)
	levelSet := make(map[string]bool)
	for _, v := range vals {
		levelSet[table.Key(v)] = true
	}
	levels := make([]string, 0, len(levelSet))
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	if len(levels) <= 1 {
		return nil, nil
	}

	names := make([]string, 0, len(levels)-1)
	cols := make([][]float64, 0, len(levels)-1)
	for _, level := range levels[1:] {
		dummy := make([]float64, len(vals))
		for i, v := range vals {
			if table.Key(v) == level {
				dummy[i] = 1
			}
		}
		names = append(names, col+"_"+level)
		cols = append(cols, dummy)
	}
	return names, cols
}
