package training

import (
	"fmt"

	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/service/table"
)

// Reconcile 根据目标列的实际取值校正问题类型
// 数值且唯一值超过 threshold 视为回归，否则视为分类；返回的说明非空表示发生了校正
func Reconcile(tb *table.Table, target string, declared model.ProblemType, threshold int) (model.ProblemType, string) {
	unique := tb.NUnique(target)
	continuous := tb.IsNumeric(target) && unique > threshold

	switch declared {
	case model.ProblemClassification:
		if continuous {
			return model.ProblemRegression, fmt.Sprintf(
				"Problem type corrected from classification to regression: target '%s' is numeric with %d unique values", target, unique)
		}
		return model.ProblemClassification, ""
	case model.ProblemRegression:
		if !continuous {
			return model.ProblemClassification, fmt.Sprintf(
				"Problem type corrected from regression to classification: target '%s' has %d unique values", target, unique)
		}
		return model.ProblemRegression, ""
	default:
		if continuous {
			return model.ProblemRegression, ""
		}
		return model.ProblemClassification, ""
	}
}
