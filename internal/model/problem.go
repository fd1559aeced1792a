package model

// ProblemType 建模问题类型
type ProblemType string

const (
	ProblemAuto           ProblemType = "auto"
	ProblemRegression     ProblemType = "regression"
	ProblemClassification ProblemType = "classification"
	ProblemTimeSeries     ProblemType = "time_series"
)

// ParseProblemType 解析问题类型，空值视为 auto
func ParseProblemType(s string) (ProblemType, bool) {
	switch ProblemType(s) {
	case "":
		return ProblemAuto, true
	case ProblemAuto, ProblemRegression, ProblemClassification, ProblemTimeSeries:
		return ProblemType(s), true
	}
	return "", false
}
