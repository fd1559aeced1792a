package selection

import "strings"

// Status 选择结果的来源
type Status string

const (
	StatusUsed     Status = "used"     // AI 认可用户选择
	StatusOverride Status = "override" // AI 建议替换了用户选择
	StatusModified Status = "modified" // 人工规则校验后调整
	StatusInfo     Status = "info"     // 自动检测
)

// Feedback 描述变量选择是如何得出的，仅出现在响应中
type Feedback struct {
	Status           Status   `json:"status"`
	Message          string   `json:"message"`
	Targets          []string `json:"targets"`
	Confidence       *float64 `json:"confidence,omitempty"`
	Notes            []string `json:"notes,omitempty"`
	ExcludedFeatures []string `json:"excluded_features,omitempty"`
}

// AddNote 追加说明
func (f *Feedback) AddNote(note string) {
	if f == nil || strings.TrimSpace(note) == "" {
		return
	}
	f.Notes = append(f.Notes, note)
}

// Exclude 记录被排除的特征
func (f *Feedback) Exclude(features ...string) {
	if f == nil {
		return
	}
	for _, name := range features {
		found := false
		for _, e := range f.ExcludedFeatures {
			if e == name {
				found = true
				break
			}
		}
		if !found {
			f.ExcludedFeatures = append(f.ExcludedFeatures, name)
		}
	}
}

// Advisory 时间序列问题的提示，不进行训练
type Advisory struct {
	Type            string   `json:"type"`
	Message         string   `json:"message"`
	DatetimeColumns []string `json:"datetime_columns"`
	ValueColumns    []string `json:"value_columns"`
}
