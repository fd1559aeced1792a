// Package selection 决定最终训练的目标列与特征列
// 依次尝试 AI 校验、人工规则校验、自动检测三个层级
package selection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind 用户选择的形态
type Kind string

const (
	KindAuto   Kind = "auto"   // 未指定，自动检测
	KindSingle Kind = "single" // {target, features}
	KindMulti  Kind = "multi"  // [{target, features}, ...]
)

// Pair 目标列及其特征列，特征为空表示除目标外的全部数值列
type Pair struct {
	Target   string   `json:"target"`
	Features []string `json:"features,omitempty"`
}

// Selection 用户的变量选择
type Selection struct {
	Kind            Kind
	Pairs           []Pair
	UserExpectation string
	Mode            string // manual, auto
}

// objectForm 对象形式允许的字段
type objectForm struct {
	Target          *string          `json:"target"`
	Features        []string         `json:"features"`
	Targets         *json.RawMessage `json:"targets"`
	UserExpectation string           `json:"user_expectation"`
	Mode            string           `json:"mode"`
}

// UnmarshalJSON 识别 null、对象、数组三种形态，其余形态一律拒绝
func (s *Selection) UnmarshalJSON(data []byte) error {
	*s = Selection{Kind: KindAuto}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '[':
		pairs, err := decodePairs(data)
		if err != nil {
			return err
		}
		s.setPairs(KindMulti, pairs)
		return nil
	case '{':
		return s.decodeObject(data)
	default:
		return fmt.Errorf("user_selection must be an object or a list of {target, features}")
	}
}

func (s *Selection) decodeObject(data []byte) error {
	var obj objectForm
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&obj); err != nil {
		return fmt.Errorf("unrecognized user_selection: %w", err)
	}

	s.UserExpectation = strings.TrimSpace(obj.UserExpectation)
	switch obj.Mode {
	case "", "manual", "auto":
		s.Mode = obj.Mode
	default:
		return fmt.Errorf("unrecognized user_selection mode %q", obj.Mode)
	}

	if obj.Target != nil && obj.Targets != nil {
		return fmt.Errorf("user_selection cannot contain both target and targets")
	}

	switch {
	case obj.Targets != nil:
		pairs, err := decodeTargets(*obj.Targets, obj.Features)
		if err != nil {
			return err
		}
		s.setPairs(KindMulti, pairs)
	case obj.Target != nil || len(obj.Features) > 0:
		target := ""
		if obj.Target != nil {
			target = strings.TrimSpace(*obj.Target)
		}
		s.setPairs(KindSingle, []Pair{{Target: target, Features: obj.Features}})
	}

	if s.Mode == "auto" {
		s.Kind = KindAuto
		s.Pairs = nil
	}
	return nil
}

// decodeTargets targets 可以是字符串列表（共享 features）或 {target, features} 列表
func decodeTargets(raw json.RawMessage, shared []string) ([]Pair, error) {
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		pairs := make([]Pair, 0, len(names))
		for _, n := range names {
			pairs = append(pairs, Pair{Target: n, Features: shared})
		}
		return pairs, nil
	}
	return decodePairs(raw)
}

func decodePairs(data []byte) ([]Pair, error) {
	var pairs []Pair
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&pairs); err != nil {
		return nil, fmt.Errorf("unrecognized user_selection list: %w", err)
	}
	for i, p := range pairs {
		if strings.TrimSpace(p.Target) == "" {
			return nil, fmt.Errorf("user_selection entry %d has no target", i)
		}
	}
	return pairs, nil
}

// setPairs 清理并去重
func (s *Selection) setPairs(kind Kind, pairs []Pair) {
	seen := make(map[string]bool)
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		p.Target = strings.TrimSpace(p.Target)
		if p.Target != "" && seen[p.Target] {
			continue
		}
		seen[p.Target] = true
		p.Features = dedupe(p.Features)
		out = append(out, p)
	}
	if len(out) == 0 {
		s.Kind = KindAuto
		return
	}
	s.Kind = kind
	s.Pairs = out
}

// MarshalJSON 按形态输出
func (s Selection) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindSingle:
		return json.Marshal(map[string]interface{}{
			"target":           s.Pairs[0].Target,
			"features":         s.Pairs[0].Features,
			"user_expectation": s.UserExpectation,
		})
	case KindMulti:
		return json.Marshal(map[string]interface{}{
			"targets":          s.Pairs,
			"user_expectation": s.UserExpectation,
		})
	default:
		return json.Marshal(map[string]interface{}{
			"user_expectation": s.UserExpectation,
			"mode":             "auto",
		})
	}
}

// Targets 用户请求的目标列（去除空值）
func (s Selection) Targets() []string {
	var out []string
	for _, p := range s.Pairs {
		if p.Target != "" {
			out = append(out, p.Target)
		}
	}
	return out
}

// FeatureUnion 所有目标请求的特征并集
func (s Selection) FeatureUnion() []string {
	var all []string
	for _, p := range s.Pairs {
		all = append(all, p.Features...)
	}
	return dedupe(all)
}

// HasIntent 用户是否给出了至少一个目标或特征
func (s Selection) HasIntent() bool {
	return len(s.Targets()) > 0 || len(s.FeatureUnion()) > 0
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
