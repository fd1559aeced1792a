package ai

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// RepairJSON 从模型输出中提取并修复 JSON
// 策略：先尝试快速路径（有效 JSON 直接返回），再截取对象/数组区域，最后交给 jsonrepair
func RepairJSON(input string) string {
	s := strings.TrimSpace(input)

	// 移除 markdown 代码块
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if json.Valid([]byte(s)) {
		return s
	}

	// 截取 JSON 区域，对象与数组取先出现者
	open, closing := byte('{'), byte('}')
	if ai, oi := strings.IndexByte(s, '['), strings.IndexByte(s, '{'); ai >= 0 && (oi < 0 || ai < oi) {
		open, closing = '[', ']'
	}
	i := strings.IndexByte(s, open)
	j := strings.LastIndexByte(s, closing)
	if i >= 0 && j > i {
		sub := s[i : j+1]
		if json.Valid([]byte(sub)) {
			return sub
		}
		s = sub
	} else if i >= 0 {
		s = s[i:]
	}

	out, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return s // 修复失败，返回原值
	}
	return out
}
