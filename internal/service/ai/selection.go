package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ColumnSummary 提供给模型的列摘要
type ColumnSummary struct {
	Name    string `json:"name"`
	DType   string `json:"dtype"`
	Unique  int    `json:"unique"`
	Missing int    `json:"missing"`
}

// SelectionRequest 变量选择校验请求
type SelectionRequest struct {
	Targets         []string        `json:"targets"`
	Features        []string        `json:"features"`
	ProblemType     string          `json:"problem_type"`
	UserExpectation string          `json:"user_expectation,omitempty"`
	RowCount        int             `json:"row_count"`
	Columns         []ColumnSummary `json:"columns"`
}

// SelectionVerdict 模型给出的校验结论
type SelectionVerdict struct {
	Valid             bool     `json:"valid"`
	OverrideNeeded    bool     `json:"override_needed"`
	SuggestedTarget   string   `json:"suggested_target"`
	SuggestedFeatures []string `json:"suggested_features"`
	Confidence        float64  `json:"confidence"`
	Explanation       string   `json:"explanation"`
}

const selectionSystemPrompt = `You are a data scientist validating a user's choice of target and feature columns for a predictive model.
Reply with a single JSON object and nothing else:
{"valid": bool, "override_needed": bool, "suggested_target": string, "suggested_features": [string], "confidence": number between 0 and 1, "explanation": string}
Set override_needed only when the chosen target cannot reasonably be predicted from the data or is an identifier.`

// ValidateSelection 请求模型校验用户的目标与特征选择
func (c *Client) ValidateSelection(ctx context.Context, req SelectionRequest) (*SelectionVerdict, error) {
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return nil, err
	}

	text, err := c.GenerateText(ctx, selectionSystemPrompt, "Selection to validate:\n"+string(payload))
	if err != nil {
		return nil, err
	}

	var verdict SelectionVerdict
	if err := json.Unmarshal([]byte(RepairJSON(text)), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse selection verdict: %w", err)
	}
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	}
	if verdict.Confidence > 1 {
		verdict.Confidence = 1
	}
	verdict.SuggestedTarget = strings.TrimSpace(verdict.SuggestedTarget)
	return &verdict, nil
}
