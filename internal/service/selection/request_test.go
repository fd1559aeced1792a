package selection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========== 请求解析测试 ==========

func TestSelection_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		kind     Kind
		targets  []string
		features []string
	}{
		{"null", `null`, KindAuto, nil, nil},
		{"empty object", `{}`, KindAuto, nil, nil},
		{"single", `{"target": "sales", "features": ["ads", "price", "ads"]}`, KindSingle, []string{"sales"}, []string{"ads", "price"}},
		{"features only", `{"features": ["ads"]}`, KindSingle, nil, []string{"ads"}},
		{"list", `[{"target": "a"}, {"target": "b", "features": ["x"]}]`, KindMulti, []string{"a", "b"}, []string{"x"}},
		{"targets as names", `{"targets": ["a", "b"], "features": ["x"]}`, KindMulti, []string{"a", "b"}, []string{"x"}},
		{"targets as pairs", `{"targets": [{"target": "a", "features": ["y"]}]}`, KindMulti, []string{"a"}, []string{"y"}},
		{"mode auto wins", `{"target": "sales", "mode": "auto"}`, KindAuto, nil, nil},
		{"duplicate targets", `[{"target": "a"}, {"target": "a"}]`, KindMulti, []string{"a"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Selection
			require.NoError(t, json.Unmarshal([]byte(tt.input), &s))
			assert.Equal(t, tt.kind, s.Kind)
			assert.Equal(t, tt.targets, s.Targets())
			assert.Equal(t, tt.features, s.FeatureUnion())
		})
	}
}

func TestSelection_RejectsUnknownShapes(t *testing.T) {
	inputs := []string{
		`"sales"`,
		`42`,
		`{"target": "a", "targets": ["b"]}`,
		`{"goal": "a"}`,
		`[{"target": ""}]`,
		`[{"target": "a", "weight": 2}]`,
		`{"target": "a", "mode": "magic"}`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			var s Selection
			assert.Error(t, json.Unmarshal([]byte(in), &s))
		})
	}
}

func TestSelection_UserExpectation(t *testing.T) {
	var s Selection
	require.NoError(t, json.Unmarshal([]byte(`{"user_expectation": " predict cpu load "}`), &s))
	assert.Equal(t, KindAuto, s.Kind)
	assert.Equal(t, "predict cpu load", s.UserExpectation)
	assert.False(t, s.HasIntent())
}
