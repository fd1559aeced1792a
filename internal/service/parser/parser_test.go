package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/service/table"
	"github.com/ashwinyue/next-analytics/internal/testutil"
)

// ========== Parse 测试 ==========

func TestParse_CSV(t *testing.T) {
	csv := "id,price,city,day\n1,10.5,paris,2024-01-01\n2,,london,2024-01-02\n3,12.25,paris,2024-01-03\n"

	tb, err := Parse(context.Background(), "sales.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "price", "city", "day"}, tb.Columns())
	assert.Equal(t, 3, tb.NumRows())
	assert.Nil(t, tb.Value("price", 1))

	dt := tb.DTypes()
	assert.Equal(t, table.KindInt, dt["id"])
	assert.Equal(t, table.KindFloat, dt["price"])
	assert.Equal(t, table.KindString, dt["city"])
	assert.Equal(t, table.KindDatetime, dt["day"])
}

func TestParse_JSON(t *testing.T) {
	data := `[{"a": 1, "b": "x"}, {"a": 2, "b": "y"}]`

	tb, err := Parse(context.Background(), "rows.json", strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, tb.NumRows())
	assert.True(t, tb.IsNumeric("a"))
}

func TestParse_GeneratedRegressionCSV(t *testing.T) {
	tb, err := Parse(context.Background(), "reg.csv", strings.NewReader(testutil.RegressionCSV(100, 7)))
	require.NoError(t, err)
	assert.Equal(t, 100, tb.NumRows())
	assert.Equal(t, []string{"feature1", "feature2", "feature3", "target"}, tb.NumericColumns())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		content  string
	}{
		{"unsupported extension", "notes.txt", "hello"},
		{"header only", "empty.csv", "a,b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), tt.fileName, strings.NewReader(tt.content))
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("A.CSV"))
	assert.True(t, Supported("x.parquet"))
	assert.False(t, Supported("x.xlsx"))
}
