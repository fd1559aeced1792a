package table

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	return FromRows([]string{"id", "price", "city", "when"}, [][]any{
		{1, 10.5, "paris", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{2, nil, "london", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{3, 12.0, "paris", nil},
		{4, 14.5, "", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)},
	})
}

// ========== 构造与拷贝 ==========

func TestFromRows_NormalizesValues(t *testing.T) {
	tb := sampleTable()

	assert.Equal(t, 4, tb.NumRows())
	assert.Equal(t, 4, tb.NumCols())
	assert.Equal(t, int64(1), tb.Value("id", 0))
	assert.Nil(t, tb.Value("price", 1))
}

func TestClone_IsDeep(t *testing.T) {
	tb := sampleTable()
	cp := tb.Clone()

	cp.Set("city", 0, "berlin")

	assert.Equal(t, "paris", tb.Value("city", 0))
	assert.Equal(t, "berlin", cp.Value("city", 0))
}

func TestFromColumns_LengthMismatch(t *testing.T) {
	_, err := FromColumns([]string{"a", "b"}, map[string][]any{
		"a": {1, 2},
		"b": {1},
	})
	require.Error(t, err)
}

func TestDropNA(t *testing.T) {
	tb := sampleTable()

	out := tb.DropNA([]string{"price", "city"})

	assert.Equal(t, 2, out.NumRows())
	assert.Equal(t, int64(1), out.Value("id", 0))
	assert.Equal(t, int64(3), out.Value("id", 1))
}

func TestSample_Deterministic(t *testing.T) {
	rows := make([][]any, 100)
	for i := range rows {
		rows[i] = []any{i}
	}
	tb := FromRows([]string{"n"}, rows)

	a := tb.Sample(10, 42)
	b := tb.Sample(10, 42)

	require.Equal(t, 10, a.NumRows())
	assert.Equal(t, a.Rows(), b.Rows())
}

// ========== 类型 ==========

func TestDTypes(t *testing.T) {
	tb := sampleTable()
	dt := tb.DTypes()

	assert.Equal(t, KindInt, dt["id"])
	assert.Equal(t, KindFloat, dt["price"])
	assert.Equal(t, KindString, dt["city"])
	assert.Equal(t, KindDatetime, dt["when"])
	assert.Equal(t, []string{"id", "price"}, tb.NumericColumns())
	assert.Equal(t, []string{"city"}, tb.CategoricalColumns())
	assert.Equal(t, []string{"when"}, tb.DatetimeColumns())
}

func TestEncodeDecode_RestoresTypesFromHints(t *testing.T) {
	tb := sampleTable()

	data, err := tb.Encode()
	require.NoError(t, err)

	raw, err := Decode(data, nil)
	require.NoError(t, err)
	_, isFloat := raw.Value("id", 0).(float64)
	assert.True(t, isFloat, "ints decay to float64 without hints")
	_, isString := raw.Value("when", 0).(string)
	assert.True(t, isString, "datetimes decay to strings without hints")

	typed, err := Decode(data, tb.DTypeHints())
	require.NoError(t, err)
	assert.Equal(t, int64(1), typed.Value("id", 0))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), typed.Value("when", 0))
	assert.Nil(t, typed.Value("when", 2))
}

func TestEncodeDecode_LargeIntegersKeepPrecision(t *testing.T) {
	const big = int64(1<<53 + 1)
	tb := FromRows([]string{"order_id", "amount"}, [][]any{{big, 1.5}, {big + 2, 2.0}})

	data, err := tb.Encode()
	require.NoError(t, err)

	got, err := Decode(data, tb.DTypeHints())
	require.NoError(t, err)
	assert.Equal(t, big, got.Value("order_id", 0))
	assert.Equal(t, big+2, got.Value("order_id", 1))
	assert.Equal(t, 2.0, got.Value("amount", 1), "float columns stay float64")

	n := coerce(json.Number("9007199254740995"), KindInt)
	assert.Equal(t, int64(9007199254740995), n)
}

func TestApplyHints_BoolStrings(t *testing.T) {
	tb := FromRows([]string{"flag"}, [][]any{{"true"}, {"false"}, {nil}})

	tb.ApplyHints(map[string]string{"flag": "bool"})

	assert.Equal(t, true, tb.Value("flag", 0))
	assert.Equal(t, false, tb.Value("flag", 1))
	assert.Nil(t, tb.Value("flag", 2))
}

// ========== 统计 ==========

func TestDescribe_Numeric(t *testing.T) {
	tb := FromRows([]string{"x"}, [][]any{{1.0}, {2.0}, {3.0}, {4.0}, {nil}})

	s := tb.Describe("x")

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 1, s.Missing)
	require.NotNil(t, s.Mean)
	assert.InDelta(t, 2.5, *s.Mean, 1e-9)
	assert.InDelta(t, 1.0, *s.Min, 1e-9)
	assert.InDelta(t, 4.0, *s.Max, 1e-9)
}

func TestDescribe_Categorical(t *testing.T) {
	s := sampleTable().Describe("city")

	assert.Equal(t, "paris", s.Top)
	assert.Equal(t, 2, s.TopCount)
	assert.Equal(t, 2, s.Unique)
}

func TestPearson(t *testing.T) {
	tb := FromRows([]string{"a", "b", "c"}, [][]any{
		{1, 2, 5}, {2, 4, 5}, {3, 6, 5}, {4, 8, 5},
	})

	r, ok := tb.Pearson("a", "b")
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-9)

	_, ok = tb.Pearson("a", "c")
	assert.False(t, ok, "constant column has no correlation")
}

func TestValueCounts_Order(t *testing.T) {
	tb := FromRows([]string{"k"}, [][]any{{"b"}, {"a"}, {"b"}, {"a"}, {"c"}})

	vc := tb.ValueCounts("k")

	require.Len(t, vc, 3)
	assert.Equal(t, "a", vc[0].Value)
	assert.Equal(t, "b", vc[1].Value)
	assert.Equal(t, "c", vc[2].Value)
}

func TestDuplicates(t *testing.T) {
	tb := FromRows([]string{"a", "b"}, [][]any{{1, "x"}, {1, "x"}, {2, "x"}, {1, "x"}})

	assert.Equal(t, 2, tb.DuplicateRows())
	out := tb.DropDuplicates()
	assert.Equal(t, 2, out.NumRows())
	assert.Equal(t, int64(2), out.Value("a", 1))
}
