package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldValue_AsNumber(t *testing.T) {
	assert.Equal(t, 42.5, Number(42.5).AsNumber())
	assert.Equal(t, 0.0, Text("42.5").AsNumber())
	assert.Equal(t, 0.0, Bool(true).AsNumber())
	assert.Equal(t, 0.0, Null().AsNumber())
}

func TestFieldValue_AsText(t *testing.T) {
	assert.Equal(t, "hello", Text("hello").AsText())
	assert.Equal(t, "2024", Number(2024).AsText())
	assert.Equal(t, "3.14", Number(3.14).AsText())
	assert.Equal(t, "true", Bool(true).AsText())
	assert.Equal(t, "", Null().AsText())
}

func TestDataMap_Has(t *testing.T) {
	d := DataMap{
		"present": Number(1),
		"empty":   Text(""),
		"nulled":  Null(),
	}

	assert.True(t, d.Has("present"))
	assert.True(t, d.Has("empty"))
	assert.False(t, d.Has("nulled"))
	assert.False(t, d.Has("absent"))
}

func TestDecodeData_JSONString(t *testing.T) {
	d, err := DecodeData(`{"sector": "Trade", "balance": 100.5, "flagged": true, "note": null}`)
	require.NoError(t, err)

	assert.Equal(t, "Trade", d.Text("sector"))
	assert.Equal(t, 100.5, d.Number("balance"))
	assert.Equal(t, Bool(true), d["flagged"])
	assert.True(t, d["note"].IsNull())
}

func TestDecodeData_EmptyInputs(t *testing.T) {
	for _, raw := range []interface{}{nil, "", []byte{}} {
		d, err := DecodeData(raw)
		require.NoError(t, err)
		assert.Empty(t, d)
	}
}

func TestDecodeData_PassThrough(t *testing.T) {
	orig := DataMap{"x": Number(1)}
	d, err := DecodeData(orig)
	require.NoError(t, err)
	assert.Equal(t, orig, d)
}

func TestDecodeData_NestedBecomesOpaqueText(t *testing.T) {
	d, err := DecodeData(map[string]interface{}{
		"guarantors": []interface{}{"a", "b"},
		"meta":       map[string]interface{}{"k": 1.0},
	})
	require.NoError(t, err)

	assert.Equal(t, `["a","b"]`, d.Text("guarantors"))
	assert.Equal(t, `{"k":1}`, d.Text("meta"))
	assert.Equal(t, 0.0, d.Number("guarantors"))
}

func TestDecodeData_InvalidJSON(t *testing.T) {
	_, err := DecodeData("not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode record data")
}

func TestDecodeData_UnsupportedType(t *testing.T) {
	_, err := DecodeData(42)
	require.Error(t, err)
}

func TestParseWidgetType(t *testing.T) {
	for input, want := range map[string]WidgetType{
		"kpi":        WidgetKPI,
		"table":      WidgetTable,
		"pie":        WidgetPieChart,
		"pie_chart":  WidgetPieChart,
		"bar":        WidgetBarChart,
		"bar_chart":  WidgetBarChart,
		"line":       WidgetLineChart,
		"line_chart": WidgetLineChart,
		"heatmap":    WidgetHeatmap,
	} {
		got, err := ParseWidgetType(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseWidgetType("gauge")
	require.Error(t, err)
	assert.EqualError(t, err, "unknown widget type: gauge")
}
