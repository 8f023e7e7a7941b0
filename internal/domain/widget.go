package domain

import "fmt"

// WidgetType identifies the kind of dashboard widget being computed
type WidgetType string

const (
	WidgetKPI      WidgetType = "kpi"
	WidgetTable    WidgetType = "table"
	WidgetPieChart WidgetType = "pie_chart"
	WidgetBarChart WidgetType = "bar_chart"
	WidgetLineChart WidgetType = "line_chart"
	WidgetHeatmap  WidgetType = "heatmap"
)

// ParseWidgetType normalizes a widget type string, tolerating the short
// aliases used by older dashboard configurations ("pie", "bar", "line").
func ParseWidgetType(s string) (WidgetType, error) {
	switch s {
	case "kpi":
		return WidgetKPI, nil
	case "table":
		return WidgetTable, nil
	case "pie", "pie_chart":
		return WidgetPieChart, nil
	case "bar", "bar_chart":
		return WidgetBarChart, nil
	case "line", "line_chart":
		return WidgetLineChart, nil
	case "heatmap":
		return WidgetHeatmap, nil
	default:
		return "", fmt.Errorf("unknown widget type: %s", s)
	}
}

// Aggregation is the per-group aggregation applied to the value field
type Aggregation string

const (
	AggSum   Aggregation = "SUM"
	AggCount Aggregation = "COUNT"
	AggAvg   Aggregation = "AVG"
	AggMax   Aggregation = "MAX"
	AggMin   Aggregation = "MIN"
)

// Format describes how a KPI value should be rendered
type Format string

const (
	FormatNumber     Format = "number"
	FormatCurrency   Format = "currency"
	FormatPercentage Format = "percentage"
	FormatDecimal    Format = "decimal"
)

// WidgetConfig is the per-call widget configuration supplied by the caller.
// It is never persisted by the engine. Metric/YAxis and GroupBy/XAxis are
// synonym pairs coming from two generations of the dashboard builder.
type WidgetConfig struct {
	Metric      string      `json:"metric,omitempty"`
	YAxis       string      `json:"y_axis,omitempty"`
	GroupBy     string      `json:"group_by,omitempty"`
	XAxis       string      `json:"x_axis,omitempty"`
	FormulaName string      `json:"formula_name,omitempty"`
	Aggregation Aggregation `json:"aggregation,omitempty"`
	Format      Format      `json:"format,omitempty"`
	Precision   int         `json:"precision,omitempty"`
	Prefix      string      `json:"prefix,omitempty"`
	Suffix      string      `json:"suffix,omitempty"`
	Color       string      `json:"color,omitempty"`
	Columns     []string    `json:"columns,omitempty"`
}

// GroupField returns the grouping dimension, preferring group_by over x_axis.
func (c WidgetConfig) GroupField() string {
	if c.GroupBy != "" {
		return c.GroupBy
	}
	return c.XAxis
}

// ValueField returns the value dimension, preferring metric over y_axis.
func (c WidgetConfig) ValueField() string {
	if c.Metric != "" {
		return c.Metric
	}
	return c.YAxis
}
