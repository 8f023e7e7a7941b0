package domain

import "fmt"

// LabeledPoint is a single pie/bar slice: a label with its aggregated value.
type LabeledPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// XYPoint is a single line-chart point.
type XYPoint struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// HeatmapCell is one cell of a two-dimensional heatmap.
type HeatmapCell struct {
	X     string  `json:"x"`
	Y     string  `json:"y"`
	Value float64 `json:"value"`
}

// TableRow is a single result row for table widgets.
type TableRow map[string]interface{}

// KPIResult is the outcome of a KPI computation. Display is only populated
// when the caller asked for server-side rendering (custom prefix/suffix on
// the per-product path, or any format on the cross-product path); otherwise
// formatting is a presentation concern of the caller.
type KPIResult struct {
	Value     float64 `json:"value"`
	Display   string  `json:"display,omitempty"`
	Format    Format  `json:"format,omitempty"`
	Precision int     `json:"precision"`
	Color     string  `json:"color,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// KPIError builds a KPI failure result. The engine never lets an error
// escape a public operation; it is carried on this channel instead.
func KPIError(format string, args ...interface{}) KPIResult {
	return KPIResult{Error: fmt.Sprintf(format, args...)}
}

// ChartResult is the outcome of a chart computation. Exactly one of the
// payload slices is populated depending on the widget type, or Error is set.
type ChartResult struct {
	Points  []LabeledPoint `json:"data,omitempty"`
	Series  []XYPoint      `json:"series,omitempty"`
	Cells   []HeatmapCell  `json:"cells,omitempty"`
	Columns []string       `json:"columns,omitempty"`
	Rows    []TableRow     `json:"rows,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ChartError builds a chart failure result.
func ChartError(format string, args ...interface{}) ChartResult {
	return ChartResult{Error: fmt.Sprintf(format, args...)}
}
