package charts

import (
	"github.com/gralix-technologies/loanlens/internal/domain"
)

// HeatmapCells groups records two-dimensionally by the configured
// (x_axis, y_axis) field pair and accumulates the record's first-class
// amount column per pair. Pairs with a missing or null key on either axis,
// or a non-positive accumulated amount, are dropped. Cells keep grouping
// insertion order.
func HeatmapCells(recs []domain.Record, cfg domain.WidgetConfig) []domain.HeatmapCell {
	xField := cfg.XAxis
	if xField == "" {
		xField = cfg.GroupBy
	}
	yField := cfg.YAxis
	if xField == "" || yField == "" {
		return nil
	}

	type pair struct{ x, y string }
	var order []pair
	totals := make(map[pair]float64)

	for _, rec := range recs {
		if !rec.Data.Has(xField) || !rec.Data.Has(yField) {
			continue
		}
		x := rec.Data.Text(xField)
		y := rec.Data.Text(yField)
		if droppedLabel(x) || droppedLabel(y) {
			continue
		}

		key := pair{x: x, y: y}
		if _, seen := totals[key]; !seen {
			order = append(order, key)
		}
		// The heatmap accumulates the fixed amount column, not a JSON field.
		totals[key] += rec.Amount
	}

	cells := make([]domain.HeatmapCell, 0, len(order))
	for _, key := range order {
		value := totals[key]
		if value <= 0 {
			continue
		}
		cells = append(cells, domain.HeatmapCell{X: key.x, Y: key.y, Value: value})
	}
	return cells
}
