package charts

import (
	"sort"
	"strings"

	"github.com/gralix-technologies/loanlens/internal/domain"
)

// assembleTable routes a table widget to the aggregated path (grouping
// requested, or any column is an aggregate call) or the row-level path.
func (s *Service) assembleTable(cfg domain.WidgetConfig, recs []domain.Record) domain.ChartResult {
	if cfg.GroupField() != "" || hasAggregateColumn(cfg.Columns) {
		return aggregatedTable(cfg, recs)
	}
	return s.rowTable(cfg, recs)
}

func hasAggregateColumn(columns []string) bool {
	for _, col := range columns {
		if IsAggregateExpr(col) {
			return true
		}
	}
	return false
}

// aggregatedTable groups records by the configured dimension and computes
// one row per group. Aggregate-call columns run their own aggregation;
// the group field column carries the formatted label; any other bare
// column sums that field within the group.
func aggregatedTable(cfg domain.WidgetConfig, recs []domain.Record) domain.ChartResult {
	groupField := cfg.GroupField()
	if groupField == "" {
		return domain.ChartError("table aggregation requires a group_by field")
	}

	columns := cfg.Columns
	if len(columns) == 0 {
		agg := cfg.Aggregation
		if agg == "" {
			agg = domain.AggSum
		}
		columns = []string{groupField, string(agg) + "(" + CanonicalValueField(cfg.ValueField()) + ")"}
	}

	var order []string
	groups := make(map[string][]domain.Record)
	for _, rec := range recs {
		if !rec.Data.Has(groupField) {
			continue
		}
		key := rec.Data.Text(groupField)
		if droppedLabel(key) {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	rows := make([]domain.TableRow, 0, len(order))
	for _, key := range order {
		group := groups[key]
		row := make(domain.TableRow, len(columns))
		for _, col := range columns {
			if col == groupField {
				row[col] = FormatGroupLabel(groupField, key)
				continue
			}
			if agg, arg, ok := aggregateCall(col); ok {
				if agg == domain.AggCount {
					row[col] = float64(len(group))
					continue
				}
				field := CanonicalValueField(arg)
				values := make([]float64, len(group))
				for i, rec := range group {
					values[i] = rec.Data.Number(field)
				}
				row[col] = Aggregate(values, agg)
				continue
			}
			var total float64
			for _, rec := range group {
				total += rec.Data.Number(col)
			}
			row[col] = total
		}
		rows = append(rows, row)
	}

	return domain.ChartResult{Columns: columns, Rows: rows}
}

// rowTable returns record-level rows with per-column raw value lookup.
// The literal column "amount" reads the record's first-class amount column;
// rows referencing a customer are decorated with the display name.
func (s *Service) rowTable(cfg domain.WidgetConfig, recs []domain.Record) domain.ChartResult {
	columns := cfg.Columns
	if len(columns) == 0 {
		columns = defaultRowColumns(recs)
	}

	names := s.lookupCustomerNames(recs)

	rows := make([]domain.TableRow, 0, len(recs))
	for _, rec := range recs {
		row := make(domain.TableRow, len(columns)+1)
		for _, col := range columns {
			if col == "amount" {
				row[col] = rec.Amount
				continue
			}
			row[col] = rawValue(rec.Data[col])
		}
		if id := recordCustomerID(rec); id != "" {
			if name, ok := names[id]; ok {
				row["customer_name"] = name
			}
		}
		rows = append(rows, row)
	}

	return domain.ChartResult{Columns: columns, Rows: rows}
}

// defaultRowColumns derives a stable column list when none is configured:
// the amount column followed by the union of data fields in first-seen
// order across the snapshot.
func defaultRowColumns(recs []domain.Record) []string {
	columns := []string{"amount"}
	seen := map[string]bool{"amount": true}
	for _, rec := range recs {
		fields := make([]string, 0, len(rec.Data))
		for field := range rec.Data {
			fields = append(fields, field)
		}
		// Map iteration order is random; keep the union deterministic.
		sort.Strings(fields)
		for _, field := range fields {
			if !seen[field] {
				seen[field] = true
				columns = append(columns, field)
			}
		}
	}
	return columns
}

// rawValue converts a field value to its native JSON representation for
// table rows: numbers stay numeric, text stays text.
func rawValue(v domain.FieldValue) interface{} {
	switch v.Kind {
	case domain.FieldNumber:
		return v.Num
	case domain.FieldText:
		return v.Text
	case domain.FieldBool:
		return v.Bool
	default:
		return nil
	}
}

// recordCustomerID prefers the record's customer_id data field and falls
// back to the first-class column.
func recordCustomerID(rec domain.Record) string {
	if id := strings.TrimSpace(rec.Data.Text("customer_id")); id != "" {
		return id
	}
	return rec.CustomerID
}

func (s *Service) lookupCustomerNames(recs []domain.Record) map[string]string {
	var ids []string
	seen := make(map[string]bool)
	for _, rec := range recs {
		if id := recordCustomerID(rec); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 || s.customers == nil {
		return map[string]string{}
	}
	names, err := s.customers.DisplayNames(ids)
	if err != nil {
		// Name decoration is best-effort; the table still renders.
		s.log.Warn().Err(err).Msg("Customer name lookup failed")
		return map[string]string{}
	}
	return names
}
