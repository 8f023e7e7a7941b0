// Package portfolio aggregates widget results across multiple products
// for portfolio-wide dashboards.
package portfolio

import (
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/gralix-technologies/loanlens/internal/domain"
	"github.com/gralix-technologies/loanlens/internal/modules/charts"
	"github.com/gralix-technologies/loanlens/internal/modules/currency"
	"github.com/gralix-technologies/loanlens/internal/modules/products"
	"github.com/gralix-technologies/loanlens/internal/modules/records"
)

const defaultPrecision = 2

// Service computes cross-product aggregations: the same widget assemblies
// as the per-product chart service, but over the union of several
// products' records, with product identity available as an extra grouping
// dimension.
type Service struct {
	records   *records.Repository
	products  *products.Repository
	charts    *charts.Service
	formatter *currency.Formatter
	log       zerolog.Logger
}

// NewService creates a new cross-product aggregation service
func NewService(
	recordRepo *records.Repository,
	productRepo *products.Repository,
	chartService *charts.Service,
	formatter *currency.Formatter,
	log zerolog.Logger,
) *Service {
	return &Service{
		records:   recordRepo,
		products:  productRepo,
		charts:    chartService,
		formatter: formatter,
		log:       log.With().Str("service", "portfolio").Logger(),
	}
}

// ComputeKPI aggregates a KPI across products. Unlike the per-product KPI
// path, this one applies format-specific string rendering server-side:
// the portfolio dashboard caller expects display-ready values. Keep the
// asymmetry; the two callers have different contracts.
func (s *Service) ComputeKPI(cfg domain.WidgetConfig, productIDs []int64) domain.KPIResult {
	recs, err := s.records.FetchMany(productIDs)
	if err != nil {
		s.log.Error().Err(err).Ints64("product_ids", productIDs).Msg("Record fetch failed")
		return domain.KPIError("failed to load records for portfolio")
	}

	value := charts.AggregateAll(recs, cfg)

	precision := cfg.Precision
	if precision <= 0 {
		precision = defaultPrecision
	}
	value = charts.Round(value, precision)

	format := cfg.Format
	if format == "" {
		format = domain.FormatNumber
	}

	result := domain.KPIResult{
		Value:     value,
		Format:    format,
		Precision: precision,
		Color:     cfg.Color,
	}
	switch format {
	case domain.FormatCurrency:
		result.Display = s.formatter.FormatAmount(value)
	case domain.FormatPercentage:
		result.Display = strconv.FormatFloat(charts.Round(value*100, precision), 'f', precision, 64) + "%"
	case domain.FormatDecimal:
		result.Display = strconv.FormatFloat(value, 'f', precision, 64)
	}
	return result
}

// ComputeChart assembles a cross-product chart. Grouping by "product" or
// "product_name" buckets the union by owning product; a table widget
// produces the per-sector portfolio summary; anything else runs the shared
// per-product pipeline over the combined snapshot.
func (s *Service) ComputeChart(widgetType string, cfg domain.WidgetConfig, productIDs []int64) domain.ChartResult {
	wt, err := domain.ParseWidgetType(widgetType)
	if err != nil || wt == domain.WidgetKPI {
		return domain.ChartError("Unknown widget type: %s", widgetType)
	}

	recs, fetchErr := s.records.FetchMany(productIDs)
	if fetchErr != nil {
		s.log.Error().Err(fetchErr).Ints64("product_ids", productIDs).Msg("Record fetch failed")
		return domain.ChartError("failed to load records for portfolio")
	}

	if wt == domain.WidgetTable {
		return s.sectorTable(cfg, recs)
	}

	groupField := cfg.GroupField()
	if groupField == "product" || groupField == "product_name" {
		return s.productChart(wt, cfg, recs, productIDs)
	}

	return s.charts.Assemble(wt, cfg, recs)
}

// productChart groups the combined snapshot by owning product name.
func (s *Service) productChart(wt domain.WidgetType, cfg domain.WidgetConfig, recs []domain.Record, productIDs []int64) domain.ChartResult {
	names, err := s.products.NamesByID(productIDs)
	if err != nil {
		s.log.Error().Err(err).Msg("Product name lookup failed")
		return domain.ChartError("failed to resolve product names")
	}

	valueField := charts.CanonicalValueField(cfg.ValueField())

	var order []string
	groups := make(map[string][]float64)
	for _, rec := range recs {
		name, ok := names[rec.ProductID]
		if !ok || name == "" {
			continue
		}
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], rec.Data.Number(valueField))
	}

	points := make([]domain.LabeledPoint, 0, len(order))
	for _, name := range order {
		value := charts.Aggregate(groups[name], cfg.Aggregation)
		if value <= 0 {
			continue
		}
		points = append(points, domain.LabeledPoint{Label: name, Value: value})
	}

	if wt == domain.WidgetLineChart {
		sort.SliceStable(points, func(i, j int) bool { return points[i].Label < points[j].Label })
		series := make([]domain.XYPoint, len(points))
		for i, p := range points {
			series[i] = domain.XYPoint{X: p.Label, Y: p.Value}
		}
		return domain.ChartResult{Series: series}
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Value > points[j].Value })
	return domain.ChartResult{Points: points}
}

// sectorTable builds the portfolio summary table: loan count, total and
// average balance, NPL count and NPL ratio per group (sector by default).
//
// NPL determination here is a literal status == "NPL" check. Cross-product
// views assume normalized status tagging; do not unify this with the
// per-product days_past_due threshold definition.
func (s *Service) sectorTable(cfg domain.WidgetConfig, recs []domain.Record) domain.ChartResult {
	groupField := cfg.GroupField()
	if groupField == "" {
		groupField = "sector"
	}

	var order []string
	groups := make(map[string][]domain.Record)
	for _, rec := range recs {
		if !rec.Data.Has(groupField) {
			continue
		}
		key := rec.Data.Text(groupField)
		if key == "" || key == "null" || key == "NULL" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	columns := []string{groupField, "loan_count", "total_balance", "average_balance", "npl_count", "npl_ratio"}
	rows := make([]domain.TableRow, 0, len(order))
	for _, key := range order {
		group := groups[key]
		var total, nplCount float64
		for _, rec := range group {
			total += rec.Data.Number("outstanding_balance")
			if crossStatus(rec) == "NPL" {
				nplCount++
			}
		}
		count := float64(len(group))
		average := 0.0
		if count > 0 {
			average = total / count
		}
		ratio := 0.0
		if count > 0 {
			ratio = nplCount / count * 100
		}

		rows = append(rows, domain.TableRow{
			groupField:        charts.FormatGroupLabel(groupField, key),
			"loan_count":      count,
			"total_balance":   charts.Round(total, 2),
			"average_balance": charts.Round(average, 2),
			"npl_count":       nplCount,
			"npl_ratio":       charts.Round(ratio, 2),
		})
	}

	return domain.ChartResult{Columns: columns, Rows: rows}
}

// crossStatus reads the record's status tag, preferring the dynamic field
// over the fixed column.
func crossStatus(rec domain.Record) string {
	if s := rec.Data.Text("status"); s != "" {
		return s
	}
	return rec.Status
}
