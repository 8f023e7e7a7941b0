package charts

import (
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/gralix-technologies/loanlens/internal/domain"
	"github.com/gralix-technologies/loanlens/internal/modules/customers"
	"github.com/gralix-technologies/loanlens/internal/modules/metrics"
	"github.com/gralix-technologies/loanlens/internal/modules/records"
)

// defaultPrecision is applied when a widget configuration omits precision.
const defaultPrecision = 2

// Service assembles per-product widget results. Each call fetches an
// immutable record snapshot, aggregates it and shapes the output for one
// widget type; no state is retained between calls.
type Service struct {
	records   *records.Repository
	customers *customers.Repository
	resolver  *metrics.Resolver
	log       zerolog.Logger
}

// NewService creates a new chart service
func NewService(
	recordRepo *records.Repository,
	customerRepo *customers.Repository,
	resolver *metrics.Resolver,
	log zerolog.Logger,
) *Service {
	return &Service{
		records:   recordRepo,
		customers: customerRepo,
		resolver:  resolver,
		log:       log.With().Str("service", "charts").Logger(),
	}
}

// ComputeKPI produces the single-value result for a KPI widget.
// The raw rounded number is returned without string formatting unless the
// configuration carries a custom prefix/suffix; rendering is the caller's
// concern on this path (the cross-product path differs deliberately).
func (s *Service) ComputeKPI(cfg domain.WidgetConfig, productID int64, filters *records.FilterSpec) domain.KPIResult {
	recs, err := s.records.Fetch(productID, filters)
	if err != nil {
		s.log.Error().Err(err).Int64("product_id", productID).Msg("Record fetch failed")
		return domain.KPIError("failed to load records for product %d", productID)
	}

	resolution := s.resolver.ResolveKPI(cfg, productID, recs)
	if resolution.Err != "" {
		return domain.KPIResult{Error: resolution.Err}
	}

	value := resolution.Value
	if !resolution.Resolved {
		value = aggregateAll(recs, cfg)
	}

	precision := cfg.Precision
	if precision <= 0 {
		precision = defaultPrecision
	}
	value = Round(value, precision)

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
	if cfg.Prefix != "" || cfg.Suffix != "" {
		result.Display = cfg.Prefix + strconv.FormatFloat(value, 'f', precision, 64) + cfg.Suffix
	}
	return result
}

// ComputeChart produces the shaped result for a grouped chart, table or
// heatmap widget over one product's records.
func (s *Service) ComputeChart(widgetType string, cfg domain.WidgetConfig, productID int64, filters *records.FilterSpec) domain.ChartResult {
	wt, err := domain.ParseWidgetType(widgetType)
	if err != nil || wt == domain.WidgetKPI {
		return domain.ChartError("Unknown widget type: %s", widgetType)
	}

	recs, fetchErr := s.records.Fetch(productID, filters)
	if fetchErr != nil {
		s.log.Error().Err(fetchErr).Int64("product_id", productID).Msg("Record fetch failed")
		return domain.ChartError("failed to load records for product %d", productID)
	}

	return s.Assemble(wt, cfg, recs)
}

// Assemble shapes an already-fetched record snapshot for a widget type.
// The cross-product aggregator reuses this over a multi-product union.
func (s *Service) Assemble(wt domain.WidgetType, cfg domain.WidgetConfig, recs []domain.Record) domain.ChartResult {
	switch wt {
	case domain.WidgetPieChart, domain.WidgetBarChart:
		points := GroupedPoints(recs, cfg)
		sort.SliceStable(points, func(i, j int) bool { return points[i].Value > points[j].Value })
		return domain.ChartResult{Points: points}

	case domain.WidgetLineChart:
		points := GroupedPoints(recs, cfg)
		// Line x-keys are typically year-month strings; lexical ascending
		// order is chronological for them.
		sort.SliceStable(points, func(i, j int) bool { return points[i].Label < points[j].Label })
		series := make([]domain.XYPoint, len(points))
		for i, p := range points {
			series[i] = domain.XYPoint{X: p.Label, Y: p.Value}
		}
		return domain.ChartResult{Series: series}

	case domain.WidgetHeatmap:
		return domain.ChartResult{Cells: HeatmapCells(recs, cfg)}

	case domain.WidgetTable:
		return s.assembleTable(cfg, recs)
	}
	return domain.ChartError("Unknown widget type: %s", string(wt))
}

// GroupedPoints runs the shared grouping pipeline: bucket/group each record
// by the configured dimension, aggregate the value field per group, format
// labels, and drop empty or non-positive groups. Insertion order is
// preserved; sorting is the per-widget-type caller's job.
func GroupedPoints(recs []domain.Record, cfg domain.WidgetConfig) []domain.LabeledPoint {
	groupField := cfg.GroupField()
	if groupField == "" {
		return nil
	}
	valueField := CanonicalValueField(cfg.ValueField())
	pdGrouping := groupField == "pd"

	var order []string
	groups := make(map[string][]float64)
	for _, rec := range recs {
		var key string
		if pdGrouping {
			// Bucketing happens per record before grouping; records without
			// a positive PD are excluded entirely.
			pd := rec.Data.Number("pd")
			if pd <= 0 {
				continue
			}
			key = PDBucket(pd)
		} else {
			if !rec.Data.Has(groupField) {
				continue
			}
			key = rec.Data.Text(groupField)
			if droppedLabel(key) {
				continue
			}
		}

		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec.Data.Number(valueField))
	}

	points := make([]domain.LabeledPoint, 0, len(order))
	for _, key := range order {
		value := Aggregate(groups[key], cfg.Aggregation)
		if value <= 0 {
			continue
		}
		label := key
		if !pdGrouping {
			label = FormatGroupLabel(groupField, key)
		}
		if droppedLabel(label) {
			continue
		}
		points = append(points, domain.LabeledPoint{Label: label, Value: value})
	}
	return points
}

// aggregateAll reduces the whole snapshot to a single value: the generic
// KPI fallback when no formula or named calculation resolves.
func aggregateAll(recs []domain.Record, cfg domain.WidgetConfig) float64 {
	if cfg.Aggregation == domain.AggCount {
		return float64(len(recs))
	}
	valueField := CanonicalValueField(cfg.ValueField())
	values := make([]float64, len(recs))
	for i, rec := range recs {
		values[i] = rec.Data.Number(valueField)
	}
	return Aggregate(values, cfg.Aggregation)
}

// AggregateAll is the exported form used by the cross-product KPI path.
func AggregateAll(recs []domain.Record, cfg domain.WidgetConfig) float64 {
	return aggregateAll(recs, cfg)
}
