// Package metrics resolves widget configurations onto calculations: named
// built-in calculations, stored formulas, or generic aggregation.
package metrics

import (
	"strings"

	"github.com/gralix-technologies/loanlens/internal/domain"
)

// NamedCalc is a hardcoded calculation bound to a reserved formula name.
// These bypass expression evaluation for business rules the mini-language
// cannot express cleanly (conditional filtering, categorical counting).
type NamedCalc func(records []domain.Record) float64

// namedCalcs is the registry of reserved formula names. Kept as an explicit
// static table so the resolution order stays auditable per entry.
var namedCalcs = map[string]NamedCalc{
	"NPL Ratio":       nplRatio,
	"Default Rate":    defaultRate,
	"Capital at Risk": capitalAtRisk,
}

// categoryPatterns maps reserved name suffixes onto the field each family
// counts by. The filter value is derived from the formula's own name by
// stripping the suffix: "Agriculture Sector Loans" counts records with
// sector == "Agriculture". The derivation is a fixed string transformation,
// not user input; keep it in sync with the recognized name families.
var categoryPatterns = []struct {
	suffix string
	field  string
}{
	{" Risk Loans Count", "risk_rating"},
	{" Sector Loans", "sector"},
	{" Purpose Loans", "loan_purpose"},
	{" Repayment Loans", "repayment_frequency"},
	{" Guaranteed Loans", "guarantee_type"},
}

// canonicalMetrics maps recognized metric strings onto named calculations.
// The WHERE pseudo-syntax in these strings is matched verbatim, not parsed;
// it carries conditional semantics the expression grammar does not have.
var canonicalMetrics = map[string]string{
	"SUM(outstanding_balance WHERE days_past_due >= 90)": "NPL Ratio",
	"SUM(outstanding_balance WHERE days_past_due >= 30)": "Default Rate",
	"SUM(ead * (risk_weight / 100))":                     "Capital at Risk",
}

// LookupNamed returns the calculation registered for a reserved formula
// name, including the derived category-count families.
func LookupNamed(name string) (NamedCalc, bool) {
	if calc, ok := namedCalcs[name]; ok {
		return calc, true
	}
	for _, pattern := range categoryPatterns {
		if strings.HasSuffix(name, pattern.suffix) {
			value := strings.TrimSuffix(name, pattern.suffix)
			if value == "" {
				continue
			}
			return categoryCount(pattern.field, value), true
		}
	}
	return nil, false
}

// LookupCanonicalMetric returns the named calculation behind a recognized
// canonical metric string.
func LookupCanonicalMetric(metric string) (NamedCalc, bool) {
	name, ok := canonicalMetrics[metric]
	if !ok {
		return nil, false
	}
	return namedCalcs[name], true
}

// categoryCount builds a COUNT(*) filtered by exact string equality on one
// designated field.
func categoryCount(field, value string) NamedCalc {
	return func(records []domain.Record) float64 {
		var count float64
		for _, rec := range records {
			if rec.Data.Text(field) == value {
				count++
			}
		}
		return count
	}
}

// nplRatio computes the non-performing-loan ratio. When any record tags
// loans explicitly via npl_status, the ratio is count-based over records
// carrying that field; otherwise it falls back to the balance-weighted
// definition with a 90-day delinquency threshold. Both branches are
// zero when their denominator is zero.
func nplRatio(records []domain.Record) float64 {
	return delinquencyRatio(records, 90)
}

// defaultRate is the same calculation as nplRatio with a 30-day threshold.
func defaultRate(records []domain.Record) float64 {
	return delinquencyRatio(records, 30)
}

func delinquencyRatio(records []domain.Record, dpdThreshold float64) float64 {
	var tagged, taggedNPL float64
	for _, rec := range records {
		if rec.Data.Has("npl_status") {
			tagged++
			if rec.Data.Text("npl_status") == "NPL" {
				taggedNPL++
			}
		}
	}
	if tagged > 0 {
		return taggedNPL / tagged * 100
	}

	var totalBalance, delinquentBalance float64
	for _, rec := range records {
		balance := rec.Data.Number("outstanding_balance")
		totalBalance += balance
		if rec.Data.Number("days_past_due") >= dpdThreshold {
			delinquentBalance += balance
		}
	}
	if totalBalance == 0 {
		return 0
	}
	return delinquentBalance / totalBalance * 100
}

// capitalAtRisk sums risk-weighted exposure: ead * risk_weight / 100 per
// record. No ratio, no denominator to guard.
func capitalAtRisk(records []domain.Record) float64 {
	var total float64
	for _, rec := range records {
		total += rec.Data.Number("ead") * rec.Data.Number("risk_weight") / 100
	}
	return total
}
