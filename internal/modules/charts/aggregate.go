package charts

import (
	"math"
	"regexp"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gralix-technologies/loanlens/internal/domain"
)

// metricAliases maps common value-field synonyms onto the canonical
// outstanding_balance field. Dashboard configurations accumulated several
// names for the same concept across product schemas.
var metricAliases = map[string]string{
	"amount":           "outstanding_balance",
	"principal":        "outstanding_balance",
	"balance":          "outstanding_balance",
	"value":            "outstanding_balance",
	"exposure":         "outstanding_balance",
	"principal_amount": "outstanding_balance",
}

var aggregateCallRe = regexp.MustCompile(`(?i)^(SUM|AVG|COUNT|MAX|MIN)\((.*)\)$`)

// CanonicalValueField extracts the field a metric refers to: an aggregate
// call is unwrapped to its argument, aliases map onto outstanding_balance,
// and an empty metric defaults to outstanding_balance.
func CanonicalValueField(metric string) string {
	field := strings.TrimSpace(metric)
	if m := aggregateCallRe.FindStringSubmatch(field); m != nil {
		field = strings.TrimSpace(m[2])
	}
	if field == "" || field == "*" {
		return "outstanding_balance"
	}
	if canonical, ok := metricAliases[field]; ok {
		return canonical
	}
	return field
}

// IsAggregateExpr reports whether a table column is an aggregate call like
// COUNT(*) or SUM(outstanding_balance).
func IsAggregateExpr(column string) bool {
	return aggregateCallRe.MatchString(strings.TrimSpace(column))
}

// aggregateCall splits an aggregate column into its function and argument.
func aggregateCall(column string) (domain.Aggregation, string, bool) {
	m := aggregateCallRe.FindStringSubmatch(strings.TrimSpace(column))
	if m == nil {
		return "", "", false
	}
	return domain.Aggregation(strings.ToUpper(m[1])), strings.TrimSpace(m[2]), true
}

// Aggregate reduces a group's values with the configured aggregation.
// An unknown aggregation falls back to SUM; empty groups reduce to 0.
func Aggregate(values []float64, agg domain.Aggregation) float64 {
	if len(values) == 0 {
		return 0
	}
	switch agg {
	case domain.AggCount:
		return float64(len(values))
	case domain.AggAvg:
		return stat.Mean(values, nil)
	case domain.AggMax:
		return floats.Max(values)
	case domain.AggMin:
		return floats.Min(values)
	default:
		return floats.Sum(values)
	}
}

// Round rounds a value to the given number of decimals.
func Round(value float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	factor := math.Pow10(precision)
	return math.Round(value*factor) / factor
}
