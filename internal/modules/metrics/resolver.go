package metrics

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gralix-technologies/loanlens/internal/domain"
	"github.com/gralix-technologies/loanlens/internal/modules/formula"
)

// Resolver maps a KPI widget configuration onto a calculation. Resolution
// order, first match wins:
//
//  1. formula_name -> stored formula lookup (missing formula is an error)
//  2. metric matching a canonical metric string -> named calculation
//  3. metric matching a stored formula's expression -> that formula
//  4. unresolved -> the caller falls back to generic aggregation
type Resolver struct {
	formulas  *formula.Repository
	evaluator *formula.Evaluator
	log       zerolog.Logger
}

// NewResolver creates a new aggregation strategy resolver
func NewResolver(formulas *formula.Repository, evaluator *formula.Evaluator, log zerolog.Logger) *Resolver {
	return &Resolver{
		formulas:  formulas,
		evaluator: evaluator,
		log:       log.With().Str("service", "metrics_resolver").Logger(),
	}
}

// Resolution is the outcome of resolving a KPI configuration. When
// Resolved is false and Err is empty the caller should fall back to the
// generic grouped-aggregation path.
type Resolution struct {
	Value    float64
	Resolved bool
	Err      string
}

// ResolveKPI resolves a widget configuration against a record snapshot.
func (r *Resolver) ResolveKPI(cfg domain.WidgetConfig, productID int64, records []domain.Record) Resolution {
	if cfg.FormulaName != "" {
		f, err := r.formulas.FindByName(cfg.FormulaName, productID)
		if err != nil {
			r.log.Error().Err(err).Str("formula", cfg.FormulaName).Msg("Formula lookup failed")
			return Resolution{Err: fmt.Sprintf("Formula '%s' not found for product %d", cfg.FormulaName, productID)}
		}
		if f == nil {
			return Resolution{Err: fmt.Sprintf("Formula '%s' not found for product %d", cfg.FormulaName, productID)}
		}
		value, errMsg := r.evaluateNamed(*f, records)
		if errMsg != "" {
			return Resolution{Err: errMsg}
		}
		return Resolution{Value: value, Resolved: true}
	}

	if cfg.Metric != "" {
		if calc, ok := LookupCanonicalMetric(cfg.Metric); ok {
			return Resolution{Value: calc(records), Resolved: true}
		}

		f, err := r.formulas.FindByExpression(cfg.Metric, productID)
		if err != nil {
			r.log.Error().Err(err).Str("metric", cfg.Metric).Msg("Formula expression lookup failed")
		} else if f != nil {
			value, errMsg := r.evaluateNamed(*f, records)
			if errMsg != "" {
				return Resolution{Err: errMsg}
			}
			return Resolution{Value: value, Resolved: true}
		}
	}

	return Resolution{}
}

// EvaluateNamedFormula evaluates a stored formula with the reserved-name
// bypass: a registered name runs its hardcoded calculation, everything else
// goes through the expression evaluator.
func (r *Resolver) EvaluateNamedFormula(f domain.Formula, records []domain.Record) (float64, error) {
	if calc, ok := LookupNamed(f.Name); ok {
		return calc(records), nil
	}
	return r.evaluator.EvaluateFormula(f, records)
}

func (r *Resolver) evaluateNamed(f domain.Formula, records []domain.Record) (float64, string) {
	value, err := r.EvaluateNamedFormula(f, records)
	if err != nil {
		// Strict evaluator only; the legacy contract degrades inside the
		// evaluator and never reaches this branch.
		return 0, fmt.Sprintf("Invalid formula '%s': %v", f.Name, err)
	}
	return value, ""
}
