package formula

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gralix-technologies/loanlens/internal/domain"
)

// Evaluator evaluates formula expressions against record snapshots.
//
// The default contract is "fail soft to zero": any parse or evaluation
// failure yields 0.0 and is logged with the formula context, never raised
// to the caller. Dashboards render frequently-edited, user-authored
// expressions; one bad formula must not take down a page. Strict mode is
// an opt-in for callers that want a distinguishable error instead.
type Evaluator struct {
	log    zerolog.Logger
	strict bool
}

// NewEvaluator creates a formula evaluator with the legacy soft-zero
// failure contract.
func NewEvaluator(log zerolog.Logger) *Evaluator {
	return &Evaluator{
		log: log.With().Str("service", "formula_evaluator").Logger(),
	}
}

// NewStrictEvaluator creates an evaluator whose EvaluateFormula surfaces
// parse failures instead of degrading to zero.
func NewStrictEvaluator(log zerolog.Logger) *Evaluator {
	e := NewEvaluator(log)
	e.strict = true
	return e
}

// Strict reports whether this evaluator surfaces parse failures.
func (e *Evaluator) Strict() bool {
	return e.strict
}

// Evaluate evaluates an expression against a record collection and returns
// a single float. Failures degrade to 0 and are logged.
func (e *Evaluator) Evaluate(expression string, records []domain.Record) float64 {
	value, err := e.EvaluateChecked(expression, records)
	if err != nil {
		e.log.Warn().
			Err(err).
			Str("expression", expression).
			Msg("Formula evaluation failed, degrading to zero")
		return 0
	}
	return value
}

// EvaluateChecked evaluates an expression and reports parse failures to
// the caller instead of swallowing them.
func (e *Evaluator) EvaluateChecked(expression string, records []domain.Record) (float64, error) {
	node, err := Parse(expression)
	if err != nil {
		return 0, fmt.Errorf("failed to parse expression %q: %w", expression, err)
	}
	return node.Eval(records), nil
}

// EvaluateFormula evaluates a stored formula, logging failures with the
// formula's identity. In strict mode the error is returned; otherwise the
// result degrades to 0 per the soft-zero contract.
func (e *Evaluator) EvaluateFormula(f domain.Formula, records []domain.Record) (float64, error) {
	value, err := e.EvaluateChecked(f.Expression, records)
	if err != nil {
		e.log.Warn().
			Err(err).
			Str("formula_id", f.ID).
			Str("formula_name", f.Name).
			Str("expression", f.Expression).
			Msg("Formula evaluation failed")
		if e.strict {
			return 0, err
		}
		return 0, nil
	}
	return value, nil
}
