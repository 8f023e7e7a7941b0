package formula

import (
	"github.com/gralix-technologies/loanlens/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// Node is an aggregate-level expression node. Evaluating a node consumes
// the whole record collection and produces a single float.
type Node interface {
	Eval(records []domain.Record) float64
}

// InnerExpr is a per-record expression inside SUM(...) or AVG(...).
type InnerExpr interface {
	EvalRecord(rec domain.Record) float64
}

// Literal is a numeric constant at aggregate level.
type Literal struct {
	Value float64
}

func (n Literal) Eval([]domain.Record) float64 { return n.Value }

// FieldSum is a bare identifier at aggregate level, shorthand for SUM(field).
type FieldSum struct {
	Field string
}

func (n FieldSum) Eval(records []domain.Record) float64 {
	var total float64
	for _, rec := range records {
		total += rec.Data.Number(n.Field)
	}
	return total
}

// SumCall is SUM(<inner>): the per-record inner expression summed across
// every record in the active collection.
type SumCall struct {
	Inner InnerExpr
}

func (n SumCall) Eval(records []domain.Record) float64 {
	var total float64
	for _, rec := range records {
		total += n.Inner.EvalRecord(rec)
	}
	return total
}

// AvgCall is AVG(<inner>): the per-record inner expression averaged across
// the collection. An empty collection averages to 0.
type AvgCall struct {
	Inner InnerExpr
}

func (n AvgCall) Eval(records []domain.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	values := make([]float64, len(records))
	for i, rec := range records {
		values[i] = n.Inner.EvalRecord(rec)
	}
	return stat.Mean(values, nil)
}

// CountStar is COUNT(*).
type CountStar struct{}

func (CountStar) Eval(records []domain.Record) float64 {
	return float64(len(records))
}

// CountCaseWhen is COUNT(CASE WHEN <cond> ...): the number of records
// satisfying the condition.
type CountCaseWhen struct {
	Cond Condition
}

func (n CountCaseWhen) Eval(records []domain.Record) float64 {
	var count float64
	for _, rec := range records {
		if n.Cond.Matches(rec) {
			count++
		}
	}
	return count
}

// Add sums its terms.
type Add struct {
	Terms []Node
}

func (n Add) Eval(records []domain.Record) float64 {
	var total float64
	for _, term := range n.Terms {
		total += term.Eval(records)
	}
	return total
}

// Ratio divides numerator by denominator with the division-by-zero guard:
// a zero denominator yields 0, never NaN or infinity. A NULLIF(den, 0)
// wrapper in the source expression is unwrapped at parse time; this guard
// is what actually enforces it.
type Ratio struct {
	Num Node
	Den Node
}

func (n Ratio) Eval(records []domain.Record) float64 {
	den := n.Den.Eval(records)
	if den == 0 {
		return 0
	}
	return n.Num.Eval(records) / den
}

// Scale multiplies its inner node by a constant; in practice this is the
// trailing "* 100" of percentage ratios.
type Scale struct {
	Inner  Node
	Factor float64
}

func (n Scale) Eval(records []domain.Record) float64 {
	return n.Inner.Eval(records) * n.Factor
}

// condOp is the comparison operator of a COUNT(CASE WHEN ...) condition.
type condOp int

const (
	condEq condOp = iota
	condGe
	condGt
	condLe
	condLt
)

// Condition is a single-field comparison: equality against a string, or a
// numeric comparison. Missing fields read as "" / 0 respectively.
type Condition struct {
	Field  string
	Op     condOp
	StrVal string
	NumVal float64
	IsStr  bool
}

// Matches evaluates the condition against one record.
func (c Condition) Matches(rec domain.Record) bool {
	if c.IsStr {
		if c.Op != condEq {
			return false
		}
		return rec.Data.Text(c.Field) == c.StrVal
	}
	v := rec.Data.Number(c.Field)
	switch c.Op {
	case condEq:
		return v == c.NumVal
	case condGe:
		return v >= c.NumVal
	case condGt:
		return v > c.NumVal
	case condLe:
		return v <= c.NumVal
	case condLt:
		return v < c.NumVal
	}
	return false
}

// innerOperand is one side of a per-record subtraction or product: either a
// field lookup (missing defaults to 0) or a numeric constant.
type innerOperand struct {
	field    string
	constant float64
	isField  bool
}

func (o innerOperand) value(rec domain.Record) float64 {
	if o.isField {
		return rec.Data.Number(o.field)
	}
	return o.constant
}

// FieldRef is a bare field inside an aggregate: the per-record value,
// defaulting to 0 when absent or null.
type FieldRef struct {
	Field string
}

func (n FieldRef) EvalRecord(rec domain.Record) float64 {
	return rec.Data.Number(n.Field)
}

// InnerConst is a numeric constant contributed by every record.
type InnerConst struct {
	Value float64
}

func (n InnerConst) EvalRecord(domain.Record) float64 { return n.Value }

// InnerZero contributes 0 for every record. It stands in for CASE
// expressions that do not match the single supported shape, which
// degrade silently rather than failing the whole formula.
type InnerZero struct{}

func (InnerZero) EvalRecord(domain.Record) float64 { return 0 }

// FieldDiff is per-record subtraction: the first '-' splits the inner
// expression, one subtraction level only.
type FieldDiff struct {
	A innerOperand
	B innerOperand
}

func (n FieldDiff) EvalRecord(rec domain.Record) float64 {
	return n.A.value(rec) - n.B.value(rec)
}

// FieldProduct is a per-record product of all operands, accumulated from 1.
type FieldProduct struct {
	Operands []innerOperand
}

func (n FieldProduct) EvalRecord(rec domain.Record) float64 {
	product := 1.0
	for _, op := range n.Operands {
		product *= op.value(rec)
	}
	return product
}

// CaseWhenStatusEquals is the single supported CASE shape inside SUM/AVG:
// CASE WHEN status="X" THEN fieldA ELSE constB END. If the record's status
// field equals the match value the record contributes fieldA, otherwise
// the constant.
type CaseWhenStatusEquals struct {
	CondField string
	Match     string
	ThenField string
	ElseConst float64
}

func (n CaseWhenStatusEquals) EvalRecord(rec domain.Record) float64 {
	if rec.Data.Text(n.CondField) == n.Match {
		return rec.Data.Number(n.ThenField)
	}
	return n.ElseConst
}
