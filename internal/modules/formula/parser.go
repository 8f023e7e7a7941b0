package formula

import (
	"fmt"
)

// Parse turns a formula expression into an AST.
//
// Grammar (precedence low to high, left-associative):
//
//	Expression := Sum ("/" Sum)? ("*" NUMBER)?
//	Sum        := Term ("+" Term)*
//	Term       := SUM "(" Inner ")" | AVG "(" Inner ")"
//	            | COUNT "(" "*" ")" | COUNT "(" CASE WHEN Cond ... ")"
//	            | NULLIF "(" Expression "," NUMBER ")"
//	            | NUMBER | IDENT | "(" Expression ")"
//	Inner      := CASE WHEN status = STRING THEN IDENT ELSE NUMBER END
//	            | Operand "-" Operand
//	            | Operand ("*" Operand)+
//	            | IDENT | NUMBER
//
// The top-level "/" is the guarded-ratio operator; NULLIF around the
// denominator is unwrapped here because the zero guard lives in Ratio, not
// in NULLIF semantics. A bare identifier at aggregate level means
// "sum this field across all records".
func Parse(expression string) (Node, error) {
	expr := stripOuterParens(expression)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.parseExpression()
	if err == nil && p.peek().kind == tokEOF {
		return node, nil
	}
	if err == nil {
		err = fmt.Errorf("unexpected input at position %d", p.peek().pos)
	}
	// Bare per-record arithmetic at top level ("field1 - field2",
	// "ead * risk_weight") is shorthand for the same shape summed across
	// all records, exactly as it would be inside SUM(...).
	if inner, innerErr := parseInner(toks[:len(toks)-1]); innerErr == nil {
		return SumCall{Inner: inner}, nil
	}
	return nil, err
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) match(kind tokenKind) bool {
	if p.peek().kind == kind {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseExpression() (Node, error) {
	num, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	node := num
	if p.match(tokSlash) {
		den, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		node = Ratio{Num: num, Den: den}
	}
	if p.match(tokStar) {
		factor := p.next()
		if factor.kind != tokNumber {
			return nil, fmt.Errorf("expected numeric multiplier at position %d", factor.pos)
		}
		node = Scale{Inner: node, Factor: factor.num}
	}
	return node, nil
}

func (p *parser) parseSum() (Node, error) {
	first, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	terms := []Node{first}
	for p.match(tokPlus) {
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return Add{Terms: terms}, nil
}

func (p *parser) parseTerm() (Node, error) {
	t := p.peek()
	switch {
	case t.isKeyword("SUM") && p.lookaheadLParen():
		inner, err := p.parseAggregateInner()
		if err != nil {
			return nil, err
		}
		return SumCall{Inner: inner}, nil

	case t.isKeyword("AVG") && p.lookaheadLParen():
		inner, err := p.parseAggregateInner()
		if err != nil {
			return nil, err
		}
		return AvgCall{Inner: inner}, nil

	case t.isKeyword("COUNT") && p.lookaheadLParen():
		return p.parseCount()

	case t.isKeyword("NULLIF") && p.lookaheadLParen():
		return p.parseNullif()

	case t.kind == tokNumber:
		p.next()
		return Literal{Value: t.num}, nil

	case t.kind == tokIdent:
		p.next()
		return FieldSum{Field: t.text}, nil

	case t.kind == tokLParen:
		p.next()
		node, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if !p.match(tokRParen) {
			return nil, fmt.Errorf("missing closing parenthesis at position %d", p.peek().pos)
		}
		return node, nil
	}
	return nil, fmt.Errorf("unexpected token at position %d", t.pos)
}

// lookaheadLParen reports whether the token after the current one opens a
// call, distinguishing SUM(...) from a field literally named "sum".
func (p *parser) lookaheadLParen() bool {
	return p.toks[p.pos+1].kind == tokLParen
}

// collectGroup consumes the current ident + "(" and returns the tokens up
// to the matching ")", which is consumed as well.
func (p *parser) collectGroup() ([]token, error) {
	p.next() // function ident
	open := p.next()
	if open.kind != tokLParen {
		return nil, fmt.Errorf("expected '(' at position %d", open.pos)
	}
	depth := 1
	start := p.pos
	for {
		t := p.next()
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth == 0 {
				return p.toks[start : p.pos-1], nil
			}
		case tokEOF:
			return nil, fmt.Errorf("missing closing parenthesis at position %d", open.pos)
		}
	}
}

func (p *parser) parseAggregateInner() (InnerExpr, error) {
	group, err := p.collectGroup()
	if err != nil {
		return nil, err
	}
	return parseInner(group)
}

func (p *parser) parseCount() (Node, error) {
	group, err := p.collectGroup()
	if err != nil {
		return nil, err
	}
	if len(group) == 1 && group[0].kind == tokStar {
		return CountStar{}, nil
	}
	if len(group) > 0 && group[0].isKeyword("CASE") {
		cond, err := parseCaseCondition(group)
		if err != nil {
			return nil, err
		}
		return CountCaseWhen{Cond: cond}, nil
	}
	return nil, fmt.Errorf("unsupported COUNT argument")
}

// parseNullif unwraps NULLIF(expr, 0) to expr. The zero guard is enforced
// by the Ratio node at evaluation time.
func (p *parser) parseNullif() (Node, error) {
	group, err := p.collectGroup()
	if err != nil {
		return nil, err
	}
	// Split at the top-level comma
	split := -1
	depth := 0
	for i, t := range group {
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		case tokComma:
			if depth == 0 {
				split = i
			}
		}
		if split >= 0 {
			break
		}
	}
	if split < 0 {
		return nil, fmt.Errorf("NULLIF requires two arguments")
	}
	sub := &parser{toks: append(append([]token{}, group[:split]...), token{kind: tokEOF})}
	node, err := sub.parseExpression()
	if err != nil {
		return nil, err
	}
	if sub.peek().kind != tokEOF {
		return nil, fmt.Errorf("invalid NULLIF expression")
	}
	return node, nil
}

// parseInner parses the per-record expression inside SUM(...)/AVG(...),
// trying the supported shapes in order: CASE WHEN, subtraction, product,
// bare field, constant.
func parseInner(toks []token) (InnerExpr, error) {
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty aggregate argument")
	}
	if toks[0].isKeyword("CASE") {
		return parseCaseShape(toks), nil
	}

	// First '-' splits the expression; one subtraction level only
	for i, t := range toks {
		if t.kind == tokMinus && i > 0 {
			a, err := parseOperand(toks[:i])
			if err != nil {
				return nil, err
			}
			b, err := parseOperand(toks[i+1:])
			if err != nil {
				return nil, err
			}
			return FieldDiff{A: a, B: b}, nil
		}
	}

	// Product of all '*'-separated operands
	if containsKind(toks, tokStar) {
		var operands []innerOperand
		start := 0
		for i := 0; i <= len(toks); i++ {
			if i == len(toks) || toks[i].kind == tokStar {
				op, err := parseOperand(toks[start:i])
				if err != nil {
					return nil, err
				}
				operands = append(operands, op)
				start = i + 1
			}
		}
		return FieldProduct{Operands: operands}, nil
	}

	op, err := parseOperand(toks)
	if err != nil {
		return nil, err
	}
	if op.isField {
		return FieldRef{Field: op.field}, nil
	}
	return InnerConst{Value: op.constant}, nil
}

func containsKind(toks []token, kind tokenKind) bool {
	for _, t := range toks {
		if t.kind == kind {
			return true
		}
	}
	return false
}

// parseOperand accepts a single field name or numeric constant, with
// optional wrapping parentheses (as in "ead * (risk_weight / 100)" the
// operand parentheses are stripped before this is called at the outer
// level; here we unwrap simple cases like "(risk_weight)").
func parseOperand(toks []token) (innerOperand, error) {
	for len(toks) >= 3 && toks[0].kind == tokLParen && toks[len(toks)-1].kind == tokRParen {
		toks = toks[1 : len(toks)-1]
	}
	if len(toks) != 1 {
		return innerOperand{}, fmt.Errorf("unsupported aggregate operand")
	}
	switch toks[0].kind {
	case tokIdent:
		return innerOperand{isField: true, field: toks[0].text}, nil
	case tokNumber:
		return innerOperand{constant: toks[0].num}, nil
	}
	return innerOperand{}, fmt.Errorf("unsupported aggregate operand")
}

// parseCaseShape matches the single supported CASE form:
//
//	CASE WHEN status = "X" THEN fieldA ELSE constB END
//
// Any deviation from that shape degrades to a per-record zero instead of
// failing the formula; user-authored CASE variants the engine cannot
// express must not take down the containing aggregate.
func parseCaseShape(toks []token) InnerExpr {
	i := 0
	eat := func(check func(token) bool) (token, bool) {
		if i < len(toks) && check(toks[i]) {
			t := toks[i]
			i++
			return t, true
		}
		return token{}, false
	}

	if _, ok := eat(func(t token) bool { return t.isKeyword("CASE") }); !ok {
		return InnerZero{}
	}
	if _, ok := eat(func(t token) bool { return t.isKeyword("WHEN") }); !ok {
		return InnerZero{}
	}
	cond, ok := eat(func(t token) bool { return t.isKeyword("status") })
	if !ok {
		return InnerZero{}
	}
	if _, ok := eat(func(t token) bool { return t.kind == tokEq }); !ok {
		return InnerZero{}
	}
	match, ok := eat(func(t token) bool { return t.kind == tokString })
	if !ok {
		return InnerZero{}
	}
	if _, ok := eat(func(t token) bool { return t.isKeyword("THEN") }); !ok {
		return InnerZero{}
	}
	thenField, ok := eat(func(t token) bool { return t.kind == tokIdent })
	if !ok {
		return InnerZero{}
	}
	if _, ok := eat(func(t token) bool { return t.isKeyword("ELSE") }); !ok {
		return InnerZero{}
	}
	negative := false
	if _, ok := eat(func(t token) bool { return t.kind == tokMinus }); ok {
		negative = true
	}
	elseConst, ok := eat(func(t token) bool { return t.kind == tokNumber })
	if !ok {
		return InnerZero{}
	}
	if _, ok := eat(func(t token) bool { return t.isKeyword("END") }); !ok {
		return InnerZero{}
	}
	if i != len(toks) {
		return InnerZero{}
	}
	value := elseConst.num
	if negative {
		value = -value
	}
	return CaseWhenStatusEquals{
		CondField: cond.text,
		Match:     match.text,
		ThenField: thenField.text,
		ElseConst: value,
	}
}

// parseCaseCondition parses the condition of COUNT(CASE WHEN <cond> ...).
// A trailing "THEN 1 END" (or any THEN tail) is tolerated and ignored;
// only the condition decides whether a record is counted.
func parseCaseCondition(toks []token) (Condition, error) {
	i := 0
	if i >= len(toks) || !toks[i].isKeyword("CASE") {
		return Condition{}, fmt.Errorf("expected CASE")
	}
	i++
	if i >= len(toks) || !toks[i].isKeyword("WHEN") {
		return Condition{}, fmt.Errorf("expected WHEN")
	}
	i++
	if i >= len(toks) || toks[i].kind != tokIdent {
		return Condition{}, fmt.Errorf("expected field name in condition")
	}
	field := toks[i].text
	i++
	if i >= len(toks) {
		return Condition{}, fmt.Errorf("incomplete condition")
	}
	var op condOp
	switch toks[i].kind {
	case tokEq:
		op = condEq
	case tokGe:
		op = condGe
	case tokGt:
		op = condGt
	case tokLe:
		op = condLe
	case tokLt:
		op = condLt
	default:
		return Condition{}, fmt.Errorf("unsupported condition operator")
	}
	i++
	if i >= len(toks) {
		return Condition{}, fmt.Errorf("incomplete condition")
	}
	cond := Condition{Field: field, Op: op}
	switch toks[i].kind {
	case tokString:
		cond.IsStr = true
		cond.StrVal = toks[i].text
	case tokNumber:
		cond.NumVal = toks[i].num
	default:
		return Condition{}, fmt.Errorf("unsupported condition value")
	}
	i++
	if i < len(toks) && !toks[i].isKeyword("THEN") {
		return Condition{}, fmt.Errorf("unexpected condition tail")
	}
	return cond, nil
}
