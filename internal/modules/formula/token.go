// Package formula implements the expression mini-language used by dashboard
// formulas: aggregate calls (SUM/AVG/COUNT), per-record arithmetic inside
// aggregates, addition of terms, and a guarded ratio with optional percent
// scaling. Expressions are parsed into an explicit AST and evaluated by a
// tree walk over an immutable record snapshot.
package formula

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokLParen
	tokRParen
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokComma
	tokEq
	tokGe
	tokGt
	tokLe
	tokLt
)

type token struct {
	kind tokenKind
	text string  // raw text for idents/strings
	num  float64 // parsed value for numbers
	pos  int
}

// tokenize splits an expression into tokens. Identifiers follow
// [a-zA-Z_][a-zA-Z0-9_]*; string literals accept single or double quotes.
func tokenize(expr string) ([]token, error) {
	var toks []token
	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, pos: i})
			i++
		case c == '+':
			toks = append(toks, token{kind: tokPlus, pos: i})
			i++
		case c == '-':
			toks = append(toks, token{kind: tokMinus, pos: i})
			i++
		case c == '*':
			toks = append(toks, token{kind: tokStar, pos: i})
			i++
		case c == '/':
			toks = append(toks, token{kind: tokSlash, pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, pos: i})
			i++
		case c == '=':
			toks = append(toks, token{kind: tokEq, pos: i})
			i++
		case c == '>':
			if i+1 < len(runes) && runes[i+1] == '=' {
				toks = append(toks, token{kind: tokGe, pos: i})
				i += 2
			} else {
				toks = append(toks, token{kind: tokGt, pos: i})
				i++
			}
		case c == '<':
			if i+1 < len(runes) && runes[i+1] == '=' {
				toks = append(toks, token{kind: tokLe, pos: i})
				i += 2
			} else {
				toks = append(toks, token{kind: tokLt, pos: i})
				i++
			}
		case c == '"' || c == '\'':
			quote := c
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string literal at position %d", i)
			}
			toks = append(toks, token{kind: tokString, text: string(runes[i+1 : j]), pos: i})
			i = j + 1
		case unicode.IsDigit(c) || c == '.':
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			value, err := strconv.ParseFloat(string(runes[i:j]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", string(runes[i:j]), i)
			}
			toks = append(toks, token{kind: tokNumber, num: value, pos: i})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: string(runes[i:j]), pos: i})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(runes)})
	return toks, nil
}

// isKeyword reports whether an ident token matches a keyword,
// case-insensitively (users write both "sum(x)" and "SUM(x)").
func (t token) isKeyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

// stripOuterParens removes balanced parentheses wrapping the entire
// expression. The outer pair is only stripped when the inner substring's
// paren balance never goes negative and ends at exactly zero; this keeps
// "(a) + (b)" intact while unwrapping "((a + b))".
func stripOuterParens(expr string) string {
	for {
		trimmed := strings.TrimSpace(expr)
		if len(trimmed) < 2 || trimmed[0] != '(' || trimmed[len(trimmed)-1] != ')' {
			return trimmed
		}
		inner := trimmed[1 : len(trimmed)-1]
		depth := 0
		balanced := true
		for _, c := range inner {
			switch c {
			case '(':
				depth++
			case ')':
				depth--
				if depth < 0 {
					balanced = false
				}
			}
			if !balanced {
				break
			}
		}
		if !balanced || depth != 0 {
			return trimmed
		}
		expr = inner
	}
}
