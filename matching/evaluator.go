// Package matching routes imported requests to processes by evaluating the
// ordered rule predicates of their connector.
package matching

import (
	"strconv"
	"strings"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/errors"
)

// Evaluate runs a rule predicate against a request and reports whether it
// matches. The predicate grammar supports comparisons (==, !=, <, <=, >, >=),
// membership tests (IN, NOT IN), boolean combinators (AND, OR) and
// parentheses. Operands are the request's built-in fields (orderLabel,
// client, perimeter) and its custom order parameters by name.
func Evaluate(predicate string, request *domain.Request) (bool, error) {
	tokens, err := tokenize(predicate)
	if err != nil {
		return false, err
	}

	p := &parser{tokens: tokens, bindings: requestBindings(request)}
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if !p.atEnd() {
		return false, errors.Newf("unexpected token %q in predicate", p.peek().text)
	}
	return result, nil
}

func requestBindings(request *domain.Request) map[string]value {
	bindings := map[string]value{
		"orderlabel": stringValue(request.OrderLabel),
		"client":     stringValue(request.Client),
		"perimeter":  stringValue(request.Perimeter),
	}

	for key, raw := range request.ParameterValues() {
		bindings[strings.ToLower(key)] = fromParameter(raw)
	}

	return bindings
}

type valueKind int

const (
	kindString valueKind = iota
	kindNumber
	kindBool
)

type value struct {
	kind valueKind
	str  string
	num  float64
	b    bool
}

func stringValue(s string) value { return value{kind: kindString, str: s} }
func numberValue(f float64) value {
	return value{kind: kindNumber, num: f}
}
func boolValue(b bool) value { return value{kind: kindBool, b: b} }

func fromParameter(raw interface{}) value {
	switch typed := raw.(type) {
	case string:
		return stringValue(typed)
	case float64:
		return numberValue(typed)
	case bool:
		return boolValue(typed)
	default:
		return stringValue("")
	}
}

// equal applies loose comparison: numbers compare numerically, booleans as
// booleans, everything else as strings. A string that parses as a number
// compares numerically against a number.
func (v value) equal(other value) bool {
	if n1, ok := v.asNumber(); ok {
		if n2, ok := other.asNumber(); ok {
			return n1 == n2
		}
	}
	if v.kind == kindBool || other.kind == kindBool {
		return v.kind == other.kind && v.b == other.b
	}
	return v.asString() == other.asString()
}

func (v value) asNumber() (float64, bool) {
	switch v.kind {
	case kindNumber:
		return v.num, true
	case kindString:
		n, err := strconv.ParseFloat(v.str, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func (v value) asString() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

type parser struct {
	tokens   []token
	pos      int
	bindings map[string]value
}

func (p *parser) atEnd() bool { return p.pos >= len(p.tokens) }
func (p *parser) peek() token { return p.tokens[p.pos] }
func (p *parser) advance() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) matchKeyword(word string) bool {
	if p.atEnd() {
		return false
	}
	t := p.peek()
	if t.kind == tokenIdent && strings.EqualFold(t.text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (bool, error) {
	result, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for p.matchKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		result = result || right
	}
	return result, nil
}

func (p *parser) parseAnd() (bool, error) {
	result, err := p.parsePrimary()
	if err != nil {
		return false, err
	}
	for p.matchKeyword("AND") {
		right, err := p.parsePrimary()
		if err != nil {
			return false, err
		}
		result = result && right
	}
	return result, nil
}

func (p *parser) parsePrimary() (bool, error) {
	if p.atEnd() {
		return false, errors.New("predicate ended unexpectedly")
	}

	if p.peek().kind == tokenLParen {
		p.advance()
		result, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if p.atEnd() || p.peek().kind != tokenRParen {
			return false, errors.New("missing closing parenthesis")
		}
		p.advance()
		return result, nil
	}

	return p.parseComparison()
}

func (p *parser) parseComparison() (bool, error) {
	left, err := p.parseOperand()
	if err != nil {
		return false, err
	}

	if p.matchKeyword("NOT") {
		if !p.matchKeyword("IN") {
			return false, errors.New("expected IN after NOT")
		}
		member, err := p.parseMembership(left)
		if err != nil {
			return false, err
		}
		return !member, nil
	}
	if p.matchKeyword("IN") {
		return p.parseMembership(left)
	}

	if p.atEnd() || p.peek().kind != tokenOperator {
		return false, errors.New("expected comparison operator")
	}
	op := p.advance().text

	right, err := p.parseOperand()
	if err != nil {
		return false, err
	}

	return compare(left, op, right)
}

func (p *parser) parseMembership(left value) (bool, error) {
	if p.atEnd() || p.peek().kind != tokenLParen {
		return false, errors.New("expected parenthesized list after IN")
	}
	p.advance()

	member := false
	for {
		item, err := p.parseOperand()
		if err != nil {
			return false, err
		}
		if left.equal(item) {
			member = true
		}

		if p.atEnd() {
			return false, errors.New("unterminated IN list")
		}
		next := p.advance()
		if next.kind == tokenRParen {
			return member, nil
		}
		if next.kind != tokenComma {
			return false, errors.Newf("unexpected token %q in IN list", next.text)
		}
	}
}

func (p *parser) parseOperand() (value, error) {
	if p.atEnd() {
		return value{}, errors.New("predicate ended unexpectedly")
	}

	t := p.advance()
	switch t.kind {
	case tokenString:
		return stringValue(t.text), nil
	case tokenNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return value{}, errors.Wrapf(err, "invalid number %q", t.text)
		}
		return numberValue(n), nil
	case tokenIdent:
		if strings.EqualFold(t.text, "true") {
			return boolValue(true), nil
		}
		if strings.EqualFold(t.text, "false") {
			return boolValue(false), nil
		}
		bound, ok := p.bindings[strings.ToLower(t.text)]
		if !ok {
			return value{}, errors.Newf("unknown field %q", t.text)
		}
		return bound, nil
	default:
		return value{}, errors.Newf("unexpected token %q", t.text)
	}
}

func compare(left value, op string, right value) (bool, error) {
	switch op {
	case "==":
		return left.equal(right), nil
	case "!=":
		return !left.equal(right), nil
	}

	// Relational operators require numeric operands
	l, lok := left.asNumber()
	r, rok := right.asNumber()
	if !lok || !rok {
		return false, errors.Newf("operator %s requires numeric operands", op)
	}

	switch op {
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	default:
		return false, errors.Newf("unknown operator %q", op)
	}
}
