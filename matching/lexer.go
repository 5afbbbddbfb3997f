package matching

import (
	"strings"
	"unicode"

	"github.com/geonexus/extractd/errors"
)

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenString
	tokenNumber
	tokenOperator
	tokenLParen
	tokenRParen
	tokenComma
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(predicate string) ([]token, error) {
	var tokens []token
	runes := []rune(predicate)

	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == '(':
			tokens = append(tokens, token{tokenLParen, "("})
			i++
		case r == ')':
			tokens = append(tokens, token{tokenRParen, ")"})
			i++
		case r == ',':
			tokens = append(tokens, token{tokenComma, ","})
			i++

		case r == '"' || r == '\'':
			quote := r
			var sb strings.Builder
			i++
			for i < len(runes) && runes[i] != quote {
				sb.WriteRune(runes[i])
				i++
			}
			if i >= len(runes) {
				return nil, errors.New("unterminated string literal in predicate")
			}
			i++
			tokens = append(tokens, token{tokenString, sb.String()})

		case r == '=' || r == '!' || r == '<' || r == '>':
			op := string(r)
			if i+1 < len(runes) && runes[i+1] == '=' {
				op += "="
				i++
			}
			i++
			if op == "=" || op == "!" {
				return nil, errors.Newf("invalid operator %q in predicate", op)
			}
			tokens = append(tokens, token{tokenOperator, op})

		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			i++
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, token{tokenNumber, string(runes[start:i])})

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, token{tokenIdent, string(runes[start:i])})

		default:
			return nil, errors.Newf("unexpected character %q in predicate", string(r))
		}
	}

	return tokens, nil
}
