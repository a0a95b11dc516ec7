package formula

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokLParen
	tokRParen
	tokComma
	tokOp
)

type token struct {
	kind tokenKind
	text string
}

// lex tokenizes a formula expression. Identifiers are returned raw (e.g.
// "R12", "CUMSUM", "T.DiM"); the parser decides whether an identifier is a
// reference or a function name based on what follows it.
func lex(expr string) ([]token, error) {
	var toks []token
	r := []rune(expr)
	n := len(r)
	i := 0

	for i < n {
		c := r[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++

		case c == '&' && i+1 < n && r[i+1] == '&':
			toks = append(toks, token{tokOp, "&&"})
			i += 2
		case c == '|' && i+1 < n && r[i+1] == '|':
			toks = append(toks, token{tokOp, "||"})
			i += 2
		case c == '=' && i+1 < n && r[i+1] == '=':
			toks = append(toks, token{tokOp, "=="})
			i += 2
		case c == '!' && i+1 < n && r[i+1] == '=':
			toks = append(toks, token{tokOp, "!="})
			i += 2
		case c == '<' && i+1 < n && r[i+1] == '=':
			toks = append(toks, token{tokOp, "<="})
			i += 2
		case c == '>' && i+1 < n && r[i+1] == '=':
			toks = append(toks, token{tokOp, ">="})
			i += 2
		case c == '!':
			toks = append(toks, token{tokOp, "!"})
			i++
		case strings.ContainsRune("+-*/^%<>", c):
			toks = append(toks, token{tokOp, string(c)})
			i++

		case isDigit(c) || (c == '.' && i+1 < n && isDigit(r[i+1])):
			j := i
			for j < n && (isDigit(r[j]) || r[j] == '.') {
				j++
			}
			// Scientific notation, e.g. 1e-5
			if j < n && (r[j] == 'e' || r[j] == 'E') {
				k := j + 1
				if k < n && (r[k] == '+' || r[k] == '-') {
					k++
				}
				if k < n && isDigit(r[k]) {
					for k < n && isDigit(r[k]) {
						k++
					}
					j = k
				}
			}
			toks = append(toks, token{tokNumber, string(r[i:j])})
			i = j

		case isIdentStart(c):
			j := i
			for j < n && isIdentPart(r[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, string(r[i:j])})
			i = j

		default:
			return nil, fmt.Errorf("formula: unexpected character %q at position %d", c, i)
		}
	}

	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }

func isIdentStart(c rune) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_'
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}
