package calc

import (
	"fmt"
	"strconv"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokName
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func tokenize(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			start := i
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			// Exponent only when digits follow, so "2e" stays a name error.
			if i < len(rs) && (rs[i] == 'e' || rs[i] == 'E') {
				j := i + 1
				if j < len(rs) && (rs[j] == '+' || rs[j] == '-') {
					j++
				}
				if j < len(rs) && unicode.IsDigit(rs[j]) {
					for j < len(rs) && unicode.IsDigit(rs[j]) {
						j++
					}
					i = j
				}
			}
			text := string(rs[start:i])
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &Error{Pos: start, Msg: fmt.Sprintf("invalid number %q", text)}
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: v, pos: start})
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(rs) && (rs[i] == '_' || unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i])) {
				i++
			}
			toks = append(toks, token{kind: tokName, text: string(rs[start:i]), pos: start})
		case r == '*' && i+1 < len(rs) && rs[i+1] == '*':
			toks = append(toks, token{kind: tokOp, text: "^", pos: i})
			i += 2
		case r == '+' || r == '-' || r == '*' || r == '/' || r == '^':
			toks = append(toks, token{kind: tokOp, text: string(r), pos: i})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		default:
			return nil, &Error{Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(rs)}), nil
}
