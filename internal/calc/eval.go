package calc

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

const (
	maxExprRunes = 4096
	maxDepth     = 200
)

// Error describes a syntax or evaluation failure at a rune offset.
type Error struct {
	Pos int
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (at position %d)", e.Msg, e.Pos)
}

// Eval parses and evaluates src.
func Eval(src string) (float64, error) {
	if utf8.RuneCountInString(src) > maxExprRunes {
		return 0, &Error{Pos: 0, Msg: "expression too long"}
	}
	toks, err := tokenize(src)
	if err != nil {
		return 0, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return 0, &Error{Pos: 0, Msg: "empty expression"}
	}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return 0, &Error{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &Error{Pos: 0, Msg: "result is not a finite number"}
	}
	return v, nil
}

// Format renders v without a fractional part when it is integral.
func Format(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type parser struct {
	toks  []token
	pos   int
	depth int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return &Error{Pos: p.peek().pos, Msg: "expression nested too deeply"}
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) expr() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if t.text == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		if t.text == "*" {
			left *= right
			continue
		}
		if right == 0 {
			return 0, &Error{Pos: t.pos, Msg: "division by zero"}
		}
		left /= right
	}
}

func (p *parser) unary() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.next()
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		if t.text == "-" {
			return -v, nil
		}
		return v, nil
	}
	return p.power()
}

func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	t := p.peek()
	if t.kind != tokOp || t.text != "^" {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *parser) primary() (float64, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return t.num, nil
	case tokLParen:
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if c := p.next(); c.kind != tokRParen {
			return 0, &Error{Pos: c.pos, Msg: "expected ')'"}
		}
		return v, nil
	case tokName:
		return p.name(t)
	case tokEOF:
		return 0, &Error{Pos: t.pos, Msg: "unexpected end of expression"}
	default:
		return 0, &Error{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
}

func (p *parser) name(t token) (float64, error) {
	if p.peek().kind != tokLParen {
		if v, ok := constants[t.text]; ok {
			return v, nil
		}
		if _, ok := functions[t.text]; ok {
			return 0, &Error{Pos: t.pos, Msg: fmt.Sprintf("function %s must be called", t.text)}
		}
		return 0, &Error{Pos: t.pos, Msg: fmt.Sprintf("name %q is not allowed", t.text)}
	}

	fn, ok := functions[t.text]
	if !ok {
		return 0, &Error{Pos: t.pos, Msg: fmt.Sprintf("function %q is not allowed", t.text)}
	}
	p.next() // (

	var args []float64
	if p.peek().kind != tokRParen {
		for {
			v, err := p.expr()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if c := p.next(); c.kind != tokRParen {
		return 0, &Error{Pos: c.pos, Msg: "expected ')' after arguments"}
	}

	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return 0, &Error{Pos: t.pos, Msg: fmt.Sprintf("%s: wrong number of arguments (%d)", t.text, len(args))}
	}
	v, err := fn.fn(args)
	if err != nil {
		return 0, &Error{Pos: t.pos, Msg: fmt.Sprintf("%s: %v", t.text, err)}
	}
	return v, nil
}
