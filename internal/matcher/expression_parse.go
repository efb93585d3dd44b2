package matcher

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/nasubidev/splatrecorder/internal/model"
)

// ParseExpression parses the small MatchExpression DSL used by composite
// matcher configuration entries, e.g.:
//
//	matcher(battle_start) and not(matcher(loading))
//	matcher(a) or matcher(b) or matcher(c)
//
// Grammar (lowest to highest precedence): or-expr := and-expr ("or"
// and-expr)*; and-expr := unary ("and" unary)*; unary := "not" unary |
// "matcher(" key ")" | "(" or-expr ")".
func ParseExpression(src string) (Expression, error) {
	p := &exprParser{toks: tokenize(src)}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("matcher: unexpected trailing token %q in expression %q", p.toks[p.pos], src)
	}
	return expr, nil
}

type exprParser struct {
	toks []string
	pos  int
}

func (p *exprParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *exprParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *exprParser) parseOr() (Expression, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	xs := []Expression{first}
	for strings.EqualFold(p.peek(), "or") {
		p.next()
		x, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		xs = append(xs, x)
	}
	if len(xs) == 1 {
		return xs[0], nil
	}
	return Or{Xs: xs}, nil
}

func (p *exprParser) parseAnd() (Expression, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	xs := []Expression{first}
	for strings.EqualFold(p.peek(), "and") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		xs = append(xs, x)
	}
	if len(xs) == 1 {
		return xs[0], nil
	}
	return And{Xs: xs}, nil
}

func (p *exprParser) parseUnary() (Expression, error) {
	switch tok := p.peek(); {
	case strings.EqualFold(tok, "not"):
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	case tok == "(":
		p.next()
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, fmt.Errorf("matcher: expected ')' in expression")
		}
		return x, nil
	case strings.EqualFold(tok, "matcher"):
		p.next()
		if p.next() != "(" {
			return nil, fmt.Errorf("matcher: expected '(' after matcher")
		}
		key := p.next()
		if key == "" || key == ")" {
			return nil, fmt.Errorf("matcher: expected screen key inside matcher(...)")
		}
		if p.next() != ")" {
			return nil, fmt.Errorf("matcher: expected ')' closing matcher(...)")
		}
		return Leaf{Key: model.ScreenKey(key)}, nil
	default:
		return nil, fmt.Errorf("matcher: unexpected token %q in expression", tok)
	}
}

// tokenize splits src into identifier/punctuation tokens, treating "(" and
// ")" as standalone tokens.
func tokenize(src string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range src {
		switch {
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}
