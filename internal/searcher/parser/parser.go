// Package parser builds query expressions from token sequences.
//
// Grammar, from tightest to loosest binding:
//
//	primary := term | "(" expr ")"
//	and     := primary { "&&" primary }   left-associative
//	or      := and { "||" and }           left-associative
//	expr    := or [ "&!" expr ]           right-associative
//
// Operator and parenthesis tokens are reserved: there is no escaping, so
// one of them in a term position is reported as a syntax error rather
// than being searched for literally.
package parser

import (
	"fmt"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
)

// SyntaxError describes a malformed query. Pos is the index of the
// offending token, or len(tokens) when the input ended early.
type SyntaxError struct {
	Pos   int
	Token string
	Msg   string
}

func (e *SyntaxError) Error() string {
	return "syntax error at token " + strconv.Itoa(e.Pos) + ": " + e.Msg
}

func (e *SyntaxError) Unwrap() error {
	return apperrors.ErrSyntax
}

type parser struct {
	tokens []string
	pos    int
}

// Parse builds the expression tree for tokens. The whole sequence must be
// consumed.
func Parse(tokens []string) (Node, error) {
	if len(tokens) == 0 {
		return nil, apperrors.ErrEmptyQuery
	}
	p := &parser{tokens: tokens}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, p.errorf(tok, "unexpected token after expression: %q", tok)
	}
	return n, nil
}

func (p *parser) peek() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (string, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *parser) accept(want string) bool {
	if tok, ok := p.peek(); ok && tok == want {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expr() (Node, error) {
	left, err := p.or()
	if err != nil {
		return nil, err
	}
	if !p.accept(TokenAndNot) {
		return left, nil
	}
	right, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &Binary{Op: OpAndNot, Left: left, Right: right}, nil
}

func (p *parser) or() (Node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.accept(TokenOr) {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) and() (Node, error) {
	left, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.accept(TokenAnd) {
		right, err := p.primary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) primary() (Node, error) {
	tok, ok := p.next()
	if !ok {
		return nil, p.errorf("", "unexpected end of input")
	}
	switch {
	case tok == TokenOpen:
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok {
			return nil, p.errorf("", "expected %q but found end of input", TokenClose)
		}
		if closing != TokenClose {
			return nil, p.errorf(closing, "expected %q but found %q", TokenClose, closing)
		}
		p.pos++
		return inner, nil
	case isOperator(tok):
		p.pos--
		return nil, p.errorf(tok, "unexpected operator %q where a term was expected", tok)
	default:
		return &Term{Text: tok}, nil
	}
}

func (p *parser) errorf(tok string, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: p.pos, Token: tok, Msg: fmt.Sprintf(format, args...)}
}
