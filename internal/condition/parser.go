package condition

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Parse compiles a condition string into an expression tree.
//
// Grammar:
//
//	expr    := or
//	or      := and (OR and)*
//	and     := unary (AND unary)*
//	unary   := [NOT] primary
//	primary := '(' expr ')' | IDENT op literal
//	op      := == | != | >= | <= | > | <
//	literal := 'string' | "string" | number | bareword
//
// AND/OR/NOT are case-insensitive; && || ! are accepted as aliases.
func Parse(input string) (Expr, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, errors.New("empty condition")
	}
	p := &parser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("unexpected %q", p.peek().text)
	}
	return expr, nil
}

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenString
	tokenOp
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
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
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, errors.New("unterminated string literal")
			}
			tokens = append(tokens, token{tokenString, string(runes[i+1 : j])})
			i = j + 1
		case r == '=' || r == '!' || r == '>' || r == '<':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{tokenOp, string(runes[i : i+2])})
				i += 2
				continue
			}
			switch r {
			case '>', '<':
				tokens = append(tokens, token{tokenOp, string(r)})
			case '!':
				tokens = append(tokens, token{tokenNot, "!"})
			default:
				return nil, errors.New("single '=' is not an operator, use '=='")
			}
			i++
		case r == '&':
			if i+1 >= len(runes) || runes[i+1] != '&' {
				return nil, errors.New("single '&' is not an operator, use '&&'")
			}
			tokens = append(tokens, token{tokenAnd, "&&"})
			i += 2
		case r == '|':
			if i+1 >= len(runes) || runes[i+1] != '|' {
				return nil, errors.New("single '|' is not an operator, use '||'")
			}
			tokens = append(tokens, token{tokenOr, "||"})
			i += 2
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '.' || runes[j] == '-') {
				j++
			}
			word := string(runes[i:j])
			switch strings.ToUpper(word) {
			case "AND":
				tokens = append(tokens, token{tokenAnd, word})
			case "OR":
				tokens = append(tokens, token{tokenOr, word})
			case "NOT":
				tokens = append(tokens, token{tokenNot, word})
			default:
				tokens = append(tokens, token{tokenIdent, word})
			}
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", string(r))
		}
	}
	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) atEnd() bool    { return p.pos >= len(p.tokens) }
func (p *parser) peek() token    { return p.tokens[p.pos] }
func (p *parser) advance() token { t := p.tokens[p.pos]; p.pos++; return t }

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for !p.atEnd() && p.peek().kind == tokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for !p.atEnd() && p.peek().kind == tokenAnd {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if !p.atEnd() && p.peek().kind == tokenNot {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	if p.atEnd() {
		return nil, errors.New("unexpected end of condition")
	}

	if p.peek().kind == tokenLParen {
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.atEnd() || p.peek().kind != tokenRParen {
			return nil, errors.New("missing closing parenthesis")
		}
		p.advance()
		return expr, nil
	}

	field := p.advance()
	if field.kind != tokenIdent {
		return nil, fmt.Errorf("expected field name, got %q", field.text)
	}
	if p.atEnd() {
		return nil, fmt.Errorf("expected operator after field %q", field.text)
	}
	op := p.advance()
	if op.kind != tokenOp {
		return nil, fmt.Errorf("expected comparison operator, got %q", op.text)
	}
	if p.atEnd() {
		return nil, errors.New("expected literal after operator")
	}
	lit := p.advance()
	switch lit.kind {
	case tokenIdent, tokenString:
	default:
		return nil, fmt.Errorf("expected literal, got %q", lit.text)
	}

	return compareExpr{field: field.text, op: Op(op.text), literal: lit.text}, nil
}
