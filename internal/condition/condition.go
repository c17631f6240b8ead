// Package condition implements the closed predicate language used by alarm
// rule conditions: field comparisons combined with AND/OR/NOT. Expressions
// are parsed into a tree and evaluated against a field resolver; there is no
// code execution.
package condition

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolver returns the value of a named field, or false when the field does
// not exist.
type Resolver func(field string) (string, bool)

// Expr is a parsed condition. Evaluation never mutates the expression or the
// resolved values; the same inputs always yield the same result.
type Expr interface {
	Eval(resolve Resolver) (bool, error)
}

type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpGt Op = ">"
	OpLt Op = "<"
	OpGe Op = ">="
	OpLe Op = "<="
)

type compareExpr struct {
	field   string
	op      Op
	literal string
}

func (e compareExpr) Eval(resolve Resolver) (bool, error) {
	value, ok := resolve(e.field)
	if !ok {
		return false, fmt.Errorf("unknown field %q", e.field)
	}

	if lf, lerr := strconv.ParseFloat(strings.TrimSpace(value), 64); lerr == nil {
		if rf, rerr := strconv.ParseFloat(e.literal, 64); rerr == nil {
			return compareFloat(lf, e.op, rf), nil
		}
	}
	return compareString(value, e.op, e.literal)
}

func compareFloat(l float64, op Op, r float64) bool {
	switch op {
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	case OpGt:
		return l > r
	case OpLt:
		return l < r
	case OpGe:
		return l >= r
	default:
		return l <= r
	}
}

func compareString(l string, op Op, r string) (bool, error) {
	lv := strings.ToLower(strings.TrimSpace(l))
	rv := strings.ToLower(strings.TrimSpace(r))
	switch op {
	case OpEq:
		return lv == rv, nil
	case OpNe:
		return lv != rv, nil
	case OpGt:
		return lv > rv, nil
	case OpLt:
		return lv < rv, nil
	case OpGe:
		return lv >= rv, nil
	case OpLe:
		return lv <= rv, nil
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}

type andExpr struct{ left, right Expr }

func (e andExpr) Eval(resolve Resolver) (bool, error) {
	l, err := e.left.Eval(resolve)
	if err != nil {
		return false, err
	}
	if !l {
		return false, nil
	}
	return e.right.Eval(resolve)
}

type orExpr struct{ left, right Expr }

func (e orExpr) Eval(resolve Resolver) (bool, error) {
	l, err := e.left.Eval(resolve)
	if err != nil {
		return false, err
	}
	if l {
		return true, nil
	}
	return e.right.Eval(resolve)
}

type notExpr struct{ inner Expr }

func (e notExpr) Eval(resolve Resolver) (bool, error) {
	v, err := e.inner.Eval(resolve)
	if err != nil {
		return false, err
	}
	return !v, nil
}
