// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"fmt"

	"github.com/canonical/sqltmpl/value"
)

// Scope resolves the first segment of a path to a value.
type Scope interface {
	Lookup(name string) (value.Value, bool)
}

// EvalError is returned when an expression cannot be evaluated against the
// values in scope.
type EvalError struct {
	// Expr is the source form of the expression that failed.
	Expr string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("cannot evaluate %q: %s", e.Expr, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// Evaluate computes the value of e. A path that misses at any segment
// evaluates to Null. Comparisons and logical operators yield Bool values.
func Evaluate(e Expr, s Scope) (value.Value, error) {
	switch e := e.(type) {
	case *Literal:
		return e.Value, nil
	case *Path:
		return lookupPath(e, s), nil
	case *Paren:
		return Evaluate(e.Inner, s)
	case *Binary:
		return evalBinary(e, s)
	}
	return value.Null(), fmt.Errorf("internal error: unknown expression type %T", e)
}

// Truthy evaluates e and reports whether the result counts as true.
func Truthy(e Expr, s Scope) (bool, error) {
	v, err := Evaluate(e, s)
	if err != nil {
		return false, err
	}
	return value.Truthy(v), nil
}

func lookupPath(p *Path, s Scope) value.Value {
	v, ok := s.Lookup(p.Segments[0])
	if !ok {
		return value.Null()
	}
	for _, seg := range p.Segments[1:] {
		v = v.Lookup(seg)
		if v.IsNull() {
			return v
		}
	}
	return v
}

func evalBinary(e *Binary, s Scope) (value.Value, error) {
	left, err := Evaluate(e.Left, s)
	if err != nil {
		return value.Null(), err
	}

	switch e.Op {
	case OpAnd:
		if !value.Truthy(left) {
			return value.Bool(false), nil
		}
		return evalTruthy(e.Right, s)
	case OpOr:
		if value.Truthy(left) {
			return value.Bool(true), nil
		}
		return evalTruthy(e.Right, s)
	}

	right, err := Evaluate(e.Right, s)
	if err != nil {
		return value.Null(), err
	}

	switch e.Op {
	case OpEq:
		return value.Bool(value.Equal(left, right)), nil
	case OpNe:
		return value.Bool(!value.Equal(left, right)), nil
	}

	cmp, err := value.Compare(left, right)
	if err != nil {
		return value.Null(), &EvalError{Expr: e.String(), Err: err}
	}
	switch e.Op {
	case OpLt:
		return value.Bool(cmp < 0), nil
	case OpLe:
		return value.Bool(cmp <= 0), nil
	case OpGt:
		return value.Bool(cmp > 0), nil
	case OpGe:
		return value.Bool(cmp >= 0), nil
	}
	return value.Null(), fmt.Errorf("internal error: unknown operator %d", e.Op)
}

func evalTruthy(e Expr, s Scope) (value.Value, error) {
	ok, err := Truthy(e, s)
	if err != nil {
		return value.Null(), err
	}
	return value.Bool(ok), nil
}
