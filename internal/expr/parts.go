// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"strconv"
	"strings"

	"github.com/canonical/sqltmpl/value"
)

// Expr is a node of a parsed expression. Expressions are immutable after
// parsing and may be evaluated concurrently.
type Expr interface {
	// String returns the expression in source form for error messages and
	// testing purposes.
	String() string

	// expr is a marker method.
	expr()
}

// Op is a binary operator.
type Op int

const (
	OpOr Op = iota
	OpAnd
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var opStrings = [...]string{
	OpOr:  "||",
	OpAnd: "&&",
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
}

func (op Op) String() string {
	return opStrings[op]
}

// Literal is a constant: null, a boolean, a number or a quoted string.
type Literal struct {
	Value value.Value
}

func (e *Literal) String() string {
	if e.Value.Kind() == value.StringKind {
		return strconv.Quote(e.Value.Text())
	}
	return e.Value.String()
}

// Marker function for Expr.
func (e *Literal) expr() {}

// Path is a dotted variable reference such as "a.b.c". The first segment
// names a variable in scope, following segments select Map keys or Array
// indexes.
type Path struct {
	Segments []string
}

func (e *Path) String() string {
	return strings.Join(e.Segments, ".")
}

// Marker function for Expr.
func (e *Path) expr() {}

// Binary is an operator applied to two operands.
type Binary struct {
	Op          Op
	Left, Right Expr
}

func (e *Binary) String() string {
	return e.Left.String() + " " + e.Op.String() + " " + e.Right.String()
}

// Marker function for Expr.
func (e *Binary) expr() {}

// Paren is a parenthesised sub-expression. It is kept in the tree so that
// String reproduces the grouping.
type Paren struct {
	Inner Expr
}

func (e *Paren) String() string {
	return "(" + e.Inner.String() + ")"
}

// Marker function for Expr.
func (e *Paren) expr() {}
