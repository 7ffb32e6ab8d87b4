// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package parse

import (
	"strconv"
	"strings"

	"github.com/canonical/sqltmpl/internal/expr"
)

// Node is an element of a parsed template. Nodes are never modified once
// Parse has returned, so a Template can be rendered concurrently.
type Node interface {
	// String returns a representation of the node for debugging and testing
	// purposes.
	String() string

	// node is a marker method.
	node()
}

// Template is the parsed form of a template source.
type Template struct {
	Nodes []Node
}

func (t *Template) String() string {
	return "Template[" + joinNodes(t.Nodes) + "]"
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, " ")
}

func body(nodes []Node) string {
	return "{" + joinNodes(nodes) + "}"
}

// Line is one line of template text. Its parts are Text, Bind and Raw
// nodes. Rendered lines are separated from each other by a single space.
type Line struct {
	Number int
	Parts  []Node
}

func (n *Line) String() string {
	return "Line[" + joinNodes(n.Parts) + "]"
}

// Marker function for Node.
func (n *Line) node() {}

// Text is a literal fragment emitted verbatim.
type Text struct {
	Text string
}

func (n *Text) String() string {
	return "Text[" + n.Text + "]"
}

// Marker function for Node.
func (n *Text) node() {}

// Bind is a #{expr} placeholder. It emits a placeholder token and binds the
// value of the expression as a query argument.
type Bind struct {
	Expr expr.Expr
}

func (n *Bind) String() string {
	return "Bind[" + n.Expr.String() + "]"
}

// Marker function for Node.
func (n *Bind) node() {}

// Raw is a ${expr} placeholder. The textual form of the value is written
// into the SQL unescaped, so it must only be used for trusted identifiers.
type Raw struct {
	Expr expr.Expr
}

func (n *Raw) String() string {
	return "Raw[" + n.Expr.String() + "]"
}

// Marker function for Node.
func (n *Raw) node() {}

// If renders Body when Cond is truthy.
type If struct {
	Line int
	Cond expr.Expr
	Body []Node
}

func (n *If) String() string {
	return "If[" + n.Cond.String() + "]" + body(n.Body)
}

// Marker function for Node.
func (n *If) node() {}

// For renders Body once per element of the Array or Map that Source
// evaluates to. Item is bound to the element. Key, when set, is bound to the
// Array index or the Map key.
type For struct {
	Line   int
	Key    string
	Item   string
	Source expr.Expr
	Body   []Node
}

func (n *For) String() string {
	names := n.Item
	if n.Key != "" {
		names = n.Key + ", " + n.Item
	}
	return "For[" + names + " in " + n.Source.String() + "]" + body(n.Body)
}

// Marker function for Node.
func (n *For) node() {}

// Trim renders Body and removes one leading occurrence of Start and one
// trailing occurrence of End, together with the whitespace around them.
// Either token may be empty.
type Trim struct {
	Line  int
	Start string
	End   string
	Body  []Node
}

func (n *Trim) String() string {
	var args []string
	if n.Start != "" {
		args = append(args, "start="+strconv.Quote(n.Start))
	}
	if n.End != "" {
		args = append(args, "end="+strconv.Quote(n.End))
	}
	return "Trim[" + strings.Join(args, " ") + "]" + body(n.Body)
}

// Marker function for Node.
func (n *Trim) node() {}

// Choose renders the body of the first When whose condition is truthy, or
// Otherwise when none is.
type Choose struct {
	Line      int
	Whens     []*When
	Otherwise *Otherwise
}

func (n *Choose) String() string {
	var branches []Node
	for _, w := range n.Whens {
		branches = append(branches, w)
	}
	if n.Otherwise != nil {
		branches = append(branches, n.Otherwise)
	}
	return "Choose" + body(branches)
}

// Marker function for Node.
func (n *Choose) node() {}

// When is a conditional branch of a Choose.
type When struct {
	Line int
	Cond expr.Expr
	Body []Node
}

func (n *When) String() string {
	return "When[" + n.Cond.String() + "]" + body(n.Body)
}

// Marker function for Node.
func (n *When) node() {}

// Otherwise is the fallback branch of a Choose.
type Otherwise struct {
	Line int
	Body []Node
}

func (n *Otherwise) String() string {
	return "Otherwise" + body(n.Body)
}

// Marker function for Node.
func (n *Otherwise) node() {}

// Where renders Body, drops a leading AND or OR and prefixes the result with
// WHERE. Nothing is emitted when the body renders empty.
type Where struct {
	Line int
	Body []Node
}

func (n *Where) String() string {
	return "Where" + body(n.Body)
}

// Marker function for Node.
func (n *Where) node() {}

// Set renders Body, drops a trailing comma and prefixes the result with SET.
// Nothing is emitted when the body renders empty.
type Set struct {
	Line int
	Body []Node
}

func (n *Set) String() string {
	return "Set" + body(n.Body)
}

// Marker function for Node.
func (n *Set) node() {}

// Continue abandons the current iteration of the innermost enclosing For.
type Continue struct {
	Line int
}

func (n *Continue) String() string {
	return "Continue"
}

// Marker function for Node.
func (n *Continue) node() {}
