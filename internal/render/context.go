// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package render

import (
	"github.com/canonical/sqltmpl/value"
)

// RootName is the name a non-Map render argument is bound to.
const RootName = "_"

// Context is a chain of variable frames. Lookups resolve in the innermost
// frame first. A Context is never modified; entering a block creates a child.
type Context struct {
	vars   *value.Object
	parent *Context
}

// NewContext returns a Context whose root frame holds the entries of root
// when it is a Map, or binds root to RootName otherwise.
func NewContext(root value.Value) *Context {
	if root.Kind() == value.MapKind {
		return &Context{vars: root.Object()}
	}
	return &Context{vars: value.NewObject(value.P(RootName, root))}
}

// With returns a child of c that binds the given names.
func (c *Context) With(pairs ...value.Pair) *Context {
	return &Context{vars: value.NewObject(pairs...), parent: c}
}

// Lookup implements expr.Scope.
func (c *Context) Lookup(name string) (value.Value, bool) {
	for f := c; f != nil; f = f.parent {
		if v, ok := f.vars.Get(name); ok {
			return v, true
		}
	}
	return value.Null(), false
}
