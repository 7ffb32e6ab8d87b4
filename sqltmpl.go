// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqltmpl

import (
	"log/slog"
	"sync/atomic"

	"github.com/canonical/sqltmpl/internal/expr"
	"github.com/canonical/sqltmpl/internal/parse"
	"github.com/canonical/sqltmpl/internal/render"
	"github.com/canonical/sqltmpl/value"
)

// ParseError is returned by [Compile] for a malformed template. Line is the
// 1-based line of the offending directive or text.
type ParseError = parse.Error

// EvalError is returned by [Template.Render] when an expression cannot be
// evaluated, for example when ordering a string against a number or
// iterating over a scalar.
type EvalError = expr.EvalError

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.DiscardHandler))
}

// SetLogger sets the logger used for debug records about compiled templates
// and executed queries. Nothing is logged by default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	logger.Store(l)
}

func getLogger() *slog.Logger {
	return logger.Load()
}

// templates is the process-wide cache of compiled templates.
var templates = newTemplateCache()

// Template is a compiled template. It is immutable and can be rendered from
// any number of goroutines.
type Template struct {
	src  string
	tree *parse.Template
}

// Compile parses a template. Templates are cached by their source text, so
// compiling the same text again returns the same Template without parsing.
func Compile(src string) (*Template, error) {
	return templates.compile(src)
}

// MustCompile is the same as [Compile] except that it panics on error.
func MustCompile(src string) *Template {
	t, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return t
}

// Source returns the text the template was compiled from.
func (t *Template) Source() string {
	return t.src
}

// Render executes the template against arg. It returns the SQL, with one
// placeholder in the style of ph per bound argument, and the bound arguments
// in the order their placeholders appear.
//
// When arg is a Map its entries are the template's variables. Any other
// value is bound to the name "_".
func (t *Template) Render(arg value.Value, ph Placeholder) (string, []value.Value, error) {
	if ph == nil {
		ph = Question
	}
	return render.Render(t.tree, arg, ph)
}

// RenderGo converts arg with [value.FromGo] and renders the template against
// the result. Structs are converted using their db tags.
func (t *Template) RenderGo(arg any, ph Placeholder) (string, []value.Value, error) {
	v, err := value.FromGo(arg)
	if err != nil {
		return "", nil, err
	}
	return t.Render(v, ph)
}
