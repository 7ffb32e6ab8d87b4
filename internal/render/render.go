// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package render

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/canonical/sqltmpl/internal/expr"
	"github.com/canonical/sqltmpl/internal/parse"
	"github.com/canonical/sqltmpl/value"
)

// Placeholder formats the token written into the SQL for the n-th bound
// argument. n starts at 1.
type Placeholder interface {
	Placeholder(n int) string
}

// PlaceholderFunc adapts a function to the Placeholder interface.
type PlaceholderFunc func(n int) string

func (f PlaceholderFunc) Placeholder(n int) string {
	return f(n)
}

// piece is either literal SQL text or a bound argument whose placeholder is
// numbered when the output is assembled. Keeping binds apart from the text
// means trimming can never cut into a placeholder, and arguments from
// discarded output never reach the argument list.
type piece struct {
	text string
	bind bool
	arg  value.Value
}

type fragment []piece

func (f fragment) empty() bool {
	for _, p := range f {
		if p.bind || p.text != "" {
			return false
		}
	}
	return true
}

// endsInSpace reports whether f ends with whitespace text. A trailing bind
// counts as non-space.
func (f fragment) endsInSpace() bool {
	if len(f) == 0 {
		return false
	}
	last := f[len(f)-1]
	return !last.bind && strings.TrimRightFunc(last.text, unicode.IsSpace) != last.text
}

func (f fragment) startsWithSpace() bool {
	if len(f) == 0 {
		return false
	}
	first := f[0]
	return !first.bind && strings.TrimLeftFunc(first.text, unicode.IsSpace) != first.text
}

// add appends src to f, separating them with a single space unless either
// side already provides whitespace.
func (f *fragment) add(src fragment) {
	if src.empty() {
		return
	}
	if len(*f) > 0 && !f.endsInSpace() && !src.startsWithSpace() {
		*f = append(*f, piece{text: " "})
	}
	for _, p := range src {
		if p.bind || p.text != "" {
			*f = append(*f, p)
		}
	}
}

// trimSpace removes leading and trailing whitespace text.
func (f fragment) trimSpace() fragment {
	for len(f) > 0 && !f[0].bind {
		t := strings.TrimLeftFunc(f[0].text, unicode.IsSpace)
		if t != "" {
			f = append(fragment{{text: t}}, f[1:]...)
			break
		}
		f = f[1:]
	}
	for len(f) > 0 && !f[len(f)-1].bind {
		t := strings.TrimRightFunc(f[len(f)-1].text, unicode.IsSpace)
		if t != "" {
			f = append(f[:len(f)-1:len(f)-1], piece{text: t})
			break
		}
		f = f[:len(f)-1]
	}
	return f
}

// trimSuffix removes one trailing occurrence of tok together with the
// whitespace around it. A trailing bind never matches.
func (f fragment) trimSuffix(tok string) fragment {
	f = f.trimSpace()
	if tok == "" || len(f) == 0 || f[len(f)-1].bind {
		return f
	}
	last := f[len(f)-1].text
	if !strings.HasSuffix(last, tok) {
		return f
	}
	f = append(f[:len(f)-1:len(f)-1], piece{text: last[:len(last)-len(tok)]})
	return f.trimSpace()
}

// trimPrefix removes one leading occurrence of tok together with the
// whitespace around it. A leading bind never matches.
func (f fragment) trimPrefix(tok string) fragment {
	f = f.trimSpace()
	if tok == "" || len(f) == 0 || f[0].bind {
		return f
	}
	first := f[0].text
	if !strings.HasPrefix(first, tok) {
		return f
	}
	f = append(fragment{{text: first[len(tok):]}}, f[1:]...)
	return f.trimSpace()
}

// trimPrefixWord removes a leading keyword from f, ignoring case. The
// keyword must be followed by whitespace, a parenthesis or the end of its
// text so that a column such as "order_id" is left alone.
func (f fragment) trimPrefixWord(words ...string) fragment {
	f = f.trimSpace()
	if len(f) == 0 || f[0].bind {
		return f
	}
	first := f[0].text
	for _, w := range words {
		if len(first) < len(w) || !strings.EqualFold(first[:len(w)], w) {
			continue
		}
		rest := first[len(w):]
		if rest != "" && rest[0] != '(' && !unicode.IsSpace(rune(rest[0])) {
			continue
		}
		return append(fragment{{text: rest}}, f[1:]...).trimSpace()
	}
	return f
}

// assemble numbers the placeholders and collects the arguments in the order
// they appear in the SQL.
func (f fragment) assemble(ph Placeholder) (string, []value.Value) {
	var sb strings.Builder
	args := []value.Value{}
	for _, p := range f {
		if !p.bind {
			sb.WriteString(p.text)
			continue
		}
		args = append(args, p.arg)
		sb.WriteString(ph.Placeholder(len(args)))
	}
	return sb.String(), args
}

// errContinue abandons the current iteration of a for block.
var errContinue = errors.New("continue")

// Render executes a template against its argument. It returns the SQL with
// one placeholder per bound argument, and the arguments in placeholder order.
func Render(t *parse.Template, arg value.Value, ph Placeholder) (string, []value.Value, error) {
	var out fragment
	err := renderNodes(t.Nodes, NewContext(arg), &out)
	if errors.Is(err, errContinue) {
		// The parser only accepts continue inside a for block.
		return "", nil, fmt.Errorf("internal error: continue outside of for")
	}
	if err != nil {
		return "", nil, err
	}
	sql, args := out.trimSpace().assemble(ph)
	return sql, args, nil
}

func renderNodes(nodes []parse.Node, ctx *Context, out *fragment) error {
	for _, n := range nodes {
		if err := renderNode(n, ctx, out); err != nil {
			return err
		}
	}
	return nil
}

func renderNode(n parse.Node, ctx *Context, out *fragment) error {
	switch n := n.(type) {
	case *parse.Line:
		line, err := renderLine(n, ctx)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Number, err)
		}
		out.add(line)
	case *parse.If:
		ok, err := expr.Truthy(n.Cond, ctx)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		if ok {
			return renderBlock(n.Body, ctx, out)
		}
	case *parse.For:
		return renderFor(n, ctx, out)
	case *parse.Trim:
		var body fragment
		if err := renderNodes(n.Body, ctx, &body); err != nil {
			return err
		}
		out.add(body.trimPrefix(n.Start).trimSuffix(n.End))
	case *parse.Choose:
		for _, w := range n.Whens {
			ok, err := expr.Truthy(w.Cond, ctx)
			if err != nil {
				return fmt.Errorf("line %d: %w", w.Line, err)
			}
			if ok {
				return renderBlock(w.Body, ctx, out)
			}
		}
		if n.Otherwise != nil {
			return renderBlock(n.Otherwise.Body, ctx, out)
		}
	case *parse.Where:
		var body fragment
		if err := renderNodes(n.Body, ctx, &body); err != nil {
			return err
		}
		body = body.trimPrefixWord("AND", "OR")
		if !body.empty() {
			out.add(append(fragment{{text: "WHERE "}}, body...))
		}
	case *parse.Set:
		var body fragment
		if err := renderNodes(n.Body, ctx, &body); err != nil {
			return err
		}
		body = body.trimSuffix(",")
		if !body.empty() {
			out.add(append(fragment{{text: "SET "}}, body...))
		}
	case *parse.Continue:
		return errContinue
	default:
		return fmt.Errorf("internal error: unknown node type %T", n)
	}
	return nil
}

// renderBlock renders nodes into a scratch fragment and adds it to out, so
// that the block is separated from its surroundings like a single line.
func renderBlock(nodes []parse.Node, ctx *Context, out *fragment) error {
	var body fragment
	if err := renderNodes(nodes, ctx, &body); err != nil {
		return err
	}
	out.add(body)
	return nil
}

func renderLine(n *parse.Line, ctx *Context) (fragment, error) {
	var line fragment
	for _, part := range n.Parts {
		switch part := part.(type) {
		case *parse.Text:
			line = append(line, piece{text: part.Text})
		case *parse.Bind:
			v, err := expr.Evaluate(part.Expr, ctx)
			if err != nil {
				return nil, err
			}
			line = append(line, piece{bind: true, arg: v})
		case *parse.Raw:
			v, err := expr.Evaluate(part.Expr, ctx)
			if err != nil {
				return nil, err
			}
			line = append(line, piece{text: v.String()})
		default:
			return nil, fmt.Errorf("internal error: unknown line part %T", part)
		}
	}
	return line, nil
}

// renderFor renders the body once per element. Each iteration is rendered
// into its own fragment, which is dropped when the iteration hits continue.
func renderFor(n *parse.For, ctx *Context, out *fragment) error {
	src, err := expr.Evaluate(n.Source, ctx)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}

	var keys []value.Value
	var items []value.Value
	switch src.Kind() {
	case value.ArrayKind:
		items = src.Elems()
		for i := range items {
			keys = append(keys, value.Int(int64(i)))
		}
	case value.MapKind:
		for _, p := range src.Object().Pairs() {
			keys = append(keys, value.String(p.Key))
			items = append(items, p.Value)
		}
	default:
		return fmt.Errorf("line %d: %w", n.Line, &expr.EvalError{
			Expr: n.Source.String(),
			Err:  fmt.Errorf("cannot iterate over %s value", src.Kind()),
		})
	}

	var loop fragment
	for i, item := range items {
		bindings := []value.Pair{value.P(n.Item, item)}
		if n.Key != "" {
			bindings = append(bindings, value.P(n.Key, keys[i]))
		}
		var iter fragment
		err := renderNodes(n.Body, ctx.With(bindings...), &iter)
		if errors.Is(err, errContinue) {
			continue
		}
		if err != nil {
			return err
		}
		loop.add(iter)
	}
	out.add(loop)
	return nil
}
