// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr_test

import (
	"errors"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqltmpl/internal/expr"
	"github.com/canonical/sqltmpl/value"
)

type EvalSuite struct{}

var _ = Suite(&EvalSuite{})

// mapScope resolves names from a Map value.
type mapScope struct {
	v value.Value
}

func (s mapScope) Lookup(name string) (value.Value, bool) {
	return s.v.Object().Get(name)
}

var scope = mapScope{value.Map(
	value.P("name", value.String("Fred")),
	value.P("age", value.Int(27)),
	value.P("ratio", value.Float(0.5)),
	value.P("empty", value.String("")),
	value.P("ids", value.Array(value.Int(1), value.Int(2))),
	value.P("none", value.Array()),
	value.P("person", value.Map(
		value.P("address", value.Map(value.P("district", value.String("Happy Land")))),
	)),
	value.P("k", value.String("id")),
	value.P("v", value.Null()),
)}

func (s *EvalSuite) TestEvaluate(c *C) {
	var tests = []struct {
		summary  string
		input    string
		expected value.Value
	}{
		{"path", "name", value.String("Fred")},
		{"nested path", "person.address.district", value.String("Happy Land")},
		{"missing variable", "missing", value.Null()},
		{"missing segment", "person.phone.number", value.Null()},
		{"segment of scalar", "name.first", value.Null()},
		{"array index", "ids.1", value.Int(2)},
		{"array index out of range", "ids.5", value.Null()},
		{"null equality", "missing == null", value.Bool(true)},
		{"not null", "name != null", value.Bool(true)},
		{"int equality", "age == 27", value.Bool(true)},
		{"variant mismatch is not equal", "age == 27.0", value.Bool(false)},
		{"string equality", "k == 'id'", value.Bool(true)},
		{"null is not false", "v == false", value.Bool(false)},
		{"int ordering", "age > 20", value.Bool(true)},
		{"mixed numeric ordering", "ratio < 1", value.Bool(true)},
		{"mixed numeric ordering reversed", "1 <= ratio", value.Bool(false)},
		{"string ordering", "name >= 'Alice'", value.Bool(true)},
		{"and", "k == 'id' && v == null", value.Bool(true)},
		{"or", "age == 5 || name == 'Fred'", value.Bool(true)},
		{"and yields bool", "name && ids", value.Bool(true)},
		{"or with falsy operands", "empty || none", value.Bool(false)},
		{"parentheses", "(age == 5 || age == 27) && name != null", value.Bool(true)},
	}
	for i, t := range tests {
		e, err := expr.Parse(t.input)
		c.Assert(err, IsNil, Commentf("test %d failed (%s)", i, t.summary))
		v, err := expr.Evaluate(e, scope)
		c.Assert(err, IsNil, Commentf("test %d failed (%s)", i, t.summary))
		c.Check(value.Equal(v, t.expected), Equals, true,
			Commentf("test %d failed (%s): got %#v, expected %#v", i, t.summary, v, t.expected))
	}
}

func (s *EvalSuite) TestShortCircuit(c *C) {
	// The right hand side would fail if it were evaluated.
	for _, input := range []string{"missing && name < 1", "name || name < 1"} {
		e, err := expr.Parse(input)
		c.Assert(err, IsNil)
		_, err = expr.Evaluate(e, scope)
		c.Check(err, IsNil, Commentf("input %s", input))
	}
}

func (s *EvalSuite) TestEvaluateErrors(c *C) {
	var tests = []struct {
		summary string
		input   string
		err     string
	}{{
		summary: "string and int",
		input:   "name < 1",
		err:     `cannot evaluate "name < 1": incomparable values: cannot order string and int`,
	}, {
		summary: "null ordering",
		input:   "missing > 0",
		err:     `cannot evaluate "missing > 0": incomparable values: cannot order null and int`,
	}, {
		summary: "array ordering",
		input:   "ids >= ids",
		err:     `cannot evaluate "ids >= ids": incomparable values: cannot order array and array`,
	}, {
		summary: "error inside and",
		input:   "name != null && age < 'x'",
		err:     `cannot evaluate "age < \\"x\\"": incomparable values: cannot order int and string`,
	}}
	for i, t := range tests {
		e, err := expr.Parse(t.input)
		c.Assert(err, IsNil)
		_, err = expr.Evaluate(e, scope)
		c.Check(err, ErrorMatches, t.err, Commentf("test %d failed (%s)", i, t.summary))
		var ee *expr.EvalError
		c.Check(errors.As(err, &ee), Equals, true)
		c.Check(errors.Is(err, value.ErrIncomparable), Equals, true)
	}
}

func (s *EvalSuite) TestTruthy(c *C) {
	var tests = []struct {
		input    string
		expected bool
	}{
		{"name", true},
		{"empty", false},
		{"ids", true},
		{"none", false},
		{"missing", false},
		{"age", true},
		{"0", false},
	}
	for _, t := range tests {
		e, err := expr.Parse(t.input)
		c.Assert(err, IsNil)
		ok, err := expr.Truthy(e, scope)
		c.Assert(err, IsNil)
		c.Check(ok, Equals, t.expected, Commentf("input %s", t.input))
	}
}
