// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package parse_test

import (
	"errors"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqltmpl/internal/expr"
	"github.com/canonical/sqltmpl/internal/parse"
)

// Hook up gocheck into the "go test" runner.
func TestParse(t *testing.T) { TestingT(t) }

type ParserSuite struct{}

var _ = Suite(&ParserSuite{})

var parseTests = []struct {
	summary        string
	input          string
	expectedParsed string
}{{
	summary:        "plain text",
	input:          "select * from person",
	expectedParsed: "Template[Line[Text[select * from person]]]",
}, {
	summary:        "blank lines and surrounding whitespace are dropped",
	input:          "\n  select *  \n\n\tfrom person\n",
	expectedParsed: "Template[Line[Text[select *]] Line[Text[from person]]]",
}, {
	summary:        "bind and raw placeholders",
	input:          "select * from ${table} where id = #{id}",
	expectedParsed: "Template[Line[Text[select * from ] Raw[table] Text[ where id = ] Bind[id]]]",
}, {
	summary:        "adjacent placeholders",
	input:          "#{a}#{b}",
	expectedParsed: "Template[Line[Bind[a] Bind[b]]]",
}, {
	summary:        "placeholder with a quoted brace",
	input:          "x = #{m == '}'}",
	expectedParsed: `Template[Line[Text[x = ] Bind[m == "}"]]]`,
}, {
	summary: "if closed by dedent",
	input: `
select * from person where true
if name != null:
    AND name = #{name}
order by id`,
	expectedParsed: "Template[Line[Text[select * from person where true]] " +
		"If[name != null]{Line[Text[AND name = ] Bind[name]]} " +
		"Line[Text[order by id]]]",
}, {
	summary: "if closed by end",
	input: `
if a:
  A
end
B`,
	expectedParsed: "Template[If[a]{Line[Text[A]]} Line[Text[B]]]",
}, {
	summary: "end closes only the innermost block",
	input: `
if a:
  if b:
    B
  end
  A
end`,
	expectedParsed: "Template[If[a]{If[b]{Line[Text[B]]} Line[Text[A]]}]",
}, {
	summary: "explicit end allows an empty body",
	input: `
if a:
end`,
	expectedParsed: "Template[If[a]{}]",
}, {
	summary:        "blocks are closed at end of input",
	input:          "if a:\n  if b:\n    B",
	expectedParsed: "Template[If[a]{If[b]{Line[Text[B]]}}]",
}, {
	summary: "for with item",
	input: `
for item in ids:
  #{item},`,
	expectedParsed: "Template[For[item in ids]{Line[Bind[item] Text[,]]}]",
}, {
	summary: "for with key and item",
	input: `
for k, v in columns:
  ${k} = #{v}`,
	expectedParsed: "Template[For[k, v in columns]{Line[Raw[k] Text[ = ] Bind[v]]}]",
}, {
	summary: "trim with end token",
	input: `
trim ',':
  a,`,
	expectedParsed: `Template[Trim[end=","]{Line[Text[a,]]}]`,
}, {
	summary: "trim with start and end tokens",
	input: `
trim start='AND', end=",":
  AND a,`,
	expectedParsed: `Template[Trim[start="AND" end=","]{Line[Text[AND a,]]}]`,
}, {
	summary:        "chained directives on one line",
	input:          "trim ',': for item in ids: #{item},",
	expectedParsed: `Template[Trim[end=","]{For[item in ids]{Line[Bind[item] Text[,]]}}]`,
}, {
	summary: "chained directives with an indented body",
	input: `
trim ',': for item in ids:
  #{item},
select 1`,
	expectedParsed: `Template[Trim[end=","]{For[item in ids]{Line[Bind[item] Text[,]]}} Line[Text[select 1]]]`,
}, {
	summary: "end closes a whole chain",
	input: `
trim ',': for item in ids:
  #{item},
end
select 1`,
	expectedParsed: `Template[Trim[end=","]{For[item in ids]{Line[Bind[item] Text[,]]}} Line[Text[select 1]]]`,
}, {
	summary: "choose",
	input: `
choose:
  when age == 27:
    AND age = 27
  when age > 18:
    AND adult
  otherwise:
    AND age = 0`,
	expectedParsed: "Template[Choose{When[age == 27]{Line[Text[AND age = 27]]} " +
		"When[age > 18]{Line[Text[AND adult]]} " +
		"Otherwise{Line[Text[AND age = 0]]}}]",
}, {
	summary: "choose with chained branches",
	input: `
choose:
  when a: A
  otherwise: B`,
	expectedParsed: "Template[Choose{When[a]{Line[Text[A]]} Otherwise{Line[Text[B]]}}]",
}, {
	summary:        "choose on one line",
	input:          "choose: when age==27: AND age = 27 otherwise: AND age = 0",
	expectedParsed: "Template[Choose{When[age == 27]{Line[Text[AND age = 27]]} Otherwise{Line[Text[AND age = 0]]}}]",
}, {
	summary:        "uppercase case arm is text",
	input:          "select case\nWHEN s = 1 then a::int",
	expectedParsed: "Template[Line[Text[select case]] Line[Text[WHEN s = 1 then a::int]]]",
}, {
	summary:        "sibling branch after a chained directive",
	input:          "choose:\n  when a: if b: X when c: Y",
	expectedParsed: "Template[Choose{When[a]{If[b]{Line[Text[X]]}} When[c]{Line[Text[Y]]}}]",
}, {
	summary:        "branch keywords inside quotes stay text",
	input:          "choose: when a: 'x otherwise: y'",
	expectedParsed: "Template[Choose{When[a]{Line[Text['x otherwise: y']]}}]",
}, {
	summary: "continue",
	input: `
for item in ids:
  if item == 2:
    continue
  #{item}`,
	expectedParsed: "Template[For[item in ids]{If[item == 2]{Continue} Line[Bind[item]]}]",
}, {
	summary: "continue in placeholder form",
	input: `
for item in ids:
  if item == 2:
    #{continue}
  #{item}`,
	expectedParsed: "Template[For[item in ids]{If[item == 2]{Continue} Line[Bind[item]]}]",
}, {
	summary: "where and set",
	input: `
update person
set:
  if name != null: name = #{name},
where:
  AND id = #{id}`,
	expectedParsed: "Template[Line[Text[update person]] " +
		"Set{If[name != null]{Line[Text[name = ] Bind[name] Text[,]]}} " +
		"Where{Line[Text[AND id = ] Bind[id]]}]",
}, {
	summary: "keywords without directive shape are text",
	input: `
select * from t for update
set a = 1
when`,
	expectedParsed: "Template[Line[Text[select * from t for update]] Line[Text[set a = 1]] Line[Text[when]]]",
}, {
	summary: "colon inside quotes does not end a directive",
	input: `
if s == 'a:b':
  A`,
	expectedParsed: `Template[If[s == "a:b"]{Line[Text[A]]}]`,
}, {
	summary: "tabs count as indentation",
	input:   "if a:\n\tA\nB",
	expectedParsed: "Template[If[a]{Line[Text[A]]} Line[Text[B]]]",
}, {
	summary: "full select",
	input: `
select * from biz_activity where delete_flag = 0
if name != '':
  and name=#{name}
trim ',':
  for item in ids:
    #{item},
choose:
  when age == 27:
    AND age = 27
  otherwise:
    AND age = 0
limit ${limit}`,
	expectedParsed: "Template[Line[Text[select * from biz_activity where delete_flag = 0]] " +
		`If[name != ""]{Line[Text[and name=] Bind[name]]} ` +
		`Trim[end=","]{For[item in ids]{Line[Bind[item] Text[,]]}} ` +
		"Choose{When[age == 27]{Line[Text[AND age = 27]]} Otherwise{Line[Text[AND age = 0]]}} " +
		"Line[Text[limit ] Raw[limit]]]",
}}

func (s *ParserSuite) TestRoundTrip(c *C) {
	for i, t := range parseTests {
		tmpl, err := parse.Parse(t.input)
		if c.Check(err, IsNil, Commentf("test %d failed (%s):\ninput: %s\n", i, t.summary, t.input)) {
			c.Check(tmpl.String(), Equals, t.expectedParsed,
				Commentf("test %d failed (%s):\ninput: %s\n", i, t.summary, t.input))
		}
	}
}

func (s *ParserSuite) TestLineNumbers(c *C) {
	tmpl, err := parse.Parse("\nselect 1\n\nif a:\n  A")
	c.Assert(err, IsNil)
	c.Assert(tmpl.Nodes, HasLen, 2)
	c.Check(tmpl.Nodes[0].(*parse.Line).Number, Equals, 2)
	ifNode := tmpl.Nodes[1].(*parse.If)
	c.Check(ifNode.Line, Equals, 4)
	c.Check(ifNode.Body[0].(*parse.Line).Number, Equals, 5)
}

func (s *ParserSuite) TestParseErrors(c *C) {
	var tests = []struct {
		summary string
		input   string
		err     string
	}{{
		summary: "unterminated block",
		input:   "select 1\nif a:",
		err:     `line 2: unterminated "if" block: expected an indented body`,
	}, {
		summary: "empty body closed by dedent",
		input:   "if a:\nselect 1",
		err:     `line 2: "if" block opened at line 1 has no indented body`,
	}, {
		summary: "stray end",
		input:   "select 1\nend",
		err:     `line 2: unexpected "end": no open block`,
	}, {
		summary: "continue outside for",
		input:   "if a:\n  continue",
		err:     `line 2: "continue" outside of "for"`,
	}, {
		summary: "continue mixed into a line",
		input:   "for x in xs:\n  a #{continue}",
		err:     `line 2: "#{continue}" must be on a line of its own`,
	}, {
		summary: "when outside choose",
		input:   "when a:\n  A",
		err:     `line 1: "when" outside of "choose"`,
	}, {
		summary: "otherwise outside choose",
		input:   "if a:\n  otherwise:\n    A",
		err:     `line 2: "otherwise" outside of "choose"`,
	}, {
		summary: "text inside choose",
		input:   "choose:\n  A",
		err:     `line 2: only "when" and "otherwise" are allowed inside "choose"`,
	}, {
		summary: "when after otherwise",
		input:   "choose:\n  otherwise:\n    A\n  when a:\n    B",
		err:     `line 4: "when" after "otherwise" \(line 2\)`,
	}, {
		summary: "second otherwise",
		input:   "choose:\n  otherwise:\n    A\n  otherwise:\n    B",
		err:     `line 4: "otherwise" after "otherwise" \(line 2\)`,
	}, {
		summary: "lowercase case arm reads as a directive",
		input:   "select case\nwhen s = 1 then a::int",
		err:     `line 2: "when" outside of "choose"`,
	}, {
		summary: "empty branch on one line",
		input:   "choose: when a: otherwise: B",
		err:     `line 1: "when" block opened at line 1 has no indented body`,
	}, {
		summary: "when after otherwise on one line",
		input:   "choose: otherwise: A when b: B",
		err:     `line 1: "when" after "otherwise" \(line 1\)`,
	}, {
		summary: "empty choose",
		input:   "choose:\nselect 1",
		err:     `line 2: "choose" block opened at line 1 has no indented body`,
	}, {
		summary: "malformed for",
		input:   "for ids:\n  A",
		err:     `line 1: malformed "for": expected "for <item>\[, <item>\] in <expression>:"`,
	}, {
		summary: "for binding the same name twice",
		input:   "for x, x in xs:\n  A",
		err:     `line 1: malformed "for": "x" is bound twice`,
	}, {
		summary: "missing if condition",
		input:   "if :\n  A",
		err:     `line 1: malformed "if": missing expression`,
	}, {
		summary: "malformed condition",
		input:   "if a = 1:\n  A",
		err:     `line 1: malformed "if" expression: column 3: unexpected "= 1" after expression`,
	}, {
		summary: "unquoted trim token",
		input:   "trim ,:\n  A",
		err:     `line 1: malformed "trim": expected .*`,
	}, {
		summary: "unknown trim argument",
		input:   "trim middle=',':\n  A",
		err:     `line 1: malformed "trim": unknown argument "middle"`,
	}, {
		summary: "empty trim token",
		input:   "trim '':\n  A",
		err:     `line 1: malformed "trim": empty token`,
	}, {
		summary: "unclosed placeholder",
		input:   "select #{id",
		err:     `line 1: missing closing '}' in "#{id"`,
	}, {
		summary: "empty placeholder",
		input:   "select #{}",
		err:     `line 1: malformed placeholder "#{}": column 1: empty expression`,
	}, {
		summary: "error in a nested line",
		input:   "if a:\n  if b:\n    x = #{1 +}",
		err:     `line 3: malformed placeholder "#{1 \+}": column 3: unexpected "\+" after expression`,
	}}
	for i, t := range tests {
		tmpl, err := parse.Parse(t.input)
		c.Check(tmpl, IsNil)
		c.Check(err, ErrorMatches, t.err, Commentf("test %d failed (%s):\ninput: %s\n", i, t.summary, t.input))
		var pe *parse.Error
		c.Check(errors.As(err, &pe), Equals, true, Commentf("test %d failed (%s)", i, t.summary))
	}
}

func (s *ParserSuite) TestErrorUnwrap(c *C) {
	_, err := parse.Parse("if a <:\n  A")
	var se *expr.SyntaxError
	c.Assert(errors.As(err, &se), Equals, true)
	var pe *parse.Error
	c.Assert(errors.As(err, &pe), Equals, true)
	c.Check(pe.Line, Equals, 1)
}
