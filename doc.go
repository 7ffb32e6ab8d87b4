/*
Sqltmpl builds SQL statements from templates with control flow. A template is
compiled once and rendered against an argument to produce the SQL text and the
ordered list of query arguments to pass to database/sql.

The SQL itself is never parsed. Templates are made of lines of SQL text and
directive lines. Directives open blocks, and a block's body is made of the
lines indented deeper than the directive. A block ends at the first line that
is not indented deeper, or at an explicit "end".

# Basics

Given the template:

	select * from person where deleted = 0
	if name != null:
	    AND name = #{name}
	AND id in (
	trim ',': for id in ids:
	    #{id},
	)

and the argument {"ids": [1, 2, 3]}, Render with the [Question] placeholder
style returns:

	select * from person where deleted = 0 AND id in ( ?, ?, ? )

and the arguments [1, 2, 3]. Lines are trimmed and joined with a single space.

# Placeholders

	#{expr}
	    - Evaluates expr, writes a placeholder and binds the value as a query
	      argument.

	${expr}
	    - Evaluates expr and writes its textual form into the SQL. The value is
	      not escaped so it must only be used for trusted identifiers such as
	      table or column names.

# Directives

	if <expr>:
	    - Renders the body when expr is truthy. Null, false, 0, the empty
	      string, and empty arrays and maps are falsy.

	for <item> in <expr>:
	for <key>, <item> in <expr>:
	    - Renders the body once per element of an array or map. With two
	      names the first is bound to the array index or map key.

	continue
	    - Drops the output of the current iteration of the innermost for.
	      #{continue} is an alternative spelling.

	trim '<token>':
	trim start='<token>', end='<token>':
	    - Renders the body and removes one trailing (or leading) token along
	      with the surrounding whitespace.

	choose:
	    when <expr>:
	    otherwise:
	    - Renders the first when block whose condition is truthy, or the
	      otherwise block if none is.

	where:
	    - Renders the body, drops a leading AND or OR and prefixes WHERE.
	      Nothing is written if the body is empty.

	set:
	    - Renders the body, drops a trailing comma and prefixes SET.
	      Nothing is written if the body is empty.

Directives can be chained on one line, as in "trim ',': for id in ids:".
Text following the last colon is the first line of the innermost body.

# Expressions

Expressions are made of variable paths such as person.address.city or ids.0,
the literals null, true, false, numbers and quoted strings, the comparison
operators == != < <= > >=, the logical operators && and ||, and parentheses.
A path that does not exist evaluates to null.

# Arguments

When the argument is a map its entries are the template's variables. Any
other value is bound to the name "_". [Template.RenderGo] and [DB] accept
plain Go values: structs are converted using their `db` tags, as in

	type Person struct {
		Name    string `db:"name"`
		Address string `db:"address,omitempty"`
	}
*/
package sqltmpl
