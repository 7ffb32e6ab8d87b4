/*
Package expr parses and evaluates the expressions that appear after template
directive keywords and inside #{...} and ${...} placeholders.

From lowest to highest precedence:

	or         = and { "||" and }
	and        = equality { "&&" equality }
	equality   = relational { ("==" | "!=") relational }
	relational = primary { ("<" | "<=" | ">" | ">=") primary }
	primary    = literal | path | "(" or ")"
	literal    = "null" | "true" | "false" | number | string
	path       = name { "." ( name | digits ) }

Strings may be single or double quoted. There are no arithmetic, unary or
membership operators; membership is expressed with the for directive.

# Evaluation

Expressions are evaluated against a Scope. A path that does not resolve at
any of its segments evaluates to Null rather than failing, so templates can
branch on absent fields with "x != null". Ordering operators are only defined
between numbers (Int and Float compare numerically) and between strings;
any other pairing is an EvalError.
*/
package expr
