/*
Package value provides the dynamically typed values that templates are
rendered against and that expressions evaluate to.

A Value holds exactly one of seven variants: Null, Bool, Int, Float, String,
Array or Map. Maps keep their keys in insertion order so that iterating over
them in a template is deterministic.

Values are usually built with the constructors:

	arg := value.Map(
		value.P("name", value.String("Fred")),
		value.P("ids", value.Array(value.Int(1), value.Int(2))),
	)

or converted from Go data with FromGo, or from a YAML or JSON document with
FromYAML.
*/
package value
