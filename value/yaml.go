// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package value

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromYAML decodes a YAML (or JSON) document into a Value. Mapping order in
// the document is kept as the insertion order of the resulting Maps. An
// empty document decodes to Null.
func FromYAML(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Null(), fmt.Errorf("cannot decode document: %s", err)
	}
	if doc.Kind == 0 {
		return Null(), nil
	}
	return fromNode(&doc, 0)
}

// maxAliasDepth bounds alias expansion so that a self-referencing document
// cannot recurse forever.
const maxAliasDepth = 64

func fromNode(n *yaml.Node, aliases int) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return fromNode(n.Content[0], aliases)
	case yaml.AliasNode:
		if aliases >= maxAliasDepth {
			return Null(), fmt.Errorf("line %d: alias nesting too deep", n.Line)
		}
		return fromNode(n.Alias, aliases+1)
	case yaml.SequenceNode:
		elems := make([]Value, len(n.Content))
		for i, c := range n.Content {
			e, err := fromNode(c, aliases)
			if err != nil {
				return Null(), err
			}
			elems[i] = e
		}
		return Array(elems...), nil
	case yaml.MappingNode:
		o := NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return Null(), fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			e, err := fromNode(v, aliases)
			if err != nil {
				return Null(), err
			}
			o.Set(k.Value, e)
		}
		return FromObject(o), nil
	case yaml.ScalarNode:
		return fromScalar(n)
	}
	return Null(), fmt.Errorf("line %d: unexpected node kind %d", n.Line, n.Kind)
}

func fromScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Null(), fmt.Errorf("line %d: %s", n.Line, err)
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return Null(), fmt.Errorf("line %d: %s", n.Line, err)
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			// yaml.v3 spells special values as .inf and .nan.
			f, err = strconv.ParseFloat(strings.TrimPrefix(n.Value, "."), 64)
			if err != nil {
				return Null(), fmt.Errorf("line %d: invalid float %q", n.Line, n.Value)
			}
		}
		return Float(f), nil
	}
	return String(n.Value), nil
}
