// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package value

// Pair is a single entry of an Object.
type Pair struct {
	Key   string
	Value Value
}

// P is shorthand for Pair{key, v}.
func P(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// Object is a string keyed map that remembers insertion order. Keys are
// unique.
type Object struct {
	pairs []Pair
	index map[string]int
}

// NewObject returns an Object holding pairs in order.
func NewObject(pairs ...Pair) *Object {
	o := &Object{
		pairs: make([]Pair, 0, len(pairs)),
		index: make(map[string]int, len(pairs)),
	}
	for _, p := range pairs {
		o.Set(p.Key, p.Value)
	}
	return o
}

// Set stores v under key. Setting an existing key replaces its value but
// keeps its position.
func (o *Object) Set(key string, v Value) {
	if i, ok := o.index[key]; ok {
		o.pairs[i].Value = v
		return
	}
	o.index[key] = len(o.pairs)
	o.pairs = append(o.pairs, Pair{Key: key, Value: v})
}

func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Null(), false
	}
	i, ok := o.index[key]
	if !ok {
		return Null(), false
	}
	return o.pairs[i].Value, true
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.pairs)
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, len(o.pairs))
	for i, p := range o.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Pairs returns the entries in insertion order. The returned slice must not
// be modified.
func (o *Object) Pairs() []Pair {
	if o == nil {
		return nil
	}
	return o.pairs
}
