// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package value

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	NullKind Kind = iota
	BoolKind
	IntKind
	FloatKind
	StringKind
	ArrayKind
	MapKind
)

var kindNames = [...]string{
	NullKind:   "null",
	BoolKind:   "bool",
	IntKind:    "int",
	FloatKind:  "float",
	StringKind: "string",
	ArrayKind:  "array",
	MapKind:    "map",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Value is a dynamically typed value. The zero Value is Null.
//
// Values are immutable once built: an Array or Map Value must not be
// modified after it has been handed to a template.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	obj  *Object
}

// Null returns the Null value.
func Null() Value {
	return Value{}
}

// Bool returns a Bool value.
func Bool(b bool) Value {
	return Value{kind: BoolKind, b: b}
}

// Int returns an Int value.
func Int(i int64) Value {
	return Value{kind: IntKind, i: i}
}

// Float returns a Float value.
func Float(f float64) Value {
	return Value{kind: FloatKind, f: f}
}

// String returns a String value.
func String(s string) Value {
	return Value{kind: StringKind, s: s}
}

// Array returns an Array value holding vs in order.
func Array(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: ArrayKind, arr: vs}
}

// Map returns a Map value holding the pairs in order. A key repeated in pairs
// keeps its first position and its last value.
func Map(pairs ...Pair) Value {
	return FromObject(NewObject(pairs...))
}

// FromObject returns a Map value backed by o. A nil Object gives an empty Map.
func FromObject(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: MapKind, obj: o}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == NullKind
}

// Bool returns the content of a Bool value, false otherwise.
func (v Value) Bool() bool {
	return v.kind == BoolKind && v.b
}

// Int returns the content of an Int value, 0 otherwise.
func (v Value) Int() int64 {
	if v.kind != IntKind {
		return 0
	}
	return v.i
}

// Float returns the content of a Float value, or an Int widened to float64.
func (v Value) Float() float64 {
	switch v.kind {
	case FloatKind:
		return v.f
	case IntKind:
		return float64(v.i)
	}
	return 0
}

// Text returns the content of a String value, "" otherwise.
func (v Value) Text() string {
	if v.kind != StringKind {
		return ""
	}
	return v.s
}

// Elems returns the elements of an Array value, nil otherwise. The returned
// slice must not be modified.
func (v Value) Elems() []Value {
	if v.kind != ArrayKind {
		return nil
	}
	return v.arr
}

// Object returns the entries of a Map value, nil otherwise.
func (v Value) Object() *Object {
	if v.kind != MapKind {
		return nil
	}
	return v.obj
}

// Len returns the number of elements of an Array or entries of a Map, or the
// byte length of a String. It returns 0 for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case ArrayKind:
		return len(v.arr)
	case MapKind:
		return v.obj.Len()
	case StringKind:
		return len(v.s)
	}
	return 0
}

// Lookup returns the member named by segment: a key of a Map, or a decimal
// index into an Array. Any miss returns Null.
func (v Value) Lookup(segment string) Value {
	switch v.kind {
	case MapKind:
		if m, ok := v.obj.Get(segment); ok {
			return m
		}
	case ArrayKind:
		i, err := strconv.Atoi(segment)
		if err == nil && i >= 0 && i < len(v.arr) {
			return v.arr[i]
		}
	}
	return Null()
}

// String returns the textual form of the value as it is written into SQL by
// a raw placeholder: numbers in decimal, strings unquoted.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb, false)
	return sb.String()
}

func (v Value) write(sb *strings.Builder, quote bool) {
	switch v.kind {
	case NullKind:
		sb.WriteString("null")
	case BoolKind:
		sb.WriteString(strconv.FormatBool(v.b))
	case IntKind:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case FloatKind:
		sb.WriteString(formatFloat(v.f))
	case StringKind:
		if quote {
			sb.WriteString(strconv.Quote(v.s))
		} else {
			sb.WriteString(v.s)
		}
	case ArrayKind:
		sb.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			e.write(sb, true)
		}
		sb.WriteByte(']')
	case MapKind:
		sb.WriteByte('{')
		for i, p := range v.obj.Pairs() {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(p.Key))
			sb.WriteByte(':')
			p.Value.write(sb, true)
		}
		sb.WriteByte('}')
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// GoString implements fmt.GoStringer. Strings are quoted so that test
// failures distinguish Int(1) from String("1").
func (v Value) GoString() string {
	var sb strings.Builder
	v.write(&sb, true)
	return v.kind.String() + "(" + sb.String() + ")"
}

// Value implements driver.Valuer so that values can be passed directly as
// query arguments.
func (v Value) Value() (driver.Value, error) {
	switch v.kind {
	case NullKind:
		return nil, nil
	case BoolKind:
		return v.b, nil
	case IntKind:
		return v.i, nil
	case FloatKind:
		return v.f, nil
	case StringKind:
		return v.s, nil
	}
	return nil, fmt.Errorf("cannot use %s value as a query argument", v.kind)
}

// Interface returns the value as plain Go data: nil, bool, int64, float64,
// string, []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case BoolKind:
		return v.b
	case IntKind:
		return v.i
	case FloatKind:
		return v.f
	case StringKind:
		return v.s
	case ArrayKind:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case MapKind:
		out := make(map[string]any, v.obj.Len())
		for _, p := range v.obj.Pairs() {
			out[p.Key] = p.Value.Interface()
		}
		return out
	}
	return nil
}
