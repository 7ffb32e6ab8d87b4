// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package value

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"
)

var (
	valueType  = reflect.TypeOf(Value{})
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// FromGo converts plain Go data into a Value.
//
// Structs become Maps in field declaration order. A field's key is its "db"
// tag when present, otherwise its name; fields tagged `db:"-"` are skipped
// and fields tagged with "omitempty" are left out when they hold the zero
// value. Maps must have string keys and are converted in sorted key order.
// time.Time values become RFC 3339 strings and driver.Valuer implementations
// are converted through their Value method.
func FromGo(x any) (Value, error) {
	if x == nil {
		return Null(), nil
	}
	if v, ok := x.(Value); ok {
		return v, nil
	}
	return fromReflect(reflect.ValueOf(x))
}

// MustFromGo is the same as FromGo except that it panics on error.
func MustFromGo(x any) Value {
	v, err := FromGo(x)
	if err != nil {
		panic(err)
	}
	return v
}

func fromReflect(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return Null(), nil
	}
	t := rv.Type()
	switch {
	case t == valueType:
		return rv.Interface().(Value), nil
	case t.Kind() == reflect.Pointer && t.Elem() == valueType:
		if rv.IsNil() {
			return Null(), nil
		}
		return rv.Elem().Interface().(Value), nil
	case t == timeType:
		return String(rv.Interface().(time.Time).Format(time.RFC3339Nano)), nil
	case t.Implements(valuerType):
		if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
			return Null(), nil
		}
		dv, err := rv.Interface().(driver.Valuer).Value()
		if err != nil {
			return Null(), err
		}
		if dv == nil {
			return Null(), nil
		}
		// A Valuer returning itself would recurse forever.
		if reflect.TypeOf(dv) == t {
			return Null(), fmt.Errorf("cannot convert %s: Value returned the same type", t)
		}
		return fromReflect(reflect.ValueOf(dv))
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromReflect(rv.Elem())
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Null(), fmt.Errorf("cannot convert %s: %d overflows int64", t, u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return Null(), nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return String(string(rv.Bytes())), nil
		}
		fallthrough
	case reflect.Array:
		elems := make([]Value, rv.Len())
		for i := range elems {
			e, err := fromReflect(rv.Index(i))
			if err != nil {
				return Null(), err
			}
			elems[i] = e
		}
		return Array(elems...), nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return Null(), fmt.Errorf("cannot convert %s: map keys must be strings", t)
		}
		if rv.IsNil() {
			return Null(), nil
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		o := NewObject()
		for _, k := range keys {
			e, err := fromReflect(rv.MapIndex(k))
			if err != nil {
				return Null(), err
			}
			o.Set(k.String(), e)
		}
		return FromObject(o), nil
	case reflect.Struct:
		return fromStruct(rv)
	}
	return Null(), fmt.Errorf("cannot convert value of type %s", t)
}

func fromStruct(rv reflect.Value) (Value, error) {
	info, err := getStructInfo(rv.Type())
	if err != nil {
		return Null(), err
	}
	o := NewObject()
	for _, f := range info.fields {
		fv, err := rv.FieldByIndexErr(f.index)
		if err != nil {
			// The field is promoted through a nil embedded pointer.
			if !f.omitEmpty {
				o.Set(f.name, Null())
			}
			continue
		}
		if f.omitEmpty && fv.IsZero() {
			continue
		}
		e, err := fromReflect(fv)
		if err != nil {
			return Null(), fmt.Errorf("cannot convert field %q of %s: %w", f.name, info.typ.Name(), err)
		}
		o.Set(f.name, e)
	}
	return FromObject(o), nil
}
