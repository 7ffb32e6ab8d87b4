// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package value

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrIncomparable is returned by Compare for values that have no ordering.
var ErrIncomparable = errors.New("incomparable values")

// Truthy reports whether v counts as true in a condition. Null, false, zero,
// the empty string and empty collections are false.
func Truthy(v Value) bool {
	switch v.kind {
	case BoolKind:
		return v.b
	case IntKind:
		return v.i != 0
	case FloatKind:
		return v.f != 0
	case StringKind:
		return v.s != ""
	case ArrayKind:
		return len(v.arr) > 0
	case MapKind:
		return v.obj.Len() > 0
	}
	return false
}

// Equal reports whether a and b hold the same variant with the same content.
// Null is equal only to Null. Arrays and Maps compare element-wise; Map key
// order is not significant.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case NullKind:
		return true
	case BoolKind:
		return a.b == b.b
	case IntKind:
		return a.i == b.i
	case FloatKind:
		return a.f == b.f
	case StringKind:
		return a.s == b.s
	case ArrayKind:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case MapKind:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for _, p := range a.obj.Pairs() {
			bv, ok := b.obj.Get(p.Key)
			if !ok || !Equal(p.Value, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders a and b, returning -1, 0 or +1. Int and Float compare
// numerically, widening Int to Float when the kinds differ. Strings compare
// lexicographically. Any other pairing, or a NaN operand, returns an error
// wrapping ErrIncomparable.
func Compare(a, b Value) (int, error) {
	switch {
	case a.kind == IntKind && b.kind == IntKind:
		switch {
		case a.i < b.i:
			return -1, nil
		case a.i > b.i:
			return 1, nil
		}
		return 0, nil
	case isNumber(a) && isNumber(b):
		af, bf := a.Float(), b.Float()
		if math.IsNaN(af) || math.IsNaN(bf) {
			return 0, fmt.Errorf("%w: cannot order NaN", ErrIncomparable)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		}
		return 0, nil
	case a.kind == StringKind && b.kind == StringKind:
		return strings.Compare(a.s, b.s), nil
	}
	return 0, fmt.Errorf("%w: cannot order %s and %s", ErrIncomparable, a.kind, b.kind)
}

func isNumber(v Value) bool {
	return v.kind == IntKind || v.kind == FloatKind
}
