// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package value

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
)

// field represents a single field from a struct type that is converted into
// a Map entry.
type field struct {
	// name is the Map key, taken from the "db" tag or the field name.
	name string

	// index of this field in the structure.
	index []int

	// omitEmpty is true when "omitempty" is a property of the field's "db"
	// tag.
	omitEmpty bool
}

// structInfo represents reflected information about a struct type. Fields
// are kept in declaration order so that converted Maps iterate in that order.
type structInfo struct {
	typ    reflect.Type
	fields []field
}

var infoCacheMutex sync.RWMutex
var infoCache = make(map[reflect.Type]*structInfo)

// getStructInfo returns the structInfo of a struct type, generating and
// caching it as required.
func getStructInfo(t reflect.Type) (*structInfo, error) {
	infoCacheMutex.RLock()
	info, found := infoCache[t]
	infoCacheMutex.RUnlock()
	if found {
		return info, nil
	}

	info, err := generateStructInfo(t)
	if err != nil {
		return nil, err
	}

	infoCacheMutex.Lock()
	infoCache[t] = info
	infoCacheMutex.Unlock()

	return info, nil
}

// generateStructInfo walks the exported fields of a struct type. Embedded
// structs without a tag are flattened into the parent.
func generateStructInfo(t reflect.Type) (*structInfo, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("internal error: attempted to reflect non-struct type %s", t)
	}

	info := &structInfo{typ: t}
	seen := map[string]bool{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, hasTag := f.Tag.Lookup("db")
		if tag == "-" {
			continue
		}

		if f.Anonymous && !hasTag {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				embedded, err := getStructInfo(ft)
				if err != nil {
					return nil, err
				}
				for _, ef := range embedded.fields {
					if seen[ef.name] {
						return nil, fmt.Errorf("field %q of %s is defined more than once", ef.name, t.Name())
					}
					seen[ef.name] = true
					info.fields = append(info.fields, field{
						name:      ef.name,
						index:     append([]int{i}, ef.index...),
						omitEmpty: ef.omitEmpty,
					})
				}
				continue
			}
		}

		name, omitEmpty := f.Name, false
		if hasTag {
			var err error
			name, omitEmpty, err = parseTag(tag)
			if err != nil {
				return nil, fmt.Errorf("cannot parse tag for field %s.%s: %s", t.Name(), f.Name, err)
			}
		}
		if seen[name] {
			return nil, fmt.Errorf("field %q of %s is defined more than once", name, t.Name())
		}
		seen[name] = true
		info.fields = append(info.fields, field{name: name, index: []int{i}, omitEmpty: omitEmpty})
	}
	return info, nil
}

// This expression should be aligned with the characters allowed in path
// segments by the expression parser.
var validKeyRx = regexp.MustCompile(`^([a-zA-Z_])+([a-zA-Z_0-9])*$`)

// parseTag parses the input tag string and returns its name and whether it
// contains the "omitempty" option.
func parseTag(tag string) (string, bool, error) {
	options := strings.Split(tag, ",")

	var omitEmpty bool
	// Refuse to parse if there are more than 2 items.
	if len(options) > 2 {
		return "", false, fmt.Errorf("too many options in 'db' tag")
	}
	if len(options) == 2 {
		if strings.ToLower(options[1]) != "omitempty" {
			return "", false, fmt.Errorf("unexpected tag value %q", options[1])
		}
		omitEmpty = true
	}

	name := options[0]
	if len(name) == 0 {
		return "", false, fmt.Errorf("empty db tag")
	}

	if !validKeyRx.MatchString(name) {
		return "", false, fmt.Errorf("invalid key %q in 'db' tag", name)
	}

	return name, omitEmpty, nil
}
