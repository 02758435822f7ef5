// Package domain contains pure, dependency-free domain models and types
// for the dataflow engine.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Value is anything that can travel along an edge or sit in a port.
// The engine works with a small closed set of shapes:
//
//   - nil
//   - scalars: string, bool, int64, float64 (other Go integer and float
//     types are accepted and normalized by the helpers below)
//   - []Value, an ordered list (one level; nested lists are kept as-is)
//   - map[string]Value, produced by scripted nodes returning dicts
//
// Value is an alias so that []Value and []any are the same type, which keeps
// values produced by decoders and scripts assignable without conversion.
type Value = any

// IsList reports whether v is a list value.
func IsList(v Value) bool {
	_, ok := v.([]Value)
	return ok
}

// AsList wraps a scalar in a single-element list and returns lists as-is.
// A nil value yields a nil list.
func AsList(v Value) []Value {
	switch t := v.(type) {
	case nil:
		return nil
	case []Value:
		return t
	default:
		return []Value{v}
	}
}

// Collapse resolves a port value to a scalar: for lists it returns the last
// non-nil element, for anything else the value itself.
func Collapse(v Value) Value {
	list, ok := v.([]Value)
	if !ok {
		return v
	}
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] != nil {
			return list[i]
		}
	}
	return nil
}

// Flatten appends the non-nil elements of v to dst, expanding one level of
// list nesting.
func Flatten(dst []Value, v Value) []Value {
	switch t := v.(type) {
	case nil:
		return dst
	case []Value:
		for _, el := range t {
			if el != nil {
				dst = append(dst, el)
			}
		}
		return dst
	default:
		return append(dst, v)
	}
}

// Truthy reports whether v counts as true in a predicate: nil, false,
// zero numbers, and empty strings, lists, and maps are false.
func Truthy(v Value) bool {
	switch t := normalizeNumber(v).(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	case []Value:
		return len(t) > 0
	case map[string]Value:
		return len(t) > 0
	default:
		return true
	}
}

// Stringify renders a value the way users expect to see it in a text node.
// Strings are returned verbatim, booleans as True/False, lists and maps in a
// bracketed literal form.
func Stringify(v Value) string {
	var b strings.Builder
	writeValue(&b, v, false)
	return b.String()
}

func writeValue(b *strings.Builder, v Value, quoted bool) {
	switch t := normalizeNumber(v).(type) {
	case nil:
		b.WriteString("None")
	case string:
		if quoted {
			b.WriteString(strconv.Quote(t))
			return
		}
		b.WriteString(t)
	case bool:
		if t {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		s := strconv.FormatFloat(t, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		b.WriteString(s)
	case []Value:
		b.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, el, true)
		}
		b.WriteByte(']')
	case map[string]Value:
		b.WriteByte('{')
		for i, k := range slices.Sorted(maps.Keys(t)) {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			writeValue(b, t[k], true)
		}
		b.WriteByte('}')
	default:
		fmt.Fprint(b, t)
	}
}

// Equal compares two values structurally. Numeric values compare by
// magnitude regardless of their concrete Go type, so int 1 equals int64 1.
func Equal(a, b Value) bool {
	a, b = normalizeNumber(a), normalizeNumber(b)
	switch at := a.(type) {
	case []Value:
		bt, ok := b.([]Value)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	case map[string]Value:
		bt, ok := b.(map[string]Value)
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, av := range at {
			bv, ok := bt[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case int64:
		switch bt := b.(type) {
		case int64:
			return at == bt
		case float64:
			return float64(at) == bt
		}
		return false
	case float64:
		switch bt := b.(type) {
		case int64:
			return at == float64(bt)
		case float64:
			return at == bt
		}
		return false
	default:
		return reflect.DeepEqual(a, b)
	}
}

// EqualMaps compares two port-value maps with Equal semantics. A missing key
// and a key holding nil are treated as the same.
func EqualMaps(a, b map[string]Value) bool {
	for k, av := range a {
		if !Equal(av, b[k]) {
			return false
		}
	}
	for k, bv := range b {
		if _, ok := a[k]; !ok && bv != nil {
			return false
		}
	}
	return true
}

// normalizeNumber widens Go integer and float kinds to int64 and float64.
func normalizeNumber(v Value) Value {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	}
	return v
}

// CloneValue creates a deep copy of a value so that snapshots and caches
// cannot be modified through aliases held by nodes or scripts.
func CloneValue(value Value) Value {
	if value == nil {
		return nil
	}

	switch t := value.(type) {
	case string, bool, int64, float64:
		return t
	case []Value:
		out := make([]Value, len(t))
		for i, el := range t {
			out[i] = CloneValue(el)
		}
		return out
	case map[string]Value:
		out := make(map[string]Value, len(t))
		for k, el := range t {
			out[k] = CloneValue(el)
		}
		return out
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return value
		}
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			el := CloneValue(v.Index(i).Interface())
			if el != nil {
				newSlice.Index(i).Set(reflect.ValueOf(el))
			}
		}
		return newSlice.Interface()

	case reflect.Map:
		if v.IsNil() {
			return value
		}
		newMap := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			el := CloneValue(iter.Value().Interface())
			if el == nil {
				newMap.SetMapIndex(iter.Key(), reflect.Zero(v.Type().Elem()))
				continue
			}
			newMap.SetMapIndex(iter.Key(), reflect.ValueOf(el))
		}
		return newMap.Interface()

	default:
		// Scalars and anything we do not know how to walk are treated as
		// immutable.
		return value
	}
}

// CloneValues deep-copies a port-value map.
func CloneValues(values map[string]Value) map[string]Value {
	out := make(map[string]Value, len(values))
	for k, v := range values {
		out[k] = CloneValue(v)
	}
	return out
}
