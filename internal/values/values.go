// Package values holds the coercion rules shared by the template renderer
// and the filter packs. Pipeline values are dynamically typed; these
// helpers define, in one place, what a value looks like as a string, as a
// number, and as a collection.
package values

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Str renders a pipeline value the way template output does: nil is empty,
// numbers print without exponent noise, collections concatenate their
// elements, everything else falls back to fmt.
func Str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case bool:
		return strconv.FormatBool(s)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case fmt.Stringer:
		return s.String()
	case error:
		return s.Error()
	}
	if items, ok := Slice(v); ok {
		var b strings.Builder
		for _, it := range items {
			b.WriteString(Str(it))
		}
		return b.String()
	}
	return fmt.Sprintf("%v", v)
}

// Float coerces numbers and numeric strings.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Int coerces values that are integral, including strings and floats with
// no fractional part.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		if n == float32(int(n)) {
			return int(n), true
		}
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// Integral reports whether v carries an integer kind, which arithmetic
// uses to keep int-in, int-out behavior.
func Integral(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// Slice flattens slices and arrays of any element type into []any. A
// non-collection input yields ok=false so callers can pass it through.
func Slice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

// Property extracts a named member from a collection element: a map entry
// by key, or a struct field by exact then case-folded name.
func Property(item any, key string) any {
	if item == nil {
		return nil
	}
	rv := reflect.ValueOf(item)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		kv := reflect.ValueOf(key)
		if !kv.Type().AssignableTo(rv.Type().Key()) {
			return nil
		}
		got := rv.MapIndex(kv)
		if !got.IsValid() {
			return nil
		}
		return got.Interface()
	case reflect.Struct:
		f := rv.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, key)
		})
		if f.IsValid() && f.CanInterface() {
			return f.Interface()
		}
	}
	return nil
}

// Compare orders two pipeline values: numerically when both coerce, by
// string form otherwise.
func Compare(a, b any) int {
	af, aok := Float(a)
	bf, bok := Float(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(Str(a), Str(b))
}

// Truthy reports template truth: only nil and false are falsy. Zero and
// the empty string count as present.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// Len reports the element count of a string, collection, or map, and
// whether the value has a length at all.
func Len(v any) (int, bool) {
	switch s := v.(type) {
	case nil:
		return 0, false
	case string:
		return len([]rune(s)), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}
