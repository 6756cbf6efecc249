package filterbank

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// call invokes fn with the effective argument list, adapting each argument
// to the parameter it lands in. Results follow the usual template
// convention: a single value, or a value plus a trailing error. An error
// returned by the filter comes back as-is, unwrapped.
func call(name string, fn reflect.Value, args []any) (any, error) {
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("filter %q: %s is not callable", name, fn.Kind())
	}
	ft := fn.Type()
	if err := checkResults(name, ft); err != nil {
		return nil, err
	}

	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("filter %q: takes at least %d arguments, got %d", name, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("filter %q: takes %d arguments, got %d", name, fixed, len(args))
	}

	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		var want reflect.Type
		if i < fixed {
			want = ft.In(i)
		} else {
			want = ft.In(ft.NumIn() - 1).Elem()
		}
		v, err := adapt(arg, want)
		if err != nil {
			return nil, fmt.Errorf("filter %q: argument %d: %w", name, i, err)
		}
		in = append(in, v)
	}

	out := fn.Call(in)
	if len(out) == 2 {
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, err
		}
	}
	return out[0].Interface(), nil
}

// checkResults rejects signatures whose results cannot carry a filter
// value: anything other than one value, or one value and an error.
func checkResults(name string, ft reflect.Type) error {
	switch ft.NumOut() {
	case 1:
		return nil
	case 2:
		if ft.Out(1) == errorType {
			return nil
		}
	}
	return fmt.Errorf("filter %q: must return one value, or one value and an error", name)
}

// adapt converts a pipeline value to the parameter type a filter declares,
// so filters can take concrete types while the pipeline traffics in any.
// Numeric kinds convert freely; everything else must be assignable, which
// keeps surprises like int-to-string rune conversion out of filter calls.
func adapt(arg any, want reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(want), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(want) {
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(want.Kind()) {
		return v.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, want)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
