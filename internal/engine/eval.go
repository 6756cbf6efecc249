package engine

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zjrosen/tamis/internal/values"
)

// eval computes the value of an expression against the context.
func (c *Context) eval(expr Expr) (any, error) {
	switch e := expr.(type) {
	case *Literal:
		return e.Value, nil

	case *PathExpr:
		return c.evalPath(e)

	case *RangeExpr:
		return c.evalRange(e)

	case *BinaryExpr:
		return c.evalBinary(e)

	case *NotExpr:
		v, err := c.eval(e.Expr)
		if err != nil {
			return nil, err
		}
		return !values.Truthy(v), nil

	case *FilteredExpr:
		return c.evalFiltered(e)
	}
	return nil, nil
}

// evalPath resolves the base variable and applies each lookup step.
func (c *Context) evalPath(e *PathExpr) (any, error) {
	cur := c.Get(e.Base)
	for _, lookup := range e.Lookups {
		key, err := c.eval(lookup)
		if err != nil {
			return nil, err
		}
		cur = index(cur, key)
	}
	return cur, nil
}

// evalRange materializes an inclusive integer range. An inverted range is
// empty.
func (c *Context) evalRange(e *RangeExpr) (any, error) {
	fromV, err := c.eval(e.From)
	if err != nil {
		return nil, err
	}
	toV, err := c.eval(e.To)
	if err != nil {
		return nil, err
	}
	from, ok := values.Int(fromV)
	if !ok {
		return nil, fmt.Errorf("range start %v is not an integer", fromV)
	}
	to, ok := values.Int(toV)
	if !ok {
		return nil, fmt.Errorf("range end %v is not an integer", toV)
	}
	if to < from {
		return []any{}, nil
	}
	out := make([]any, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out, nil
}

// evalBinary applies a logical or comparison operator. Logical operators
// short-circuit.
func (c *Context) evalBinary(e *BinaryExpr) (any, error) {
	if e.Op == TokenAnd || e.Op == TokenOr {
		l, err := c.eval(e.Left)
		if err != nil {
			return nil, err
		}
		if e.Op == TokenAnd && !values.Truthy(l) {
			return false, nil
		}
		if e.Op == TokenOr && values.Truthy(l) {
			return true, nil
		}
		r, err := c.eval(e.Right)
		if err != nil {
			return nil, err
		}
		return values.Truthy(r), nil
	}

	l, err := c.eval(e.Left)
	if err != nil {
		return nil, err
	}
	r, err := c.eval(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case TokenEq:
		return equals(l, r), nil
	case TokenNeq:
		return !equals(l, r), nil
	case TokenContains:
		return containsValue(l, r), nil
	}

	cmp, ok := orderedCompare(l, r)
	if !ok {
		return nil, fmt.Errorf("cannot compare %T with %T at position %d", l, r, e.Pos)
	}
	switch e.Op {
	case TokenLt:
		return cmp < 0, nil
	case TokenGt:
		return cmp > 0, nil
	case TokenLte:
		return cmp <= 0, nil
	case TokenGte:
		return cmp >= 0, nil
	}
	return nil, fmt.Errorf("unsupported operator %s at position %d", e.Op, e.Pos)
}

// evalFiltered evaluates the head expression and pushes it through the
// pipeline. A failing filter aborts the render with its own error.
func (c *Context) evalFiltered(fe *FilteredExpr) (any, error) {
	val, err := c.eval(fe.Expr)
	if err != nil {
		return nil, err
	}
	for _, f := range fe.Filters {
		args := make([]any, len(f.Args))
		for i, a := range f.Args {
			v, err := c.eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		if c.onFilter != nil {
			c.onFilter(f.Name)
		}
		val, err = c.bank.Invoke(f.Name, val, args)
		if err != nil {
			return nil, err
		}
	}
	return val, nil
}

// index applies one lookup step: integer indexes on collections, property
// names on maps and structs, and the size/first/last conveniences.
func index(container, key any) any {
	if container == nil {
		return nil
	}

	if items, ok := values.Slice(container); ok {
		if n, isInt := values.Int(key); isInt {
			if n < 0 {
				n += len(items)
			}
			if n < 0 || n >= len(items) {
				return nil
			}
			return items[n]
		}
		switch values.Str(key) {
		case "size":
			return len(items)
		case "first":
			if len(items) > 0 {
				return items[0]
			}
		case "last":
			if len(items) > 0 {
				return items[len(items)-1]
			}
		}
		return nil
	}

	if s, ok := container.(string); ok {
		if values.Str(key) == "size" {
			return len([]rune(s))
		}
		return nil
	}

	if v := values.Property(container, values.Str(key)); v != nil {
		return v
	}
	if values.Str(key) == "size" {
		if n, ok := values.Len(container); ok {
			return n
		}
	}
	return nil
}

// equals implements template equality: numbers compare across types, the
// empty keyword matches any zero-length value, and everything else falls
// back to deep equality.
func equals(a, b any) bool {
	if _, ok := a.(emptyMarker); ok {
		return isEmpty(b)
	}
	if _, ok := b.(emptyMarker); ok {
		return isEmpty(a)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumber(a) && isNumber(b) {
		af, _ := values.Float(a)
		bf, _ := values.Float(b)
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

// isEmpty reports whether v has a length of zero.
func isEmpty(v any) bool {
	n, ok := values.Len(v)
	return ok && n == 0
}

// isNumber reports an actual numeric type; numeric strings do not count
// for equality.
func isNumber(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return values.Integral(v)
}

// orderedCompare orders two values when an order exists: both numbers, or
// both strings.
func orderedCompare(a, b any) (int, bool) {
	if isNumber(a) && isNumber(b) {
		af, _ := values.Float(a)
		bf, _ := values.Float(b)
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

// containsValue implements the contains operator: substring on strings,
// membership on collections.
func containsValue(a, b any) bool {
	if s, ok := a.(string); ok {
		return strings.Contains(s, values.Str(b))
	}
	if items, ok := values.Slice(a); ok {
		for _, it := range items {
			if equals(it, b) {
				return true
			}
		}
	}
	return false
}
