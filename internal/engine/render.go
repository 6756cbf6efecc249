package engine

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/zjrosen/tamis/internal/values"
)

// errBreak and errContinue thread loop control flow out of nested nodes;
// the innermost loop absorbs them.
var (
	errBreak    = errors.New("break")
	errContinue = errors.New("continue")
)

// renderNodes renders a node list into out.
func (c *Context) renderNodes(nodes []Node, out *strings.Builder) error {
	for _, n := range nodes {
		if err := c.renderNode(n, out); err != nil {
			return err
		}
	}
	return nil
}

// renderNode renders a single statement.
func (c *Context) renderNode(node Node, out *strings.Builder) error {
	switch n := node.(type) {
	case *TextNode:
		out.WriteString(n.Text)

	case *OutputNode:
		v, err := c.eval(n.Expr)
		if err != nil {
			return err
		}
		out.WriteString(values.Str(v))

	case *AssignNode:
		v, err := c.eval(n.Expr)
		if err != nil {
			return err
		}
		c.setGlobal(n.Name, v)

	case *CaptureNode:
		var buf strings.Builder
		if err := c.renderNodes(n.Body, &buf); err != nil {
			return err
		}
		c.setGlobal(n.Name, buf.String())

	case *IfNode:
		for _, br := range n.Branches {
			v, err := c.eval(br.Cond)
			if err != nil {
				return err
			}
			if values.Truthy(v) {
				return c.renderNodes(br.Body, out)
			}
		}
		return c.renderNodes(n.Else, out)

	case *CaseNode:
		subject, err := c.eval(n.Subject)
		if err != nil {
			return err
		}
		for _, when := range n.Whens {
			for _, ve := range when.Values {
				v, err := c.eval(ve)
				if err != nil {
					return err
				}
				if equals(subject, v) {
					return c.renderNodes(when.Body, out)
				}
			}
		}
		return c.renderNodes(n.Else, out)

	case *ForNode:
		return c.renderFor(n, out)

	case *BreakNode:
		return errBreak

	case *ContinueNode:
		return errContinue
	}
	return nil
}

// renderFor materializes the collection, applies offset, limit and
// reversed, then renders the body once per element with the loop variable
// and forloop bound in a fresh scope.
func (c *Context) renderFor(n *ForNode, out *strings.Builder) error {
	collV, err := c.eval(n.Collection)
	if err != nil {
		return err
	}
	items, ok := values.Slice(collV)
	if !ok {
		items = mapPairs(collV)
	}

	if n.Offset != nil {
		v, err := c.eval(n.Offset)
		if err != nil {
			return err
		}
		if off, ok := values.Int(v); ok && off > 0 {
			if off > len(items) {
				off = len(items)
			}
			items = items[off:]
		}
	}
	if n.Limit != nil {
		v, err := c.eval(n.Limit)
		if err != nil {
			return err
		}
		if lim, ok := values.Int(v); ok && lim >= 0 && lim < len(items) {
			items = items[:lim]
		}
	}
	if n.Reversed {
		rev := make([]any, len(items))
		for i, it := range items {
			rev[len(items)-1-i] = it
		}
		items = rev
	}

	if len(items) == 0 {
		return c.renderNodes(n.Else, out)
	}

	c.push()
	defer c.pop()

	length := len(items)
	for i, item := range items {
		c.setLocal(n.Var, item)
		c.setLocal("forloop", map[string]any{
			"index":   i + 1,
			"index0":  i,
			"rindex":  length - i,
			"rindex0": length - i - 1,
			"first":   i == 0,
			"last":    i == length-1,
			"length":  length,
		})

		if err := c.renderNodes(n.Body, out); err != nil {
			if errors.Is(err, errBreak) {
				break
			}
			if errors.Is(err, errContinue) {
				continue
			}
			return err
		}
	}
	return nil
}

// mapPairs turns a map into iterable [key, value] pairs, sorted by key so
// renders are stable.
func mapPairs(v any) []any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil
	}
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return values.Str(keys[i].Interface()) < values.Str(keys[j].Interface())
	})
	pairs := make([]any, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, []any{k.Interface(), rv.MapIndex(k).Interface()})
	}
	return pairs
}
