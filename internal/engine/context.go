package engine

import (
	"time"

	"github.com/zjrosen/tamis/internal/filterbank"
)

// Context carries the state of one render: the variable scopes, the filter
// bank, and the clock. A fresh context is built per render, so templates
// themselves stay immutable and shareable.
type Context struct {
	scopes   []map[string]any
	bank     *filterbank.Bank
	clock    func() time.Time
	onFilter func(name string)
}

// newContext seeds the outermost scope with the caller's variables.
func newContext(vars map[string]any, clock func() time.Time) *Context {
	global := make(map[string]any, len(vars))
	for k, v := range vars {
		global[k] = v
	}
	return &Context{scopes: []map[string]any{global}, clock: clock}
}

// push opens a scope for loop-local bindings.
func (c *Context) push() {
	c.scopes = append(c.scopes, map[string]any{})
}

// pop closes the innermost scope.
func (c *Context) pop() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

// Get resolves a name, innermost scope first. Unknown names are nil, never
// an error.
func (c *Context) Get(name string) any {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if v, ok := c.scopes[i][name]; ok {
			return v
		}
	}
	return nil
}

// setLocal binds a name in the innermost scope.
func (c *Context) setLocal(name string, v any) {
	c.scopes[len(c.scopes)-1][name] = v
}

// setGlobal binds a name in the outermost scope, so assignments survive
// the block they appear in.
func (c *Context) setGlobal(name string, v any) {
	c.scopes[0][name] = v
}

// Now returns the render clock. Filter packs that care about time pick
// this up through their environment binding.
func (c *Context) Now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now()
}
