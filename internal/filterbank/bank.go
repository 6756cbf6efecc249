// Package filterbank implements the filter registry and dispatcher behind
// the template pipeline. Template authors name pipeline stages; the bank
// resolves each name to registered behavior and applies it to the running
// value. Names are matched through a canonical key, so authors never fight
// over capitalization or underscores, and an unresolved name passes the
// value through untouched rather than aborting the render.
package filterbank

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/zjrosen/tamis/internal/filters"
)

// ErrInvalidFilter indicates a RegisterFilter argument that is neither a
// nameable callback, a registerable type, a known function name, nor a
// provider instance.
var ErrInvalidFilter = errors.New("filterbank: invalid filter argument")

// EnvironmentAware is implemented by provider instances that want the
// ambient render capability. The bank hands it over on registration and
// never looks inside; its shape is the renderer's business.
type EnvironmentAware interface {
	BindEnvironment(env any)
}

// bindMethodName is excluded from filter enumeration and method dispatch:
// it is the injection hook above, not a filter.
const bindMethodName = "BindEnvironment"

// Bank maps canonical filter keys to invocable behavior and dispatches
// pipeline stages onto them. All methods are safe for concurrent use,
// though the expected shape is a setup phase that registers everything
// followed by read-heavy rendering.
type Bank struct {
	mu        sync.RWMutex
	sources   map[string]filterSource
	providers map[reflect.Type]reflect.Value
	funcs     map[string]reflect.Value
	types     map[string]reflect.Type

	env    any
	packs  []any
	onMiss func(name string)
}

// Option configures a Bank before its bundled packs are registered.
type Option func(*Bank)

// WithEnvironment sets the opaque render capability handed to provider
// instances that implement EnvironmentAware.
func WithEnvironment(env any) Option {
	return func(b *Bank) { b.env = env }
}

// WithPacks replaces the bundled filter packs registered at construction.
// Packs are ordinary RegisterFilter arguments, applied in order, so a later
// pack wins any name it shares with an earlier one.
func WithPacks(packs ...any) Option {
	return func(b *Bank) {
		b.packs = packs
		if b.packs == nil {
			b.packs = []any{}
		}
	}
}

// WithMissHandler sets a diagnostic callback fired when Invoke cannot
// resolve a name. The pass-through behavior is unchanged; the callback
// only observes.
func WithMissHandler(fn func(name string)) Option {
	return func(b *Bank) { b.onMiss = fn }
}

// New creates a Bank with the standard and extras packs registered by
// type, in that order. WithPacks overrides the bundle; everything else
// goes through RegisterFilter afterwards.
func New(opts ...Option) (*Bank, error) {
	b := &Bank{
		sources:   make(map[string]filterSource),
		providers: make(map[reflect.Type]reflect.Value),
		funcs:     make(map[string]reflect.Value),
		types:     make(map[string]reflect.Type),
	}
	for _, opt := range opts {
		opt(b)
	}
	packs := b.packs
	if packs == nil {
		packs = []any{reflect.TypeOf(filters.Standard{}), reflect.TypeOf(filters.Extras{})}
	}
	for _, pack := range packs {
		if err := b.RegisterFilter(pack); err != nil {
			return nil, fmt.Errorf("registering filter pack: %w", err)
		}
	}
	return b, nil
}

// DefineFunc adds fn to the bank's named-function namespace. Defining a
// function does not expose a filter by itself: RegisterFilter(name) binds
// the name once the function is known, and the binding resolves the
// function again at each invocation, so redefining it takes effect on the
// next call.
func (b *Bank) DefineFunc(name string, fn any) error {
	if name == "" {
		return fmt.Errorf("%w: empty function name", ErrInvalidFilter)
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("%w: %T is not a function", ErrInvalidFilter, fn)
	}
	b.mu.Lock()
	b.funcs[name] = v
	b.mu.Unlock()
	return nil
}

// DefineType adds t to the bank's named-type namespace under its base type
// name, letting a plain string register the type's methods as filters.
// Registering a reflect.Type directly defines it as a side effect.
func (b *Bank) DefineType(t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("%w: nil type", ErrInvalidFilter)
	}
	base := baseType(t)
	if base.Name() == "" {
		return fmt.Errorf("%w: unnamed type %s", ErrInvalidFilter, t)
	}
	b.mu.Lock()
	b.types[base.Name()] = t
	b.mu.Unlock()
	return nil
}

// RegisterFilter binds filter behavior into the bank. The argument decides
// the registration path, tried in precedence order:
//
//  1. a name with an explicit callback binds the callback to that name;
//  2. a reflect.Type, or a string naming a defined type, binds every
//     exported method of the type as a statically dispatched filter;
//  3. a string naming a defined function binds the name to the function
//     namespace, resolved again at each invocation;
//  4. a struct or pointer-to-struct instance is retained as a provider:
//     it receives the environment capability and every exported method
//     becomes a filter dispatched against it;
//  5. anything else fails with ErrInvalidFilter, leaving the bank as it
//     was.
//
// Later registrations silently overwrite earlier ones for the same
// canonical key. Nothing is ever unregistered.
func (b *Bank) RegisterFilter(filter any, callback ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if name, ok := filter.(string); ok {
		if len(callback) > 0 && callback[0] != nil {
			return b.bindCallback(name, callback[0])
		}
		if t, ok := b.lookupType(name); ok {
			b.bindType(t)
			return nil
		}
		if b.funcDefined(name) {
			b.sources[Normalize(name)] = globalSource{}
			return nil
		}
		return fmt.Errorf("%w: %q names no defined type or function", ErrInvalidFilter, name)
	}

	if t, ok := filter.(reflect.Type); ok && t != nil {
		b.bindType(t)
		if base := baseType(t); base.Name() != "" {
			b.types[base.Name()] = t
		}
		return nil
	}

	if v := reflect.ValueOf(filter); v.IsValid() && baseType(v.Type()).Kind() == reflect.Struct {
		b.bindProvider(v)
		return nil
	}

	return fmt.Errorf("%w: %T", ErrInvalidFilter, filter)
}

// bindCallback implements path 1. Caller holds the write lock.
func (b *Bank) bindCallback(name string, callback any) error {
	if name == "" {
		return fmt.Errorf("%w: empty filter name", ErrInvalidFilter)
	}
	fn := reflect.ValueOf(callback)
	if fn.Kind() != reflect.Func {
		return fmt.Errorf("%w: callback for %q is %T, not a function", ErrInvalidFilter, name, callback)
	}
	b.sources[Normalize(name)] = callbackSource{fn: fn}
	return nil
}

// bindType implements path 2. Methods are enumerated on the pointer type
// so value and pointer receivers both count. Caller holds the write lock.
func (b *Bank) bindType(t reflect.Type) {
	base := baseType(t)
	pt := reflect.PointerTo(base)
	for i := 0; i < pt.NumMethod(); i++ {
		name := pt.Method(i).Name
		if name == bindMethodName {
			continue
		}
		b.sources[Normalize(name)] = staticSource{typ: base}
	}
}

// bindProvider implements path 4. The provider's identity is its base
// struct type, so re-registering a provider of the same type swaps the
// instance under every key already pointing at it. A provider passed by
// value is copied to an addressable instance first, keeping pointer
// receiver methods callable. Caller holds the write lock.
func (b *Bank) bindProvider(v reflect.Value) {
	base := baseType(v.Type())
	if v.Kind() != reflect.Pointer {
		p := reflect.New(base)
		p.Elem().Set(v)
		v = p
	}
	b.providers[base] = v
	if aware, ok := v.Interface().(EnvironmentAware); ok {
		aware.BindEnvironment(b.env)
	}
	pt := v.Type()
	for i := 0; i < pt.NumMethod(); i++ {
		name := pt.Method(i).Name
		if name == bindMethodName {
			continue
		}
		b.sources[Normalize(name)] = instanceSource{typ: base}
	}
}

// lookupType resolves a string against the named-type namespace, raw
// spelling first, canonical key second. Caller holds a lock.
func (b *Bank) lookupType(name string) (reflect.Type, bool) {
	if t, ok := b.types[name]; ok {
		return t, true
	}
	key := Normalize(name)
	for tname, t := range b.types {
		if Normalize(tname) == key {
			return t, true
		}
	}
	return nil, false
}

// funcDefined reports whether the named-function namespace can satisfy
// name, by raw spelling or canonical key. Caller holds a lock.
func (b *Bank) funcDefined(name string) bool {
	if _, ok := b.funcs[name]; ok {
		return true
	}
	key := Normalize(name)
	for fname := range b.funcs {
		if Normalize(fname) == key {
			return true
		}
	}
	return false
}

// Invoke applies the named filter to value, with args following it in the
// filter's parameter list. An unknown name is not an error: the value
// flows through unchanged, so a typo in a template degrades the output
// instead of aborting the render. Errors raised by the filter itself come
// back unmodified.
func (b *Bank) Invoke(name string, value any, args []any) (any, error) {
	raw := aliasReserved(name)
	key := Normalize(raw)

	effective := make([]any, 0, len(args)+1)
	effective = append(effective, value)
	effective = append(effective, args...)

	b.mu.RLock()
	src, ok := b.sources[key]
	b.mu.RUnlock()
	if !ok {
		if b.onMiss != nil {
			b.onMiss(name)
		}
		return value, nil
	}

	switch s := src.(type) {
	case callbackSource:
		return call(raw, s.fn, effective)
	case staticSource:
		return b.invokeMethod(s.typ, raw, key, effective)
	case instanceSource:
		return b.invokeMethod(s.typ, raw, key, effective)
	case globalSource:
		return b.invokeFunc(raw, key, value, effective)
	}
	return value, nil
}

// invokeMethod dispatches onto the live provider for typ when one is
// registered, or onto a fresh zero instance otherwise. A zero instance
// still receives the environment capability, so ambient filters behave
// the same under both dispatch forms. The raw name is tried first so a
// provider's own spelling wins; the scan by canonical key picks up
// everything else.
func (b *Bank) invokeMethod(typ reflect.Type, raw, key string, effective []any) (any, error) {
	b.mu.RLock()
	target, live := b.providers[typ]
	env := b.env
	b.mu.RUnlock()
	if !live {
		target = reflect.New(typ)
		if aware, ok := target.Interface().(EnvironmentAware); ok && env != nil {
			aware.BindEnvironment(env)
		}
	}

	if m := target.MethodByName(raw); m.IsValid() {
		return call(raw, m, effective)
	}
	tt := target.Type()
	for i := 0; i < tt.NumMethod(); i++ {
		mname := tt.Method(i).Name
		if mname == bindMethodName {
			continue
		}
		if Normalize(mname) == key {
			return call(raw, target.Method(i), effective)
		}
	}
	return nil, fmt.Errorf("filter %q: no matching method on %s", raw, typ)
}

// invokeFunc resolves a function-namespace binding at call time, raw name
// first. A binding whose function has since vanished behaves like an
// unresolved name.
func (b *Bank) invokeFunc(raw, key string, value any, effective []any) (any, error) {
	b.mu.RLock()
	fn, ok := b.funcs[raw]
	if !ok {
		for fname, f := range b.funcs {
			if Normalize(fname) == key {
				fn, ok = f, true
				break
			}
		}
	}
	b.mu.RUnlock()
	if !ok {
		if b.onMiss != nil {
			b.onMiss(raw)
		}
		return value, nil
	}
	return call(raw, fn, effective)
}

// baseType strips one level of pointer, yielding the identity type used
// for providers and static dispatch.
func baseType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}
