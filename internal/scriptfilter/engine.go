// Package scriptfilter loads template filters written in JavaScript. A
// script compiles once; every function it declares at top level becomes a
// filter, called with the pipeline value first and the stage arguments
// after it. Execution borrows a runtime from a pool, so concurrent renders
// do not contend on a single VM.
package scriptfilter

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/mitchellh/mapstructure"

	"github.com/zjrosen/tamis/internal/filterbank"
	"github.com/zjrosen/tamis/internal/log"
)

// DefaultTimeout bounds a single filter call. Scripts are template
// helpers; anything running longer is stuck.
const DefaultTimeout = 2 * time.Second

// Definition describes one script source, typically decoded from the
// config file.
type Definition struct {
	Name    string        `mapstructure:"name"`
	Source  string        `mapstructure:"source"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DecodeDefinitions converts loosely typed configuration data into
// definitions. Timeouts accept duration strings ("500ms", "2s").
func DecodeDefinitions(raw any) ([]Definition, error) {
	var defs []Definition
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &defs,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding script filter definitions: %w", err)
	}
	return defs, nil
}

// Engine runs the filters declared by one script.
type Engine struct {
	name    string
	program *goja.Program
	timeout time.Duration
	names   []string
	pool    sync.Pool
}

// New compiles the script and discovers its top-level functions. The
// script body runs once here, so declaration-time errors surface
// immediately rather than on first render.
func New(def Definition) (*Engine, error) {
	name := def.Name
	if name == "" {
		name = "script"
	}
	program, err := goja.Compile(name, def.Source, true)
	if err != nil {
		return nil, fmt.Errorf("compiling script %s: %w", name, err)
	}

	e := &Engine{name: name, program: program, timeout: def.Timeout}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	e.pool.New = func() any { return e.newVM() }

	probe := goja.New()
	if _, err := probe.RunProgram(program); err != nil {
		return nil, fmt.Errorf("running script %s: %w", name, err)
	}
	for _, key := range probe.GlobalObject().Keys() {
		if _, ok := goja.AssertFunction(probe.Get(key)); ok {
			e.names = append(e.names, key)
		}
	}
	if len(e.names) == 0 {
		return nil, fmt.Errorf("script %s declares no functions", name)
	}
	sort.Strings(e.names)
	e.pool.Put(probe)
	return e, nil
}

// Names lists the declared filter names, sorted.
func (e *Engine) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Register binds every declared function into the bank as an explicit
// callback.
func (e *Engine) Register(bank *filterbank.Bank) error {
	for _, name := range e.names {
		err := bank.RegisterFilter(name, func(value any, args ...any) (any, error) {
			return e.Call(name, value, args...)
		})
		if err != nil {
			return fmt.Errorf("registering script filter %s: %w", name, err)
		}
	}
	return nil
}

// Call invokes one declared function. A call that overruns the timeout is
// interrupted and surfaces as an error; the runtime goes back to the pool
// clean either way.
func (e *Engine) Call(name string, value any, args ...any) (out any, err error) {
	defer func() {
		if caught := recover(); caught != nil {
			err = fmt.Errorf("script %s: %v", e.name, caught)
		}
	}()

	vm := e.pool.Get().(*goja.Runtime)
	defer e.pool.Put(vm)

	fn, ok := goja.AssertFunction(vm.Get(name))
	if !ok {
		return nil, fmt.Errorf("script %s: %q is not a function", e.name, name)
	}

	timer := time.AfterFunc(e.timeout, func() { vm.Interrupt("filter timed out") })
	defer func() {
		timer.Stop()
		vm.ClearInterrupt()
	}()

	params := make([]goja.Value, 0, len(args)+1)
	params = append(params, vm.ToValue(value))
	for _, a := range args {
		params = append(params, vm.ToValue(a))
	}
	res, err := fn(goja.Undefined(), params...)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", e.name, err)
	}
	return res.Export(), nil
}

// newVM readies a pooled runtime by replaying the compiled program. The
// program already ran cleanly at construction, so a replay failure is
// logged rather than surfaced.
func (e *Engine) newVM() *goja.Runtime {
	vm := goja.New()
	if _, err := vm.RunProgram(e.program); err != nil {
		log.Error(log.CatScript, "script replay failed", "script", e.name, "error", err)
	}
	return vm
}

// RegisterDefinitions compiles every definition and registers the
// functions each declares, returning the engines for introspection.
func RegisterDefinitions(bank *filterbank.Bank, defs []Definition) ([]*Engine, error) {
	engines := make([]*Engine, 0, len(defs))
	for _, def := range defs {
		e, err := New(def)
		if err != nil {
			return nil, err
		}
		if err := e.Register(bank); err != nil {
			return nil, err
		}
		engines = append(engines, e)
	}
	return engines, nil
}
