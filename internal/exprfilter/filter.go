// Package exprfilter defines template filters as single expressions. An
// expression sees the pipeline value as `value` and the stage arguments as
// `args`; whatever it evaluates to becomes the stage output.
package exprfilter

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mitchellh/mapstructure"

	"github.com/zjrosen/tamis/internal/filterbank"
)

// Definition describes one expression filter, typically decoded from the
// config file.
type Definition struct {
	Name string `mapstructure:"name"`
	Expr string `mapstructure:"expr"`
}

// DecodeDefinitions converts loosely typed configuration data into
// definitions.
func DecodeDefinitions(raw any) ([]Definition, error) {
	var defs []Definition
	if err := mapstructure.Decode(raw, &defs); err != nil {
		return nil, fmt.Errorf("decoding expression filter definitions: %w", err)
	}
	return defs, nil
}

// Filter is one compiled expression filter.
type Filter struct {
	name    string
	program *vm.Program
}

// Compile builds a filter from its definition. Undefined variables are
// allowed so an expression can probe arguments that may not be passed.
func Compile(def Definition) (*Filter, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("expression filter needs a name")
	}
	program, err := expr.Compile(def.Expr, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compiling expression filter %s: %w", def.Name, err)
	}
	return &Filter{name: def.Name, program: program}, nil
}

// Name returns the name the filter registers under.
func (f *Filter) Name() string {
	return f.name
}

// Call evaluates the expression against the pipeline value and arguments.
func (f *Filter) Call(value any, args ...any) (any, error) {
	env := map[string]any{
		"value": value,
		"args":  args,
	}
	var machine vm.VM
	out, err := machine.Run(f.program, env)
	if err != nil {
		return nil, fmt.Errorf("expression filter %s: %w", f.name, err)
	}
	return out, nil
}

// Register binds the filter into the bank as an explicit callback.
func (f *Filter) Register(bank *filterbank.Bank) error {
	return bank.RegisterFilter(f.name, f.Call)
}

// RegisterDefinitions compiles and registers every definition.
func RegisterDefinitions(bank *filterbank.Bank, defs []Definition) error {
	for _, def := range defs {
		f, err := Compile(def)
		if err != nil {
			return err
		}
		if err := f.Register(bank); err != nil {
			return err
		}
	}
	return nil
}
