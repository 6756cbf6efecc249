package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/tamis/internal/config"
	"github.com/zjrosen/tamis/internal/exprfilter"
	"github.com/zjrosen/tamis/internal/filterbank"
	"github.com/zjrosen/tamis/internal/presentation"
	"github.com/zjrosen/tamis/internal/scriptfilter"
)

var (
	filterKinds []string
)

var filtersListCmd = &cobra.Command{
	Use:   "filters:list",
	Short: "List all registered filters",
	Long: `List every registered filter as JSON, including the user-defined
script and expression filters declared in the config file.

Each entry shows the canonical key the filter resolves under and the
kind of source behind it. Use --kind to narrow the listing (repeatable,
OR logic).

Kinds:
  static    method on a bundled pack, fresh receiver per call
  instance  method dispatched against a registered provider value
  callback  function bound to a single name; script and expression
            filters register this way
  function  named function resolved through the bank's function table

Examples:
  # List all filters
  tamis filters:list

  # Only user-defined filters
  tamis filters:list --kind callback
  tamis filters:list -k callback

  # Parse specific fields with jq
  tamis filters:list | jq -r '.[].key'
  tamis filters:list | jq '.[] | select(.kind == "static")'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bank, err := buildBank(cfg.Filters, false)
		if err != nil {
			return err
		}

		regs := bank.Registrations()
		if len(filterKinds) > 0 {
			regs = filterByKind(regs, filterKinds)
		}

		formatter := presentation.NewFormatter(os.Stdout)
		dtos := presentation.FromRegistrations(regs)

		return formatter.FormatFilters(dtos)
	},
}

var (
	addExpr       string
	addSource     string
	addSourceFile string
	addTimeout    time.Duration
)

var filtersAddCmd = &cobra.Command{
	Use:   "filters:add <name>",
	Short: "Add a filter definition to the config file",
	Long: `Add a user-defined filter to the config file. Comments and formatting
already in the file are preserved.

The definition is compiled before anything is written, so a broken
expression or script never lands in the config. Exactly one source must
be given:
  --expr: an expression body; "value" and "args" are in scope
  --source: JavaScript declaring one or more filter functions
  --source-file: like --source, read from a file

A script's top-level functions all become filters; <name> names the
script itself.

Examples:
  # An expression filter
  tamis filters:add excite --expr 'upper(string(value)) + "!"'

  # A JavaScript filter, inline
  tamis filters:add shout --source 'function shout(v) { return String(v).toUpperCase() }'

  # Several filters from one file, with a tighter call timeout
  tamis filters:add helpers --source-file helpers.js --timeout 500ms`,
	Args: cobra.ExactArgs(1),
	RunE: runFiltersAdd,
}

func runFiltersAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	set := 0
	for _, s := range []string{addExpr, addSource, addSourceFile} {
		if s != "" {
			set++
		}
	}
	if set == 0 {
		return cmd.Help()
	}
	if set > 1 {
		return fmt.Errorf("only one of --expr, --source, or --source-file may be given")
	}

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		// No config file was loaded, default to .tamis/config.yaml
		configPath = ".tamis/config.yaml"
	}

	result := filterSaveResult{Name: name, Config: configPath}

	if addExpr != "" {
		if _, err := exprfilter.Compile(exprfilter.Definition{Name: name, Expr: addExpr}); err != nil {
			return err
		}
		if err := config.SaveExpressionFilter(configPath, name, addExpr); err != nil {
			return err
		}
		result.Kind = "expression"
		result.Filters = []string{name}
	} else {
		source := addSource
		if addSourceFile != "" {
			data, err := os.ReadFile(addSourceFile)
			if err != nil {
				return fmt.Errorf("reading source file: %w", err)
			}
			source = string(data)
		}

		eng, err := scriptfilter.New(scriptfilter.Definition{Name: name, Source: source, Timeout: addTimeout})
		if err != nil {
			return err
		}
		if err := config.SaveScriptFilter(configPath, name, source, addTimeout); err != nil {
			return err
		}
		result.Kind = "script"
		result.Filters = eng.Names()
	}

	formatter := presentation.NewFormatter(os.Stdout)
	return formatter.FormatSaveResult(result)
}

// filterSaveResult reports what filters:add wrote and where
type filterSaveResult struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Filters []string `json:"filters"`
	Config  string   `json:"config"`
}

func init() {
	filtersListCmd.Flags().StringArrayVarP(&filterKinds, "kind", "k", nil, "Filter by source kind (can be repeated, e.g., --kind callback)")
	filtersAddCmd.Flags().StringVar(&addExpr, "expr", "", "Expression body for the filter")
	filtersAddCmd.Flags().StringVar(&addSource, "source", "", "JavaScript source declaring filter functions")
	filtersAddCmd.Flags().StringVar(&addSourceFile, "source-file", "", "Read JavaScript source from a file")
	filtersAddCmd.Flags().DurationVar(&addTimeout, "timeout", 0, "Per-call script timeout (0 uses the default)")
	rootCmd.AddCommand(filtersListCmd)
	rootCmd.AddCommand(filtersAddCmd)
}

// filterByKind keeps registrations whose kind matches any requested kind
func filterByKind(regs []filterbank.Registration, kinds []string) []filterbank.Registration {
	keep := make(map[string]bool)
	for _, k := range kinds {
		keep[k] = true
	}
	result := make([]filterbank.Registration, 0)
	for _, reg := range regs {
		if keep[string(reg.Kind)] {
			result = append(result, reg)
		}
	}
	return result
}
