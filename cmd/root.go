package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/tamis/internal/config"
	"github.com/zjrosen/tamis/internal/engine"
	"github.com/zjrosen/tamis/internal/exprfilter"
	"github.com/zjrosen/tamis/internal/filterbank"
	"github.com/zjrosen/tamis/internal/log"
	"github.com/zjrosen/tamis/internal/pubsub"
	"github.com/zjrosen/tamis/internal/scriptfilter"
	"github.com/zjrosen/tamis/internal/tracing"
	"github.com/zjrosen/tamis/internal/watcher"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config

	dataFile  string
	outFile   string
	watchMode bool
	traceRun  bool
	debugFlag bool
	logMisses bool
	noCache   bool
)

var rootCmd = &cobra.Command{
	Use:   "tamis [template]",
	Short: "Render Liquid-style templates through a filter pipeline",
	Long: `Tamis renders Liquid-style templates: variables, filters, conditionals,
loops, and the rest of the tag set, with template variables supplied from
a YAML or JSON data file.

Filters are resolved through a shared bank. Beyond the bundled standard
and extras packs, filters can be defined in the config file as JavaScript
functions or as expressions, and an unknown filter name passes the value
through unchanged instead of failing the render.

Reads the template from the named file, or from stdin when no file (or
"-") is given.`,
	Version: version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runRender,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/tamis/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging (also via TAMIS_DEBUG)")
	rootCmd.Flags().StringVarP(&dataFile, "data", "d", "",
		"YAML or JSON file with template variables")
	rootCmd.Flags().StringVarP(&outFile, "out", "o", "",
		"write rendered output to file instead of stdout")
	rootCmd.Flags().BoolVarP(&watchMode, "watch", "w", false,
		"re-render when the template or data file changes")
	rootCmd.Flags().BoolVar(&traceRun, "trace", false,
		"enable tracing for this run")
	rootCmd.Flags().BoolVar(&logMisses, "log-misses", false,
		"log filter names that resolve to nothing")
	rootCmd.Flags().BoolVar(&noCache, "no-cache", false,
		"parse the template fresh on every render")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("cache_ttl", defaults.CacheTTL)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)
	viper.SetDefault("filters.log_misses", defaults.Filters.LogMisses)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .tamis/config.yaml (current directory)
		// 2. ~/.config/tamis/config.yaml (user config)
		if _, err := os.Stat(".tamis/config.yaml"); err == nil {
			viper.SetConfigFile(".tamis/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "tamis"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .tamis/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".tamis/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// initDebugLog enables logging when requested via flag or env var. The
// logger stays quiet otherwise.
func initDebugLog(command string) (func(), error) {
	if os.Getenv("TAMIS_DEBUG") == "" && !debugFlag {
		return func() {}, nil
	}

	logPath := os.Getenv("TAMIS_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}

	cleanup, err := log.Init(logPath)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log.Info(log.CatConfig, "tamis starting", "command", command, "logPath", logPath)
	return cleanup, nil
}

func runRender(_ *cobra.Command, args []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := initDebugLog("render")
	if err != nil {
		return err
	}
	defer cleanup()

	// Template source: file argument or stdin
	var name, src, tmplPath string
	if len(args) == 0 || args[0] == "-" {
		if watchMode {
			return fmt.Errorf("--watch needs a template file, not stdin")
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		name, src = "stdin", string(data)
	} else {
		tmplPath = resolveTemplatePath(args[0])
		data, err := os.ReadFile(tmplPath)
		if err != nil {
			return fmt.Errorf("reading template: %w", err)
		}
		name, src = filepath.Base(tmplPath), string(data)
	}

	bank, err := buildBank(cfg.Filters, logMisses)
	if err != nil {
		return err
	}

	cache := engine.NewCache(cfg.CacheTTL)
	if noCache {
		cache = engine.NewPassthroughCache()
	}

	provider, err := tracing.NewProvider(tracingConfig())
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	r := renderer{
		bank:     bank,
		cache:    cache,
		provider: provider,
		dataFile: dataFile,
	}

	if !watchMode {
		out, err := r.render(context.Background(), name, src)
		if err != nil {
			return err
		}
		return writeOutput(out)
	}

	return runWatch(r, tmplPath)
}

// resolveTemplatePath applies the configured template directory to
// relative template arguments that do not resolve on their own.
func resolveTemplatePath(arg string) string {
	if cfg.TemplateDir == "" || filepath.IsAbs(arg) {
		return arg
	}
	if _, err := os.Stat(arg); err == nil {
		return arg
	}
	return filepath.Join(cfg.TemplateDir, arg)
}

// buildBank constructs the shared filter bank: bundled packs first, then
// the script and expression filters defined in config.
func buildBank(fc config.FiltersConfig, logMisses bool) (*filterbank.Bank, error) {
	var opts []filterbank.Option
	if logMisses || fc.LogMisses {
		opts = append(opts, filterbank.WithMissHandler(func(name string) {
			log.Warn(log.CatFilter, "filter resolved to nothing", "name", name)
		}))
	}

	bank, err := filterbank.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("building filter bank: %w", err)
	}

	scriptDefs, err := scriptfilter.DecodeDefinitions(fc.Scripts)
	if err != nil {
		return nil, fmt.Errorf("decoding script filters: %w", err)
	}
	if _, err := scriptfilter.RegisterDefinitions(bank, scriptDefs); err != nil {
		return nil, fmt.Errorf("loading script filters: %w", err)
	}

	exprDefs, err := exprfilter.DecodeDefinitions(fc.Expressions)
	if err != nil {
		return nil, fmt.Errorf("decoding expression filters: %w", err)
	}
	if err := exprfilter.RegisterDefinitions(bank, exprDefs); err != nil {
		return nil, fmt.Errorf("loading expression filters: %w", err)
	}

	return bank, nil
}

// tracingConfig maps config onto the tracing subsystem, with the --trace
// flag forcing tracing on for this run.
func tracingConfig() tracing.Config {
	tc := tracing.Config{
		Enabled:      cfg.Tracing.Enabled || traceRun,
		Exporter:     cfg.Tracing.Exporter,
		FilePath:     cfg.Tracing.FilePath,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
	}
	if tc.Enabled && tc.Exporter == "file" && tc.FilePath == "" {
		tc.FilePath = config.DefaultTracesPath()
	}
	return tc
}

// renderer holds everything one render run needs. The same value serves
// every cycle in watch mode.
type renderer struct {
	bank     *filterbank.Bank
	cache    *engine.Cache
	provider *tracing.Provider
	dataFile string
}

// render loads variables, parses through the cache, and renders, with a
// span around each stage.
func (r renderer) render(ctx context.Context, name, src string) (string, error) {
	vars, err := r.loadVars(ctx)
	if err != nil {
		return "", err
	}

	ctx, parseSpan := r.provider.Tracer().Start(ctx, tracing.SpanParse)
	parseSpan.SetAttributes(
		attribute.String(tracing.AttrTemplateName, name),
		attribute.Int(tracing.AttrTemplateSize, len(src)),
		attribute.String(tracing.AttrCacheTTL, r.cache.TTL().String()),
	)
	tmpl, err := r.cache.Parse(ctx, name, src)
	if err != nil {
		parseSpan.RecordError(err)
		parseSpan.SetStatus(codes.Error, err.Error())
		parseSpan.End()
		return "", err
	}
	parseSpan.End()

	_, renderSpan := r.provider.Tracer().Start(ctx, tracing.SpanRender)
	renderSpan.SetAttributes(
		attribute.String(tracing.AttrTemplateName, name),
		attribute.Int(tracing.AttrVarCount, len(vars)),
	)
	var applied []string
	out, err := tmpl.Render(vars,
		engine.WithBank(r.bank),
		engine.WithFilterObserver(func(filter string) { applied = append(applied, filter) }),
	)
	renderSpan.SetAttributes(attribute.StringSlice(tracing.AttrFilters, applied))
	if err != nil {
		renderSpan.RecordError(err)
		renderSpan.SetStatus(codes.Error, err.Error())
		renderSpan.End()
		return "", err
	}
	renderSpan.SetAttributes(attribute.Int(tracing.AttrOutputSize, len(out)))
	renderSpan.End()

	log.Debug(log.CatRender, "render complete", "template", name, "bytes", len(out))
	return out, nil
}

// loadVars reads template variables from the data file, if one was given.
func (r renderer) loadVars(ctx context.Context) (map[string]any, error) {
	if r.dataFile == "" {
		return map[string]any{}, nil
	}

	_, span := r.provider.Tracer().Start(ctx, tracing.SpanData)
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrDataFile, r.dataFile))

	vars, err := readVars(r.dataFile)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int(tracing.AttrVarCount, len(vars)))
	return vars, nil
}

// readVars reads template variables from a data file. JSON files decode
// as JSON, everything else as YAML.
func readVars(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading data file: %w", err)
	}

	vars := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &vars); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &vars); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return vars, nil
}

// writeOutput sends the rendered text to --out or stdout, exactly as the
// template produced it.
func writeOutput(out string) error {
	if outFile == "" {
		_, err := io.WriteString(os.Stdout, out)
		return err
	}
	if err := os.WriteFile(outFile, []byte(out), 0o644); err != nil { //nolint:gosec // G306: rendered output is not sensitive
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// runWatch renders once, then re-renders on every change to the template
// or data file until interrupted. Render failures are reported and the
// loop keeps going, so a half-typed template does not kill the session.
func runWatch(r renderer, tmplPath string) error {
	broker := pubsub.NewBroker[string]()
	defer broker.Close()

	paths := []string{tmplPath}
	if r.dataFile != "" {
		paths = append(paths, r.dataFile)
	}

	w, err := watcher.New(watcher.Config{
		Paths:    paths,
		Debounce: cfg.Watch.Debounce,
	}, broker)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := broker.Subscribe(ctx)

	if err := w.Start(); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Fprintf(os.Stderr, "watching %s\n", strings.Join(paths, ", "))

	watchCycle(ctx, r, tmplPath)

	for {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "\nreceived %s, stopping\n", sig)
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type == pubsub.RemovedEvent {
				fmt.Fprintf(os.Stderr, "watch: %s removed\n", ev.Payload)
				continue
			}
			watchCycle(ctx, r, tmplPath)
		}
	}
}

// watchCycle re-reads the template and renders it, reporting failures to
// stderr. The cycle span carries the failure message when a render fails;
// the cycle itself always completes.
func watchCycle(ctx context.Context, r renderer, tmplPath string) {
	ctx, span := r.provider.Tracer().Start(ctx, tracing.SpanWatch)
	defer span.End()

	data, err := os.ReadFile(tmplPath)
	if err != nil {
		span.SetAttributes(attribute.String(tracing.AttrErrorMessage, err.Error()))
		fmt.Fprintf(os.Stderr, "watch: reading template: %v\n", err)
		return
	}

	out, err := r.render(ctx, filepath.Base(tmplPath), string(data))
	if err != nil {
		span.SetAttributes(attribute.String(tracing.AttrErrorMessage, err.Error()))
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		return
	}

	if err := writeOutput(out); err != nil {
		span.SetAttributes(attribute.String(tracing.AttrErrorMessage, err.Error()))
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
