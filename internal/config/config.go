// Package config provides configuration types and defaults for tamis.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/tamis/internal/log"
)

// Config is the top-level configuration loaded from config.yaml.
type Config struct {
	// TemplateDir is the directory relative template names resolve
	// against. Empty means the current directory.
	TemplateDir string `mapstructure:"template_dir"`

	// CacheTTL controls how long parsed templates stay in the cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	Filters FiltersConfig `mapstructure:"filters"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// FiltersConfig configures the filter bank built for each render.
type FiltersConfig struct {
	// LogMisses logs lookups of filter names that resolve to nothing.
	// The piped value passes through unchanged either way.
	LogMisses bool `mapstructure:"log_misses"`

	// Scripts holds JavaScript filter definitions. Each entry is decoded
	// by the script filter loader (name, source, timeout).
	Scripts []any `mapstructure:"scripts"`

	// Expressions holds expression filter definitions. Each entry is
	// decoded by the expression filter loader (name, expr).
	Expressions []any `mapstructure:"expressions"`
}

// WatchConfig tunes the --watch re-render loop.
type WatchConfig struct {
	// Debounce coalesces bursts of file events into a single re-render.
	Debounce time.Duration `mapstructure:"debounce"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`      // none, file, stdout, otlp
	FilePath     string  `mapstructure:"file_path"`     // for file exporter
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"` // for otlp exporter
	SampleRate   float64 `mapstructure:"sample_rate"`   // 0.0 to 1.0
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		CacheTTL: 10 * time.Minute,
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// DefaultTracesPath returns the default location for the file exporter,
// used when tracing.file_path is not set.
func DefaultTracesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tamis", "traces.jsonl")
	}
	return filepath.Join(home, ".config", "tamis", "traces.jsonl")
}

// ValidateTracing checks tracing configuration for invalid values.
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	switch tracing.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
	}

	return nil
}

// ValidateWatch checks watch configuration for invalid values.
func ValidateWatch(watch WatchConfig) error {
	if watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce cannot be negative, got %v", watch.Debounce)
	}
	return nil
}

// Validate checks the full configuration, returning the first problem found.
func Validate(cfg Config) error {
	if cfg.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl cannot be negative, got %v", cfg.CacheTTL)
	}
	if err := ValidateWatch(cfg.Watch); err != nil {
		return err
	}
	if err := ValidateTracing(cfg.Tracing); err != nil {
		return err
	}
	return nil
}

// DefaultConfigTemplate returns the default config file content with
// explanatory comments.
func DefaultConfigTemplate() string {
	return `# Tamis Configuration
# See https://github.com/zjrosen/tamis for documentation.

# Directory relative template names resolve against.
# template_dir: ./templates

# How long parsed templates stay cached before re-parsing.
cache_ttl: 10m

filters:
  # Log filter names that resolve to nothing. The piped value passes
  # through unchanged either way.
  log_misses: false

  # Filters defined as expressions. The piped value is bound to "value"
  # and the filter arguments to "args".
  # expressions:
  #   - name: excite
  #     expr: upper(string(value)) + "!"

  # Filters defined in JavaScript. Every function the script declares
  # becomes a filter under its own name.
  # scripts:
  #   - name: helpers
  #     timeout: 2s
  #     source: |
  #       function shout(value) {
  #         return String(value).toUpperCase() + "!";
  #       }

watch:
  # How long to wait after a file change before re-rendering.
  debounce: 200ms

# Distributed tracing for parse and render spans.
# tracing:
#   enabled: false
#   exporter: file          # none, file, stdout, otlp
#   file_path: ~/.config/tamis/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0
`
}

// WriteDefaultConfig writes the default config template to the given path.
// Creates parent directories as needed.
func WriteDefaultConfig(path string) error {
	log.Debug(log.CatConfig, "writing default config", "path", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write default config", err, "path", path)
		return fmt.Errorf("writing default config: %w", err)
	}

	log.Info(log.CatConfig, "default config written", "path", path)
	return nil
}
