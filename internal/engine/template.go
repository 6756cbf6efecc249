package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/tamis/internal/filterbank"
)

// Template is a parsed template. Parsing happens once; a template may then
// be rendered concurrently, each render getting its own context and, by
// default, its own filter bank bound to that context.
type Template struct {
	name  string
	nodes []Node
}

// Parse parses template source. The name appears in errors and cache keys,
// nowhere else.
func Parse(name, src string) (*Template, error) {
	nodes, err := parseDocument(src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return &Template{name: name, nodes: nodes}, nil
}

// ParseFile reads and parses a template file, naming the template after
// the file's base name.
func ParseFile(path string) (*Template, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	return Parse(filepath.Base(path), string(src))
}

// Name returns the name the template was parsed under.
func (t *Template) Name() string {
	return t.name
}

// renderConfig collects per-render options.
type renderConfig struct {
	bank     *filterbank.Bank
	packs    []any
	packsSet bool
	clock    func() time.Time
	onMiss   func(name string)
	onFilter func(name string)
}

// RenderOption configures a single render.
type RenderOption func(*renderConfig)

// WithBank renders through a caller-owned filter bank instead of building
// one per render. Environment binding is then the caller's business.
func WithBank(b *filterbank.Bank) RenderOption {
	return func(cfg *renderConfig) { cfg.bank = b }
}

// WithFilterPacks overrides the packs registered into the per-render bank,
// in order.
func WithFilterPacks(packs ...any) RenderOption {
	return func(cfg *renderConfig) {
		cfg.packs = packs
		cfg.packsSet = true
	}
}

// WithClock pins the render clock, which keeps date output reproducible.
func WithClock(fn func() time.Time) RenderOption {
	return func(cfg *renderConfig) { cfg.clock = fn }
}

// WithMissHandler observes filter names that resolve to nothing. The
// unresolved value still passes through unchanged.
func WithMissHandler(fn func(name string)) RenderOption {
	return func(cfg *renderConfig) { cfg.onMiss = fn }
}

// WithFilterObserver is called with each pipeline stage's filter name, in
// application order, before the stage runs.
func WithFilterObserver(fn func(name string)) RenderOption {
	return func(cfg *renderConfig) { cfg.onFilter = fn }
}

// Render executes the template against vars.
func (t *Template) Render(vars map[string]any, opts ...RenderOption) (string, error) {
	var cfg renderConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := newContext(vars, cfg.clock)
	ctx.onFilter = cfg.onFilter

	bank := cfg.bank
	if bank == nil {
		bopts := []filterbank.Option{filterbank.WithEnvironment(ctx)}
		if cfg.packsSet {
			bopts = append(bopts, filterbank.WithPacks(cfg.packs...))
		}
		if cfg.onMiss != nil {
			bopts = append(bopts, filterbank.WithMissHandler(cfg.onMiss))
		}
		b, err := filterbank.New(bopts...)
		if err != nil {
			return "", fmt.Errorf("rendering %s: %w", t.name, err)
		}
		bank = b
	}
	ctx.bank = bank

	var out strings.Builder
	if err := ctx.renderNodes(t.nodes, &out); err != nil {
		// A break or continue outside any loop stops the render quietly.
		if errors.Is(err, errBreak) || errors.Is(err, errContinue) {
			return out.String(), nil
		}
		return "", fmt.Errorf("rendering %s: %w", t.name, err)
	}
	return out.String(), nil
}
