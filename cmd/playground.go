package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zjrosen/tamis/internal/config"
	"github.com/zjrosen/tamis/internal/log"
	"github.com/zjrosen/tamis/internal/playground"
	"github.com/zjrosen/tamis/internal/pubsub"
	"github.com/zjrosen/tamis/internal/watcher"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var playgroundCmd = &cobra.Command{
	Use:   "playground [template]",
	Short: "Edit a template with a live rendered preview",
	Long: `Launch a split-pane editor: template source on the left, rendered
output on the right, re-rendered as you type.

All configured filters are available, which makes the playground a
scratchpad for script and expression filters too. Load template
variables with --data; the preview follows edits to the data file,
so the template and its data can be worked on side by side.

Examples:
  # Start from an empty template
  tamis playground

  # Edit an existing template with data
  tamis playground greeting.liquid --data vars.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlayground,
}

func init() {
	playgroundCmd.Flags().StringVarP(&dataFile, "data", "d", "",
		"YAML or JSON file with template variables")
	rootCmd.AddCommand(playgroundCmd)
}

func runPlayground(_ *cobra.Command, args []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := initTeaLog()
	if err != nil {
		return err
	}
	defer cleanup()

	name := ""
	source := ""
	if len(args) == 1 {
		path := resolveTemplatePath(args[0])
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading template: %w", err)
		}
		name, source = filepath.Base(path), string(data)
	}

	bank, err := buildBank(cfg.Filters, logMisses)
	if err != nil {
		return err
	}

	pgCfg := playground.Config{
		TemplateName: name,
		Source:       source,
		Vars:         map[string]any{},
		Bank:         bank,
	}

	// A data file gets watched so edits in another window show up in
	// the preview without restarting.
	if dataFile != "" {
		if pgCfg.Vars, err = readVars(dataFile); err != nil {
			return err
		}

		broker := pubsub.NewBroker[string]()
		defer broker.Close()

		w, err := watcher.New(watcher.Config{
			Paths:    []string{dataFile},
			Debounce: cfg.Watch.Debounce,
		}, broker)
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pgCfg.DataEvents = pubsub.NewListener(ctx, broker)
		pgCfg.ReloadVars = func() (map[string]any, error) {
			return readVars(dataFile)
		}

		if err := w.Start(); err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer func() { _ = w.Stop() }()
	}

	model := playground.New(pgCfg)
	p := tea.NewProgram(
		&model,
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running playground: %w", err)
	}
	return nil
}

// initTeaLog enables logging for the playground when requested. Bubble
// Tea owns the terminal, so log output has to go to a file.
func initTeaLog() (func(), error) {
	if os.Getenv("TAMIS_DEBUG") == "" && !debugFlag {
		return func() {}, nil
	}

	logPath := os.Getenv("TAMIS_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}

	cleanup, err := log.InitWithTeaLog(logPath, "tamis")
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log.Info(log.CatPlayground, "playground starting", "logPath", logPath)
	return cleanup, nil
}
