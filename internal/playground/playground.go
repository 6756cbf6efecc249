// Package playground provides a split-pane template editor with a live
// rendered preview.
package playground

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/tamis/internal/engine"
	"github.com/zjrosen/tamis/internal/filterbank"
	"github.com/zjrosen/tamis/internal/log"
	"github.com/zjrosen/tamis/internal/pubsub"
)

// FocusPane represents which pane has focus.
type FocusPane int

const (
	// FocusEditor means the template editor has focus.
	FocusEditor FocusPane = iota
	// FocusPreview means the rendered preview has focus.
	FocusPreview
)

const paneGap = 2

// Config carries everything a playground session needs.
type Config struct {
	// TemplateName labels the template in errors and the editor title.
	TemplateName string
	// Source is the initial template text.
	Source string
	// Vars are the template variables.
	Vars map[string]any
	// Bank resolves filters. When nil, each render builds a default bank.
	Bank *filterbank.Bank
	// DataEvents delivers change notifications for the data file backing
	// Vars. Nil when no data file is being watched.
	DataEvents *pubsub.Listener[string]
	// ReloadVars re-reads the data file after a change notification.
	ReloadVars func() (map[string]any, error)
}

// keyMap defines the keys the playground handles itself. Everything else
// goes to the focused pane.
type keyMap struct {
	Switch key.Binding
	Back   key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Switch: key.NewBinding(key.WithKeys("tab")),
		Back:   key.NewBinding(key.WithKeys("esc")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

// Model holds the playground state.
type Model struct {
	cfg  Config
	keys keyMap

	focus   FocusPane
	editor  textarea.Model
	preview viewport.Model

	lastSource string
	rendered   string
	renderErr  error
	renderTime time.Duration

	width  int
	height int
}

// New creates a playground model rendering cfg.Source.
func New(cfg Config) Model {
	if cfg.TemplateName == "" {
		cfg.TemplateName = "scratch"
	}

	ta := textarea.New()
	ta.Placeholder = "{{ greeting | capitalize }}"
	ta.CharLimit = 0
	ta.SetValue(cfg.Source)
	ta.Focus()

	m := Model{
		cfg:     cfg,
		keys:    defaultKeyMap(),
		focus:   FocusEditor,
		editor:  ta,
		preview: viewport.New(0, 0),
	}
	m.renderSource(m.editor.Value())
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.cfg.DataEvents != nil {
		return tea.Batch(textarea.Blink, m.cfg.DataEvents.Listen())
	}
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.syncPreview()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case pubsub.Event[string]:
		return m.handleDataEvent(msg)
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

// handleDataEvent re-renders with fresh variables after the data file
// changed on disk.
func (m Model) handleDataEvent(event pubsub.Event[string]) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.cfg.DataEvents != nil {
		cmd = m.cfg.DataEvents.Listen()
	}

	if event.Type == pubsub.RemovedEvent || m.cfg.ReloadVars == nil {
		return m, cmd
	}

	vars, err := m.cfg.ReloadVars()
	if err != nil {
		log.Debug(log.CatPlayground, "data reload failed", "error", err.Error())
		m.renderErr = err
		m.syncPreview()
		return m, cmd
	}

	log.Debug(log.CatPlayground, "data reloaded", "path", event.Payload)
	m.cfg.Vars = vars
	m.renderSource(m.lastSource)
	return m, cmd
}

// handleKeyMsg handles keyboard input.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Switch):
		if m.focus == FocusEditor {
			m.focus = FocusPreview
			m.editor.Blur()
			return m, nil
		}
		m.focus = FocusEditor
		return m, m.editor.Focus()

	case key.Matches(msg, m.keys.Back):
		if m.focus == FocusPreview {
			m.focus = FocusEditor
			return m, m.editor.Focus()
		}
	}

	var cmd tea.Cmd
	if m.focus == FocusEditor {
		m.editor, cmd = m.editor.Update(msg)
		m.refreshPreview()
	} else {
		m.preview, cmd = m.preview.Update(msg)
	}
	return m, cmd
}

// refreshPreview re-renders when the editor content changed.
func (m *Model) refreshPreview() {
	if src := m.editor.Value(); src != m.lastSource {
		m.renderSource(src)
	}
}

// renderSource parses and renders src, capturing the result or error for
// the preview pane.
func (m *Model) renderSource(src string) {
	m.lastSource = src
	start := time.Now()

	var out string
	tmpl, err := engine.Parse(m.cfg.TemplateName, src)
	if err == nil {
		var opts []engine.RenderOption
		if m.cfg.Bank != nil {
			opts = append(opts, engine.WithBank(m.cfg.Bank))
		}
		out, err = tmpl.Render(m.cfg.Vars, opts...)
	}

	m.rendered = out
	m.renderErr = err
	m.renderTime = time.Since(start)

	if err != nil {
		log.Debug(log.CatPlayground, "render failed", "error", err.Error())
	}
	m.syncPreview()
}

// syncPreview rewraps the current result into the preview viewport.
func (m *Model) syncPreview() {
	width := m.preview.Width
	if width <= 0 {
		width = 80
	}

	if m.renderErr != nil {
		m.preview.SetContent(errorStyle.Render(wordwrap.String(m.renderErr.Error(), width)))
		return
	}
	m.preview.SetContent(wordwrap.String(m.rendered, width))
}

// layout resizes both panes to the current window.
func (m *Model) layout() {
	editorWidth := m.editorWidth()
	previewWidth := m.width - editorWidth - paneGap

	contentHeight := max(m.height-3, 3)
	innerHeight := max(contentHeight-2, 1)

	m.editor.SetWidth(max(editorWidth-2, 10))
	m.editor.SetHeight(innerHeight)
	m.preview.Width = max(previewWidth-2, 10)
	m.preview.Height = innerHeight
}

// editorWidth returns the editor pane width (half the window, min 30).
func (m Model) editorWidth() int {
	return max(m.width/2, 30)
}

// View implements tea.Model.
func (m Model) View() string {
	editorWidth := m.editorWidth()
	previewWidth := m.width - editorWidth - paneGap
	contentHeight := max(m.height-3, 3)

	editorPane := borderedPane(borderConfig{
		Content: m.editor.View(),
		Width:   editorWidth,
		Height:  contentHeight,
		Title:   m.cfg.TemplateName,
		Focused: m.focus == FocusEditor,
	})

	previewPane := borderedPane(borderConfig{
		Content: m.preview.View(),
		Width:   previewWidth,
		Height:  contentHeight,
		Title:   "Preview",
		Focused: m.focus == FocusPreview,
	})

	gapStr := strings.Repeat(" ", paneGap)
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, editorPane, gapStr, previewPane)

	return mainContent + "\n" + m.footerView()
}

// footerView renders the render status and key hints on one line.
func (m Model) footerView() string {
	var status string
	if m.renderErr != nil {
		status = errorStyle.Render("✗ render failed")
	} else {
		status = successStyle.Render(fmt.Sprintf("✓ %s", m.renderTime.Round(time.Microsecond)))
	}

	footerParts := []string{"Tab: Switch panes"}
	if m.focus == FocusPreview {
		footerParts = append(footerParts, "Esc: Back to editor")
	}
	footerParts = append(footerParts, "Ctrl+C: Quit")

	return status + footerStyle.Render("  │  "+strings.Join(footerParts, "  │  "))
}
