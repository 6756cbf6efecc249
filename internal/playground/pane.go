package playground

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Border characters (rounded)
const (
	borderTopLeft     = "╭"
	borderTopRight    = "╮"
	borderBottomLeft  = "╰"
	borderBottomRight = "╯"
	borderHorizontal  = "─"
	borderVertical    = "│"
)

// borderConfig configures a bordered pane.
type borderConfig struct {
	Content string // content rendered inside the border
	Width   int    // total width including borders
	Height  int    // total height including borders
	Title   string // embedded in the top border, left-aligned
	Focused bool
}

// borderedPane renders content inside a rounded border with the title
// embedded in the top edge.
func borderedPane(cfg borderConfig) string {
	innerWidth := max(cfg.Width-2, 1)
	contentHeight := max(cfg.Height-2, 1)

	borderColor := lipgloss.TerminalColor(BorderDefaultColor)
	if cfg.Focused {
		borderColor = BorderHighlightFocusColor
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	top := buildTopBorder(cfg.Title, innerWidth, borderStyle)

	constrained := lipgloss.NewStyle().Width(innerWidth).Height(contentHeight).Render(cfg.Content)
	contentLines := strings.Split(constrained, "\n")

	side := borderStyle.Render(borderVertical)
	lines := make([]string, contentHeight)
	for i := range contentHeight {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		// Pad to innerWidth so the right border lines up
		if w := lipgloss.Width(line); w < innerWidth {
			line += strings.Repeat(" ", innerWidth-w)
		}
		lines[i] = side + line + side
	}

	bottom := borderStyle.Render(borderBottomLeft + strings.Repeat(borderHorizontal, innerWidth) + borderBottomRight)

	return top + "\n" + strings.Join(lines, "\n") + "\n" + bottom
}

// buildTopBorder renders the top edge, ╭─ Title ──────╮, truncating the
// title when the pane is too narrow for it.
func buildTopBorder(title string, innerWidth int, borderStyle lipgloss.Style) string {
	if title == "" || innerWidth < 4 {
		return borderStyle.Render(borderTopLeft + strings.Repeat(borderHorizontal, innerWidth) + borderTopRight)
	}

	available := innerWidth - 4
	if runewidth.StringWidth(title) > available {
		title = runewidth.Truncate(title, available, "…")
	}

	trailing := max(innerWidth-3-runewidth.StringWidth(title), 0)
	line := borderTopLeft + borderHorizontal + " " + title + " " +
		strings.Repeat(borderHorizontal, trailing) + borderTopRight
	return borderStyle.Render(line)
}
