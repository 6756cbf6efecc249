package playground

import "github.com/charmbracelet/lipgloss"

// Color tokens, adaptive to terminal background.
var (
	TextMutedColor     = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"} // Hints, help text, footers
	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"} // Unfocused borders
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"} // Render succeeded
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"} // Render failed

	// BorderHighlightFocusColor marks the focused pane.
	BorderHighlightFocusColor = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}
)

var (
	footerStyle  = lipgloss.NewStyle().Foreground(TextMutedColor)
	errorStyle   = lipgloss.NewStyle().Foreground(StatusErrorColor)
	successStyle = lipgloss.NewStyle().Foreground(StatusSuccessColor)
)
