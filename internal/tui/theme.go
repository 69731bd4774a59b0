package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// The browser must stay readable on light and dark backgrounds, so colours
// are adaptive pairs.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	colorMuted      lipgloss.TerminalColor = ac("240", "243")
	colorAccent     lipgloss.TerminalColor = ac("27", "62")
	colorSelectedBg lipgloss.TerminalColor = ac("#e9e9e9", "#262626")
	colorSelectedFg lipgloss.TerminalColor = ac("235", "255")
	colorBorder     lipgloss.TerminalColor = ac("250", "243")
	colorError      lipgloss.TerminalColor = ac("160", "203")
)

type styles struct {
	machine  lipgloss.Style
	assembly lipgloss.Style
	part     lipgloss.Style
	selected lipgloss.Style
	muted    lipgloss.Style
	err      lipgloss.Style
	panel    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		machine:  r.NewStyle().Bold(true),
		assembly: r.NewStyle().Foreground(colorAccent),
		part:     r.NewStyle(),
		selected: r.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true),
		muted:    r.NewStyle().Foreground(colorMuted),
		err:      r.NewStyle().Foreground(colorError),
		panel: r.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colorBorder).
			PaddingLeft(1),
	}
}
