// Package render turns structured issue messages and severity symbols
// into displayable text. Everything here is pure formatting; nothing
// feeds back into parsing or lifecycle state.
package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/swiftwatch/swiftwatch/events"
)

// Theme selects the glyph set for a terminal family. Windows consoles
// historically render the richer POSIX glyphs poorly, so they get a
// narrower set. Inject the choice at construction instead of branching on
// the process platform inside rendering code.
type Theme struct {
	glyphs map[events.Symbol]string
}

var posixGlyphs = map[events.Symbol]string{
	events.SymbolDefault:            "◇",
	events.SymbolSkip:               "⊘",
	events.SymbolPassWithKnownIssue: "✔",
	events.SymbolFail:               "✘",
	events.SymbolPass:               "✔",
	events.SymbolDifference:         "±",
	events.SymbolWarning:            "⚠",
	events.SymbolDetails:            "↳",
	events.SymbolAttachment:         "⎙",
	events.SymbolNone:               "",
}

var windowsGlyphs = map[events.Symbol]string{
	events.SymbolDefault:            "*",
	events.SymbolSkip:               "-",
	events.SymbolPassWithKnownIssue: "√",
	events.SymbolFail:               "×",
	events.SymbolPass:               "√",
	events.SymbolDifference:         "±",
	events.SymbolWarning:            "!",
	events.SymbolDetails:            "->",
	events.SymbolAttachment:         "[a]",
	events.SymbolNone:               "",
}

// NewTheme creates a theme for the given terminal family.
func NewTheme(windows bool) Theme {
	if windows {
		return Theme{glyphs: windowsGlyphs}
	}
	return Theme{glyphs: posixGlyphs}
}

// Glyph returns the display glyph for a severity symbol.
func (t Theme) Glyph(s events.Symbol) string {
	return t.glyphs[s]
}

// Text renders a message as plain text. The current consumers display
// message content as-is.
func Text(m events.Message) string {
	return m.Text
}

var symbolStyles = map[events.Symbol]lipgloss.Style{
	events.SymbolFail:               lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	events.SymbolPass:               lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	events.SymbolPassWithKnownIssue: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	events.SymbolSkip:               lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	events.SymbolWarning:            lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	events.SymbolDifference:         lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
}

// ColoredText renders a message colorized by its severity symbol.
// Implemented for consumers that can display ANSI styling; the plain text
// renderer does not use it yet.
func ColoredText(m events.Message) string {
	style, ok := symbolStyles[m.Symbol]
	if !ok {
		return m.Text
	}
	return style.Render(m.Text)
}
