package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/swiftwatch/swiftwatch/events"
)

func TestTheme_GlyphSelection(t *testing.T) {
	posix := NewTheme(false)
	windows := NewTheme(true)

	assert.Equal(t, "✔", posix.Glyph(events.SymbolPass))
	assert.Equal(t, "✘", posix.Glyph(events.SymbolFail))
	assert.Equal(t, "⊘", posix.Glyph(events.SymbolSkip))

	assert.Equal(t, "√", windows.Glyph(events.SymbolPass))
	assert.Equal(t, "×", windows.Glyph(events.SymbolFail))
	assert.Equal(t, "-", windows.Glyph(events.SymbolSkip))

	// The none symbol renders as nothing on both families.
	assert.Empty(t, posix.Glyph(events.SymbolNone))
	assert.Empty(t, windows.Glyph(events.SymbolNone))
}

func TestTheme_UnknownSymbolHasNoGlyph(t *testing.T) {
	theme := NewTheme(false)
	assert.Empty(t, theme.Glyph(events.Symbol("futureSymbol")))
}

func TestText_Passthrough(t *testing.T) {
	m := events.Message{Symbol: events.SymbolFail, Text: "Expectation failed"}
	assert.Equal(t, "Expectation failed", Text(m))
}

func TestColoredText_FallsBackToPlainForUnstyledSymbols(t *testing.T) {
	m := events.Message{Symbol: events.SymbolNone, Text: "continuation line"}
	assert.Equal(t, "continuation line", ColoredText(m))
}
