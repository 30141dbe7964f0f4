// Package tui renders a live view of a test run with bubbletea.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/swiftwatch/swiftwatch/events"
	"github.com/swiftwatch/swiftwatch/output/format"
	"github.com/swiftwatch/swiftwatch/render"
	"github.com/swiftwatch/swiftwatch/results"
)

// ResultsEventMsg wraps collector events for bubbletea.
type ResultsEventMsg results.Event

// EOFMsg signals that the input stream has ended.
type EOFMsg struct{}

// TickMsg drives elapsed-time refresh for running tests.
type TickMsg struct{}

var (
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suiteStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// Model is the bubbletea model for a live run view.
type Model struct {
	collector *results.Collector
	theme     render.Theme
	spinner   spinner.Model

	width    int
	height   int
	started  time.Time
	finished bool
	quitting bool
}

// NewModel creates the live-view model over a collector.
func NewModel(collector *results.Collector, theme render.Theme) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &Model{
		collector: collector,
		theme:     theme,
		spinner:   sp,
		started:   time.Now(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case ResultsEventMsg:
		if msg.Type == results.EventRunFinished {
			m.finished = true
			return m, tea.Quit
		}
		return m, nil

	case EOFMsg:
		m.finished = true
		return m, tea.Quit

	case TickMsg:
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	m.collector.WithRun(func(run *results.Run) {
		for _, suite := range run.Suites {
			switch suite.Status {
			case results.StatusPassed:
				b.WriteString(suiteStyle.Render(suite.Name) + " " + passStyle.Render("passed") + "\n")
			case results.StatusFailed:
				b.WriteString(suiteStyle.Render(suite.Name) + " " + failStyle.Render("failed") + "\n")
			default:
				b.WriteString(suiteStyle.Render(suite.Name) + " " + m.spinner.View() + "\n")
			}
		}

		for _, t := range run.Tests {
			b.WriteString(m.renderTest(t))
		}

		counts := run.Counts
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d passed, %d failed, %d skipped · %s",
			counts.Passed, counts.Failed, counts.Skipped,
			time.Since(m.started).Truncate(100*time.Millisecond))))
		b.WriteString("\n")
	})
	return b.String()
}

func (m *Model) renderTest(t *results.Test) string {
	indent := " "
	if t.Parent >= 0 {
		indent = "   "
	}

	switch t.Status {
	case results.StatusRunning:
		return fmt.Sprintf("%s%s %s\n", indent, m.spinner.View(), runningStyle.Render(t.DisplayName))
	case results.StatusPassed:
		return fmt.Sprintf("%s%s %s %s\n", indent, passStyle.Render(m.theme.Glyph(events.SymbolPass)),
			t.DisplayName, dimStyle.Render(fmt.Sprintf("(%.3fs)", t.Duration.Seconds())))
	case results.StatusFailed:
		line := fmt.Sprintf("%s%s %s\n", indent, failStyle.Render(m.theme.Glyph(events.SymbolFail)), t.DisplayName)
		for _, issue := range t.Issues {
			for _, msgLine := range strings.Split(issue.Message, "\n") {
				line += indent + "    " + dimStyle.Render(msgLine) + "\n"
			}
		}
		return line
	case results.StatusSkipped:
		return fmt.Sprintf("%s%s %s\n", indent, skipStyle.Render(m.theme.Glyph(events.SymbolSkip)),
			skipStyle.Render(t.DisplayName))
	default:
		return ""
	}
}

// DisplaySummary prints the end-of-run summary after the TUI exits.
func (m *Model) DisplaySummary() {
	m.collector.WithRun(func(run *results.Run) {
		summary := format.ComputeSummary(run, 10*time.Second)
		width := m.width
		if width == 0 {
			width = 80
		}
		formatter := format.NewSummaryFormatter(width)
		fmt.Println(formatter.Format(summary))
	})
}
