// Package format computes and renders the end-of-run summary.
package format

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/swiftwatch/swiftwatch/results"
)

// formatDuration formats a duration as HH:MM:SS.mmm.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, milliseconds)
}

// Indentation constants
const (
	IndentLevel1 = "  "
	IndentLevel2 = "    "
)

// Summary represents computed summary statistics from a test run.
type Summary struct {
	TotalTests   int
	PassedTests  int
	FailedTests  int
	SkippedTests int
	TotalTime    time.Duration
	SuiteCount   int
	Failures     []*results.Test
	Skipped      []*results.Test
	SlowTests    []*results.Test
}

// ComputeSummary calculates summary statistics from a Run.
func ComputeSummary(run *results.Run, slowThreshold time.Duration) *Summary {
	endTime := run.EndTime
	if endTime.IsZero() {
		endTime = time.Now()
	}

	s := &Summary{
		PassedTests:  run.Counts.Passed,
		FailedTests:  run.Counts.Failed,
		SkippedTests: run.Counts.Skipped,
		TotalTime:    endTime.Sub(run.StartTime),
		SuiteCount:   len(run.Suites),
	}

	for _, t := range run.Tests {
		switch t.Status {
		case results.StatusFailed:
			s.Failures = append(s.Failures, t)
		case results.StatusSkipped:
			s.Skipped = append(s.Skipped, t)
		}
		if t.Status == results.StatusPassed || t.Status == results.StatusFailed {
			s.TotalTests++
			if t.Duration >= slowThreshold {
				s.SlowTests = append(s.SlowTests, t)
			}
		}
	}
	s.TotalTests += s.SkippedTests

	sort.Slice(s.SlowTests, func(i, j int) bool {
		return s.SlowTests[i].Duration > s.SlowTests[j].Duration
	})

	return s
}

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// SummaryFormatter renders a Summary as text for a given terminal width.
type SummaryFormatter struct {
	width int
}

// NewSummaryFormatter creates a formatter for the given terminal width.
func NewSummaryFormatter(width int) *SummaryFormatter {
	if width <= 0 {
		width = 80
	}
	return &SummaryFormatter{width: width}
}

// Format renders the summary.
func (sf *SummaryFormatter) Format(summary *Summary) string {
	var b strings.Builder

	b.WriteString(sf.horizontalLine())
	b.WriteString("\n")

	result := passStyle.Render("PASS")
	if summary.FailedTests > 0 {
		result = failStyle.Render("FAIL")
	}
	b.WriteString(fmt.Sprintf("%s  %d tests, %s passed, %s failed, %s skipped in %s\n",
		result,
		summary.TotalTests,
		passStyle.Render(fmt.Sprintf("%d", summary.PassedTests)),
		failStyle.Render(fmt.Sprintf("%d", summary.FailedTests)),
		skipStyle.Render(fmt.Sprintf("%d", summary.SkippedTests)),
		formatDuration(summary.TotalTime)))

	if len(summary.Failures) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Failures:"))
		b.WriteString("\n")
		b.WriteString(sf.formatFailures(summary.Failures))
	}

	if len(summary.Skipped) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Skipped:"))
		b.WriteString("\n")
		for _, t := range summary.Skipped {
			b.WriteString(IndentLevel1 + t.DisplayName + "\n")
		}
	}

	if len(summary.SlowTests) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Slow tests:"))
		b.WriteString("\n")
		for _, t := range summary.SlowTests {
			b.WriteString(fmt.Sprintf("%s%s (%s)\n", IndentLevel1, t.DisplayName, formatDuration(t.Duration)))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func (sf *SummaryFormatter) formatFailures(failures []*results.Test) string {
	var b strings.Builder
	for _, t := range failures {
		b.WriteString(IndentLevel1 + failStyle.Render(t.DisplayName) + "\n")
		for _, issue := range t.Issues {
			for _, line := range strings.Split(issue.Message, "\n") {
				b.WriteString(IndentLevel2 + line + "\n")
			}
			if issue.Location != nil {
				b.WriteString(fmt.Sprintf("%sat %s:%d\n", IndentLevel2, issue.Location.FilePath, issue.Location.Line))
			}
		}
	}
	return b.String()
}

func (sf *SummaryFormatter) horizontalLine() string {
	return strings.Repeat("─", sf.width)
}
