// Package output writes plain-text test progress for -notty mode.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/swiftwatch/swiftwatch/events"
	"github.com/swiftwatch/swiftwatch/output/format"
	"github.com/swiftwatch/swiftwatch/render"
	"github.com/swiftwatch/swiftwatch/results"
	"github.com/swiftwatch/swiftwatch/sink"
)

// SimpleOutput prints lifecycle transitions as they happen and a summary
// when the run finishes.
type SimpleOutput struct {
	writer    io.Writer
	collector *results.Collector
	theme     render.Theme

	// statuses already printed per test, so repeated update events for
	// the same terminal state don't print twice
	printed map[sink.TestIndex]results.Status
}

// NewSimpleOutput creates a simple output writer over the collector's
// state, rendering glyphs with the given theme.
func NewSimpleOutput(w io.Writer, collector *results.Collector, theme render.Theme) *SimpleOutput {
	return &SimpleOutput{
		writer:    w,
		collector: collector,
		theme:     theme,
		printed:   make(map[sink.TestIndex]results.Status),
	}
}

// ProcessEvents consumes collector events until the run finishes, then
// writes the summary. Blocks until the event channel closes.
func (s *SimpleOutput) ProcessEvents(evts <-chan results.Event) error {
	for evt := range evts {
		switch evt.Type {
		case results.EventTestUpdated:
			s.printTransition(evt.Index)

		case results.EventSuiteUpdated:
			s.printSuite(evt.SuiteName)

		case results.EventOutput:
			if evt.Index == sink.NotFound {
				fmt.Fprint(s.writer, strings.ReplaceAll(evt.Message, "\r\n", "\n"))
			}

		case results.EventRunFinished:
			return s.writeSummary()
		}
	}
	return s.writeSummary()
}

// HasFailures reports whether any test failed, for the exit code.
func (s *SimpleOutput) HasFailures() bool {
	return s.collector.Counts().Failed > 0
}

func (s *SimpleOutput) printTransition(index sink.TestIndex) {
	var line string
	s.collector.WithRun(func(run *results.Run) {
		if index < 0 || int(index) >= len(run.Tests) {
			return
		}
		t := run.Tests[index]
		if s.printed[index] == t.Status {
			return
		}
		s.printed[index] = t.Status

		switch t.Status {
		case results.StatusPassed:
			line = fmt.Sprintf("%s %s (%.3fs)", s.theme.Glyph(events.SymbolPass), t.DisplayName, t.Duration.Seconds())
		case results.StatusFailed:
			line = fmt.Sprintf("%s %s (%.3fs)", s.theme.Glyph(events.SymbolFail), t.DisplayName, t.Duration.Seconds())
			for _, issue := range t.Issues {
				line += "\n  " + strings.ReplaceAll(issue.Message, "\n", "\n  ")
			}
		case results.StatusSkipped:
			line = fmt.Sprintf("%s %s (skipped)", s.theme.Glyph(events.SymbolSkip), t.DisplayName)
		}
	})
	if line != "" {
		fmt.Fprintln(s.writer, line)
	}
}

func (s *SimpleOutput) printSuite(name string) {
	s.collector.WithRun(func(run *results.Run) {
		for _, suite := range run.Suites {
			if suite.Name != name {
				continue
			}
			switch suite.Status {
			case results.StatusPassed:
				fmt.Fprintf(s.writer, "Suite %s passed\n", name)
			case results.StatusFailed:
				fmt.Fprintf(s.writer, "Suite %s failed\n", name)
			}
			return
		}
	})
}

func (s *SimpleOutput) writeSummary() error {
	var summaryText string
	s.collector.WithRun(func(run *results.Run) {
		summary := format.ComputeSummary(run, 10*time.Second)
		formatter := format.NewSummaryFormatter(80)
		summaryText = formatter.Format(summary)
	})

	fmt.Fprintln(s.writer)
	_, err := fmt.Fprintln(s.writer, summaryText)
	return err
}
