package parse

import (
	"strconv"
	"strings"
	"time"

	"github.com/swiftwatch/swiftwatch/events"
	"github.com/swiftwatch/swiftwatch/sink"
)

// LegacyParser reconstructs test lifecycle transitions from the
// human-readable output of the legacy XCTest runner. The format has no
// schema: state is rebuilt from regex matches against whole lines, with a
// platform-selected pattern table because Darwin and non-Darwin runners
// frame test case lines differently.
//
// One parser instance serves one run. It carries two pieces of state
// between ParseChunk calls: excess, the trailing partial line of the
// previous chunk (chunk boundaries don't align with line boundaries), and
// failed, an in-progress multi-line error capture waiting to be attributed
// to its test.
type LegacyParser struct {
	table  legacyTable
	excess string
	failed *failedCapture
}

// failedCapture accumulates a multi-line error message for a failing test
// until a later line shows where it ends.
type failedCapture struct {
	index    sink.TestIndex
	message  string
	file     string
	line     int
	complete bool
}

// NewLegacyParser creates a parser for one run. darwin selects the
// pattern table; inject it rather than consulting the process platform so
// the same logic is testable everywhere.
func NewLegacyParser(darwin bool) *LegacyParser {
	table := nonDarwinTable
	if darwin {
		table = darwinTable
	}
	return &LegacyParser{table: table}
}

// ParseChunk processes one chunk of runner output. Chunks may split lines
// arbitrarily; lines are reassembled across calls.
func (l *LegacyParser) ParseChunk(chunk string, st sink.TestRunState) {
	chunk = strings.ReplaceAll(chunk, "\r\n", "\n")
	lines := strings.Split(chunk, "\n")

	if l.excess != "" {
		lines[0] = l.excess + lines[0]
		l.excess = ""
	}

	if strings.HasSuffix(chunk, "\n") {
		// Split leaves a trailing empty element after the final newline.
		lines = lines[:len(lines)-1]
	} else if len(lines) > 0 {
		// The last line is incomplete; hold it for the next chunk.
		l.excess = lines[len(lines)-1]
		lines = lines[:len(lines)-1]
	}

	// Passed lines are deferred to a second pass: on platforms where the
	// test name alone is ambiguous across targets, matching them eagerly
	// can mark the wrong test passed before its real failure is seen.
	var passed [][]string

	for _, line := range lines {
		if m := l.table.passed.FindStringSubmatch(line); m != nil {
			passed = append(passed, m)
			continue
		}
		l.parseLine(line, st)
	}

	for _, m := range passed {
		index := st.LookupTest(l.table.testName(m), "")
		if index != sink.NotFound {
			st.Completed(index, sink.CompletionWithDuration(parseSeconds(m[len(m)-1])))
		}
		l.failed = nil
	}
}

func (l *LegacyParser) parseLine(line string, st sink.TestRunState) {
	table := l.table

	if m := table.started.FindStringSubmatch(line); m != nil {
		index := st.LookupTest(table.testName(m), "")
		if index != sink.NotFound {
			st.Started(index, 0)
		}
		l.failed = nil
		return
	}

	if m := table.failed.FindStringSubmatch(line); m != nil {
		index := st.LookupTest(table.testName(m), "")
		if index != sink.NotFound {
			if l.failed != nil {
				l.flushCapture(st)
			} else {
				// No captured message to attribute; record a placeholder
				// rather than dropping the failure.
				st.RecordIssue(index, "Failed", false, nil)
			}
			st.Completed(index, sink.CompletionWithDuration(parseSeconds(m[len(m)-1])))
		}
		l.failed = nil
		return
	}

	if m := table.errorLine.FindStringSubmatch(line); m != nil {
		name, file, lineNo, message := table.errorParts(m)
		index := st.LookupTest(name, file)
		if l.failed != nil && !l.failed.complete && l.failed.index != index {
			l.flushCapture(st)
		}
		l.failed = &failedCapture{
			index:   index,
			message: message,
			file:    file,
			line:    lineNo,
		}
		return
	}

	if m := table.skipped.FindStringSubmatch(line); m != nil {
		index := st.LookupTest(table.testName(m), "")
		if index != sink.NotFound {
			st.Skipped(index)
		}
		l.failed = nil
		return
	}

	if m := table.suiteStarted.FindStringSubmatch(line); m != nil {
		st.StartedSuite(m[1])
		return
	}
	if m := table.suitePassed.FindStringSubmatch(line); m != nil {
		st.PassedSuite(m[1])
		return
	}
	if m := table.suiteFailed.FindStringSubmatch(line); m != nil {
		st.FailedSuite(m[1])
		return
	}

	// Anything else is a continuation of an in-progress error message,
	// or noise.
	if l.failed != nil && !l.failed.complete {
		l.failed.message += "\n" + line
	}
}

// flushCapture records the accumulated error message as an issue on its
// test and marks the capture complete.
func (l *LegacyParser) flushCapture(st sink.TestRunState) {
	f := l.failed
	if f == nil || f.complete {
		return
	}
	f.complete = true
	if f.index == sink.NotFound {
		return
	}
	var location *events.SourceLocation
	if f.file != "" {
		location = &events.SourceLocation{FilePath: f.file, Line: f.line}
	}
	st.RecordIssue(f.index, f.message, false, location)
}

// Flush records any pending error capture. Call when the run ends.
func (l *LegacyParser) Flush(st sink.TestRunState) {
	l.flushCapture(st)
	l.failed = nil
}

func parseSeconds(s string) time.Duration {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
