// Package parse converts raw test-runner output into lifecycle calls on a
// sink.TestRunState. Two protocols are supported: the swift-testing JSON
// event stream (ModernParser) and legacy XCTest human-readable text
// (LegacyParser). A parser instance serves exactly one run; its identity
// and dedup state must never be shared across runs.
package parse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/swiftwatch/swiftwatch/events"
	"github.com/swiftwatch/swiftwatch/pipe"
	"github.com/swiftwatch/swiftwatch/sink"
)

// sourceSuffix matches the trailing /<file>.swift:<line>:<col> the engine
// appends to some test ids.
var sourceSuffix = regexp.MustCompile(`/[^/]+\.swift:\d+:\d+$`)

// StripSourceSuffix derives the logical test name from a raw id by
// removing a trailing source-location qualifier, if present.
func StripSourceSuffix(id string) string {
	return sourceSuffix.ReplaceAllString(id, "")
}

// CaseNode describes a parameterized test case synthesized from a test
// declaration, to be attached under its owning function before any run
// events reference it.
type CaseNode struct {
	// Name is the resolved case identity, the stable key events for this
	// case will look up.
	Name        string
	DisplayName string
	Location    *events.SourceLocation
	// SortKey is the zero-based declaration index, left-padded so
	// lexicographic ordering matches declaration order.
	SortKey string
}

// caseIdentity resolves a runtime test case back to its stable identity.
// A stable id is preferred; the engine's "no id" sentinel means the
// arguments were not serializable, so the display name is all there is.
func caseIdentity(staticID string, tc events.TestCase) string {
	if tc.ID == events.NoCaseID {
		return tc.DisplayName
	}
	return staticID + "/" + tc.ID
}

// ModernParser consumes the swift-testing JSON event stream for one test
// run and drives a sink.TestRunState.
type ModernParser struct {
	pipePath string
	source   io.Reader
	watching bool

	// pass-through writers: rawLog receives every line from the stream,
	// eventLog only lines that decoded as records
	rawLog   io.Writer
	eventLog io.Writer

	// staticID -> caseID -> case record, populated from parameterized
	// test declarations before run events arrive.
	testCases map[string]map[string]events.TestCase

	// The engine emits both testCaseEnded and testEnded with the same
	// resolved identity for non-parameterized tests; completion must fire
	// at most once per index.
	completed map[sink.TestIndex]bool

	runStartedFired bool

	onRunStarted func()
	onTest       func(t events.Test)
	onCase       func(parent sink.TestIndex, c CaseNode)
	onAttachment func(index sink.TestIndex, path string)
}

// ModernOption configures a ModernParser.
type ModernOption func(*ModernParser)

// WithRunStarted registers a callback fired exactly once when the stream
// reports the run has started.
func WithRunStarted(fn func()) ModernOption {
	return func(p *ModernParser) { p.onRunStarted = fn }
}

// WithTestDeclared registers a callback fired for every static test
// declaration on the stream, before any events reference it.
func WithTestDeclared(fn func(t events.Test)) ModernOption {
	return func(p *ModernParser) { p.onTest = fn }
}

// WithParameterizedCase registers a callback fired once per synthesized
// parameterized test case, parented under the owning function's index.
func WithParameterizedCase(fn func(parent sink.TestIndex, c CaseNode)) ModernOption {
	return func(p *ModernParser) { p.onCase = fn }
}

// WithAttachment registers a callback fired when a test attaches a value
// that was written to a file.
func WithAttachment(fn func(index sink.TestIndex, path string)) ModernOption {
	return func(p *ModernParser) { p.onAttachment = fn }
}

// WithSource overrides the platform pipe reader with an arbitrary byte
// stream. For tests.
func WithSource(r io.Reader) ModernOption {
	return func(p *ModernParser) { p.source = r }
}

// WithRawLog tees every line received from the stream to w, before any
// decoding.
func WithRawLog(w io.Writer) ModernOption {
	return func(p *ModernParser) { p.rawLog = w }
}

// WithEventLog tees every line that decodes as an event-stream record
// to w.
func WithEventLog(w io.Writer) ModernOption {
	return func(p *ModernParser) { p.eventLog = w }
}

// NewModernParser creates a parser for a single test run.
func NewModernParser(opts ...ModernOption) *ModernParser {
	p := &ModernParser{
		testCases: make(map[string]map[string]events.TestCase),
		completed: make(map[sink.TestIndex]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Watch opens the platform pipe at path and processes the event stream
// until it ends or ctx is cancelled. It blocks for the duration of the
// stream; run it in a goroutine when the caller needs to do other work. A
// line that fails to decode as JSON aborts the run with an error: a
// malformed line means a protocol mismatch too serious to mask.
func (p *ModernParser) Watch(ctx context.Context, path string, st sink.TestRunState) error {
	p.pipePath = path
	p.watching = true

	var lines <-chan []byte
	if p.source != nil {
		lines = pipe.NewPump().Stream(p.source)
	} else {
		reader := pipe.NewReader(path)
		var err error
		lines, err = reader.Start()
		if err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if p.rawLog != nil {
				p.rawLog.Write(line)
				p.rawLog.Write([]byte("\n"))
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if err := p.handleLine(line, st); err != nil {
				return err
			}
		}
	}
}

// Close unblocks a reader stalled waiting for the test process to write,
// by writing a trivial record into the pipe. Safe to call when Watch was
// never invoked.
func (p *ModernParser) Close() error {
	if !p.watching || p.pipePath == "" {
		return nil
	}
	return pipe.WriteTerminator(p.pipePath)
}

// ParseStdout forwards raw stdout text that was not captured as part of
// the structured stream (banners, tool warnings) to the sink as
// unattributed output, one line at a time with canonical line endings.
func (p *ModernParser) ParseStdout(chunk string, st sink.TestRunState) {
	chunk = strings.ReplaceAll(chunk, "\r\n", "\n")
	chunk = strings.TrimRight(chunk, "\n")
	if chunk == "" {
		return
	}
	for _, line := range strings.Split(chunk, "\n") {
		st.RecordOutput(sink.NotFound, line+"\r\n")
	}
}

func (p *ModernParser) handleLine(line []byte, st sink.TestRunState) error {
	rec, err := events.ParseRecord(line)
	if err != nil {
		return err
	}
	if p.eventLog != nil {
		p.eventLog.Write(line)
		p.eventLog.Write([]byte("\n"))
	}

	switch rec.Kind {
	case events.RecordKindMetadata:
		// Informational only.
		return nil

	case events.RecordKindTest:
		t, err := rec.Test()
		if err != nil {
			return err
		}
		p.handleTestRecord(t, st)
		return nil

	case events.RecordKindEvent:
		ev, err := rec.Event()
		if err != nil {
			return err
		}
		p.handleEvent(ev, st)
		return nil

	default:
		// Unknown record kinds (including the {} close terminator) are
		// tolerated for forward compatibility.
		return nil
	}
}

func (p *ModernParser) handleTestRecord(t events.Test, st sink.TestRunState) {
	if p.onTest != nil {
		p.onTest(t)
	}

	if t.Kind != events.TestKindFunction || !t.IsParameterized || len(t.TestCases) == 0 {
		return
	}

	cases := make(map[string]events.TestCase, len(t.TestCases))
	for _, tc := range t.TestCases {
		cases[tc.ID] = tc
	}
	p.testCases[t.ID] = cases

	// The sink must know about every sub-test node before events
	// reference it, so cases are attached as soon as the declaration
	// arrives, ahead of runStarted.
	parent := lookupTest(st, t.ID)
	base := StripSourceSuffix(t.ID)
	for i, tc := range t.TestCases {
		node := CaseNode{
			Name:        caseIdentity(base, tc),
			DisplayName: tc.DisplayName,
			Location:    t.SourceLocation,
			SortKey:     fmt.Sprintf("%08d", i),
		}
		if p.onCase != nil {
			p.onCase(parent, node)
		}
	}
}

func (p *ModernParser) handleEvent(ev events.Event, st sink.TestRunState) {
	switch ev.Kind {
	case events.EventKindRunStarted:
		if !p.runStartedFired {
			p.runStartedFired = true
			if p.onRunStarted != nil {
				p.onRunStarted()
			}
		}

	case events.EventKindTestStarted, events.EventKindTestCaseStarted:
		index := p.resolve(st, ev, ev.Kind == events.EventKindTestCaseStarted)
		if index != sink.NotFound {
			st.Started(index, instantOf(ev))
		}

	case events.EventKindTestSkipped:
		index := p.resolve(st, ev, false)
		if index != sink.NotFound {
			st.Skipped(index)
		}

	case events.EventKindIssueRecorded:
		p.handleIssue(ev, st)

	case events.EventKindTestEnded, events.EventKindTestCaseEnded:
		index := p.resolve(st, ev, ev.Kind == events.EventKindTestCaseEnded)
		if index == sink.NotFound || p.completed[index] {
			return
		}
		p.completed[index] = true
		st.Completed(index, sink.CompletionAtInstant(instantOf(ev)))

	case events.EventKindValueAttached:
		if ev.Attachment == nil || ev.Attachment.Path == "" {
			return
		}
		index := p.resolve(st, ev, true)
		if index != sink.NotFound && p.onAttachment != nil {
			p.onAttachment(index, ev.Attachment.Path)
		}

	case events.EventKindRunEnded:
		// Nothing to do: completion state is per test, and the reader
		// observes end-of-stream separately.
	}
}

// handleIssue partitions the event's messages into issue and detail
// buckets, records one issue per issue-bucket message with the detail
// text joined beneath it, and cross-posts case issues to the owning test.
func (p *ModernParser) handleIssue(ev events.Event, st sink.TestRunState) {
	msgs := make([]events.Message, len(ev.Messages))
	copy(msgs, ev.Messages)

	// Continuation lines of a multi-line comment arrive with the default
	// symbol; remap them so they render without a glyph, matching the
	// engine's own console output.
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Symbol == events.SymbolDefault {
			msgs[i].Symbol = events.SymbolNone
		}
	}

	var issues, details []events.Message
	for _, m := range msgs {
		if isDetailSymbol(m.Symbol) {
			details = append(details, m)
		} else {
			issues = append(issues, m)
		}
	}

	detailTexts := make([]string, len(details))
	for i, m := range details {
		detailTexts[i] = m.Text
	}
	detailText := strings.Join(detailTexts, "\n")

	known := ev.Issue != nil && ev.Issue.IsKnown
	var location *events.SourceLocation
	if ev.Issue != nil {
		location = ev.Issue.SourceLocation
	}

	identity := p.identityOf(ev, true)
	index := lookupTest(st, identity)

	for _, m := range issues {
		text := m.Text
		if detailText != "" {
			text = text + "\n" + detailText
		}
		st.RecordIssue(index, text, known, location)
	}
	if len(issues) == 0 && detailText != "" {
		// Never drop a recorded issue outright: an event with only
		// detail messages still marks a failure.
		st.RecordIssue(index, detailText, known, location)
	}

	// An issue on a parameterized case must be visible at both the case
	// node and the owning test node.
	if identity != ev.TestID {
		parent := lookupTest(st, ev.TestID)
		if parent != sink.NotFound && parent != index {
			for _, m := range ev.Messages {
				st.RecordIssue(parent, m.Text, known, location)
			}
		}
	}
}

// identityOf resolves the logical identity an event refers to. Case-aware
// resolution composes the case identity from the stripped static id; all
// other events keep the raw id, so lookup tries it verbatim before
// stripping.
func (p *ModernParser) identityOf(ev events.Event, caseAware bool) string {
	if caseAware && ev.TestCase != nil {
		return caseIdentity(StripSourceSuffix(ev.TestID), *ev.TestCase)
	}
	return ev.TestID
}

// resolve maps an event to a sink index.
func (p *ModernParser) resolve(st sink.TestRunState, ev events.Event, caseAware bool) sink.TestIndex {
	return lookupTest(st, p.identityOf(ev, caseAware))
}

// lookupTest resolves a raw id against the sink: exact lookup first, then
// with the source suffix stripped. The engine sometimes reports the bare
// logical name and sometimes the source-qualified one.
func lookupTest(st sink.TestRunState, id string) sink.TestIndex {
	if index := st.LookupTest(id, ""); index != sink.NotFound {
		return index
	}
	return st.LookupTest(StripSourceSuffix(id), "")
}

func isDetailSymbol(s events.Symbol) bool {
	return s == events.SymbolDefault || s == events.SymbolDetails || s == events.SymbolNone
}

// instantOf converts an event's monotonic instant to a duration instant.
func instantOf(ev events.Event) time.Duration {
	if ev.Instant == nil {
		return 0
	}
	return time.Duration(ev.Instant.Absolute * float64(time.Second))
}
