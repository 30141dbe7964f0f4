// Package events models the versioned JSON event stream emitted by the
// swift-testing engine: newline-delimited records, one per line, each an
// envelope discriminated by a "kind" tag with a kind-specific payload.
package events

import (
	"encoding/json"
	"fmt"
)

// RecordKind discriminates the three record envelopes.
type RecordKind string

const (
	RecordKindMetadata RecordKind = "metadata"
	RecordKindTest     RecordKind = "test"
	RecordKindEvent    RecordKind = "event"
)

// Record is one decoded line of the event stream. The payload is left raw
// until the kind is known; unknown kinds and unknown fields are tolerated
// for forward compatibility.
type Record struct {
	Version int             `json:"version"`
	Kind    RecordKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// ParseRecord parses a single line of the event stream.
// A line that is not valid JSON is a hard error: it indicates a protocol or
// version mismatch, not noise to be skipped.
func ParseRecord(line []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return rec, fmt.Errorf("malformed event-stream record: %w", err)
	}
	return rec, nil
}

// Test decodes the payload of a test-declaration record.
func (r Record) Test() (Test, error) {
	var t Test
	if err := json.Unmarshal(r.Payload, &t); err != nil {
		return t, fmt.Errorf("malformed test record payload: %w", err)
	}
	return t, nil
}

// Event decodes the payload of a runtime event record.
func (r Record) Event() (Event, error) {
	var e Event
	if err := json.Unmarshal(r.Payload, &e); err != nil {
		return e, fmt.Errorf("malformed event record payload: %w", err)
	}
	return e, nil
}

// TestKind distinguishes suites from test functions in declarations.
type TestKind string

const (
	TestKindSuite    TestKind = "suite"
	TestKindFunction TestKind = "function"
)

// NoCaseID is the sentinel the engine emits for a parameterized test case
// whose arguments have no stable identifier. It reads like a serialization
// artifact rather than a designed protocol value; compare it exactly so a
// future change breaks loudly.
const NoCaseID = "argumentIDs: nil"

// SourceLocation points at the source position a declaration or issue
// belongs to.
type SourceLocation struct {
	FilePath string `json:"_filePath"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// TestCase is one concrete invocation of a parameterized test function.
type TestCase struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Test is a static test declaration, immutable for the run.
type Test struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Kind            TestKind        `json:"kind"`
	IsParameterized bool            `json:"isParameterized"`
	SourceLocation  *SourceLocation `json:"sourceLocation"`
	TestCases       []TestCase      `json:"_testCases"`
}

// EventKind tags a runtime occurrence.
type EventKind string

const (
	EventKindRunStarted      EventKind = "runStarted"
	EventKindRunEnded        EventKind = "runEnded"
	EventKindTestStarted     EventKind = "testStarted"
	EventKindTestEnded       EventKind = "testEnded"
	EventKindTestCaseStarted EventKind = "testCaseStarted"
	EventKindTestCaseEnded   EventKind = "testCaseEnded"
	EventKindIssueRecorded   EventKind = "issueRecorded"
	EventKindTestSkipped     EventKind = "testSkipped"
	EventKindValueAttached   EventKind = "_valueAttached"
)

// Instant carries both a monotonic and a wall-clock timestamp, in seconds.
type Instant struct {
	Absolute  float64 `json:"absolute"`
	Since1970 float64 `json:"since1970"`
}

// Symbol is the severity/role tag on a message.
type Symbol string

const (
	SymbolDefault            Symbol = "default"
	SymbolSkip               Symbol = "skip"
	SymbolPassWithKnownIssue Symbol = "passWithKnownIssue"
	SymbolFail               Symbol = "fail"
	SymbolPass               Symbol = "pass"
	SymbolDifference         Symbol = "difference"
	SymbolWarning            Symbol = "warning"
	SymbolDetails            Symbol = "details"
	SymbolAttachment         Symbol = "attachment"
	SymbolNone               Symbol = "none"
)

// Message is one line of human-readable text attached to an event.
type Message struct {
	Symbol Symbol `json:"symbol"`
	Text   string `json:"text"`
}

// Issue carries issue-specific detail on an issueRecorded event.
type Issue struct {
	IsKnown        bool            `json:"isKnown"`
	SourceLocation *SourceLocation `json:"sourceLocation"`
}

// Attachment carries the file path of a value attached during a test.
type Attachment struct {
	Path string `json:"path"`
}

// Event is a runtime occurrence. TestID is the static test id, possibly
// augmented with a /-joined case id for parameterized runs; TestCase, when
// present, identifies the concrete case the event belongs to.
type Event struct {
	Kind       EventKind   `json:"kind"`
	Instant    *Instant    `json:"instant"`
	Messages   []Message   `json:"messages"`
	TestID     string      `json:"testID"`
	TestCase   *TestCase   `json:"_testCase"`
	Issue      *Issue      `json:"issue"`
	Attachment *Attachment `json:"_attachment"`
}
