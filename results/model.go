package results

import (
	"time"

	"github.com/swiftwatch/swiftwatch/events"
	"github.com/swiftwatch/swiftwatch/sink"
)

// Status is the lifecycle state of a test or suite node.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Issue is a failure or diagnostic recorded against a test.
type Issue struct {
	Message  string
	Known    bool
	Location *events.SourceLocation
}

// Test is one test node in the run: a test function or a parameterized
// test case. Its Name is the logical identity the parsers look tests up
// by; DisplayName is what a UI would show.
type Test struct {
	Index       sink.TestIndex
	Name        string
	DisplayName string
	// Parent is the owning test's index for parameterized cases,
	// sink.NotFound for top-level tests.
	Parent   sink.TestIndex
	SortKey  string
	FileHint string

	Status      Status
	StartedAt   time.Duration // monotonic instant, zero when unknown
	Duration    time.Duration
	Issues      []Issue
	Output      []string
	Attachments []string
}

// Failed reports whether the test carries any unacknowledged issue.
func (t *Test) Failed() bool {
	for _, issue := range t.Issues {
		if !issue.Known {
			return true
		}
	}
	return false
}

// Suite is a grouping node above individual tests. Only the legacy
// protocol reports explicit suite transitions.
type Suite struct {
	Name   string
	Status Status
}

// Counts aggregates terminal test states for summaries and exit codes.
type Counts struct {
	Passed  int
	Failed  int
	Skipped int
}

// Run holds the state of one test run.
type Run struct {
	Tests       []*Test
	Suites      []*Suite
	suiteByName map[string]*Suite
	Output      []string // output not attributable to a specific test
	Counts      Counts
	StartTime   time.Time
	EndTime     time.Time
}

// NewRun creates an empty run.
func NewRun() *Run {
	return &Run{
		suiteByName: make(map[string]*Suite),
		StartTime:   time.Now(),
	}
}
