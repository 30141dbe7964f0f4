// Package sink defines the contract between the output parsers and the
// test-run state they drive. Both the event-stream parser and the legacy
// text parser translate raw runner output into calls on TestRunState; the
// concrete implementation owns the mapping from logical test names to
// indices and whatever backing store (test explorer, collector) sits
// behind them.
package sink

import (
	"time"

	"github.com/swiftwatch/swiftwatch/events"
)

// TestIndex identifies a test node in the run state.
type TestIndex int

// NotFound is returned by LookupTest when a name resolves to no known test.
// Every sink operation must treat it as a silent no-op, never a crash.
const NotFound TestIndex = -1

// Completion describes how a test finished: with a measured duration
// (legacy runner output) or with the monotonic instant at which it ended
// (event stream). Exactly one of the two is set.
type Completion struct {
	Duration    time.Duration
	Instant     time.Duration
	HasDuration bool
}

// CompletionWithDuration reports a completion measured as an elapsed time.
func CompletionWithDuration(d time.Duration) Completion {
	return Completion{Duration: d, HasDuration: true}
}

// CompletionAtInstant reports a completion stamped with the monotonic
// instant at which the test ended.
func CompletionAtInstant(at time.Duration) Completion {
	return Completion{Instant: at}
}

// TestRunState records test lifecycle transitions for a single run.
//
// LookupTest must never fail: unknown names return NotFound. The fileHint,
// when non-empty, disambiguates tests whose bare name collides across
// targets (legacy output on non-Darwin platforms carries no target name at
// the test-case level, only a source path on error lines).
type TestRunState interface {
	LookupTest(name, fileHint string) TestIndex

	Started(index TestIndex, at time.Duration)
	Completed(index TestIndex, c Completion)
	Skipped(index TestIndex)

	// RecordIssue attaches a failure or diagnostic to a test. known marks
	// issues the author has already acknowledged; location is nil when the
	// output carried no source position.
	RecordIssue(index TestIndex, message string, known bool, location *events.SourceLocation)

	StartedSuite(name string)
	PassedSuite(name string)
	FailedSuite(name string)

	// RecordOutput forwards raw output text. index is NotFound for output
	// not attributable to a specific test.
	RecordOutput(index TestIndex, text string)
}
