package results

import "github.com/swiftwatch/swiftwatch/sink"

// EventType identifies the type of event emitted by the Collector.
type EventType string

const (
	EventRunStarted    EventType = "run_started"    // the stream reported the run began
	EventRunFinished   EventType = "run_finished"   // Finish was called
	EventTestAdded     EventType = "test_added"     // a parameterized case was attached
	EventTestUpdated   EventType = "test_updated"   // a test's state changed
	EventIssueRecorded EventType = "issue_recorded" // an issue was attached to a test
	EventSuiteUpdated  EventType = "suite_updated"  // a suite transitioned
	EventOutput        EventType = "output"         // raw output, attributed or not
)

// Event is a high-level notification emitted by the Collector.
type Event struct {
	Type      EventType
	Index     sink.TestIndex // valid for test-scoped events, NotFound otherwise
	SuiteName string         // for EventSuiteUpdated
	Message   string         // issue text or output text
}
