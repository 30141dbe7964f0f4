package parse

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftwatch/swiftwatch/events"
	"github.com/swiftwatch/swiftwatch/sink"
)

// stateCall records one invocation on the recording sink.
type stateCall struct {
	method   string
	index    sink.TestIndex
	text     string
	known    bool
	at       time.Duration
	result   sink.Completion
	location *events.SourceLocation
}

// recordingState is a sink.TestRunState that records every call.
type recordingState struct {
	indices map[string]sink.TestIndex
	calls   []stateCall
}

func newRecordingState(names ...string) *recordingState {
	s := &recordingState{indices: make(map[string]sink.TestIndex)}
	for i, name := range names {
		s.indices[name] = sink.TestIndex(i)
	}
	return s
}

func (s *recordingState) LookupTest(name, fileHint string) sink.TestIndex {
	if index, ok := s.indices[name]; ok {
		return index
	}
	return sink.NotFound
}

func (s *recordingState) Started(index sink.TestIndex, at time.Duration) {
	s.calls = append(s.calls, stateCall{method: "started", index: index, at: at})
}

func (s *recordingState) Completed(index sink.TestIndex, c sink.Completion) {
	s.calls = append(s.calls, stateCall{method: "completed", index: index, result: c})
}

func (s *recordingState) Skipped(index sink.TestIndex) {
	s.calls = append(s.calls, stateCall{method: "skipped", index: index})
}

func (s *recordingState) RecordIssue(index sink.TestIndex, message string, known bool, location *events.SourceLocation) {
	s.calls = append(s.calls, stateCall{method: "issue", index: index, text: message, known: known, location: location})
}

func (s *recordingState) StartedSuite(name string) {
	s.calls = append(s.calls, stateCall{method: "startedSuite", text: name})
}

func (s *recordingState) PassedSuite(name string) {
	s.calls = append(s.calls, stateCall{method: "passedSuite", text: name})
}

func (s *recordingState) FailedSuite(name string) {
	s.calls = append(s.calls, stateCall{method: "failedSuite", text: name})
}

func (s *recordingState) RecordOutput(index sink.TestIndex, text string) {
	s.calls = append(s.calls, stateCall{method: "output", index: index, text: text})
}

// methodCalls returns the recorded calls for one method, in order.
func (s *recordingState) methodCalls(method string) []stateCall {
	var out []stateCall
	for _, c := range s.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func watch(t *testing.T, input string, st sink.TestRunState, opts ...ModernOption) error {
	t.Helper()
	opts = append(opts, WithSource(strings.NewReader(input)))
	return NewModernParser(opts...).Watch(context.Background(), "", st)
}

func TestModernParser_StartedAndEnded(t *testing.T) {
	input := `{"version":0,"kind":"event","payload":{"kind":"testStarted","testID":"Suite.testA()","instant":{"absolute":1,"since1970":0},"messages":[]}}
{"version":0,"kind":"event","payload":{"kind":"testEnded","testID":"Suite.testA()","instant":{"absolute":2,"since1970":1},"messages":[]}}`

	st := newRecordingState("Suite.testA()")
	require.NoError(t, watch(t, input, st))

	started := st.methodCalls("started")
	require.Len(t, started, 1)
	assert.Equal(t, sink.TestIndex(0), started[0].index)
	assert.Equal(t, time.Second, started[0].at)

	completed := st.methodCalls("completed")
	require.Len(t, completed, 1)
	assert.Equal(t, sink.TestIndex(0), completed[0].index)
	assert.False(t, completed[0].result.HasDuration)
	assert.Equal(t, 2*time.Second, completed[0].result.Instant)

	assert.Empty(t, st.methodCalls("issue"))
}

func TestModernParser_DuplicateEndEventsCompleteOnce(t *testing.T) {
	// Non-parameterized tests produce both a testCaseEnded and a
	// testEnded event with the same identity.
	input := `{"version":0,"kind":"event","payload":{"kind":"testStarted","testID":"Suite.testA()","instant":{"absolute":1,"since1970":0},"messages":[]}}
{"version":0,"kind":"event","payload":{"kind":"testCaseEnded","testID":"Suite.testA()","instant":{"absolute":2,"since1970":1},"messages":[]}}
{"version":0,"kind":"event","payload":{"kind":"testEnded","testID":"Suite.testA()","instant":{"absolute":3,"since1970":2},"messages":[]}}`

	st := newRecordingState("Suite.testA()")
	require.NoError(t, watch(t, input, st))

	completed := st.methodCalls("completed")
	require.Len(t, completed, 1)
	assert.Equal(t, 2*time.Second, completed[0].result.Instant)
}

func TestModernParser_SourceQualifiedID(t *testing.T) {
	// The engine sometimes reports the source-qualified id; the stripped
	// logical name is what the sink knows.
	input := `{"version":0,"kind":"event","payload":{"kind":"testStarted","testID":"Suite.testA()/Tests.swift:12:34","instant":{"absolute":1,"since1970":0},"messages":[]}}`

	st := newRecordingState("Suite.testA()")
	require.NoError(t, watch(t, input, st))

	started := st.methodCalls("started")
	require.Len(t, started, 1)
	assert.Equal(t, sink.TestIndex(0), started[0].index)
}

func TestModernParser_QualifiedIDTriedVerbatimFirst(t *testing.T) {
	// A sink may register a test under its source-qualified name; the
	// raw id must be tried exactly before falling back to the stripped
	// form.
	input := `{"version":0,"kind":"event","payload":{"kind":"testStarted","testID":"Suite.testA()/File.swift:1:2","instant":{"absolute":1,"since1970":0},"messages":[]}}`

	st := newRecordingState("Suite.testA()/File.swift:1:2")
	require.NoError(t, watch(t, input, st))

	started := st.methodCalls("started")
	require.Len(t, started, 1)
	assert.Equal(t, sink.TestIndex(0), started[0].index)
}

func TestStripSourceSuffix(t *testing.T) {
	assert.Equal(t, "Name(args)", StripSourceSuffix("Name(args)/File.swift:12:34"))
	assert.Equal(t, "Name(args)", StripSourceSuffix("Name(args)"))
	assert.Equal(t, "Suite/Name(args)", StripSourceSuffix("Suite/Name(args)/File.swift:1:1"))
}

func TestCaseIdentity(t *testing.T) {
	withID := events.TestCase{ID: "1", DisplayName: "one"}
	assert.Equal(t, "Suite.testA()/1", caseIdentity("Suite.testA()", withID))

	// The sentinel is an exact string match. If the engine ever changes
	// its text this fallback silently stops applying, so pin it here.
	noID := events.TestCase{ID: "argumentIDs: nil", DisplayName: "one"}
	assert.Equal(t, "one", caseIdentity("Suite.testA()", noID))
}

func TestModernParser_Skipped(t *testing.T) {
	input := `{"version":0,"kind":"event","payload":{"kind":"testSkipped","testID":"Suite.testA()","instant":{"absolute":1,"since1970":0},"messages":[]}}`

	st := newRecordingState("Suite.testA()")
	require.NoError(t, watch(t, input, st))

	skipped := st.methodCalls("skipped")
	require.Len(t, skipped, 1)
	assert.Equal(t, sink.TestIndex(0), skipped[0].index)
}

func TestModernParser_IssueDetailsJoined(t *testing.T) {
	input := `{"version":0,"kind":"event","payload":{"kind":"issueRecorded","testID":"Suite.testA()","instant":{"absolute":1,"since1970":0},"issue":{"isKnown":false,"sourceLocation":{"_filePath":"/a/Tests.swift","line":7,"column":3}},"messages":[{"symbol":"fail","text":"A"},{"symbol":"details","text":"B"}]}}`

	st := newRecordingState("Suite.testA()")
	require.NoError(t, watch(t, input, st))

	issues := st.methodCalls("issue")
	require.Len(t, issues, 1)
	assert.Equal(t, "A\nB", issues[0].text)
	assert.False(t, issues[0].known)
	require.NotNil(t, issues[0].location)
	assert.Equal(t, "/a/Tests.swift", issues[0].location.FilePath)
	assert.Equal(t, 7, issues[0].location.Line)
}

func TestModernParser_IssuePerIssueMessage(t *testing.T) {
	input := `{"version":0,"kind":"event","payload":{"kind":"issueRecorded","testID":"Suite.testA()","instant":{"absolute":1,"since1970":0},"messages":[{"symbol":"fail","text":"first"},{"symbol":"fail","text":"second"},{"symbol":"details","text":"detail"}]}}`

	st := newRecordingState("Suite.testA()")
	require.NoError(t, watch(t, input, st))

	issues := st.methodCalls("issue")
	require.Len(t, issues, 2)
	assert.Equal(t, "first\ndetail", issues[0].text)
	assert.Equal(t, "second\ndetail", issues[1].text)
}

func TestModernParser_KnownIssue(t *testing.T) {
	input := `{"version":0,"kind":"event","payload":{"kind":"issueRecorded","testID":"Suite.testA()","instant":{"absolute":1,"since1970":0},"issue":{"isKnown":true},"messages":[{"symbol":"passWithKnownIssue","text":"known"}]}}`

	st := newRecordingState("Suite.testA()")
	require.NoError(t, watch(t, input, st))

	issues := st.methodCalls("issue")
	require.Len(t, issues, 1)
	assert.True(t, issues[0].known)
}

func TestModernParser_IssueCrossPostedToParent(t *testing.T) {
	input := `{"version":0,"kind":"event","payload":{"kind":"issueRecorded","testID":"Suite.testB(x:)","instant":{"absolute":1,"since1970":0},"_testCase":{"id":"2","displayName":"x → 2"},"messages":[{"symbol":"fail","text":"boom"}]}}`

	st := newRecordingState("Suite.testB(x:)", "Suite.testB(x:)/2")
	require.NoError(t, watch(t, input, st))

	issues := st.methodCalls("issue")
	require.Len(t, issues, 2)
	// Case node first, then the owning test.
	assert.Equal(t, sink.TestIndex(1), issues[0].index)
	assert.Equal(t, "boom", issues[0].text)
	assert.Equal(t, sink.TestIndex(0), issues[1].index)
	assert.Equal(t, "boom", issues[1].text)
}

func TestModernParser_ParameterizedCasesRegisteredBeforeRunStarted(t *testing.T) {
	input := `{"version":0,"kind":"test","payload":{"id":"Suite.testB(x:)","name":"testB(x:)","kind":"function","isParameterized":true,"sourceLocation":{"_filePath":"/a/Tests.swift","line":3,"column":1},"_testCases":[{"id":"1","displayName":"x → 1"},{"id":"argumentIDs: nil","displayName":"x → 2"}]}}
{"version":0,"kind":"event","payload":{"kind":"runStarted","messages":[]}}`

	var order []string
	var cases []CaseNode
	var parents []sink.TestIndex

	st := newRecordingState("Suite.testB(x:)")
	err := watch(t, input, st,
		WithRunStarted(func() { order = append(order, "runStarted") }),
		WithParameterizedCase(func(parent sink.TestIndex, c CaseNode) {
			order = append(order, "case")
			parents = append(parents, parent)
			cases = append(cases, c)
		}),
	)
	require.NoError(t, err)

	// Every sub-test node is attached before the run-started signal.
	require.Equal(t, []string{"case", "case", "runStarted"}, order)

	require.Len(t, cases, 2)
	assert.Equal(t, sink.TestIndex(0), parents[0])
	assert.Equal(t, "Suite.testB(x:)/1", cases[0].Name)
	assert.Equal(t, "00000000", cases[0].SortKey)
	// No stable id: identity falls back to the display name.
	assert.Equal(t, "x → 2", cases[1].Name)
	assert.Equal(t, "00000001", cases[1].SortKey)
}

func TestModernParser_RunStartedFiresOnce(t *testing.T) {
	input := `{"version":0,"kind":"event","payload":{"kind":"runStarted","messages":[]}}
{"version":0,"kind":"event","payload":{"kind":"runStarted","messages":[]}}`

	count := 0
	st := newRecordingState()
	require.NoError(t, watch(t, input, st, WithRunStarted(func() { count++ })))
	assert.Equal(t, 1, count)
}

func TestModernParser_Attachment(t *testing.T) {
	input := `{"version":0,"kind":"event","payload":{"kind":"_valueAttached","testID":"Suite.testA()","instant":{"absolute":1,"since1970":0},"_attachment":{"path":"/tmp/att.png"},"messages":[]}}`

	var gotIndex sink.TestIndex
	var gotPath string
	st := newRecordingState("Suite.testA()")
	err := watch(t, input, st, WithAttachment(func(index sink.TestIndex, path string) {
		gotIndex = index
		gotPath = path
	}))
	require.NoError(t, err)

	assert.Equal(t, sink.TestIndex(0), gotIndex)
	assert.Equal(t, "/tmp/att.png", gotPath)
}

func TestModernParser_MalformedLineIsFatal(t *testing.T) {
	input := `{"version":0,"kind":"event","payload":{"kind":"runStarted","messages":[]}}
not json`

	st := newRecordingState()
	err := watch(t, input, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestModernParser_ToleratesUnknownRecords(t *testing.T) {
	// Metadata, unknown kinds, and the {} close terminator are all
	// ignored rather than failing the run.
	input := `{"version":0,"kind":"metadata","payload":{"tool":"swift-testing"}}
{"version":1,"kind":"somethingNew","payload":{"x":1}}
{}`

	st := newRecordingState()
	require.NoError(t, watch(t, input, st))
	assert.Empty(t, st.calls)
}

func TestModernParser_ParseStdout(t *testing.T) {
	st := newRecordingState()
	p := NewModernParser()
	p.ParseStdout("Building for debugging...\r\nBuild complete!\n", st)

	out := st.methodCalls("output")
	require.Len(t, out, 2)
	assert.Equal(t, sink.NotFound, out[0].index)
	assert.Equal(t, "Building for debugging...\r\n", out[0].text)
	assert.Equal(t, "Build complete!\r\n", out[1].text)
}

func TestModernParser_CloseWithoutWatchIsNoop(t *testing.T) {
	p := NewModernParser()
	require.NoError(t, p.Close())
}

func TestModernParser_WatchStopsOnContextCancel(t *testing.T) {
	// A source that never delivers data: only cancellation can end the
	// watch.
	r, w := io.Pipe()
	defer w.Close()

	st := newRecordingState()
	p := NewModernParser(WithSource(r))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Watch(ctx, "", st) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancellation")
	}
	assert.Empty(t, st.calls)
}

func TestModernParser_RawAndEventLogs(t *testing.T) {
	record := `{"version":0,"kind":"event","payload":{"kind":"runStarted","messages":[]}}`
	input := record + "\n\n{}"

	var raw, eventLog strings.Builder
	st := newRecordingState()
	require.NoError(t, watch(t, input, st,
		WithRawLog(&raw), WithEventLog(&eventLog)))

	// The raw log carries everything, blank lines included; the event
	// log only lines that decoded as records.
	assert.Equal(t, record+"\n\n{}\n", raw.String())
	assert.Equal(t, record+"\n{}\n", eventLog.String())
}
