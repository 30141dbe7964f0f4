package results

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/swiftwatch/swiftwatch/events"
	"github.com/swiftwatch/swiftwatch/parse"
	"github.com/swiftwatch/swiftwatch/sink"
)

// Collector is a concrete sink.TestRunState: it owns the mapping from
// logical test names to indices, records lifecycle transitions into the
// run model, and fans high-level events out to subscribers.
//
// The parser driving the collector is the single writer; the mutex exists
// because UI consumers read state concurrently. One collector serves one
// run.
type Collector struct {
	mu     sync.RWMutex
	run    *Run
	byName map[string]sink.TestIndex

	// autoRegister creates test nodes on first lookup instead of
	// returning NotFound. Editor integrations pre-register the tree from
	// discovery; the standalone CLI learns tests from the stream itself.
	autoRegister bool

	subscribers []chan Event
	subMu       sync.Mutex
	finished    bool
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithAutoRegister makes LookupTest create unknown tests on demand.
func WithAutoRegister() CollectorOption {
	return func(c *Collector) { c.autoRegister = true }
}

// NewCollector creates a collector for a single run.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		run:    NewRun(),
		byName: make(map[string]sink.TestIndex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe returns a channel of collector events. The channel is closed
// by Finish. Subscribe before the run starts to observe every event.
//
// Events are never dropped: each subscriber channel buffers 100 events,
// and once a subscriber's buffer is full the producing parser blocks
// until it drains. Subscribers must keep draining for the life of the
// run.
func (c *Collector) Subscribe() <-chan Event {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	ch := make(chan Event, 100)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

func (c *Collector) emit(evt Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.finished {
		return
	}
	for _, sub := range c.subscribers {
		sub <- evt
	}
}

// Add registers a test node and returns its index. Used to populate the
// run from discovery (modern test declarations) before events arrive.
func (c *Collector) Add(name, displayName, fileHint string) sink.TestIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.add(name, displayName, fileHint, sink.NotFound, "")
}

// AddCase registers a parameterized test case under its owning function.
// Matches the modern parser's case callback.
func (c *Collector) AddCase(parent sink.TestIndex, node parse.CaseNode) {
	c.mu.Lock()
	fileHint := ""
	if node.Location != nil {
		fileHint = node.Location.FilePath
	}
	index := c.add(node.Name, node.DisplayName, fileHint, parent, node.SortKey)
	c.mu.Unlock()

	c.emit(Event{Type: EventTestAdded, Index: index})
}

// add requires c.mu.
func (c *Collector) add(name, displayName, fileHint string, parent sink.TestIndex, sortKey string) sink.TestIndex {
	if index, ok := c.byName[name]; ok {
		return index
	}
	if displayName == "" {
		displayName = name
	}
	index := sink.TestIndex(len(c.run.Tests))
	c.run.Tests = append(c.run.Tests, &Test{
		Index:       index,
		Name:        name,
		DisplayName: displayName,
		Parent:      parent,
		SortKey:     sortKey,
		FileHint:    fileHint,
		Status:      StatusPending,
	})
	c.byName[name] = index
	return index
}

// LookupTest resolves a logical test name to its index. Resolution order:
// exact name match; then a suffix match for legacy non-Darwin names of the
// form "<class>/<function>" against registered "<target>/<class.function>"
// names, disambiguated by the file hint when several targets collide.
// Returns sink.NotFound rather than failing.
func (c *Collector) LookupTest(name, fileHint string) sink.TestIndex {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index, ok := c.byName[name]; ok {
		return index
	}

	if class, function, ok := strings.Cut(name, "/"); ok {
		suffix := "/" + class + "." + function
		var matches []*Test
		for _, t := range c.run.Tests {
			if strings.HasSuffix(t.Name, suffix) {
				matches = append(matches, t)
			}
		}
		if len(matches) > 1 && fileHint != "" {
			base := filepath.Base(fileHint)
			for _, t := range matches {
				if t.FileHint == fileHint || filepath.Base(t.FileHint) == base {
					return t.Index
				}
			}
		}
		if len(matches) > 0 {
			return matches[0].Index
		}
	}

	if c.autoRegister {
		// A source-qualified id must resolve to the declared test, not
		// register a duplicate node.
		if stripped := parse.StripSourceSuffix(name); stripped != name {
			if index, ok := c.byName[stripped]; ok {
				return index
			}
		}
		return c.add(name, "", fileHint, sink.NotFound, "")
	}
	return sink.NotFound
}

// test requires c.mu and tolerates out-of-range indices.
func (c *Collector) test(index sink.TestIndex) *Test {
	if index < 0 || int(index) >= len(c.run.Tests) {
		return nil
	}
	return c.run.Tests[index]
}

// RunStarted marks the beginning of the run. Matches the modern parser's
// run-started callback.
func (c *Collector) RunStarted() {
	c.mu.Lock()
	c.run.StartTime = time.Now()
	c.mu.Unlock()

	c.emit(Event{Type: EventRunStarted})
}

// Started implements sink.TestRunState.
func (c *Collector) Started(index sink.TestIndex, at time.Duration) {
	c.mu.Lock()
	t := c.test(index)
	if t == nil {
		c.mu.Unlock()
		return
	}
	t.Status = StatusRunning
	t.StartedAt = at
	c.mu.Unlock()

	c.emit(Event{Type: EventTestUpdated, Index: index})
}

// Completed implements sink.TestRunState. Duration-based completions are
// recorded as-is; instant-based completions are measured against the
// instant the test started at.
func (c *Collector) Completed(index sink.TestIndex, completion sink.Completion) {
	c.mu.Lock()
	t := c.test(index)
	if t == nil {
		c.mu.Unlock()
		return
	}
	if completion.HasDuration {
		t.Duration = completion.Duration
	} else if completion.Instant > t.StartedAt {
		t.Duration = completion.Instant - t.StartedAt
	}
	if t.Failed() {
		t.Status = StatusFailed
		c.run.Counts.Failed++
	} else {
		t.Status = StatusPassed
		c.run.Counts.Passed++
	}
	c.mu.Unlock()

	c.emit(Event{Type: EventTestUpdated, Index: index})
}

// Skipped implements sink.TestRunState.
func (c *Collector) Skipped(index sink.TestIndex) {
	c.mu.Lock()
	t := c.test(index)
	if t == nil {
		c.mu.Unlock()
		return
	}
	t.Status = StatusSkipped
	c.run.Counts.Skipped++
	c.mu.Unlock()

	c.emit(Event{Type: EventTestUpdated, Index: index})
}

// RecordIssue implements sink.TestRunState.
func (c *Collector) RecordIssue(index sink.TestIndex, message string, known bool, location *events.SourceLocation) {
	c.mu.Lock()
	t := c.test(index)
	if t == nil {
		c.mu.Unlock()
		return
	}
	t.Issues = append(t.Issues, Issue{Message: message, Known: known, Location: location})
	c.mu.Unlock()

	c.emit(Event{Type: EventIssueRecorded, Index: index, Message: message})
	c.emit(Event{Type: EventTestUpdated, Index: index})
}

// StartedSuite implements sink.TestRunState.
func (c *Collector) StartedSuite(name string) {
	c.suiteTransition(name, StatusRunning)
}

// PassedSuite implements sink.TestRunState.
func (c *Collector) PassedSuite(name string) {
	c.suiteTransition(name, StatusPassed)
}

// FailedSuite implements sink.TestRunState.
func (c *Collector) FailedSuite(name string) {
	c.suiteTransition(name, StatusFailed)
}

func (c *Collector) suiteTransition(name string, status Status) {
	c.mu.Lock()
	suite, ok := c.run.suiteByName[name]
	if !ok {
		suite = &Suite{Name: name}
		c.run.suiteByName[name] = suite
		c.run.Suites = append(c.run.Suites, suite)
	}
	suite.Status = status
	c.mu.Unlock()

	c.emit(Event{Type: EventSuiteUpdated, SuiteName: name})
}

// RecordOutput implements sink.TestRunState.
func (c *Collector) RecordOutput(index sink.TestIndex, text string) {
	c.mu.Lock()
	if t := c.test(index); t != nil {
		t.Output = append(t.Output, text)
	} else {
		c.run.Output = append(c.run.Output, text)
	}
	c.mu.Unlock()

	c.emit(Event{Type: EventOutput, Index: index, Message: text})
}

// AddAttachment records the path of a value a test attached. Matches the
// modern parser's attachment callback.
func (c *Collector) AddAttachment(index sink.TestIndex, path string) {
	c.mu.Lock()
	t := c.test(index)
	if t == nil {
		c.mu.Unlock()
		return
	}
	t.Attachments = append(t.Attachments, path)
	c.mu.Unlock()

	c.emit(Event{Type: EventTestUpdated, Index: index})
}

// Finish ends the run: still-running tests stay in their current state,
// the end time is stamped, a RunFinished event is emitted, and all
// subscriber channels are closed. Idempotent.
func (c *Collector) Finish() {
	c.mu.Lock()
	c.run.EndTime = time.Now()
	c.mu.Unlock()

	c.subMu.Lock()
	if c.finished {
		c.subMu.Unlock()
		return
	}
	for _, sub := range c.subscribers {
		sub <- Event{Type: EventRunFinished}
		close(sub)
	}
	c.finished = true
	c.subMu.Unlock()
}

// WithRun executes fn with the run while holding the read lock, for safe
// access to nested state from UI consumers.
func (c *Collector) WithRun(fn func(*Run)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.run)
}

// Counts returns a snapshot of the terminal-state counters.
func (c *Collector) Counts() Counts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run.Counts
}
