package pipe

import (
	"bufio"
	"io"
	"time"

	"github.com/swiftwatch/swiftwatch/events"
)

// lineWithTiming is a recorded line with the wall-clock instant it was
// originally emitted at, when one could be recovered.
type lineWithTiming struct {
	line      []byte
	since1970 float64
}

// ReplayReader wraps a recorded event-stream file and replays its content
// with delays derived from the since1970 instants carried by event records.
type ReplayReader struct {
	lines      []lineWithTiming
	rate       float64
	currentIdx int
	lineBuffer []byte
	bufferPos  int
	firstRead  bool
	lastStamp  float64
}

// NewReplayReader reads r to exhaustion and prepares a reader that
// re-delivers its lines with original inter-event timing. rate scales the
// delays: 1 replays at original speed, 0.5 at double speed, 0 instantly.
func NewReplayReader(r io.Reader, rate float64) (*ReplayReader, error) {
	var lines []lineWithTiming
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineBytes)

	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())

		stamp := 0.0
		if len(lines) > 0 {
			stamp = lines[len(lines)-1].since1970
		}
		if rec, err := events.ParseRecord(line); err == nil && rec.Kind == events.RecordKindEvent {
			if ev, err := rec.Event(); err == nil && ev.Instant != nil {
				stamp = ev.Instant.Since1970
			}
		}
		lines = append(lines, lineWithTiming{line: line, since1970: stamp})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &ReplayReader{
		lines:     lines,
		rate:      rate,
		firstRead: true,
	}, nil
}

// Read implements io.Reader, returning data line-by-line with timing
// delays between lines.
func (r *ReplayReader) Read(p []byte) (n int, err error) {
	if r.bufferPos < len(r.lineBuffer) {
		n = copy(p, r.lineBuffer[r.bufferPos:])
		r.bufferPos += n
		return n, nil
	}

	if r.currentIdx >= len(r.lines) {
		return 0, io.EOF
	}

	current := r.lines[r.currentIdx]

	if !r.firstRead && r.rate > 0 && r.lastStamp > 0 && current.since1970 > 0 {
		delay := current.since1970 - r.lastStamp
		if delay > 0 {
			time.Sleep(time.Duration(delay * r.rate * float64(time.Second)))
		}
	}

	r.firstRead = false
	if current.since1970 > 0 {
		r.lastStamp = current.since1970
	}

	r.lineBuffer = append(append(r.lineBuffer[:0], current.line...), '\n')
	r.bufferPos = 0
	r.currentIdx++

	n = copy(p, r.lineBuffer[r.bufferPos:])
	r.bufferPos += n
	return n, nil
}
