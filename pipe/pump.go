// Package pipe turns platform inter-process pipes (a Unix FIFO or a
// Windows named pipe) into a stream of discrete lines with bounded
// buffering between the OS-level source and the consumer.
package pipe

import (
	"bufio"
	"io"
)

// DefaultBufferLines is the number of lines held between the reader
// goroutine and the consumer before the reader blocks.
const DefaultBufferLines = 100

// maxLineBytes bounds a single line. Event-stream records are one JSON
// object per line and can carry large embedded message text.
const maxLineBytes = 16 << 20

// Pump splits a byte stream into lines and delivers them over a bounded
// channel. The bounded channel is the backpressure mechanism: when the
// consumer stops draining, the channel fills and the reading goroutine
// blocks, which in turn stops draining the underlying pipe.
type Pump struct {
	bufferLines int
}

// PumpOption configures a Pump.
type PumpOption func(*Pump)

// WithBufferLines sets how many lines may be in flight before the reader
// blocks waiting for the consumer.
func WithBufferLines(n int) PumpOption {
	return func(p *Pump) {
		if n > 0 {
			p.bufferLines = n
		}
	}
}

// NewPump creates a line pump.
func NewPump(opts ...PumpOption) *Pump {
	p := &Pump{bufferLines: DefaultBufferLines}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stream reads r to exhaustion, emitting one channel element per line.
// The channel is closed when the stream ends. Read errors mid-stream are
// treated as an orderly end of stream rather than a failure: partial
// output up to that point is still useful to the consumer.
func (p *Pump) Stream(r io.Reader) <-chan []byte {
	lines := make(chan []byte, p.bufferLines)

	go func() {
		defer close(lines)
		p.scanInto(r, lines)
	}()

	return lines
}

// scanInto splits r into lines and sends them on the channel, blocking
// when the channel is full.
func (p *Pump) scanInto(r io.Reader, lines chan<- []byte) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineBytes)
	for scanner.Scan() {
		// Scanner reuses its buffer, so hand out a copy.
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		lines <- line
	}
}
