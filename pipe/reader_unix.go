//go:build unix

package pipe

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mkfifo creates the FIFO special file the test runner will write its
// event stream into. The caller owns removal.
func Mkfifo(path string) error {
	if err := unix.Mkfifo(path, 0o600); err != nil {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// Reader delivers the lines written into a Unix FIFO.
type Reader struct {
	path string
	pump *Pump
}

// NewReader creates a reader for the FIFO at path.
func NewReader(path string, opts ...PumpOption) *Reader {
	return &Reader{path: path, pump: NewPump(opts...)}
}

// Start begins reading the pipe and returns the line channel. It returns
// an error if the path does not exist or is not a FIFO; the blocking open
// itself happens in the reading goroutine, because a FIFO read-end blocks
// until a writer connects. The channel is closed on end of stream; a read
// error mid-stream closes the descriptor without surfacing a failure.
func (r *Reader) Start() (<-chan []byte, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		return nil, fmt.Errorf("open pipe %s: %w", r.path, err)
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		return nil, fmt.Errorf("open pipe %s: not a FIFO", r.path)
	}

	lines := make(chan []byte, r.pump.bufferLines)
	go func() {
		defer close(lines)

		f, err := os.OpenFile(r.path, os.O_RDONLY, 0)
		if err != nil {
			return
		}
		defer f.Close()

		r.pump.scanInto(f, lines)
	}()
	return lines, nil
}
