//go:build windows

package pipe

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// Mkfifo is a no-op on Windows: the named-pipe server is created by
// Start itself.
func Mkfifo(path string) error {
	return nil
}

// Reader delivers the lines written to a local named-pipe server
// (a \\.\pipe\... address).
type Reader struct {
	path     string
	pump     *Pump
	listener net.Listener
}

// NewReader creates a reader listening at the named-pipe address path.
func NewReader(path string, opts ...PumpOption) *Reader {
	return &Reader{path: path, pump: NewPump(opts...)}
}

// Start begins listening and returns the line channel. Listen failure is
// returned synchronously. Each incoming connection's bytes are forwarded
// into the line stream; a stream error closes the server, and end of
// stream closes the channel.
func (r *Reader) Start() (<-chan []byte, error) {
	listener, err := winio.ListenPipe(r.path, nil)
	if err != nil {
		return nil, fmt.Errorf("listen pipe %s: %w", r.path, err)
	}
	r.listener = listener

	lines := make(chan []byte, r.pump.bufferLines)
	go func() {
		defer close(lines)
		defer listener.Close()

		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r.pump.scanInto(conn, lines)
	}()
	return lines, nil
}
