//go:build unix

package pipe

import (
	"os"
)

// WriteTerminator writes a trivial JSON record into the FIFO so a reader
// blocked waiting for a writer observes data followed by end-of-stream.
// Used to tear down a run that ended without the test process ever
// opening the pipe.
func WriteTerminator(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte("{}\n"))
	return err
}
