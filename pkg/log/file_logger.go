package log

import (
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// StreamLogger writes protocol events as a CBOR stream.
// It is safe for concurrent use from multiple goroutines.
type StreamLogger struct {
	mu      sync.Mutex
	w       io.Writer
	encoder *cbor.Encoder
	closer  io.Closer
	closed  bool
	dropped int
}

// NewStreamLogger creates a StreamLogger writing to w. Close does not close w.
func NewStreamLogger(w io.Writer) *StreamLogger {
	return &StreamLogger{w: w, encoder: NewEncoder(w)}
}

// NewFileLogger creates a StreamLogger that appends to the file at path,
// creating it with permissions 0644 if needed. Close closes the file.
func NewFileLogger(path string) (*StreamLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := NewStreamLogger(f)
	l.closer = f
	return l, nil
}

// Log writes an event. Encoding errors are counted, not returned.
func (l *StreamLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.encoder.Encode(event); err != nil {
		l.dropped++
	}
}

// Dropped returns how many events failed to encode.
func (l *StreamLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close stops the logger and closes the underlying file, if it owns one.
// It is safe to call Close multiple times; later Log calls are ignored.
func (l *StreamLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Compile-time interface satisfaction check.
var _ Logger = (*StreamLogger)(nil)
