package log

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.hlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("capture file was not created")
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.hlog")

	for _, id := range []string{"first", "second"} {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{Timestamp: time.Now(), SessionID: id, Category: CategoryState})
		if err := logger.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	events, err := r.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].SessionID != "first" || events[1].SessionID != "second" {
		t.Errorf("order: got %q, %q", events[0].SessionID, events[1].SessionID)
	}
}

func TestStreamLoggerConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStreamLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.Log(Event{Timestamp: time.Now(), SessionID: "s", Category: CategoryMessage})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	events, err := NewStreamReader(&buf, Filter{}).All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(events) != 100 {
		t.Errorf("got %d events, want 100", len(events))
	}
	if logger.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", logger.Dropped())
	}
}

func TestStreamLoggerIgnoresLogAfterClose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStreamLogger(&buf)

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	logger.Log(Event{SessionID: "late"})

	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes after Close", buf.Len())
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	logger := NewStreamLogger(&buf)
	logger.Log(Event{Timestamp: base, SessionID: "a", Layer: LayerSession, Category: CategoryState})
	logger.Log(Event{Timestamp: base.Add(time.Second), SessionID: "a", Layer: LayerLink, Category: CategoryLink, Endpoint: "/messages/devicebound"})
	logger.Log(Event{Timestamp: base.Add(2 * time.Second), SessionID: "b", Layer: LayerTransport, Category: CategoryError})

	link := LayerLink
	errs := CategoryError
	start := base.Add(time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"session", Filter{SessionID: "a"}, 2},
		{"layer", Filter{Layer: &link}, 1},
		{"category", Filter{Category: &errs}, 1},
		{"endpoint", Filter{Endpoint: "/messages/devicebound"}, 1},
		{"time start", Filter{TimeStart: &start}, 2},
		{"time end", Filter{TimeEnd: &start}, 1},
	}

	data := buf.Bytes()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := NewStreamReader(bytes.NewReader(data), tt.filter).All()
			if err != nil {
				t.Fatalf("All failed: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
		})
	}
}

func TestReaderEOFOnEmptyStream(t *testing.T) {
	r := NewStreamReader(bytes.NewReader(nil), Filter{})
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next: got %v, want io.EOF", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.hlog")); err == nil {
		t.Error("expected error for missing file")
	}
}
