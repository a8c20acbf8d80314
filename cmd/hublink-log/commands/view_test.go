package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestViewFormatsEvents(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunView(path, Options{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"2026-03-02T09:30:00.000000Z [session:1b4e28ba] SESSION State",
		"DISCONNECTED -> CONNECTING",
		"Auth INITIAL",
		"Result: accepted",
		"Expiry: 2026-03-02T10:30:00Z",
		"Link ATTACH /messages/devicebound",
		"Message OUT /messages/devicebound",
		"To: /devices/dev-1/messages/devicebound",
		"Size: 6 bytes",
		"Kind: TRANSPORT",
		"Reason: broken pipe",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestViewFilterByCategory(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunView(path, Options{Category: "state"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	if got := strings.Count(output, "SESSION State"); got != 2 {
		t.Errorf("expected 2 state events, got %d:\n%s", got, output)
	}
	if strings.Contains(output, "Message") {
		t.Error("message event should be filtered out")
	}
}

func TestViewFilterByDirection(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunView(path, Options{Direction: "in", Category: "message"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no incoming messages, got:\n%s", buf.String())
	}
}

func TestViewInvalidFilter(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	if err := RunView(path, Options{Layer: "wire"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for invalid layer")
	}
}

func TestViewMissingFile(t *testing.T) {
	if err := RunView("/nonexistent/capture.hlog", Options{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for missing file")
	}
}
