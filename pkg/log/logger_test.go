package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

type recordingLogger struct {
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.events = append(r.events, event)
}

func TestNoopLoggerIsZeroValue(t *testing.T) {
	var logger NoopLogger
	logger.Log(Event{})
	logger.Log(Event{Error: &ErrorEventData{Message: "ignored"}})
}

func TestLoggerFunc(t *testing.T) {
	var got []string
	var l Logger = LoggerFunc(func(e Event) { got = append(got, e.SessionID) })
	l.Log(Event{SessionID: "x"})
	if len(got) != 1 || got[0] != "x" {
		t.Errorf("got %v", got)
	}
}

func TestMultiLoggerCallsAll(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	multi := NewMultiLogger(a, nil, b)

	if multi.Len() != 2 {
		t.Errorf("Len = %d, want 2 (nil skipped)", multi.Len())
	}

	multi.Log(Event{SessionID: "s-1"})
	for i, r := range []*recordingLogger{a, b} {
		if len(r.events) != 1 || r.events[0].SessionID != "s-1" {
			t.Errorf("logger %d: got %+v", i, r.events)
		}
	}
}

func TestMultiLoggerEmptyList(t *testing.T) {
	NewMultiLogger().Log(Event{SessionID: "s"})
}

func slogEntry(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterLogsStateChange(t *testing.T) {
	entry := slogEntry(t, Event{
		Timestamp: time.Now(),
		SessionID: "s-1",
		Layer:     LayerSession,
		Category:  CategoryState,
		Host:      "hub.example.net",
		StateChange: &StateChangeEvent{
			OldState: "AUTHENTICATED",
			NewState: "DISCONNECTING",
			Reason:   "connection lost",
			Epoch:    4,
		},
	})

	want := map[string]any{
		"msg":        "protocol",
		"session_id": "s-1",
		"layer":      "SESSION",
		"category":   "STATE",
		"host":       "hub.example.net",
		"old_state":  "AUTHENTICATED",
		"new_state":  "DISCONNECTING",
		"reason":     "connection lost",
		"epoch":      float64(4),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s: got %v, want %v", k, entry[k], v)
		}
	}
}

func TestSlogAdapterLogsLinkEvent(t *testing.T) {
	entry := slogEntry(t, Event{
		Layer:    LayerLink,
		Category: CategoryLink,
		Endpoint: "/messages/serviceBound/feedback",
		Link:     &LinkEvent{Action: LinkInvalidate, Err: "detached"},
	})
	if entry["action"] != "INVALIDATE" {
		t.Errorf("action: got %v", entry["action"])
	}
	if entry["endpoint"] != "/messages/serviceBound/feedback" {
		t.Errorf("endpoint: got %v", entry["endpoint"])
	}
	if entry["link_error"] != "detached" {
		t.Errorf("link_error: got %v", entry["link_error"])
	}
}

func TestSlogAdapterLogsAuthAndMessage(t *testing.T) {
	entry := slogEntry(t, Event{
		Category: CategoryAuth,
		Auth:     &AuthEvent{Trigger: AuthUpdate, Success: false},
	})
	if entry["trigger"] != "UPDATE" || entry["success"] != false {
		t.Errorf("auth: got %v", entry)
	}

	entry = slogEntry(t, Event{
		Direction: DirectionOut,
		Category:  CategoryMessage,
		Message:   &MessageEvent{MessageID: "m-1", To: "/devices/d1/messages/devicebound", Size: 5},
	})
	if entry["direction"] != "OUT" || entry["msg_id"] != "m-1" || entry["size"] != float64(5) {
		t.Errorf("message: got %v", entry)
	}
}

func TestSlogAdapterLogsError(t *testing.T) {
	entry := slogEntry(t, Event{
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerTransport, Message: "boom", Kind: "NOT_CONNECTED", Context: "unsolicited"},
	})
	if entry["error_msg"] != "boom" || entry["error_kind"] != "NOT_CONNECTED" || entry["error_layer"] != "TRANSPORT" {
		t.Errorf("error: got %v", entry)
	}
}
