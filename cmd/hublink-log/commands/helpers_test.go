package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hublink/hublink-go/pkg/log"
)

var ts = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

const sessionA = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"

// createTestLogFile writes events to a capture file and returns its path.
func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.hlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}
	return path
}

// sessionEvents is a short connect, send and teardown sequence.
func sessionEvents() []log.Event {
	expiry := ts.Add(time.Hour)
	return []log.Event{
		{
			Timestamp: ts, SessionID: sessionA, Host: "hub.example.net",
			Layer: log.LayerSession, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{OldState: "DISCONNECTED", NewState: "CONNECTING", Epoch: 1},
		},
		{
			Timestamp: ts.Add(10 * time.Millisecond), SessionID: sessionA, Host: "hub.example.net",
			Layer: log.LayerTransport, Category: log.CategoryAuth,
			Auth: &log.AuthEvent{Trigger: log.AuthInitial, Success: true, Expiry: &expiry},
		},
		{
			Timestamp: ts.Add(20 * time.Millisecond), SessionID: sessionA, Host: "hub.example.net",
			Layer: log.LayerLink, Category: log.CategoryLink, Endpoint: "/messages/devicebound",
			Link: &log.LinkEvent{Action: log.LinkAttach},
		},
		{
			Timestamp: ts.Add(30 * time.Millisecond), SessionID: sessionA, Host: "hub.example.net",
			Direction: log.DirectionOut, Layer: log.LayerLink, Category: log.CategoryMessage,
			Endpoint: "/messages/devicebound",
			Message:  &log.MessageEvent{MessageID: "msg-1", To: "/devices/dev-1/messages/devicebound", Size: 6},
		},
		{
			Timestamp: ts.Add(2 * time.Second), SessionID: sessionA, Host: "hub.example.net",
			Layer: log.LayerTransport, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerTransport, Message: "broken pipe", Kind: "TRANSPORT", Context: "connection"},
		},
		{
			Timestamp: ts.Add(2 * time.Second), SessionID: sessionA, Host: "hub.example.net",
			Layer: log.LayerSession, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{OldState: "AUTHENTICATED", NewState: "DISCONNECTING", Reason: "broken pipe", Epoch: 1},
		},
	}
}
