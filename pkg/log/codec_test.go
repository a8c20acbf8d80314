package log

import (
	"bytes"
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 123456789, time.UTC)
	expiry := ts.Add(time.Hour)
	original := Event{
		Timestamp: ts,
		SessionID: "0b5d7d3c-8a4e-4d7e-9a53-5c8f1e0d2b11",
		Layer:     LayerTransport,
		Category:  CategoryAuth,
		Host:      "hub.example.net",
		Auth: &AuthEvent{
			Trigger: AuthRenewal,
			Success: true,
			Expiry:  &expiry,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(ts) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, ts)
	}
	if decoded.SessionID != original.SessionID {
		t.Errorf("SessionID: got %q, want %q", decoded.SessionID, original.SessionID)
	}
	if decoded.Host != original.Host {
		t.Errorf("Host: got %q, want %q", decoded.Host, original.Host)
	}
	if decoded.Auth == nil {
		t.Fatal("Auth is nil")
	}
	if decoded.Auth.Trigger != AuthRenewal || !decoded.Auth.Success {
		t.Errorf("Auth: got %+v", decoded.Auth)
	}
	if decoded.Auth.Expiry == nil || !decoded.Auth.Expiry.Equal(expiry) {
		t.Errorf("Auth.Expiry: got %v, want %v", decoded.Auth.Expiry, expiry)
	}
}

func TestEventCBORUsesIntegerKeys(t *testing.T) {
	data, err := EncodeEvent(Event{SessionID: "session-identifier"})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	if bytes.Contains(data, []byte("SessionID")) {
		t.Error("encoded event contains field name; want integer keys")
	}
}

func TestEventCBOROmitsEmptyPayloads(t *testing.T) {
	data, err := EncodeEvent(Event{
		Layer:    LayerLink,
		Category: CategoryLink,
		Endpoint: "/messages/devicebound",
		Link:     &LinkEvent{Action: LinkForceDetach, Err: "connection lost"},
	})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if decoded.StateChange != nil || decoded.Auth != nil || decoded.Message != nil || decoded.Error != nil {
		t.Errorf("unexpected payloads decoded: %+v", decoded)
	}
	if decoded.Link == nil || decoded.Link.Action != LinkForceDetach {
		t.Errorf("Link: got %+v", decoded.Link)
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error decoding garbage")
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerLink.String(), "LINK"},
		{LayerSession.String(), "SESSION"},
		{Layer(9).String(), "UNKNOWN"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryLink.String(), "LINK"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{CategoryAuth.String(), "AUTH"},
		{Category(9).String(), "UNKNOWN"},
		{LinkAttach.String(), "ATTACH"},
		{LinkDetach.String(), "DETACH"},
		{LinkForceDetach.String(), "FORCE_DETACH"},
		{LinkInvalidate.String(), "INVALIDATE"},
		{LinkAction(9).String(), "UNKNOWN"},
		{AuthInitial.String(), "INITIAL"},
		{AuthUpdate.String(), "UPDATE"},
		{AuthRenewal.String(), "RENEWAL"},
		{AuthTrigger(9).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
