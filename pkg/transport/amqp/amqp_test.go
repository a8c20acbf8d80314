package amqp

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/Azure/go-amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hublink/hublink-go/pkg/message"
	"github.com/hublink/hublink-go/pkg/transport"
)

func TestToAMQP(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &message.Message{
		Data:          []byte("reboot"),
		MessageID:     "msg-1",
		CorrelationID: "corr-1",
		To:            "/devices/dev-1/messages/devicebound",
		ContentType:   "application/json",
		Ack:           message.AckFull,
		ExpiryTime:    expiry,
		Properties:    map[string]string{"priority": "high"},
	}

	am := toAMQP(m)
	assert.Equal(t, []byte("reboot"), am.GetData())
	require.NotNil(t, am.Properties)
	assert.Equal(t, "msg-1", am.Properties.MessageID)
	assert.Equal(t, "corr-1", am.Properties.CorrelationID)
	assert.Equal(t, "/devices/dev-1/messages/devicebound", *am.Properties.To)
	assert.Equal(t, "application/json", *am.Properties.ContentType)
	assert.Nil(t, am.Properties.ContentEncoding)
	assert.Equal(t, expiry, *am.Properties.AbsoluteExpiryTime)
	assert.Equal(t, "high", am.ApplicationProperties["priority"])
	assert.Equal(t, "full", am.ApplicationProperties[propAck])
}

func TestToAMQP_Minimal(t *testing.T) {
	am := toAMQP(&message.Message{Data: []byte("x")})
	assert.Nil(t, am.Properties.MessageID)
	assert.Nil(t, am.Properties.To)
	assert.Nil(t, am.Properties.AbsoluteExpiryTime)
	assert.Nil(t, am.ApplicationProperties)
}

func TestFromAMQP(t *testing.T) {
	to := "/messages/serviceBound/feedback"
	am := &amqp.Message{
		Data: [][]byte{[]byte(`[]`)},
		Properties: &amqp.MessageProperties{
			MessageID:     uint64(42),
			CorrelationID: []byte("abc"),
			To:            &to,
			UserID:        []byte("hub"),
		},
		ApplicationProperties: map[string]any{
			"count":  int32(3),
			propAck: "negative",
		},
	}

	m := fromAMQP(am)
	assert.Equal(t, []byte(`[]`), m.Data)
	assert.Equal(t, "42", m.MessageID)
	assert.Equal(t, "abc", m.CorrelationID)
	assert.Equal(t, to, m.To)
	assert.Equal(t, "hub", m.UserID)
	assert.Equal(t, message.AckNegative, m.Ack)
	assert.Equal(t, "3", m.Properties["count"])
	assert.NotContains(t, m.Properties, propAck)
	assert.Same(t, am, m.Raw)
}

func TestFromAMQP_NoProperties(t *testing.T) {
	m := fromAMQP(&amqp.Message{Data: [][]byte{[]byte("x")}})
	assert.Empty(t, m.MessageID)
	assert.Empty(t, m.Properties)
}

func TestPutTokenStatus(t *testing.T) {
	reply := func(code any) *amqp.Message {
		return &amqp.Message{ApplicationProperties: map[string]any{
			cbsStatusCode:    code,
			cbsStatusMessage: "detail",
		}}
	}

	tests := []struct {
		name string
		code any
		want error
	}{
		{"ok", int32(200), nil},
		{"accepted", int32(202), nil},
		{"unauthorized", int32(401), transport.ErrUnauthorized},
		{"forbidden", int64(403), transport.ErrUnauthorized},
		{"not found", int32(404), transport.ErrNotFound},
		{"throttled", int32(429), transport.ErrResourceExhausted},
		{"server error", int32(500), transport.ErrTransportFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := putTokenStatus(reply(tt.code))
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "detail")
		})
	}

	t.Run("missing code", func(t *testing.T) {
		err := putTokenStatus(&amqp.Message{})
		assert.ErrorIs(t, err, transport.ErrTransportFailure)
	})
}

func TestWrapError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, wrapError(nil))
	})

	t.Run("remote condition", func(t *testing.T) {
		err := wrapError(&amqp.Error{Condition: amqp.ErrCondUnauthorizedAccess, Description: "bad token"})
		var ce transport.Conditioned
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, transport.CondUnauthorizedAccess, ce.Condition())
		assert.ErrorIs(t, transport.Translate(err), transport.ErrUnauthorized)
		assert.Contains(t, err.Error(), "bad token")
	})

	t.Run("device not found", func(t *testing.T) {
		err := wrapError(&amqp.Error{Condition: amqp.ErrCond(transport.CondDeviceNotFound)})
		assert.ErrorIs(t, transport.Translate(err), transport.ErrNotFound)
	})

	t.Run("local error passes through", func(t *testing.T) {
		base := errors.New("boom")
		assert.Same(t, base, wrapError(base))
	})
}

func TestFaults(t *testing.T) {
	var f faults
	var got []error
	sub := f.subscribe(func(err error) { got = append(got, err) })

	f.report(nil)
	f.report(errors.New("not a link error"))
	assert.Empty(t, got)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Empty(t, f.fns)
}

func TestNewTLSConfig(t *testing.T) {
	cfg := NewTLSConfig(nil, "hub.example.net")
	assert.Equal(t, "hub.example.net", cfg.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)

	base := &tls.Config{ServerName: "override", MinVersion: tls.VersionTLS13}
	cfg = NewTLSConfig(base, "hub.example.net")
	assert.Equal(t, "override", cfg.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
	assert.NotSame(t, base, cfg)

	assert.NoError(t, VerifyTLS(tls.ConnectionState{Version: tls.VersionTLS13}))
	assert.Error(t, VerifyTLS(tls.ConnectionState{Version: tls.VersionTLS11}))
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "amqps://hub.example.net:5671", address("hub.example.net", 0))
	assert.Equal(t, "amqps://localhost:15671", address("localhost", 15671))
}

func TestTransport_RequiresConnection(t *testing.T) {
	tr := New(Config{})
	ctx := context.Background()

	assert.ErrorIs(t, tr.BeginAuthentication(ctx), transport.ErrNotConnected)
	assert.ErrorIs(t, tr.Authenticate(ctx, "hub", "token"), transport.ErrNotConnected)
	_, err := tr.AttachSender(ctx, "/messages/devicebound", transport.LinkOptions{})
	assert.ErrorIs(t, err, transport.ErrNotConnected)
	_, err = tr.AttachReceiver(ctx, "/messages/serviceBound/feedback", transport.LinkOptions{})
	assert.ErrorIs(t, err, transport.ErrNotConnected)
	assert.NoError(t, tr.Disconnect(ctx))

	assert.Error(t, tr.Connect(ctx, transport.Config{}))
}

func TestReceiverLink_ForeignMessage(t *testing.T) {
	l := &receiverLink{endpoint: "/messages/serviceBound/feedback"}
	ctx := context.Background()
	m := message.NewMessage(nil)

	assert.ErrorIs(t, l.Accept(ctx, m), errForeignMessage)
	assert.ErrorIs(t, l.Reject(ctx, m, errors.New("bad")), errForeignMessage)
	assert.ErrorIs(t, l.Release(ctx, m), errForeignMessage)
}

func TestTransport_DisconnectWaitsForConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	tr := New(Config{Port: port})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connectErr := make(chan error, 1)
	go func() { connectErr <- tr.Connect(ctx, transport.Config{Host: "127.0.0.1"}) }()

	// The peer accepts TCP but never answers the TLS handshake.
	var peer net.Conn
	select {
	case peer = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("connect did not dial")
	}

	disconnected := make(chan error, 1)
	go func() { disconnected <- tr.Disconnect(context.Background()) }()
	assert.Never(t, func() bool { return len(disconnected) > 0 }, 50*time.Millisecond, 5*time.Millisecond,
		"disconnect returned while connect was dialing")

	peer.Close()
	assert.Error(t, <-connectErr)
	assert.NoError(t, <-disconnected)
	assert.ErrorIs(t, tr.BeginAuthentication(ctx), transport.ErrNotConnected)
}
