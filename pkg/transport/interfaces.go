package transport

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/hublink/hublink-go/pkg/message"
)

// Config configures a transport connection.
type Config struct {
	// Host is the hub host name (e.g. "myhub.example.net").
	Host string

	// TLSConfig overrides the default TLS settings (nil = system defaults).
	TLSConfig *tls.Config

	// IdleTimeout is the requested connection idle timeout (0 = transport
	// default).
	IdleTimeout time.Duration

	// Properties are sent to the peer when the connection is opened.
	Properties map[string]any
}

// LinkOptions configures a link attach.
type LinkOptions struct {
	// Name is the link name (empty = generated by the transport).
	Name string

	// Properties are link properties sent in the attach frame.
	Properties map[string]any
}

// Transport is the network primitive the session drives. Every method may
// block on network I/O. Implementations must be safe for concurrent use.
// Implemented by amqp.Transport.
type Transport interface {
	// Connect opens the transport connection. A Disconnect issued while
	// Connect is in flight must wait for it and close whatever it opened:
	// the session discards a connect that completes after teardown and
	// never disconnects it again.
	Connect(ctx context.Context, cfg Config) error

	// BeginAuthentication prepares the claims-based security handshake
	// (attaches the $cbs links).
	BeginAuthentication(ctx context.Context) error

	// Authenticate presents a token for the given audience. It is used both
	// for the initial handshake and for re-authentication on an existing
	// connection.
	Authenticate(ctx context.Context, audience, token string) error

	// AttachSender attaches a sending link to endpoint.
	AttachSender(ctx context.Context, endpoint string, opts LinkOptions) (SenderLink, error)

	// AttachReceiver attaches a receiving link to endpoint.
	AttachReceiver(ctx context.Context, endpoint string, opts LinkOptions) (ReceiverLink, error)

	// Disconnect closes the connection, including one still being opened
	// by a concurrent Connect. Without a connection it is a no-op.
	Disconnect(ctx context.Context) error

	// OnDisconnect registers the handler for unsolicited connection loss.
	// The handler may run on any goroutine.
	OnDisconnect(fn func(err error))
}

// Link is a logical unidirectional channel over a connection.
type Link interface {
	// Endpoint returns the address the link is attached to.
	Endpoint() string

	// Detach asks the peer to close the link and waits for the
	// acknowledgement.
	Detach(ctx context.Context) error

	// ForceDetach releases the link locally without a network round-trip.
	ForceDetach(err error)

	// OnError subscribes to link-level faults signalled by the peer. The
	// handler may run on any goroutine.
	OnError(fn func(err error)) Subscription
}

// SenderLink is a link that sends messages.
type SenderLink interface {
	Link

	// Send transmits a message and waits for settlement.
	Send(ctx context.Context, msg *message.Message) error
}

// ReceiverLink is a link that receives messages.
type ReceiverLink interface {
	Link

	// Receive blocks until a message arrives.
	Receive(ctx context.Context) (*message.Message, error)

	// Accept settles a message as processed.
	Accept(ctx context.Context, msg *message.Message) error

	// Reject settles a message as unprocessable.
	Reject(ctx context.Context, msg *message.Message, reason error) error

	// Release returns a message to the hub for redelivery.
	Release(ctx context.Context, msg *message.Message) error
}

// Subscription is a handle for a registered error listener.
type Subscription interface {
	// Unsubscribe removes the listener. Safe to call more than once.
	Unsubscribe()
}
