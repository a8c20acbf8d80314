package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Azure/go-amqp"

	"github.com/hublink/hublink-go/pkg/transport"
)

// DefaultLinkCredit is the receiver credit used when Config.Credit is zero.
const DefaultLinkCredit = 32

// Config configures a Transport.
type Config struct {
	// ContainerID identifies this client to the peer (default: generated
	// by go-amqp).
	ContainerID string

	// Port overrides DefaultPort.
	Port int

	// Credit is the receiver link credit.
	Credit int32

	// WriteTimeout bounds frame writes (0 = go-amqp default).
	WriteTimeout time.Duration

	// Logger is the optional logger. If nil, logging is disabled.
	Logger *slog.Logger
}

// conn is one open connection with its session and $cbs client.
type conn struct {
	conn *amqp.Conn
	sess *amqp.Session
	cbs  *cbsClient
}

// Transport is an AMQP 1.0 transport.Transport. It holds at most one
// connection at a time and is safe for concurrent use.
type Transport struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	current *conn

	handlerMu    sync.Mutex
	onDisconnect func(error)
}

var _ transport.Transport = (*Transport)(nil)

// New creates a Transport.
func New(cfg Config) *Transport {
	if cfg.Credit <= 0 {
		cfg.Credit = DefaultLinkCredit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Transport{cfg: cfg, logger: logger}
}

// Connect dials the hub and opens the AMQP session. It holds t.mu for the
// whole dial, so a concurrent Disconnect closes the result.
func (t *Transport) Connect(ctx context.Context, cfg transport.Config) error {
	if cfg.Host == "" {
		return errors.New("amqp: host is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		return errors.New("amqp: already connected")
	}

	addr := address(cfg.Host, t.cfg.Port)
	t.logger.Debug("dialing", "addr", addr)

	c, err := amqp.Dial(ctx, addr, &amqp.ConnOptions{
		ContainerID:  t.cfg.ContainerID,
		HostName:     cfg.Host,
		IdleTimeout:  cfg.IdleTimeout,
		Properties:   cfg.Properties,
		SASLType:     amqp.SASLTypeAnonymous(),
		TLSConfig:    NewTLSConfig(cfg.TLSConfig, cfg.Host),
		WriteTimeout: t.cfg.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, wrapError(err))
	}

	sess, err := c.NewSession(ctx, nil)
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("open session: %w", wrapError(err))
	}

	t.current = &conn{conn: c, sess: sess}
	return nil
}

// BeginAuthentication attaches the $cbs request and reply links.
func (t *Transport) BeginAuthentication(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return ErrNotConnected
	}
	if t.current.cbs != nil {
		return nil
	}

	current := t.current
	cbs, err := newCBSClient(ctx, current.sess, t.logger, func(err error) {
		t.connectionLost(current, err)
	})
	if err != nil {
		return err
	}
	current.cbs = cbs
	return nil
}

// Authenticate sends a put-token request for audience.
func (t *Transport) Authenticate(ctx context.Context, audience, token string) error {
	t.mu.Lock()
	current := t.current
	t.mu.Unlock()
	if current == nil || current.cbs == nil {
		return ErrNotConnected
	}
	return current.cbs.putToken(ctx, audience, token)
}

// AttachSender attaches a sending link to endpoint.
func (t *Transport) AttachSender(ctx context.Context, endpoint string, opts transport.LinkOptions) (transport.SenderLink, error) {
	sess, err := t.session()
	if err != nil {
		return nil, err
	}
	s, err := sess.NewSender(ctx, endpoint, &amqp.SenderOptions{
		Name:       opts.Name,
		Properties: opts.Properties,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return &senderLink{endpoint: endpoint, link: s}, nil
}

// AttachReceiver attaches a receiving link to endpoint.
func (t *Transport) AttachReceiver(ctx context.Context, endpoint string, opts transport.LinkOptions) (transport.ReceiverLink, error) {
	sess, err := t.session()
	if err != nil {
		return nil, err
	}
	r, err := sess.NewReceiver(ctx, endpoint, &amqp.ReceiverOptions{
		Credit:     t.cfg.Credit,
		Name:       opts.Name,
		Properties: opts.Properties,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return &receiverLink{endpoint: endpoint, link: r}, nil
}

// Disconnect closes the $cbs links and the connection. It does not call
// the OnDisconnect handler. Disconnect without a connection is a no-op.
func (t *Transport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	current := t.current
	t.current = nil
	t.mu.Unlock()
	if current == nil {
		return nil
	}

	var errs []error
	if current.cbs != nil {
		errs = append(errs, current.cbs.close(ctx))
	}
	errs = append(errs, wrapError(current.conn.Close()))
	return errors.Join(errs...)
}

// OnDisconnect registers the handler for unsolicited connection loss.
func (t *Transport) OnDisconnect(fn func(err error)) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.onDisconnect = fn
}

func (t *Transport) session() (*amqp.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil, ErrNotConnected
	}
	return t.current.sess, nil
}

// connectionLost forgets c and reports err if c is still the live
// connection.
func (t *Transport) connectionLost(c *conn, err error) {
	t.mu.Lock()
	live := t.current == c
	if live {
		t.current = nil
	}
	t.mu.Unlock()
	if !live {
		return
	}

	_ = c.conn.Close()
	t.logger.Warn("connection lost", "error", err)

	t.handlerMu.Lock()
	fn := t.onDisconnect
	t.handlerMu.Unlock()
	if fn != nil {
		fn(err)
	}
}
