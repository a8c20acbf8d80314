package link

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hublink/hublink-go/pkg/transport"
)

// Kind selects the attach operation for an endpoint.
type Kind uint8

const (
	// KindSender attaches a sending link.
	KindSender Kind = iota
	// KindReceiver attaches a receiving link.
	KindReceiver
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSender:
		return "SENDER"
	case KindReceiver:
		return "RECEIVER"
	default:
		return "UNKNOWN"
	}
}

// Well-known hub service endpoints.
const (
	EndpointMessages          = "/messages/devicebound"
	EndpointFeedback          = "/messages/serviceBound/feedback"
	EndpointFileNotifications = "/messages/serviceBound/filenotifications"
)

// Endpoint describes a cacheable endpoint.
type Endpoint struct {
	Name string
	Kind Kind
}

// DefaultEndpoints lists the hub endpoints in teardown order.
var DefaultEndpoints = []Endpoint{
	{Name: EndpointMessages, Kind: KindSender},
	{Name: EndpointFeedback, Kind: KindReceiver},
	{Name: EndpointFileNotifications, Kind: KindReceiver},
}

// Handle is a live cached link.
type Handle struct {
	// Endpoint is the logical endpoint name.
	Endpoint string

	// Link is the attached transport link.
	Link transport.Link

	sub transport.Subscription
}

// Sender returns the link as a sender, or nil.
func (h *Handle) Sender() transport.SenderLink {
	s, _ := h.Link.(transport.SenderLink)
	return s
}

// Receiver returns the link as a receiver, or nil.
func (h *Handle) Receiver() transport.ReceiverLink {
	r, _ := h.Link.(transport.ReceiverLink)
	return r
}

// Config configures a Cache.
type Config struct {
	// Transport performs attaches.
	Transport transport.Transport

	// Dispatch runs fn on the goroutine that owns the cache. Attach
	// completions and link error notifications are delivered through it.
	Dispatch func(fn func())

	// Endpoints lists the cacheable endpoints (default: DefaultEndpoints).
	Endpoints []Endpoint

	// OnAttached is called after a link is cached.
	OnAttached func(endpoint string)

	// OnInvalidated is called after a link is dropped because of a link
	// error.
	OnInvalidated func(endpoint string, err error)

	// Logger is the optional logger. If nil, logging is disabled.
	Logger *slog.Logger
}

// Cache attaches links on first use and reuses them until they fail.
//
// Cache is not safe for concurrent use: every method must be called from
// the owner goroutine, the same one Config.Dispatch runs functions on.
type Cache struct {
	cfg    Config
	kinds  map[string]Kind
	logger *slog.Logger

	handles map[string]*Handle
	pending map[string][]func(*Handle, error)

	// generation invalidates in-flight attaches on Reset.
	generation uint64
}

// NewCache creates a Cache.
func NewCache(cfg Config) *Cache {
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = DefaultEndpoints
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	kinds := make(map[string]Kind, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		kinds[ep.Name] = ep.Kind
	}

	return &Cache{
		cfg:     cfg,
		kinds:   kinds,
		logger:  logger,
		handles: make(map[string]*Handle),
		pending: make(map[string][]func(*Handle, error)),
	}
}

// Get returns the live handle for endpoint, if any.
func (c *Cache) Get(endpoint string) (*Handle, bool) {
	h, ok := c.handles[endpoint]
	return h, ok
}

// Len returns the number of live handles.
func (c *Cache) Len() int {
	return len(c.handles)
}

// GetOrAttach delivers the live handle for endpoint to done, attaching the
// link first if needed. A cached handle is delivered synchronously. Callers
// arriving while an attach is in flight wait for that attach. A failed
// attach is reported to every waiter and leaves the cache unchanged.
func (c *Cache) GetOrAttach(ctx context.Context, endpoint string, done func(*Handle, error)) {
	if h, ok := c.handles[endpoint]; ok {
		done(h, nil)
		return
	}

	kind, ok := c.kinds[endpoint]
	if !ok {
		done(nil, fmt.Errorf("unknown endpoint %q", endpoint))
		return
	}

	if waiters, inFlight := c.pending[endpoint]; inFlight {
		c.pending[endpoint] = append(waiters, done)
		return
	}
	c.pending[endpoint] = []func(*Handle, error){done}

	gen := c.generation
	c.logger.Debug("attaching link", "endpoint", endpoint, "kind", kind)

	go func() {
		l, err := c.attach(ctx, endpoint, kind)
		c.cfg.Dispatch(func() { c.complete(gen, endpoint, l, err) })
	}()
}

func (c *Cache) attach(ctx context.Context, endpoint string, kind Kind) (transport.Link, error) {
	opts := transport.LinkOptions{}
	if kind == KindSender {
		s, err := c.cfg.Transport.AttachSender(ctx, endpoint, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	r, err := c.cfg.Transport.AttachReceiver(ctx, endpoint, opts)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// complete runs on the owner goroutine when an attach returns.
func (c *Cache) complete(gen uint64, endpoint string, l transport.Link, err error) {
	if gen != c.generation {
		// Reset already failed the waiters; the link belongs to a torn down
		// connection.
		if l != nil {
			l.ForceDetach(transport.NotConnected("attach completed after teardown"))
		}
		c.logger.Debug("discarding stale attach", "endpoint", endpoint)
		return
	}

	waiters := c.pending[endpoint]
	delete(c.pending, endpoint)

	if err != nil {
		err = transport.Translate(err)
		c.logger.Debug("link attach failed", "endpoint", endpoint, "error", err)
		for _, w := range waiters {
			w(nil, err)
		}
		return
	}

	h := &Handle{Endpoint: endpoint, Link: l}
	h.sub = l.OnError(func(linkErr error) {
		c.cfg.Dispatch(func() { c.invalidate(h, linkErr) })
	})
	c.handles[endpoint] = h

	if c.cfg.OnAttached != nil {
		c.cfg.OnAttached(endpoint)
	}
	for _, w := range waiters {
		w(h, nil)
	}
}

// invalidate drops h after a link error so the next request re-attaches.
func (c *Cache) invalidate(h *Handle, err error) {
	h.sub.Unsubscribe()
	if c.handles[h.Endpoint] != h {
		return
	}
	delete(c.handles, h.Endpoint)

	c.logger.Debug("link invalidated", "endpoint", h.Endpoint, "error", err)
	if c.cfg.OnInvalidated != nil {
		c.cfg.OnInvalidated(h.Endpoint, transport.Translate(err))
	}
}

// Take removes the handle for endpoint and unsubscribes its error listener.
// The caller owns detaching the returned link.
func (c *Cache) Take(endpoint string) (*Handle, bool) {
	h, ok := c.handles[endpoint]
	if !ok {
		return nil, false
	}
	delete(c.handles, endpoint)
	h.sub.Unsubscribe()
	return h, true
}

// Reset fails every in-flight attach with err and makes their eventual
// completions stale. Cached handles are left for Take.
func (c *Cache) Reset(err error) {
	c.generation++
	pending := c.pending
	c.pending = make(map[string][]func(*Handle, error))
	for _, waiters := range pending {
		for _, w := range waiters {
			w(nil, err)
		}
	}
}

// Endpoints returns the cacheable endpoint names in configured order.
func (c *Cache) Endpoints() []string {
	names := make([]string, len(c.cfg.Endpoints))
	for i, ep := range c.cfg.Endpoints {
		names[i] = ep.Name
	}
	return names
}
