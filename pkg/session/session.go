package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/hublink/hublink-go/pkg/credential"
	"github.com/hublink/hublink-go/pkg/link"
	"github.com/hublink/hublink-go/pkg/log"
	"github.com/hublink/hublink-go/pkg/message"
	"github.com/hublink/hublink-go/pkg/receiver"
	"github.com/hublink/hublink-go/pkg/renewal"
	"github.com/hublink/hublink-go/pkg/transport"
)

// Session manages one authenticated connection to a hub and the links
// multiplexed over it.
//
// All methods are safe for concurrent use. Each call is serialized
// through the session's driver goroutine; ctx bounds only how long the
// caller waits, never the transport call already issued on its behalf.
type Session struct {
	cfg     Config
	id      string
	logger  *slog.Logger
	plog    log.Logger
	clock   clock.Clock
	events  chan *event
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	current atomic.Uint32

	handlerMu    sync.Mutex
	onDisconnect func(error)

	// Driver-owned state. Only the driver goroutine touches these.
	state     State
	epoch     uint64
	cred      credential.Credential
	credGen   uint64 // bumped on every caller replacement of cred
	cache     *link.Cache
	renewal   *renewal.Scheduler
	receivers map[string]*receiver.Receiver

	pending         []*event
	connectWaiters  []*event
	teardownWaiters []*event

	trigger error // teardown trigger, nil for a requested disconnect
	outcome error // aggregated teardown result
	notify  bool  // raise the disconnected notification on entering Disconnected
	closing bool
	stopped bool
}

// New validates cfg and starts a disconnected session.
func New(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	id := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	plog := cfg.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:       cfg,
		id:        id,
		logger:    logger.With("host", cfg.Host, "session_id", id),
		plog:      plog,
		clock:     cfg.Clock,
		events:    make(chan *event, 64),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateDisconnected,
		cred:      cfg.Credential,
		receivers: make(map[string]*receiver.Receiver),
	}

	s.cache = link.NewCache(link.Config{
		Transport:     cfg.Transport,
		Dispatch:      s.dispatch,
		OnAttached:    s.linkAttached,
		OnInvalidated: s.linkInvalidated,
		Logger:        s.logger,
	})
	s.renewal = renewal.NewScheduler(renewal.Config{
		Clock:    cfg.Clock,
		Margin:   cfg.RenewalMargin,
		Dispatch: s.dispatch,
	})

	cfg.Transport.OnDisconnect(func(err error) {
		s.post(&event{kind: evTransportError, err: err})
	})

	go s.run()
	return s, nil
}

// ID returns the session ID carried on protocol capture events.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.current.Load())
}

// OnDisconnected registers fn to be called, on its own goroutine, when an
// authenticated session is torn down because of an error. fn receives the
// translated error. A requested Disconnect does not raise it.
func (s *Session) OnDisconnected(fn func(err error)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onDisconnect = fn
}

// Connect connects and authenticates. It returns immediately if the session
// is already authenticated.
func (s *Session) Connect(ctx context.Context) error {
	return s.wait(ctx, newCommand(evConnect)).err
}

// Disconnect tears down every link and the connection. It returns nil
// immediately if the session is disconnected.
func (s *Session) Disconnect(ctx context.Context) error {
	return s.wait(ctx, newCommand(evDisconnect)).err
}

// Send sends msg to the device identified by deviceID, connecting first if
// needed. msg is not modified.
func (s *Session) Send(ctx context.Context, msg *message.Message, deviceID string) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidArgument)
	}
	if deviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidArgument)
	}
	ev := newCommand(evSend)
	ev.msg = msg
	ev.deviceID = deviceID
	return s.wait(ctx, ev).err
}

// FeedbackReceiver returns the receiver for delivery feedback, connecting
// first if needed. The same Receiver is returned while its link is live.
func (s *Session) FeedbackReceiver(ctx context.Context) (*receiver.Receiver, error) {
	r := s.wait(ctx, newCommand(evFeedbackReceiver))
	return r.receiver, r.err
}

// FileNotificationReceiver returns the receiver for file upload
// notifications, connecting first if needed. The same Receiver is returned
// while its link is live.
func (s *Session) FileNotificationReceiver(ctx context.Context) (*receiver.Receiver, error) {
	r := s.wait(ctx, newCommand(evFileNotificationReceiver))
	return r.receiver, r.err
}

// UpdateCredential replaces the credential. While disconnected it is only
// stored. While authenticated the connection re-authenticates with it; if
// the hub rejects it, the session is torn down and the error returned.
func (s *Session) UpdateCredential(ctx context.Context, cred credential.Credential) error {
	if cred == nil {
		return fmt.Errorf("%w: credential is nil", ErrInvalidArgument)
	}
	if err := checkCredential(cred); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	ev := newCommand(evUpdateCredential)
	ev.cred = cred
	return s.wait(ctx, ev).err
}

// Close disconnects and stops the session. Later calls to any method
// return ErrClosed; Close itself returns nil once the session is stopped.
func (s *Session) Close(ctx context.Context) error {
	err := s.wait(ctx, newCommand(evClose)).err
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// run is the driver loop.
func (s *Session) run() {
	defer s.shutdown()
	for !s.stopped {
		ev := <-s.events
		if ev.fn != nil {
			ev.fn()
			continue
		}
		s.handle(ev)
	}
}

// shutdown fails everything still waiting once the driver stops.
func (s *Session) shutdown() {
	s.renewal.Cancel()
	s.cancel()

	for _, waiters := range [][]*event{s.pending, s.connectWaiters, s.teardownWaiters} {
		for _, ev := range waiters {
			ev.fail(ErrClosed)
		}
	}
	s.pending, s.connectWaiters, s.teardownWaiters = nil, nil, nil
	close(s.done)
}

// handle routes ev through the transition table.
func (s *Session) handle(ev *event) {
	if ev.kind.completion() && ev.epoch != s.epoch {
		s.discard(ev)
		return
	}

	h, ok := transitions[s.state][ev.kind]
	if !ok {
		if s.state.Transient() && ev.kind.deferrable() {
			s.logger.Debug("deferring", "event", ev.kind, "state", s.state)
			s.cfg.Metrics.Deferred()
			s.pending = append(s.pending, ev)
			return
		}
		s.logger.Debug("dropping event", "event", ev.kind, "state", s.state)
		return
	}

	if next := h(s, ev); next != s.state {
		s.enter(next)
	}
}

// discard handles a completion whose epoch no longer matches.
func (s *Session) discard(ev *event) {
	s.logger.Debug("ignoring stale completion", "event", ev.kind, "epoch", ev.epoch, "current_epoch", s.epoch)
	if ev.kind == evReauthenticated {
		ev.origin.fail(transport.NotConnected("session left authenticated state"))
	}
}

// enter changes state and runs the entry action of next.
func (s *Session) enter(next State) {
	prev := s.state
	if prev == StateAuthenticated {
		s.renewal.Cancel()
	}

	s.state = next
	s.epoch++
	s.current.Store(uint32(next))
	s.cfg.Metrics.Transition(next.String(), uint8(next))
	s.logger.Debug("state change", "from", prev, "to", next, "epoch", s.epoch)

	reason := ""
	if next == StateDisconnecting && s.trigger != nil {
		reason = s.trigger.Error()
	}
	s.capture(log.Event{
		Layer:    log.LayerSession,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: prev.String(),
			NewState: next.String(),
			Reason:   reason,
			Epoch:    s.epoch,
		},
	})

	switch next {
	case StateConnecting:
		s.startConnect()
	case StateAuthenticating:
		s.startAuthentication()
	case StateAuthenticated:
		s.enterAuthenticated()
	case StateDisconnecting:
		s.startTeardown()
	case StateDisconnected:
		s.enterDisconnected()
	}
}

func (s *Session) enterAuthenticated() {
	s.armRenewal()

	waiters := s.connectWaiters
	s.connectWaiters = nil
	for _, ev := range waiters {
		if ev.kind == evConnect {
			ev.respond(result{})
			continue
		}
		// Implicit connect done; service the original operation.
		s.handle(ev)
	}
	s.drain()
}

func (s *Session) enterDisconnected() {
	outcome := s.outcome
	s.outcome = nil
	s.trigger = nil

	for _, ev := range s.teardownWaiters {
		ev.fail(outcome)
	}
	s.teardownWaiters = nil

	connectErr := outcome
	if connectErr == nil {
		connectErr = transport.NotConnected("disconnected before the connection was established")
	}
	for _, ev := range s.connectWaiters {
		ev.fail(connectErr)
	}
	s.connectWaiters = nil

	if s.notify {
		s.notify = false
		s.raiseDisconnected(outcome)
	}

	if s.closing {
		s.stopped = true
		return
	}
	s.drain()
}

// drain replays deferred events in arrival order until the queue is empty
// or a replayed event moves the session into a transient state again.
func (s *Session) drain() {
	for len(s.pending) > 0 && !s.state.Transient() && !s.stopped {
		ev := s.pending[0]
		s.pending = s.pending[1:]
		s.handle(ev)
	}
}

func (s *Session) raiseDisconnected(err error) {
	s.handlerMu.Lock()
	fn := s.onDisconnect
	s.handlerMu.Unlock()

	s.logger.Info("session disconnected", "error", err)
	if fn != nil {
		go fn(err)
	}
}

// beginTeardown records why the session is leaving and who waits for the
// outcome, and returns the next state.
func (s *Session) beginTeardown(trigger error, waiter *event) State {
	s.trigger = trigger
	if waiter != nil {
		s.teardownWaiters = append(s.teardownWaiters, waiter)
	}
	return StateDisconnecting
}

func (s *Session) capture(e log.Event) {
	e.Timestamp = s.clock.Now()
	e.SessionID = s.id
	e.Host = s.cfg.Host
	s.plog.Log(e)
}

func (s *Session) captureError(layer log.Layer, err error, context string) {
	kind := ""
	var te *transport.Error
	if errors.As(transport.Translate(err), &te) {
		kind = te.Kind.String()
	}
	s.capture(log.Event{
		Layer:    layer,
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Kind:    kind,
			Context: context,
		},
	})
}
