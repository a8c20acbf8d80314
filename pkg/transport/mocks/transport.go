// Package mocks provides testify mocks for the transport interfaces.
//
// Network operations are expectation-driven (mock.Mock); listener
// registration (OnDisconnect, OnError) is recorded so tests can fire
// unsolicited events with DropConnection and Fault.
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/hublink/hublink-go/pkg/message"
	"github.com/hublink/hublink-go/pkg/transport"
)

// Transport is a mock transport.Transport.
type Transport struct {
	mock.Mock

	mu           sync.Mutex
	onDisconnect func(error)
}

// NewTransport creates a Transport mock that asserts its expectations when
// the test ends.
func NewTransport(t interface {
	mock.TestingT
	Cleanup(func())
}) *Transport {
	m := &Transport{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Transport) Connect(ctx context.Context, cfg transport.Config) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *Transport) BeginAuthentication(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Transport) Authenticate(ctx context.Context, audience, token string) error {
	args := m.Called(ctx, audience, token)
	return args.Error(0)
}

func (m *Transport) AttachSender(ctx context.Context, endpoint string, opts transport.LinkOptions) (transport.SenderLink, error) {
	args := m.Called(ctx, endpoint, opts)
	link, _ := args.Get(0).(transport.SenderLink)
	return link, args.Error(1)
}

func (m *Transport) AttachReceiver(ctx context.Context, endpoint string, opts transport.LinkOptions) (transport.ReceiverLink, error) {
	args := m.Called(ctx, endpoint, opts)
	link, _ := args.Get(0).(transport.ReceiverLink)
	return link, args.Error(1)
}

func (m *Transport) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// OnDisconnect records the handler; it is not an expectation.
func (m *Transport) OnDisconnect(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = fn
}

// DropConnection fires the registered disconnect handler.
func (m *Transport) DropConnection(err error) {
	m.mu.Lock()
	fn := m.onDisconnect
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// listeners tracks OnError subscriptions for a mock link.
type listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(error)
}

type subscription struct {
	l  *listeners
	id int
}

func (s *subscription) Unsubscribe() {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	delete(s.l.fns, s.id)
}

func (l *listeners) add(fn func(error)) transport.Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(error))
	}
	l.nextID++
	l.fns[l.nextID] = fn
	return &subscription{l: l, id: l.nextID}
}

func (l *listeners) fire(err error) {
	l.mu.Lock()
	fns := make([]func(error), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (l *listeners) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}

// SenderLink is a mock transport.SenderLink.
type SenderLink struct {
	mock.Mock

	EndpointName string
	errs         listeners
}

// NewSenderLink creates a SenderLink mock for endpoint.
func NewSenderLink(endpoint string) *SenderLink {
	return &SenderLink{EndpointName: endpoint}
}

func (m *SenderLink) Endpoint() string { return m.EndpointName }

func (m *SenderLink) Detach(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *SenderLink) ForceDetach(err error) {
	m.Called(err)
}

func (m *SenderLink) Send(ctx context.Context, msg *message.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// OnError records the handler; it is not an expectation.
func (m *SenderLink) OnError(fn func(error)) transport.Subscription {
	return m.errs.add(fn)
}

// Fault fires every subscribed error handler.
func (m *SenderLink) Fault(err error) { m.errs.fire(err) }

// Subscribers returns the number of live error subscriptions.
func (m *SenderLink) Subscribers() int { return m.errs.count() }

// ReceiverLink is a mock transport.ReceiverLink.
type ReceiverLink struct {
	mock.Mock

	EndpointName string
	errs         listeners
}

// NewReceiverLink creates a ReceiverLink mock for endpoint.
func NewReceiverLink(endpoint string) *ReceiverLink {
	return &ReceiverLink{EndpointName: endpoint}
}

func (m *ReceiverLink) Endpoint() string { return m.EndpointName }

func (m *ReceiverLink) Detach(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *ReceiverLink) ForceDetach(err error) {
	m.Called(err)
}

func (m *ReceiverLink) Receive(ctx context.Context) (*message.Message, error) {
	args := m.Called(ctx)
	msg, _ := args.Get(0).(*message.Message)
	return msg, args.Error(1)
}

func (m *ReceiverLink) Accept(ctx context.Context, msg *message.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *ReceiverLink) Reject(ctx context.Context, msg *message.Message, reason error) error {
	args := m.Called(ctx, msg, reason)
	return args.Error(0)
}

func (m *ReceiverLink) Release(ctx context.Context, msg *message.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// OnError records the handler; it is not an expectation.
func (m *ReceiverLink) OnError(fn func(error)) transport.Subscription {
	return m.errs.add(fn)
}

// Fault fires every subscribed error handler.
func (m *ReceiverLink) Fault(err error) { m.errs.fire(err) }

// Subscribers returns the number of live error subscriptions.
func (m *ReceiverLink) Subscribers() int { return m.errs.count() }

// Compile-time interface satisfaction checks.
var (
	_ transport.Transport    = (*Transport)(nil)
	_ transport.SenderLink   = (*SenderLink)(nil)
	_ transport.ReceiverLink = (*ReceiverLink)(nil)
)
