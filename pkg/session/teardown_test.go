package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hublink/hublink-go/pkg/link"
	"github.com/hublink/hublink-go/pkg/log"
	"github.com/hublink/hublink-go/pkg/message"
	"github.com/hublink/hublink-go/pkg/transport"
)

// callLog records calls across several mocks in the order they happen.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(name string) func(mock.Arguments) {
	return func(mock.Arguments) {
		c.mu.Lock()
		c.calls = append(c.calls, name)
		c.mu.Unlock()
	}
}

func (c *callLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// attachAll connects and attaches the three cached links.
func (f *fixture) attachAll() {
	f.t.Helper()
	f.connect()
	f.tr.On("AttachSender", mock.Anything, link.EndpointMessages, mock.Anything).Return(f.sender, nil).Once()
	f.tr.On("AttachReceiver", mock.Anything, link.EndpointFeedback, mock.Anything).Return(f.feedback, nil).Once()
	f.tr.On("AttachReceiver", mock.Anything, link.EndpointFileNotifications, mock.Anything).Return(f.files, nil).Once()
	f.sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	// Request the receivers first so the cache order differs from the
	// teardown order.
	_, err := f.s.FileNotificationReceiver(f.ctx())
	require.NoError(f.t, err)
	_, err = f.s.FeedbackReceiver(f.ctx())
	require.NoError(f.t, err)
	require.NoError(f.t, f.s.Send(f.ctx(), message.NewMessage([]byte("warmup")), "dev-1"))
	require.Equal(f.t, 3, onDriver(f.s, f.s.cache.Len))
}

func TestSession_GracefulDisconnectDetachesInOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.attachAll()

	var order callLog
	f.sender.On("Detach", mock.Anything).Run(order.add("messages")).Return(nil).Once()
	f.feedback.On("Detach", mock.Anything).Run(order.add("feedback")).Return(nil).Once()
	f.files.On("Detach", mock.Anything).Run(order.add("files")).Return(nil).Once()
	f.tr.On("Disconnect", mock.Anything).Run(order.add("connection")).Return(nil).Once()

	notified := make(chan error, 1)
	f.s.OnDisconnected(func(err error) { notified <- err })

	require.NoError(t, f.s.Disconnect(f.ctx()))
	assert.Equal(t, StateDisconnected, f.s.State())
	assert.Equal(t, []string{"messages", "feedback", "files", "connection"}, order.snapshot())
	assert.Equal(t, 0, onDriver(f.s, f.s.cache.Len))

	f.sender.AssertNotCalled(t, "ForceDetach", mock.Anything)
	assert.Never(t, func() bool { return len(notified) > 0 }, 50*time.Millisecond, tick,
		"a requested disconnect must not notify")
}

func TestSession_GracefulDisconnectReportsFirstError(t *testing.T) {
	f := newFixture(t, nil)
	f.attachAll()

	errDetach := errors.New("detach timed out")
	f.sender.On("Detach", mock.Anything).Return(nil).Once()
	f.feedback.On("Detach", mock.Anything).Return(errDetach).Once()
	f.files.On("Detach", mock.Anything).Return(conditionErr{transport.CondNotFound}).Once()
	f.tr.On("Disconnect", mock.Anything).Return(errors.New("socket closed")).Once()

	err := f.s.Disconnect(f.ctx())
	require.Error(t, err)
	assert.ErrorIs(t, err, errDetach)
	assert.ErrorIs(t, err, transport.ErrTransportFailure)

	// Every step still ran.
	f.files.AssertCalled(t, "Detach", mock.Anything)
	f.tr.AssertCalled(t, "Disconnect", mock.Anything)
	assert.Equal(t, StateDisconnected, f.s.State())
}

func TestSession_UnsolicitedErrorForceDetachesAndNotifies(t *testing.T) {
	f := newFixture(t, nil)
	f.attachAll()

	var order callLog
	f.sender.On("ForceDetach", mock.Anything).Run(order.add("messages")).Return().Once()
	f.feedback.On("ForceDetach", mock.Anything).Run(order.add("feedback")).Return().Once()
	f.files.On("ForceDetach", mock.Anything).Run(order.add("files")).Return().Once()
	f.tr.On("Disconnect", mock.Anything).Run(order.add("connection")).Return(nil).Once()

	notified := make(chan error, 1)
	f.s.OnDisconnected(func(err error) { notified <- err })

	f.tr.DropConnection(conditionErr{transport.CondConnectionForced})

	var got error
	select {
	case got = <-notified:
	case <-time.After(waitFor):
		t.Fatal("disconnected handler was not called")
	}
	assert.ErrorIs(t, got, transport.ErrNotConnected)
	var te *transport.Error
	require.ErrorAs(t, got, &te)
	assert.Equal(t, transport.CondConnectionForced, te.Condition)

	f.eventuallyState(StateDisconnected)
	assert.Equal(t, []string{"messages", "feedback", "files", "connection"}, order.snapshot())
	f.sender.AssertNotCalled(t, "Detach", mock.Anything)
	f.feedback.AssertNotCalled(t, "Detach", mock.Anything)
	f.files.AssertNotCalled(t, "Detach", mock.Anything)

	// The next command reconnects from scratch.
	f.connect()
	f.tr.AssertNumberOfCalls(t, "Connect", 2)
}

func TestSession_UnsolicitedErrorWhileDisconnectedIsSwallowed(t *testing.T) {
	f := newFixture(t, nil)

	notified := make(chan error, 1)
	f.s.OnDisconnected(func(err error) { notified <- err })

	f.tr.DropConnection(errors.New("late close from peer"))

	// The driver has processed the error once a later command returns.
	require.NoError(t, f.s.Disconnect(f.ctx()))
	assert.Equal(t, StateDisconnected, f.s.State())
	assert.Never(t, func() bool { return len(notified) > 0 }, 50*time.Millisecond, tick)
	assert.Empty(t, f.tr.Calls)
}

func TestSession_UnsolicitedErrorDuringDisconnectIsSwallowed(t *testing.T) {
	f := newFixture(t, nil)
	f.connect()

	gate := make(chan struct{})
	f.tr.On("Disconnect", mock.Anything).Run(func(mock.Arguments) { <-gate }).Return(nil).Once()

	notified := make(chan error, 1)
	f.s.OnDisconnected(func(err error) { notified <- err })

	done := make(chan error, 1)
	go func() { done <- f.s.Disconnect(f.ctx()) }()
	f.eventuallyState(StateDisconnecting)

	// The peer's close races the requested teardown.
	f.tr.DropConnection(conditionErr{transport.CondConnectionForced})
	require.Eventually(t, func() bool { return pendingCount(f.s) == 1 }, waitFor, tick)

	close(gate)
	require.NoError(t, <-done)
	f.eventuallyState(StateDisconnected)
	require.Eventually(t, func() bool { return pendingCount(f.s) == 0 }, waitFor, tick)
	assert.Never(t, func() bool { return len(notified) > 0 }, 50*time.Millisecond, tick)
	f.tr.AssertNumberOfCalls(t, "Disconnect", 1)
}

func TestSession_UnsolicitedErrorWhileConnectingFailsConnect(t *testing.T) {
	f := newFixture(t, nil)
	gate := make(chan struct{})
	f.tr.On("Connect", mock.Anything, mock.Anything).Run(func(mock.Arguments) { <-gate }).Return(nil).Once()
	f.tr.On("Disconnect", mock.Anything).Return(nil).Once()

	notified := make(chan error, 1)
	f.s.OnDisconnected(func(err error) { notified <- err })

	done := make(chan error, 1)
	go func() { done <- f.s.Connect(f.ctx()) }()
	f.eventuallyState(StateConnecting)

	f.tr.DropConnection(errors.New("connection reset by peer"))
	err := <-done
	assert.ErrorIs(t, err, transport.ErrTransportFailure)
	assert.Equal(t, StateDisconnected, f.s.State())

	// The late connect result belongs to a finished epoch.
	close(gate)
	assert.Never(t, func() bool { return f.s.State() != StateDisconnected }, 50*time.Millisecond, tick)
	assert.Never(t, func() bool { return len(notified) > 0 }, 50*time.Millisecond, tick)
	f.tr.AssertNotCalled(t, "BeginAuthentication", mock.Anything)
}

func TestSession_TeardownCapturesStateAndLinkEvents(t *testing.T) {
	f := newFixture(t, nil)
	f.attachAll()
	f.sender.On("ForceDetach", mock.Anything).Return().Once()
	f.feedback.On("ForceDetach", mock.Anything).Return().Once()
	f.files.On("ForceDetach", mock.Anything).Return().Once()
	f.tr.On("Disconnect", mock.Anything).Return(nil).Once()

	f.tr.DropConnection(errors.New("broken pipe"))
	f.eventuallyState(StateDisconnected)

	var forced int
	for _, e := range f.rec.byCategory(log.CategoryLink) {
		if e.Link.Action == log.LinkForceDetach {
			forced++
		}
	}
	assert.Equal(t, 3, forced)

	var teardown *log.StateChangeEvent
	for _, e := range f.rec.byCategory(log.CategoryState) {
		if e.StateChange.NewState == StateDisconnecting.String() {
			teardown = e.StateChange
		}
	}
	require.NotNil(t, teardown)
	assert.Equal(t, StateAuthenticated.String(), teardown.OldState)
	assert.Contains(t, teardown.Reason, "broken pipe")

	errs := f.rec.byCategory(log.CategoryError)
	require.NotEmpty(t, errs)
	assert.Equal(t, transport.KindTransport.String(), errs[0].Error.Kind)
}
