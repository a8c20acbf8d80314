package amqp

import (
	"context"
	"errors"
	"sync"

	"github.com/Azure/go-amqp"

	"github.com/hublink/hublink-go/pkg/message"
	"github.com/hublink/hublink-go/pkg/transport"
)

// errForeignMessage is returned when settling a message that did not come
// from this link.
var errForeignMessage = errors.New("message was not received over amqp")

// faults fans link errors out to OnError subscribers.
type faults struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(error)
}

type subscription struct {
	f  *faults
	id int
}

func (s *subscription) Unsubscribe() {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	delete(s.f.fns, s.id)
}

func (f *faults) subscribe(fn func(error)) transport.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fns == nil {
		f.fns = make(map[int]func(error))
	}
	f.nextID++
	f.fns[f.nextID] = fn
	return &subscription{f: f, id: f.nextID}
}

// report notifies subscribers when err ended the link.
func (f *faults) report(err error) {
	if err == nil || !isLinkFault(err) {
		return
	}
	f.mu.Lock()
	fns := make([]func(error), 0, len(f.fns))
	for _, fn := range f.fns {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	wrapped := wrapError(err)
	for _, fn := range fns {
		fn(wrapped)
	}
}

// closeLocal closes a link without waiting for the peer.
func closeLocal(closeFn func(context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = closeFn(ctx)
}

// senderLink adapts *amqp.Sender.
type senderLink struct {
	endpoint string
	link     *amqp.Sender
	faults   faults
}

func (l *senderLink) Endpoint() string { return l.endpoint }

func (l *senderLink) Detach(ctx context.Context) error {
	return wrapError(l.link.Close(ctx))
}

func (l *senderLink) ForceDetach(error) {
	closeLocal(l.link.Close)
}

func (l *senderLink) OnError(fn func(error)) transport.Subscription {
	return l.faults.subscribe(fn)
}

func (l *senderLink) Send(ctx context.Context, msg *message.Message) error {
	err := l.link.Send(ctx, toAMQP(msg), nil)
	l.faults.report(err)
	return wrapError(err)
}

// receiverLink adapts *amqp.Receiver.
type receiverLink struct {
	endpoint string
	link     *amqp.Receiver
	faults   faults
}

func (l *receiverLink) Endpoint() string { return l.endpoint }

func (l *receiverLink) Detach(ctx context.Context) error {
	return wrapError(l.link.Close(ctx))
}

func (l *receiverLink) ForceDetach(error) {
	closeLocal(l.link.Close)
}

func (l *receiverLink) OnError(fn func(error)) transport.Subscription {
	return l.faults.subscribe(fn)
}

func (l *receiverLink) Receive(ctx context.Context) (*message.Message, error) {
	am, err := l.link.Receive(ctx, nil)
	if err != nil {
		l.faults.report(err)
		return nil, wrapError(err)
	}
	return fromAMQP(am), nil
}

func (l *receiverLink) Accept(ctx context.Context, msg *message.Message) error {
	am, ok := msg.Raw.(*amqp.Message)
	if !ok {
		return errForeignMessage
	}
	return wrapError(l.link.AcceptMessage(ctx, am))
}

func (l *receiverLink) Reject(ctx context.Context, msg *message.Message, reason error) error {
	am, ok := msg.Raw.(*amqp.Message)
	if !ok {
		return errForeignMessage
	}
	var ae *amqp.Error
	if reason != nil {
		ae = &amqp.Error{
			Condition:   amqp.ErrCondInternalError,
			Description: reason.Error(),
		}
	}
	return wrapError(l.link.RejectMessage(ctx, am, ae))
}

func (l *receiverLink) Release(ctx context.Context, msg *message.Message) error {
	am, ok := msg.Raw.(*amqp.Message)
	if !ok {
		return errForeignMessage
	}
	return wrapError(l.link.ReleaseMessage(ctx, am))
}
