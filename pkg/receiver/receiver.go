// Package receiver adapts attached receiver links for callers.
//
// A Receiver wraps one transport.ReceiverLink. Its errors are translated
// into the transport taxonomy, and settlement (accept, reject, release) is
// forwarded to the link that delivered the message.
package receiver

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/hublink/hublink-go/pkg/message"
	"github.com/hublink/hublink-go/pkg/transport"
)

// ErrListening is returned when Listen is called while another Listen is
// running on the same Receiver.
var ErrListening = errors.New("receiver is already listening")

// Handler processes one message. Returning nil accepts the message; a
// non-nil error rejects it with that error as the reason.
type Handler func(ctx context.Context, msg *message.Message) error

// Receiver is a message receiver bound to one link.
type Receiver struct {
	link   transport.ReceiverLink
	logger *slog.Logger

	listening chan struct{}
}

// New creates a Receiver for link. logger may be nil.
func New(link transport.ReceiverLink, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Receiver{
		link:      link,
		logger:    logger.With("endpoint", link.Endpoint()),
		listening: make(chan struct{}, 1),
	}
}

// Link returns the underlying link.
func (r *Receiver) Link() transport.ReceiverLink {
	return r.link
}

// Endpoint returns the link endpoint.
func (r *Receiver) Endpoint() string {
	return r.link.Endpoint()
}

// Receive blocks until a message arrives or ctx is done.
func (r *Receiver) Receive(ctx context.Context) (*message.Message, error) {
	msg, err := r.link.Receive(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, transport.Translate(err)
	}
	return msg, nil
}

// Accept settles msg as processed.
func (r *Receiver) Accept(ctx context.Context, msg *message.Message) error {
	return transport.Translate(r.link.Accept(ctx, msg))
}

// Reject settles msg as unprocessable; the hub records reason.
func (r *Receiver) Reject(ctx context.Context, msg *message.Message, reason error) error {
	return transport.Translate(r.link.Reject(ctx, msg, reason))
}

// Release returns msg to the hub for redelivery.
func (r *Receiver) Release(ctx context.Context, msg *message.Message) error {
	return transport.Translate(r.link.Release(ctx, msg))
}

// Listen delivers messages to h until ctx is done or the link fails, and
// settles each message by h's result. It returns nil when ctx ends and the
// translated link error otherwise.
func (r *Receiver) Listen(ctx context.Context, h Handler) error {
	select {
	case r.listening <- struct{}{}:
	default:
		return ErrListening
	}
	defer func() { <-r.listening }()

	for {
		msg, err := r.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Debug("receive failed", "error", err)
			return err
		}

		if herr := h(ctx, msg); herr != nil {
			r.logger.Debug("handler rejected message", "message_id", msg.MessageID, "error", herr)
			err = r.Reject(ctx, msg, herr)
		} else {
			err = r.Accept(ctx, msg)
		}
		if err != nil {
			r.logger.Warn("settlement failed", "message_id", msg.MessageID, "error", err)
		}
	}
}
