package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Azure/go-amqp"
	"github.com/google/uuid"

	"github.com/hublink/hublink-go/pkg/transport"
)

// Claims-based security node and put-token request fields.
const (
	cbsAddress       = "$cbs"
	cbsOperation     = "operation"
	cbsPutToken      = "put-token"
	cbsTokenType     = "type"
	cbsSASTokenType  = "servicebus.windows.net:sastoken"
	cbsAudience      = "name"
	cbsStatusCode    = "status-code"
	cbsStatusMessage = "status-description"
)

// cbsClient issues put-token requests over the $cbs links. Requests are
// correlated by message ID; the reply loop also serves as the connection
// watchdog.
type cbsClient struct {
	sender    *amqp.Sender
	receiver  *amqp.Receiver
	replyTo   string
	logger    *slog.Logger
	onFailure func(error)

	mu      sync.Mutex
	waiting map[string]chan *amqp.Message
	failed  error
	closed  bool
}

func newCBSClient(ctx context.Context, sess *amqp.Session, logger *slog.Logger, onFailure func(error)) (*cbsClient, error) {
	replyTo := cbsAddress + "-" + uuid.NewString()

	sender, err := sess.NewSender(ctx, cbsAddress, nil)
	if err != nil {
		return nil, fmt.Errorf("attach cbs sender: %w", wrapError(err))
	}
	receiver, err := sess.NewReceiver(ctx, cbsAddress, &amqp.ReceiverOptions{
		TargetAddress: replyTo,
	})
	if err != nil {
		_ = sender.Close(ctx)
		return nil, fmt.Errorf("attach cbs receiver: %w", wrapError(err))
	}

	c := &cbsClient{
		sender:    sender,
		receiver:  receiver,
		replyTo:   replyTo,
		logger:    logger,
		onFailure: onFailure,
		waiting:   make(map[string]chan *amqp.Message),
	}
	go c.replyLoop()
	return c, nil
}

// putToken presents token for audience and waits for the status reply.
func (c *cbsClient) putToken(ctx context.Context, audience, token string) error {
	id := uuid.NewString()
	reply := make(chan *amqp.Message, 1)

	c.mu.Lock()
	if c.failed != nil {
		err := c.failed
		c.mu.Unlock()
		return err
	}
	c.waiting[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiting, id)
		c.mu.Unlock()
	}()

	req := &amqp.Message{
		Value: token,
		Properties: &amqp.MessageProperties{
			MessageID: id,
			ReplyTo:   &c.replyTo,
		},
		ApplicationProperties: map[string]any{
			cbsOperation: cbsPutToken,
			cbsTokenType: cbsSASTokenType,
			cbsAudience:  audience,
		},
	}
	if err := c.sender.Send(ctx, req, nil); err != nil {
		return wrapError(err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case msg, ok := <-reply:
		if !ok {
			return c.err()
		}
		return putTokenStatus(msg)
	}
}

// replyLoop dispatches replies until the receiver fails.
func (c *cbsClient) replyLoop() {
	for {
		msg, err := c.receiver.Receive(context.Background(), nil)
		if err != nil {
			c.fail(err)
			return
		}
		if err := c.receiver.AcceptMessage(context.Background(), msg); err != nil {
			c.logger.Debug("cbs reply accept failed", "error", err)
		}

		id := ""
		if msg.Properties != nil {
			id = identifier(msg.Properties.CorrelationID)
		}
		c.mu.Lock()
		ch, ok := c.waiting[id]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("dropping uncorrelated cbs reply", "correlation_id", id)
			continue
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

// fail unblocks waiting requests and reports the loss unless the client
// was closed on purpose.
func (c *cbsClient) fail(err error) {
	c.mu.Lock()
	closed := c.closed
	c.failed = transport.Translate(wrapError(err))
	for id, ch := range c.waiting {
		close(ch)
		delete(c.waiting, id)
	}
	c.mu.Unlock()

	if closed {
		return
	}
	c.logger.Debug("cbs link lost", "error", err)
	if c.onFailure != nil {
		c.onFailure(c.failed)
	}
}

func (c *cbsClient) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed == nil {
		return ErrNotConnected
	}
	return c.failed
}

// close detaches both links without reporting a failure.
func (c *cbsClient) close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	return errors.Join(
		wrapError(c.receiver.Close(ctx)),
		wrapError(c.sender.Close(ctx)),
	)
}

// putTokenStatus maps a put-token reply to an error.
func putTokenStatus(msg *amqp.Message) error {
	code, ok := statusCode(msg.ApplicationProperties[cbsStatusCode])
	if !ok {
		return &transport.Error{Kind: transport.KindTransport, Err: errors.New("cbs reply without status code")}
	}
	desc, _ := msg.ApplicationProperties[cbsStatusMessage].(string)

	var kind transport.Kind
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 401 || code == 403:
		kind = transport.KindUnauthorized
	case code == 404:
		kind = transport.KindNotFound
	case code == 429 || code == 503:
		kind = transport.KindResourceExhausted
	default:
		kind = transport.KindTransport
	}
	return &transport.Error{Kind: kind, Err: fmt.Errorf("put-token status %d: %s", code, desc)}
}

func statusCode(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int16:
		return int64(n), true
	default:
		return 0, false
	}
}
