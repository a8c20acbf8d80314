package amqp

import (
	"errors"
	"fmt"

	"github.com/Azure/go-amqp"

	"github.com/hublink/hublink-go/pkg/transport"
)

// ErrNotConnected is returned by operations that need an open connection.
var ErrNotConnected = transport.NotConnected("amqp connection is not open")

// remoteError is an AMQP error carrying the peer's condition.
type remoteError struct {
	cond        string
	description string
	err         error
}

func (e *remoteError) Error() string {
	if e.description != "" {
		return fmt.Sprintf("%s: %s", e.cond, e.description)
	}
	return e.cond
}

// Condition implements transport.Conditioned.
func (e *remoteError) Condition() string { return e.cond }

func (e *remoteError) Unwrap() error { return e.err }

// wrapError surfaces the remote condition of a go-amqp error. A connection
// closed without a remote error is reported as not connected.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if re := remote(err); re != nil {
		return &remoteError{cond: string(re.Condition), description: re.Description, err: err}
	}
	var connErr *amqp.ConnError
	if errors.As(err, &connErr) {
		return &transport.Error{Kind: transport.KindNotConnected, Err: err}
	}
	return err
}

func remote(err error) *amqp.Error {
	var linkErr *amqp.LinkError
	if errors.As(err, &linkErr) {
		return linkErr.RemoteErr
	}
	var sessErr *amqp.SessionError
	if errors.As(err, &sessErr) {
		return sessErr.RemoteErr
	}
	var connErr *amqp.ConnError
	if errors.As(err, &connErr) {
		return connErr.RemoteErr
	}
	var ae *amqp.Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// isLinkFault reports whether err terminated the link itself.
func isLinkFault(err error) bool {
	var linkErr *amqp.LinkError
	return errors.As(err, &linkErr)
}
