package transport

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a transport failure.
type Kind uint8

const (
	// KindTransport is a generic transport or protocol failure.
	KindTransport Kind = iota

	// KindUnauthorized means the credential was rejected.
	KindUnauthorized

	// KindNotFound means the addressed endpoint or entity does not exist.
	KindNotFound

	// KindResourceExhausted means a quota, throttle, or size limit was hit.
	KindResourceExhausted

	// KindNotConnected means there is no usable connection.
	KindNotConnected
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "TRANSPORT"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	case KindNotConnected:
		return "NOT_CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Error is a translated transport failure.
//
// Callers match kinds with errors.Is against the sentinel values:
//
//	if errors.Is(err, transport.ErrUnauthorized) { ... }
type Error struct {
	// Kind is the semantic classification.
	Kind Kind

	// Condition is the protocol condition that produced the error, if any
	// (e.g. "amqp:unauthorized-access").
	Condition string

	// Err is the underlying cause (nil for sentinels).
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.ReplaceAll(e.Kind.String(), "_", " ")))
	if e.Condition != "" {
		fmt.Fprintf(&b, " (%s)", e.Condition)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error of the same Kind. This lets the
// sentinels below match any translated error of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Err == nil && t.Condition == ""
}

// Sentinels for errors.Is matching.
var (
	ErrTransportFailure  = &Error{Kind: KindTransport}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrResourceExhausted = &Error{Kind: KindResourceExhausted}
	ErrNotConnected      = &Error{Kind: KindNotConnected}
)

// ErrConnectionLost is reported by transports when the connection drops
// without a protocol-level error.
var ErrConnectionLost = errors.New("connection lost")

// Conditioned is implemented by protocol errors carrying a condition name.
type Conditioned interface {
	error
	Condition() string
}

// AMQP and hub-specific condition names.
const (
	CondUnauthorizedAccess    = "amqp:unauthorized-access"
	CondNotFound              = "amqp:not-found"
	CondResourceLimitExceeded = "amqp:resource-limit-exceeded"
	CondMessageSizeExceeded   = "amqp:link:message-size-exceeded"
	CondConnectionForced      = "amqp:connection:forced"
	CondConnectionFraming     = "amqp:connection:framing-error"
	CondDetachForced          = "amqp:link:detach-forced"
	CondDeviceNotFound        = "com.microsoft:device-not-found"
	CondQuotaExceeded         = "com.microsoft:iot-hub-quota-exceeded"
	CondThrottled             = "com.microsoft:device-container-throttled"
)

var conditionKinds = map[string]Kind{
	CondUnauthorizedAccess:    KindUnauthorized,
	CondNotFound:              KindNotFound,
	CondDeviceNotFound:        KindNotFound,
	CondResourceLimitExceeded: KindResourceExhausted,
	CondMessageSizeExceeded:   KindResourceExhausted,
	CondQuotaExceeded:         KindResourceExhausted,
	CondThrottled:             KindResourceExhausted,
	CondConnectionForced:      KindNotConnected,
	CondConnectionFraming:     KindNotConnected,
	CondDetachForced:          KindNotConnected,
}

// KindForCondition returns the kind a protocol condition maps to.
func KindForCondition(cond string) Kind {
	if k, ok := conditionKinds[cond]; ok {
		return k
	}
	return KindTransport
}

// Translate maps err into the taxonomy. nil stays nil and an error already
// carrying a Kind is returned unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var te *Error
	if errors.As(err, &te) {
		return err
	}

	var ce Conditioned
	if errors.As(err, &ce) {
		cond := ce.Condition()
		return &Error{Kind: KindForCondition(cond), Condition: cond, Err: err}
	}

	if errors.Is(err, ErrConnectionLost) {
		return &Error{Kind: KindNotConnected, Err: err}
	}
	return &Error{Kind: KindTransport, Err: err}
}

// NotConnected returns a KindNotConnected error with the given reason.
func NotConnected(reason string) error {
	return &Error{Kind: KindNotConnected, Err: errors.New(reason)}
}
