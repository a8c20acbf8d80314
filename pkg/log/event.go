package log

import (
	"time"
)

// Event represents a protocol log event captured by a session.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow (messages only).
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Host is the hub host name.
	Host string `cbor:"6,keyasint,omitempty"`

	// Endpoint is the link endpoint, when the event concerns a link.
	Endpoint string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	StateChange *StateChangeEvent `cbor:"8,keyasint,omitempty"`  // Session state
	Link        *LinkEvent        `cbor:"9,keyasint,omitempty"`  // Link lifecycle
	Auth        *AuthEvent        `cbor:"10,keyasint,omitempty"` // CBS handshake
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Sent/received message
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the connection layer (connect, CBS, disconnect).
	LayerTransport Layer = 0
	// LayerLink is the link layer (attach, detach, link faults).
	LayerLink Layer = 1
	// LayerSession is the session state machine.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerLink:
		return "LINK"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a message sent or received over a link.
	CategoryMessage Category = 0
	// CategoryLink indicates a link lifecycle event.
	CategoryLink Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
	// CategoryAuth indicates a CBS authentication exchange.
	CategoryAuth Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryLink:
		return "LINK"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryAuth:
		return "AUTH"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures session lifecycle transitions.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`

	// Epoch is the session epoch after the change.
	Epoch uint64 `cbor:"4,keyasint,omitempty"`
}

// LinkAction indicates what happened to a link.
type LinkAction uint8

const (
	// LinkAttach indicates a link was attached and cached.
	LinkAttach LinkAction = 0
	// LinkDetach indicates a graceful detach.
	LinkDetach LinkAction = 1
	// LinkForceDetach indicates a local-only detach.
	LinkForceDetach LinkAction = 2
	// LinkInvalidate indicates the peer faulted the link.
	LinkInvalidate LinkAction = 3
)

// String returns the link action name.
func (a LinkAction) String() string {
	switch a {
	case LinkAttach:
		return "ATTACH"
	case LinkDetach:
		return "DETACH"
	case LinkForceDetach:
		return "FORCE_DETACH"
	case LinkInvalidate:
		return "INVALIDATE"
	default:
		return "UNKNOWN"
	}
}

// LinkEvent captures a link lifecycle step.
type LinkEvent struct {
	// Action performed.
	Action LinkAction `cbor:"1,keyasint"`

	// Err is the detach or fault error, if any.
	Err string `cbor:"2,keyasint,omitempty"`
}

// AuthTrigger indicates why the session authenticated.
type AuthTrigger uint8

const (
	// AuthInitial is the handshake performed while connecting.
	AuthInitial AuthTrigger = 0
	// AuthUpdate is a caller-supplied credential replacement.
	AuthUpdate AuthTrigger = 1
	// AuthRenewal is a scheduled token renewal.
	AuthRenewal AuthTrigger = 2
)

// String returns the trigger name.
func (a AuthTrigger) String() string {
	switch a {
	case AuthInitial:
		return "INITIAL"
	case AuthUpdate:
		return "UPDATE"
	case AuthRenewal:
		return "RENEWAL"
	default:
		return "UNKNOWN"
	}
}

// AuthEvent captures the outcome of a CBS put-token exchange.
type AuthEvent struct {
	// Trigger is why authentication ran.
	Trigger AuthTrigger `cbor:"1,keyasint"`

	// Success reports whether the hub accepted the token.
	Success bool `cbor:"2,keyasint"`

	// Expiry is the token expiry for renewable credentials.
	Expiry *time.Time `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a message crossing a link.
type MessageEvent struct {
	// MessageID of the message.
	MessageID string `cbor:"1,keyasint,omitempty"`

	// To is the destination address.
	To string `cbor:"2,keyasint,omitempty"`

	// Size is the body size in bytes.
	Size int `cbor:"3,keyasint"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Kind is the translated error kind (if applicable).
	Kind string `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
