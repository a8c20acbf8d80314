// Package message defines the envelope carried over hub links.
//
// A Message is transport-neutral: the AMQP transport translates it to and
// from wire messages. Receivers keep the transport's native message in Raw
// so settlement (accept/reject/release) can reach the original delivery.
package message

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AckMode selects which delivery acknowledgements the hub reports on the
// feedback endpoint for a cloud-to-device message.
type AckMode string

const (
	// AckNone requests no feedback.
	AckNone AckMode = "none"
	// AckPositive requests feedback on successful completion only.
	AckPositive AckMode = "positive"
	// AckNegative requests feedback on expiry or rejection only.
	AckNegative AckMode = "negative"
	// AckFull requests feedback for every outcome.
	AckFull AckMode = "full"
)

// Message is a single hub message.
type Message struct {
	// Data is the message body.
	Data []byte

	// MessageID identifies the message. NewMessage fills it with a UUID.
	MessageID string

	// CorrelationID links a message to a request it answers.
	CorrelationID string

	// To is the destination address. The session sets it from the target
	// device when sending.
	To string

	// UserID identifies the sending principal.
	UserID string

	// ContentType and ContentEncoding describe Data.
	ContentType     string
	ContentEncoding string

	// Ack is the requested feedback mode (empty = hub default).
	Ack AckMode

	// ExpiryTime is the absolute expiry (zero = no expiry).
	ExpiryTime time.Time

	// Properties are application properties.
	Properties map[string]string

	// Raw is the transport's native message for received messages.
	Raw any
}

// NewMessage creates a message with the given body and a fresh message ID.
func NewMessage(data []byte) *Message {
	return &Message{
		Data:      data,
		MessageID: uuid.NewString(),
	}
}

// SetProperty sets an application property.
func (m *Message) SetProperty(key, value string) {
	if m.Properties == nil {
		m.Properties = make(map[string]string)
	}
	m.Properties[key] = value
}

// DeviceAddress returns the cloud-to-device address for a device.
func DeviceAddress(deviceID string) string {
	return fmt.Sprintf("/devices/%s/messages/devicebound", deviceID)
}
