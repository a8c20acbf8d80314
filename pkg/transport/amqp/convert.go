package amqp

import (
	"fmt"

	"github.com/Azure/go-amqp"

	"github.com/hublink/hublink-go/pkg/message"
)

// Application property carrying the requested feedback mode.
const propAck = "iothub-ack"

// toAMQP builds the wire message for m.
func toAMQP(m *message.Message) *amqp.Message {
	am := &amqp.Message{
		Data:       [][]byte{m.Data},
		Properties: &amqp.MessageProperties{},
	}

	p := am.Properties
	if m.MessageID != "" {
		p.MessageID = m.MessageID
	}
	if m.CorrelationID != "" {
		p.CorrelationID = m.CorrelationID
	}
	if m.To != "" {
		p.To = &m.To
	}
	if m.UserID != "" {
		p.UserID = []byte(m.UserID)
	}
	if m.ContentType != "" {
		p.ContentType = &m.ContentType
	}
	if m.ContentEncoding != "" {
		p.ContentEncoding = &m.ContentEncoding
	}
	if !m.ExpiryTime.IsZero() {
		expiry := m.ExpiryTime
		p.AbsoluteExpiryTime = &expiry
	}

	if len(m.Properties) > 0 || m.Ack != "" {
		am.ApplicationProperties = make(map[string]any, len(m.Properties)+1)
		for k, v := range m.Properties {
			am.ApplicationProperties[k] = v
		}
		if m.Ack != "" {
			am.ApplicationProperties[propAck] = string(m.Ack)
		}
	}
	return am
}

// fromAMQP converts a received wire message. The original is kept in Raw
// for settlement.
func fromAMQP(am *amqp.Message) *message.Message {
	m := &message.Message{
		Data: am.GetData(),
		Raw:  am,
	}

	if p := am.Properties; p != nil {
		m.MessageID = identifier(p.MessageID)
		m.CorrelationID = identifier(p.CorrelationID)
		m.UserID = string(p.UserID)
		m.To = deref(p.To)
		m.ContentType = deref(p.ContentType)
		m.ContentEncoding = deref(p.ContentEncoding)
		if p.AbsoluteExpiryTime != nil {
			m.ExpiryTime = *p.AbsoluteExpiryTime
		}
	}

	for k, v := range am.ApplicationProperties {
		if k == propAck {
			m.Ack = message.AckMode(fmt.Sprint(v))
			continue
		}
		m.SetProperty(k, fmt.Sprint(v))
	}
	return m
}

// identifier renders a message-id or correlation-id value. AMQP allows
// strings, binary, ulong and uuid.
func identifier(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case []byte:
		return string(id)
	case fmt.Stringer:
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
