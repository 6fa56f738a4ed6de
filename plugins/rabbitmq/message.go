package rabbitmq

import (
	"fmt"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
)

// message adapts an amqp.Delivery to core.Message.
type message struct {
	delivery amqp.Delivery
	requeue  bool
}

// Destination is the routing key the message was published with.
func (m *message) Destination() string { return m.delivery.RoutingKey }

func (m *message) Payload() []byte { return m.delivery.Body }

// Headers returns the application headers plus the delivery properties
// useful for tracing a payload back to its publish: exchange, message_id,
// content_type and redelivered.
func (m *message) Headers() map[string]string {
	d := m.delivery
	h := make(map[string]string, len(d.Headers)+4)
	for k, v := range d.Headers {
		if s, ok := v.(string); ok {
			h[k] = s
		} else {
			h[k] = fmt.Sprintf("%v", v)
		}
	}
	h["exchange"] = d.Exchange
	h["redelivered"] = strconv.FormatBool(d.Redelivered)
	if d.MessageId != "" {
		h["message_id"] = d.MessageId
	}
	if d.ContentType != "" {
		h["content_type"] = d.ContentType
	}
	return h
}

// Ack acknowledges the message, removing it from the queue.
func (m *message) Ack() error {
	if err := m.delivery.Ack(false); err != nil {
		return fmt.Errorf("lakesink/rabbitmq: ack: %w", err)
	}
	return nil
}

// Reject discards the message without requeueing it. A queue with a
// dead-letter exchange routes it there.
func (m *message) Reject() error {
	if err := m.delivery.Reject(false); err != nil {
		return fmt.Errorf("lakesink/rabbitmq: reject: %w", err)
	}
	return nil
}

// Nack negatively acknowledges the message. If requeue is enabled,
// the message is returned to the queue for redelivery.
func (m *message) Nack() error {
	if err := m.delivery.Nack(false, m.requeue); err != nil {
		return fmt.Errorf("lakesink/rabbitmq: nack: %w", err)
	}
	return nil
}
