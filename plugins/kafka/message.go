package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
)

// message adapts a kafka.Message to core.Message.
// It holds a reference to the reader for offset management.
type message struct {
	raw    kafka.Message
	reader *kafka.Reader
	ctx    context.Context

	mu     sync.Mutex
	nacked bool
}

func (m *message) Destination() string { return m.raw.Topic }
func (m *message) Payload() []byte     { return m.raw.Value }

func (m *message) Headers() map[string]string {
	h := make(map[string]string, len(m.raw.Headers))
	for _, kh := range m.raw.Headers {
		h[kh.Key] = string(kh.Value)
	}
	return h
}

// Ack commits the offset for this message.
func (m *message) Ack() error {
	if err := m.reader.CommitMessages(m.ctx, m.raw); err != nil {
		return fmt.Errorf("lakesink/kafka: commit offset: %w", err)
	}
	return nil
}

// Reject skips the message by committing its offset. Kafka has no
// dead-letter route of its own.
func (m *message) Reject() error {
	if err := m.reader.CommitMessages(m.ctx, m.raw); err != nil {
		return fmt.Errorf("lakesink/kafka: commit rejected offset: %w", err)
	}
	return nil
}

// Nack marks the message for redelivery. Kafka has no per-message nack, so
// the consume loop hands the same message to the handler again before it
// fetches the next one; committing a later offset would skip it otherwise.
func (m *message) Nack() error {
	m.mu.Lock()
	m.nacked = true
	m.mu.Unlock()
	return nil
}

// takeNack reports whether Nack was called since the last takeNack.
func (m *message) takeNack() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.nacked
	m.nacked = false
	return n
}
