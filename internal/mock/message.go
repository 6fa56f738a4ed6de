package mock

import "sync"

// Message is a simple core.Message implementation for testing.
type Message struct {
	Topic   string
	Body    []byte
	H       map[string]string
	AckErr  error
	NackErr error

	mu      sync.Mutex
	acks    int
	nacks   int
	rejects int
}

func (m *Message) Destination() string        { return m.Topic }
func (m *Message) Payload() []byte            { return m.Body }
func (m *Message) Headers() map[string]string { return m.H }

func (m *Message) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.acks++
	return nil
}

func (m *Message) Nack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nacks++
	return m.NackErr
}

func (m *Message) Reject() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejects++
	return nil
}

// Acked reports whether Ack succeeded at least once.
func (m *Message) Acked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acks > 0
}

// Nacked reports whether Nack was called.
func (m *Message) Nacked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nacks > 0
}

// Rejected reports whether Reject was called.
func (m *Message) Rejected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejects > 0
}
