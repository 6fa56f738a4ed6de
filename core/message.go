package core

import "context"

// Message is the broker-agnostic message abstraction.
// Implementations are provided by broker plugins.
type Message interface {
	// Destination is the topic the message was published to.
	Destination() string
	Payload() []byte
	Headers() map[string]string
	Ack() error
	Nack() error
}

// Handler is the low-level handler used by broker subscriptions.
// Users should prefer HandlerFunc which receives a Context.
type Handler func(ctx context.Context, msg Message) error

// Rejecter is implemented by messages that can be discarded without
// redelivery. Brokers with a dead-letter route send the message there.
type Rejecter interface {
	Reject() error
}
