package core

import "context"

// Broker defines the contract for message broker implementations.
// Each broker plugin must implement this interface.
type Broker interface {
	// Connect opens the session. It blocks until the broker is reachable
	// or the reconnection policy is exhausted.
	Connect(ctx context.Context) error

	// Subscribe binds to an existing durable queue as its sole consumer and
	// delivers messages to handler one at a time until ctx is cancelled.
	// It returns an error wrapping ErrQueueNotFound if the queue is absent.
	Subscribe(ctx context.Context, queue string, handler Handler) error

	// AddEventListener registers a listener for connection lifecycle events.
	AddEventListener(l EventListener)

	Close() error
}
