package core

import "errors"

var (
	// ErrBrokerClosed is returned when operations are attempted on a closed broker.
	ErrBrokerClosed = errors.New("lakesink: broker is closed")

	// ErrNotConnected is returned when Subscribe is called before Connect.
	ErrNotConnected = errors.New("lakesink: broker is not connected")

	// ErrQueueNotFound is returned when the queue to bind to does not exist.
	ErrQueueNotFound = errors.New("lakesink: queue not found")

	// ErrConnectionLost is returned when the broker drops the session while consuming.
	ErrConnectionLost = errors.New("lakesink: connection lost")

	// ErrNoHandler is returned when no handler matches the incoming topic.
	ErrNoHandler = errors.New("lakesink: no handler registered for topic")

	// ErrAlreadyStarted is returned when Start is called on a running router.
	ErrAlreadyStarted = errors.New("lakesink: router already started")

	// ErrNoBroker is returned when a router is created without a broker.
	ErrNoBroker = errors.New("lakesink: broker is nil")
)
