package core

// EventKind identifies a connection lifecycle event.
type EventKind int

const (
	// EventReconnected fires once a lost session has been re-established.
	EventReconnected EventKind = iota
	// EventReconnecting fires for every reconnection attempt.
	EventReconnecting
	// EventInterrupted fires when the session is lost and will not recover.
	EventInterrupted
)

func (k EventKind) String() string {
	switch k {
	case EventReconnected:
		return "reconnected"
	case EventReconnecting:
		return "reconnecting"
	case EventInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Event describes a connection lifecycle change reported by a Broker.
type Event struct {
	Kind    EventKind
	Cause   error
	Message string
}

// EventListener receives broker lifecycle events. Listeners must not block.
type EventListener interface {
	OnEvent(e Event)
}

// EventListenerFunc adapts a function to EventListener.
type EventListenerFunc func(e Event)

func (f EventListenerFunc) OnEvent(e Event) { f(e) }
