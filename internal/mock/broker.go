package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/miladsoleymani/lakesink/core"
)

// Broker is a test double for core.Broker. Queues listed in Queues exist;
// binding to any other queue fails with core.ErrQueueNotFound.
type Broker struct {
	Queues     map[string]bool
	ConnectErr error

	mu         sync.Mutex
	handler    core.Handler
	bound      chan struct{}
	listeners  []core.EventListener
	connected  bool
	closed     bool
	subscribed int
}

// NewBroker returns a Broker whose given queues already exist.
func NewBroker(queues ...string) *Broker {
	b := &Broker{
		Queues: make(map[string]bool),
		bound:  make(chan struct{}),
	}
	for _, q := range queues {
		b.Queues[q] = true
	}
	return b
}

func (b *Broker) Connect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ConnectErr != nil {
		return b.ConnectErr
	}
	b.connected = true
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, queue string, handler core.Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.ErrBrokerClosed
	}
	if !b.connected {
		b.mu.Unlock()
		return core.ErrNotConnected
	}
	if !b.Queues[queue] {
		b.mu.Unlock()
		return fmt.Errorf("%w: %q", core.ErrQueueNotFound, queue)
	}
	b.handler = handler
	b.subscribed++
	close(b.bound)
	b.mu.Unlock()

	// Block until context is cancelled (simulates a real subscription loop)
	<-ctx.Done()
	return nil
}

func (b *Broker) AddEventListener(l core.EventListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.connected = false
	return nil
}

// Bound is closed once a subscription has been established.
func (b *Broker) Bound() <-chan struct{} { return b.bound }

// Deliver simulates an incoming message on the bound queue.
func (b *Broker) Deliver(ctx context.Context, msg core.Message) error {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h == nil {
		return core.ErrNoHandler
	}
	return h(ctx, msg)
}

// Emit sends an event to every registered listener.
func (b *Broker) Emit(e core.Event) {
	b.mu.Lock()
	ls := append([]core.EventListener(nil), b.listeners...)
	b.mu.Unlock()
	for _, l := range ls {
		l.OnEvent(e)
	}
}

// Subscriptions returns how many times Subscribe bound successfully.
func (b *Broker) Subscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribed
}

// IsClosed reports whether Close was called.
func (b *Broker) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
