package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultShutdownGrace bounds how long Start waits for the in-flight
	// message after the context is cancelled.
	DefaultShutdownGrace = 5 * time.Second

	// DefaultNackDelay is the pause before a failed message is handed back
	// to the broker, so a persistent failure does not spin.
	DefaultNackDelay = time.Second
)

type route struct {
	pattern string
	handler HandlerFunc
}

// Router binds to a single queue and dispatches each message to the first
// route whose pattern matches the message destination. It provides an
// Echo-like API for registering handlers and middleware.
//
// Messages are processed strictly one at a time. A failed message is nacked
// after the nack delay; a message no route matches is rejected instead when
// the broker supports it.
type Router struct {
	broker      Broker
	queue       string
	middlewares []MiddlewareFunc
	routes      []route
	matcher     TopicMatcher
	grace       time.Duration
	nackDelay   time.Duration
	mu          sync.RWMutex
	started     bool
}

// New creates a Router that will consume queue through the given Broker.
// It uses DefaultMatcher for topic matching.
func New(b Broker, queue string) *Router {
	return &Router{
		broker:    b,
		queue:     queue,
		matcher:   DefaultMatcher{},
		grace:     DefaultShutdownGrace,
		nackDelay: DefaultNackDelay,
	}
}

// Queue returns the name of the queue the router binds to.
func (r *Router) Queue() string { return r.queue }

// SetMatcher replaces the topic matcher. Must be called before Start.
func (r *Router) SetMatcher(m TopicMatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matcher = m
}

// SetShutdownGrace sets how long Start waits for the in-flight message once
// the context is cancelled. Zero abandons it immediately.
func (r *Router) SetShutdownGrace(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grace = d
}

// SetNackDelay sets the pause before a failed message is negatively
// acknowledged.
func (r *Router) SetNackDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nackDelay = d
}

// Use registers global middleware. Given middleware [A, B, C], the call
// order is A -> B -> C -> handler.
func (r *Router) Use(m MiddlewareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, m)
}

// Handle registers a handler for a topic pattern. Routes are tried in
// registration order.
//
//	r.Handle("orders.#", func(c core.Context) error {
//	    return c.Ack()
//	})
func (r *Router) Handle(pattern string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{pattern: pattern, handler: h})
}

// Start binds to the queue and begins consuming messages. It blocks until
// the context is cancelled or the subscription fails. The broker is closed
// on every return path.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.broker == nil {
		r.mu.Unlock()
		return ErrNoBroker
	}
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true

	// Snapshot routes, middleware, and config under lock
	routes := make([]route, len(r.routes))
	for i, rt := range r.routes {
		routes[i] = route{pattern: rt.pattern, handler: applyMiddleware(rt.handler, r.middlewares)}
	}
	unmatched := applyMiddleware(func(c Context) error {
		return fmt.Errorf("%w: %q", ErrNoHandler, c.Topic())
	}, r.middlewares)
	matcher := r.matcher
	grace := r.grace
	nackDelay := r.nackDelay
	broker := r.broker
	queue := r.queue
	r.mu.Unlock()

	// A single slot: holding it means a message is in flight.
	slot := make(chan struct{}, 1)

	// Handlers run on a context that survives cancellation so the in-flight
	// message can finish within the grace period.
	handlerCtx := context.WithoutCancel(ctx)

	dispatch := func(_ context.Context, msg Message) error {
		select {
		case slot <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		defer func() { <-slot }()
		if err := ctx.Err(); err != nil {
			return err
		}

		pattern, h := "", unmatched
		for _, rt := range routes {
			if matcher.Match(rt.pattern, msg.Destination()) {
				pattern, h = rt.pattern, rt.handler
				break
			}
		}

		c := NewContext(handlerCtx, msg, pattern)
		err := h(c)
		if err == nil || c.Acked() {
			return err
		}
		// No route will ever match, so redelivery would loop.
		if rj, ok := msg.(Rejecter); ok && errors.Is(err, ErrNoHandler) {
			if rerr := rj.Reject(); rerr != nil {
				return errors.Join(err, fmt.Errorf("lakesink: reject: %w", rerr))
			}
			return err
		}
		wait(ctx, nackDelay)
		if nerr := c.Nack(); nerr != nil {
			return errors.Join(err, nerr)
		}
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- broker.Subscribe(ctx, queue, dispatch)
	}()

	var subErr error
	select {
	case subErr = <-errCh:
	case <-ctx.Done():
	}

	if ctx.Err() != nil {
		drain(slot, grace)
	}

	closeErr := broker.Close()
	if subErr != nil {
		return fmt.Errorf("lakesink: subscribe %q: %w", queue, subErr)
	}
	if closeErr != nil {
		return fmt.Errorf("lakesink: close broker: %w", closeErr)
	}
	return nil
}

// drain waits up to grace for the in-flight message to finish. The slot is
// never released afterwards, so no further message is dispatched.
func drain(slot chan struct{}, grace time.Duration) {
	if grace <= 0 {
		select {
		case slot <- struct{}{}:
		default:
		}
		return
	}
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case slot <- struct{}{}:
	case <-t.C:
	}
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// applyMiddleware wraps a handler with middleware in reverse order.
// Given middleware [A, B, C], the call order is A -> B -> C -> handler.
func applyMiddleware(h HandlerFunc, mws []MiddlewareFunc) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
