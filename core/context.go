package core

import (
	"context"
	"fmt"
	"sync"
)

// Context is the handler context, inspired by echo.Context.
// It wraps the incoming message and exposes response methods (Ack, Nack).
type Context interface {
	// Context returns the underlying context.Context.
	Context() context.Context

	// SetContext replaces the underlying context.Context.
	// Useful for middleware that enriches the context with values or deadlines.
	SetContext(ctx context.Context)

	// Message returns the raw underlying Message.
	Message() Message

	// Pattern returns the route pattern that matched this message.
	Pattern() string

	// Topic returns the destination the message was published to.
	Topic() string

	// Payload returns the raw message body.
	Payload() []byte

	// Header returns a single header value by key.
	Header(key string) string

	// Headers returns all message headers.
	Headers() map[string]string

	// Ack acknowledges the message (commits offset / removes from queue).
	// Calling it more than once is a no-op.
	Ack() error

	// Nack negatively acknowledges the message (triggers redelivery).
	Nack() error

	// Acked reports whether Ack succeeded.
	Acked() bool
}

// HandlerFunc is the function signature for route handlers.
// Handlers receive a Context and return an error.
//
//	r.Handle("orders.#", func(c core.Context) error {
//	    if err := store(c.Topic(), c.Payload()); err != nil {
//	        return err
//	    }
//	    return c.Ack()
//	})
type HandlerFunc func(c Context) error

// MiddlewareFunc wraps a HandlerFunc to add cross-cutting behavior.
//
//	func MyMiddleware() core.MiddlewareFunc {
//	    return func(next core.HandlerFunc) core.HandlerFunc {
//	        return func(c core.Context) error {
//	            // before
//	            err := next(c)
//	            // after
//	            return err
//	        }
//	    }
//	}
type MiddlewareFunc func(HandlerFunc) HandlerFunc

// ---------------------------------------------------------------------------
// Default implementation
// ---------------------------------------------------------------------------

type eventContext struct {
	ctx     context.Context
	msg     Message
	pattern string

	mu    sync.Mutex
	acked bool
}

// NewContext creates a Context for the given message.
// This is called internally by the Router for each incoming message.
func NewContext(ctx context.Context, msg Message, pattern string) Context {
	return &eventContext{
		ctx:     ctx,
		msg:     msg,
		pattern: pattern,
	}
}

func (c *eventContext) Context() context.Context { return c.ctx }

func (c *eventContext) SetContext(ctx context.Context) { c.ctx = ctx }

func (c *eventContext) Message() Message { return c.msg }

func (c *eventContext) Pattern() string { return c.pattern }

func (c *eventContext) Topic() string { return c.msg.Destination() }

func (c *eventContext) Payload() []byte { return c.msg.Payload() }

func (c *eventContext) Header(key string) string {
	return c.msg.Headers()[key]
}

func (c *eventContext) Headers() map[string]string {
	return c.msg.Headers()
}

func (c *eventContext) Ack() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acked {
		return nil
	}
	if err := c.msg.Ack(); err != nil {
		return fmt.Errorf("lakesink: ack: %w", err)
	}
	c.acked = true
	return nil
}

func (c *eventContext) Nack() error {
	if err := c.msg.Nack(); err != nil {
		return fmt.Errorf("lakesink: nack: %w", err)
	}
	return nil
}

func (c *eventContext) Acked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acked
}
