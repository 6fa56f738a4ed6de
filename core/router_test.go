package core_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/lakesink/core"
	"github.com/miladsoleymani/lakesink/internal/mock"
)

// startRouter runs r.Start in the background and waits for the bind.
func startRouter(t *testing.T, r *core.Router, mb *mock.Broker) (context.CancelFunc, <-chan error) {
	t.Helper()
	require.NoError(t, mb.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Start(ctx)
	}()

	select {
	case <-mb.Bound():
	case err := <-errCh:
		cancel()
		t.Fatalf("Start returned before binding: %v", err)
	case <-time.After(time.Second):
		cancel()
		t.Fatal("router did not bind")
	}
	return cancel, errCh
}

func TestRouter_HandleAndStart(t *testing.T) {
	mb := mock.NewBroker("adls")
	r := core.New(mb, "adls")

	var called atomic.Bool
	r.Handle("orders.#", func(c core.Context) error {
		called.Store(true)
		assert.Equal(t, "orders.#", c.Pattern())
		assert.Equal(t, "orders.created", c.Topic())
		return c.Ack()
	})

	cancel, errCh := startRouter(t, r, mb)

	msg := &mock.Message{Topic: "orders.created", Body: []byte("value1")}
	require.NoError(t, mb.Deliver(context.Background(), msg))

	assert.True(t, called.Load(), "handler was not called")
	assert.True(t, msg.Acked())
	assert.False(t, msg.Nacked())

	cancel()
	require.NoError(t, <-errCh)
	assert.True(t, mb.IsClosed(), "broker should be closed after Start returns")
}

func TestRouter_FirstMatchingRouteWins(t *testing.T) {
	mb := mock.NewBroker("q")
	r := core.New(mb, "q")

	var hits []string
	r.Handle("orders/priority", func(c core.Context) error {
		hits = append(hits, "priority")
		return c.Ack()
	})
	r.Handle("#", func(c core.Context) error {
		hits = append(hits, "catch-all")
		return c.Ack()
	})

	cancel, errCh := startRouter(t, r, mb)
	defer func() {
		cancel()
		<-errCh
	}()

	require.NoError(t, mb.Deliver(context.Background(), &mock.Message{Topic: "orders/priority"}))
	require.NoError(t, mb.Deliver(context.Background(), &mock.Message{Topic: "orders/normal"}))
	assert.Equal(t, []string{"priority", "catch-all"}, hits)
}

func TestRouter_HandlerErrorLeavesMessageUnacked(t *testing.T) {
	mb := mock.NewBroker("q")
	r := core.New(mb, "q")
	r.SetNackDelay(0)

	storageErr := errors.New("storage unavailable")
	r.Handle("#", func(c core.Context) error {
		return storageErr
	})

	cancel, errCh := startRouter(t, r, mb)
	defer func() {
		cancel()
		<-errCh
	}()

	msg := &mock.Message{Topic: "orders", Body: []byte("hello")}
	err := mb.Deliver(context.Background(), msg)
	require.ErrorIs(t, err, storageErr)
	assert.False(t, msg.Acked())
	assert.True(t, msg.Nacked())
}

func TestRouter_UnmatchedTopic(t *testing.T) {
	mb := mock.NewBroker("q")
	r := core.New(mb, "q")
	r.SetNackDelay(0)
	r.Handle("orders.*", func(c core.Context) error { return c.Ack() })

	cancel, errCh := startRouter(t, r, mb)
	defer func() {
		cancel()
		<-errCh
	}()

	msg := &mock.Message{Topic: "payments.created"}
	require.ErrorIs(t, mb.Deliver(context.Background(), msg), core.ErrNoHandler)
	assert.False(t, msg.Acked())
	assert.True(t, msg.Rejected(), "unroutable message should be dead-lettered")
	assert.False(t, msg.Nacked())
}

func TestRouter_UnmatchedTopicWithoutReject(t *testing.T) {
	mb := mock.NewBroker("q")
	r := core.New(mb, "q")
	r.SetNackDelay(0)
	r.Handle("orders.*", func(c core.Context) error { return c.Ack() })

	cancel, errCh := startRouter(t, r, mb)
	defer func() {
		cancel()
		<-errCh
	}()

	// Embedding the interface hides Reject.
	msg := &mock.Message{Topic: "payments.created"}
	require.ErrorIs(t, mb.Deliver(context.Background(), struct{ core.Message }{msg}), core.ErrNoHandler)
	assert.True(t, msg.Nacked())
	assert.False(t, msg.Rejected())
}

func TestRouter_HandlerErrorIsNotRejected(t *testing.T) {
	mb := mock.NewBroker("q")
	r := core.New(mb, "q")
	r.SetNackDelay(0)
	r.Handle("#", func(c core.Context) error { return core.ErrConnectionLost })

	cancel, errCh := startRouter(t, r, mb)
	defer func() {
		cancel()
		<-errCh
	}()

	msg := &mock.Message{Topic: "orders"}
	require.Error(t, mb.Deliver(context.Background(), msg))
	assert.True(t, msg.Nacked())
	assert.False(t, msg.Rejected())
}

func TestRouter_Middleware(t *testing.T) {
	mb := mock.NewBroker("q")
	r := core.New(mb, "q")

	var order []string
	mw := func(name string) core.MiddlewareFunc {
		return func(next core.HandlerFunc) core.HandlerFunc {
			return func(c core.Context) error {
				order = append(order, name+":before")
				err := next(c)
				order = append(order, name+":after")
				return err
			}
		}
	}

	r.Use(mw("A"))
	r.Use(mw("B"))
	r.Handle("test.topic", func(c core.Context) error {
		order = append(order, "handler")
		return nil
	})

	cancel, errCh := startRouter(t, r, mb)
	require.NoError(t, mb.Deliver(context.Background(), &mock.Message{Topic: "test.topic"}))
	cancel()
	require.NoError(t, <-errCh)

	// Call order: A:before -> B:before -> handler -> B:after -> A:after
	assert.Equal(t, []string{"A:before", "B:before", "handler", "B:after", "A:after"}, order)
}

func TestRouter_QueueNotFound(t *testing.T) {
	mb := mock.NewBroker()
	require.NoError(t, mb.Connect(context.Background()))

	r := core.New(mb, "adls")
	var called atomic.Bool
	r.Handle("#", func(c core.Context) error {
		called.Store(true)
		return nil
	})

	err := r.Start(context.Background())
	require.ErrorIs(t, err, core.ErrQueueNotFound)
	assert.Equal(t, 0, mb.Subscriptions())
	assert.False(t, called.Load())
	assert.True(t, mb.IsClosed(), "bind failure must still disconnect")
}

func TestRouter_ShutdownWaitsForInFlight(t *testing.T) {
	mb := mock.NewBroker("q")
	r := core.New(mb, "q")
	r.SetShutdownGrace(time.Second)

	entered := make(chan struct{})
	release := make(chan struct{})
	r.Handle("#", func(c core.Context) error {
		close(entered)
		<-release
		assert.NoError(t, c.Context().Err(), "handler context must survive shutdown")
		return c.Ack()
	})

	cancel, errCh := startRouter(t, r, mb)

	msg := &mock.Message{Topic: "orders"}
	delivered := make(chan error, 1)
	go func() { delivered <- mb.Deliver(context.Background(), msg) }()
	<-entered

	cancel()
	select {
	case <-errCh:
		t.Fatal("Start returned while a message was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-delivered)
	require.NoError(t, <-errCh)
	assert.True(t, msg.Acked())
	assert.True(t, mb.IsClosed())
}

func TestRouter_NoDispatchAfterShutdown(t *testing.T) {
	mb := mock.NewBroker("q")
	r := core.New(mb, "q")

	var calls atomic.Int32
	r.Handle("#", func(c core.Context) error {
		calls.Add(1)
		return c.Ack()
	})

	cancel, errCh := startRouter(t, r, mb)
	cancel()
	require.NoError(t, <-errCh)

	msg := &mock.Message{Topic: "orders"}
	require.ErrorIs(t, mb.Deliver(context.Background(), msg), context.Canceled)
	assert.Zero(t, calls.Load())
	assert.False(t, msg.Acked())
}

func TestRouter_NilBroker(t *testing.T) {
	r := core.New(nil, "q")
	assert.Equal(t, core.ErrNoBroker, r.Start(context.Background()))
}

func TestRouter_DoubleStart(t *testing.T) {
	mb := mock.NewBroker("q")
	r := core.New(mb, "q")

	cancel, errCh := startRouter(t, r, mb)
	defer func() {
		cancel()
		<-errCh
	}()

	assert.Equal(t, core.ErrAlreadyStarted, r.Start(context.Background()))
}
