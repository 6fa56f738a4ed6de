package middleware_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/miladsoleymani/lakesink/core"
	"github.com/miladsoleymani/lakesink/core/middleware"
	"github.com/miladsoleymani/lakesink/internal/mock"
)

func observed() (*zap.SugaredLogger, *observer.ObservedLogs) {
	zc, logs := observer.New(zapcore.DebugLevel)
	return zap.New(zc).Sugar(), logs
}

func newContext(topic, body string) (core.Context, *mock.Message) {
	msg := &mock.Message{Topic: topic, Body: []byte(body)}
	return core.NewContext(context.Background(), msg, "#"), msg
}

func TestLogging(t *testing.T) {
	log, logs := observed()

	handler := middleware.Logging(log)(func(c core.Context) error {
		return c.Ack()
	})

	c, msg := newContext("orders", "hello")
	require.NoError(t, handler(c))
	assert.True(t, msg.Acked())

	entries := logs.FilterMessage("processed message").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "orders", entries[0].ContextMap()["topic"])
	assert.Equal(t, true, entries[0].ContextMap()["acked"])
}

func TestLogging_Error(t *testing.T) {
	log, logs := observed()

	handler := middleware.Logging(log)(func(c core.Context) error {
		return errors.New("boom")
	})

	c, _ := newContext("orders", "v")
	require.EqualError(t, handler(c), "boom")

	entries := logs.FilterMessage("failed to process message").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestRecovery(t *testing.T) {
	log, logs := observed()

	handler := middleware.Recovery(log)(func(c core.Context) error {
		panic("test panic")
	})

	c, msg := newContext("orders", "v")
	err := handler(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic recovered")
	assert.False(t, msg.Acked())
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestRecovery_NoPanic(t *testing.T) {
	log, logs := observed()

	handler := middleware.Recovery(log)(func(c core.Context) error {
		return nil
	})

	c, _ := newContext("orders", "v")
	require.NoError(t, handler(c))
	assert.Zero(t, logs.Len())
}

type collector struct {
	pattern string
	err     error
	calls   int
}

func (c *collector) MessageProcessed(pattern string, _ time.Duration, err error) {
	c.pattern = pattern
	c.err = err
	c.calls++
}

func TestMetrics(t *testing.T) {
	col := &collector{}
	boom := errors.New("boom")

	handler := middleware.Metrics(col)(func(c core.Context) error {
		return boom
	})

	c, _ := newContext("orders", "v")
	require.ErrorIs(t, handler(c), boom)
	assert.Equal(t, 1, col.calls)
	assert.Equal(t, "#", col.pattern)
	assert.ErrorIs(t, col.err, boom)
}
