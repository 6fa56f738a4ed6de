package nats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/lakesink/broker"
	"github.com/miladsoleymani/lakesink/core"
)

func TestURL(t *testing.T) {
	assert.Equal(t, "nats://localhost:4222", URL("localhost"))
	assert.Equal(t, "nats://10.0.0.5:4333", URL("10.0.0.5:4333"))
}

func TestOptsFromConfig(t *testing.T) {
	opts := defaults()
	for _, fn := range optsFromConfig(broker.Config{
		VPN:      "edge",
		Username: "svc",
		Password: "secret",
		Extra:    map[string]any{"stream": "EVENTS"},
	}) {
		fn(&opts)
	}
	assert.Equal(t, "edge", opts.domain)
	assert.Equal(t, "svc", opts.username)
	assert.Equal(t, "secret", opts.password)
	assert.Equal(t, "EVENTS", opts.stream)
	assert.Equal(t, 1, opts.maxPending)
}

func TestOptsFromConfig_DefaultVPN(t *testing.T) {
	opts := defaults()
	for _, fn := range optsFromConfig(broker.Config{VPN: "default"}) {
		fn(&opts)
	}
	assert.Empty(t, opts.domain)
	assert.Empty(t, opts.stream)
}

func TestSubscribeBeforeConnect(t *testing.T) {
	b := New(URL("localhost"), broker.DefaultRetryPolicy())
	err := b.Subscribe(context.Background(), "adls", func(context.Context, core.Message) error { return nil })
	require.ErrorIs(t, err, core.ErrNotConnected)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "close is idempotent")
}

var _ core.Rejecter = (*message)(nil)
