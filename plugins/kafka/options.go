package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Option configures the Kafka broker.
type Option func(*options)

type options struct {
	// Reader
	minBytes    int
	maxBytes    int
	maxWait     time.Duration
	startOffset int64

	// General
	dialer *kafka.Dialer
}

func defaults() options {
	return options{
		minBytes:    1,
		maxBytes:    10e6, // 10 MB
		maxWait:     500 * time.Millisecond,
		startOffset: kafka.FirstOffset,
		dialer: &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	}
}

// WithMaxBytes sets the maximum bytes per fetch.
func WithMaxBytes(n int) Option {
	return func(o *options) { o.maxBytes = n }
}

// WithMaxWait sets the maximum wait time for fetches.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) { o.maxWait = d }
}

// WithStartOffset sets where a new consumer group starts (kafka.FirstOffset or kafka.LastOffset).
func WithStartOffset(offset int64) Option {
	return func(o *options) { o.startOffset = offset }
}

// WithDialer sets a custom dialer for TLS/SASL connections.
func WithDialer(d *kafka.Dialer) Option {
	return func(o *options) { o.dialer = d }
}
