package rabbitmq

import "time"

// Option configures the RabbitMQ broker.
type Option func(*options)

type options struct {
	// Connection settings
	connectionName string
	heartbeat      time.Duration

	// Consumer settings
	prefetchCount int
	requeueOnNack bool
	exclusive     bool
}

func defaults() options {
	return options{
		connectionName: "lakesink",
		heartbeat:      10 * time.Second,
		prefetchCount:  1, // one message in flight
		requeueOnNack:  true,
		exclusive:      true,
	}
}

// WithConnectionName sets the client-provided connection name shown in the
// management UI.
func WithConnectionName(name string) Option {
	return func(o *options) { o.connectionName = name }
}

// WithHeartbeat sets the AMQP heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(o *options) { o.heartbeat = d }
}

// WithPrefetchCount sets how many messages are delivered before requiring ack.
func WithPrefetchCount(n int) Option {
	return func(o *options) { o.prefetchCount = n }
}

// WithRequeueOnNack controls whether nacked messages are requeued.
func WithRequeueOnNack(requeue bool) Option {
	return func(o *options) { o.requeueOnNack = requeue }
}

// WithExclusive controls whether the consumer claims the queue exclusively.
func WithExclusive(e bool) Option {
	return func(o *options) { o.exclusive = e }
}
