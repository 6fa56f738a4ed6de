package broker

import "time"

// Config holds broker-agnostic configuration.
// Broker plugins extract the fields they need.
type Config struct {
	// Brokers is a list of broker hosts or addresses (e.g., "localhost", "kafka-1:9092").
	Brokers []string

	// VPN is the message VPN. Plugins map it onto their own isolation unit
	// (AMQP virtual host, JetStream domain).
	VPN string

	// Username and Password authenticate the session.
	Username string
	Password string

	// Group is the consumer group ID, for brokers that have one.
	Group string

	// Topics lists the topics a queue is fed from, for brokers where the
	// queue is not a first-class object.
	Topics []string

	// Reconnect bounds connection retries.
	Reconnect RetryPolicy

	// Extra holds plugin-specific configuration.
	Extra map[string]any
}

// RetryPolicy is a fixed number of attempts at a fixed interval.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
}

// DefaultRetryPolicy retries 20 times, 3 seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 20, Interval: 3 * time.Second}
}

func (p RetryPolicy) retries() int {
	return max(p.Attempts, 0)
}
