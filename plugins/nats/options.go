package nats

// Option configures the NATS broker.
type Option func(*options)

type options struct {
	// Connection
	connectionName string
	username       string
	password       string
	domain         string

	// Consumer
	stream     string
	maxPending int
}

func defaults() options {
	return options{
		connectionName: "lakesink",
		maxPending:     1, // one message in flight
	}
}

// WithCredentials authenticates with a username and password.
func WithCredentials(username, password string) Option {
	return func(o *options) {
		o.username = username
		o.password = password
	}
}

// WithDomain selects a JetStream domain. Empty means the default domain.
func WithDomain(d string) Option {
	return func(o *options) { o.domain = d }
}

// WithStream names the stream that holds the durable consumer. By default
// the stream has the same name as the consumer.
func WithStream(name string) Option {
	return func(o *options) { o.stream = name }
}

// WithConnectionName sets the name reported to the server.
func WithConnectionName(name string) Option {
	return func(o *options) { o.connectionName = name }
}

// WithMaxPending sets how many messages are pulled ahead of processing.
func WithMaxPending(n int) Option {
	return func(o *options) { o.maxPending = n }
}
