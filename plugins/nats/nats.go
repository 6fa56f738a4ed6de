package nats

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/miladsoleymani/lakesink/broker"
	"github.com/miladsoleymani/lakesink/core"
)

const defaultPort = "4222"

func init() {
	broker.Register("nats", func(cfg broker.Config) (core.Broker, error) {
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("lakesink/nats: at least one broker host is required")
		}
		opts := optsFromConfig(cfg)
		return New(URL(cfg.Brokers[0]), cfg.Reconnect, opts...), nil
	})
}

// Broker implements core.Broker for NATS JetStream.
//
// Design decisions:
//   - One NATS connection per Broker instance.
//   - The queue is an existing durable consumer; streams and consumers are
//     looked up, never created.
//   - Reconnection is delegated to the client library (MaxReconnects,
//     ReconnectWait); its handlers are surfaced as lifecycle events.
//   - Messages are pulled one at a time and acked explicitly.
type Broker struct {
	broker.Listeners

	url    string
	policy broker.RetryPolicy
	opts   options

	mu     sync.Mutex
	conn   *nats.Conn
	js     jetstream.JetStream
	lost   chan struct{}
	once   sync.Once
	closed bool
	subs   []jetstream.ConsumeContext
}

// New creates a NATS JetStream Broker. url is a standard NATS URL
// (nats://host:port). No connection is made until Connect.
func New(url string, policy broker.RetryPolicy, fns ...Option) *Broker {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Broker{url: url, policy: policy, opts: opts, lost: make(chan struct{})}
}

// URL turns a host into a NATS URL, adding the default port if needed.
func URL(host string) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, defaultPort)
	}
	return "nats://" + host
}

// Connect opens the NATS connection and the JetStream context.
func (b *Broker) Connect(ctx context.Context) error {
	if b.isClosed() {
		return core.ErrBrokerClosed
	}

	natsOpts := []nats.Option{
		nats.Name(b.opts.connectionName),
		nats.MaxReconnects(b.policy.Attempts),
		nats.ReconnectWait(b.policy.Interval),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if b.isClosed() {
				return
			}
			b.Emit(core.EventReconnecting, err, "disconnected from server, reconnecting")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.Emit(core.EventReconnected, nil, "reconnected to "+nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			if b.isClosed() {
				return
			}
			b.Emit(core.EventInterrupted, nc.LastError(), "connection closed, reconnect attempts exhausted")
			b.once.Do(func() { close(b.lost) })
		}),
	}
	if b.opts.username != "" {
		natsOpts = append(natsOpts, nats.UserInfo(b.opts.username, b.opts.password))
	}

	var nc *nats.Conn
	err := broker.Retry(ctx, b.policy, &b.Listeners, "nats connect", func(context.Context) error {
		c, err := nats.Connect(b.url, natsOpts...)
		if err != nil {
			return err
		}
		nc = c
		return nil
	})
	if err != nil {
		return fmt.Errorf("lakesink/nats: connect to %q: %w", b.url, err)
	}

	var js jetstream.JetStream
	if b.opts.domain != "" {
		js, err = jetstream.NewWithDomain(nc, b.opts.domain)
	} else {
		js, err = jetstream.New(nc)
	}
	if err != nil {
		nc.Close()
		return fmt.Errorf("lakesink/nats: init jetstream: %w", err)
	}

	b.mu.Lock()
	b.conn, b.js = nc, js
	b.mu.Unlock()
	return nil
}

// Subscribe looks up the durable consumer named queue and consumes it until
// the context is cancelled or the connection is lost for good.
func (b *Broker) Subscribe(ctx context.Context, queue string, handler core.Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.ErrBrokerClosed
	}
	js := b.js
	b.mu.Unlock()
	if js == nil {
		return core.ErrNotConnected
	}

	streamName := b.opts.stream
	if streamName == "" {
		streamName = queue
	}

	cons, err := js.Consumer(ctx, streamName, queue)
	if err != nil {
		if errors.Is(err, jetstream.ErrStreamNotFound) || errors.Is(err, jetstream.ErrConsumerNotFound) {
			return fmt.Errorf("%w: consumer %q on stream %q: %v", core.ErrQueueNotFound, queue, streamName, err)
		}
		return fmt.Errorf("lakesink/nats: look up consumer %q: %w", queue, err)
	}
	if info := cons.CachedInfo(); info != nil && info.Config.AckPolicy != jetstream.AckExplicitPolicy {
		return fmt.Errorf("lakesink/nats: consumer %q must use explicit ack, has %v", queue, info.Config.AckPolicy)
	}

	cc, err := cons.Consume(func(jsMsg jetstream.Msg) {
		_ = handler(ctx, &message{msg: jsMsg})
	}, jetstream.PullMaxMessages(b.opts.maxPending))
	if err != nil {
		return fmt.Errorf("lakesink/nats: start consume on %q: %w", queue, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, cc)
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		cc.Stop()
		return nil
	case <-b.lost:
		cc.Stop()
		return core.ErrConnectionLost
	}
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close stops all consumers and closes the NATS connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	conn := b.conn
	b.mu.Unlock()

	for _, s := range subs {
		s.Stop()
	}
	if conn != nil {
		conn.Close()
	}
	return nil
}

// optsFromConfig maps broker.Config onto options. The "default" VPN means
// the default JetStream domain.
func optsFromConfig(cfg broker.Config) []Option {
	var opts []Option
	if cfg.Username != "" {
		opts = append(opts, WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.VPN != "" && cfg.VPN != "default" {
		opts = append(opts, WithDomain(cfg.VPN))
	}
	if v, ok := cfg.Extra["stream"].(string); ok && v != "" {
		opts = append(opts, WithStream(v))
	}
	if v, ok := cfg.Extra["max_pending"].(int); ok {
		opts = append(opts, WithMaxPending(v))
	}
	return opts
}
