package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/miladsoleymani/lakesink/broker"
	"github.com/miladsoleymani/lakesink/core"
)

const defaultPort = "9092"

func init() {
	broker.Register("kafka", func(cfg broker.Config) (core.Broker, error) {
		opts := optsFromConfig(cfg)
		brokers := make([]string, len(cfg.Brokers))
		for i, h := range cfg.Brokers {
			brokers[i] = Addr(h)
		}
		return New(brokers, cfg.Group, cfg.Topics, cfg.Reconnect, opts...)
	})
}

// Broker implements core.Broker for Apache Kafka using segmentio/kafka-go.
//
// Design decisions:
//   - A queue is a consumer group over a fixed set of topics. The topics
//     must already exist; they are checked against cluster metadata.
//   - One kafka.Reader per Subscribe call; messages are handled in order.
//   - Manual offset commit via Ack(). A nacked message is handed to the
//     handler again before the reader advances.
//   - Broker reconnects are handled inside the reader; only the initial
//     reachability check follows the retry policy.
type Broker struct {
	broker.Listeners

	brokers []string
	group   string
	topics  []string
	policy  broker.RetryPolicy
	opts    options

	mu        sync.Mutex
	connected bool
	readers   []*kafka.Reader
	closed    bool
}

// New creates a Kafka Broker. group is the consumer group; when empty the
// queue name passed to Subscribe is used. topics defaults to the queue name.
func New(brokers []string, group string, topics []string, policy broker.RetryPolicy, fns ...Option) (*Broker, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("lakesink/kafka: at least one broker address is required")
	}

	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	return &Broker{
		brokers: brokers,
		group:   group,
		topics:  topics,
		policy:  policy,
		opts:    opts,
	}, nil
}

// Addr adds the default Kafka port to a host that has none.
func Addr(host string) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// Connect checks that the cluster is reachable.
func (b *Broker) Connect(ctx context.Context) error {
	if b.isClosed() {
		return core.ErrBrokerClosed
	}
	err := broker.Retry(ctx, b.policy, &b.Listeners, "kafka dial", func(ctx context.Context) error {
		conn, err := b.dial(ctx)
		if err != nil {
			return err
		}
		return conn.Close()
	})
	if err != nil {
		return fmt.Errorf("lakesink/kafka: dial %v: %w", b.brokers, err)
	}

	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	return nil
}

func (b *Broker) dial(ctx context.Context) (*kafka.Conn, error) {
	var lastErr error
	for _, addr := range b.brokers {
		conn, err := b.opts.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Subscribe verifies the topics exist, joins the consumer group and blocks,
// delivering messages to the handler until the context is cancelled.
func (b *Broker) Subscribe(ctx context.Context, queue string, handler core.Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.ErrBrokerClosed
	}
	connected := b.connected
	b.mu.Unlock()
	if !connected {
		return core.ErrNotConnected
	}

	group := b.group
	if group == "" {
		group = queue
	}
	topics := b.topics
	if len(topics) == 0 {
		topics = []string{queue}
	}

	if err := b.checkTopics(ctx, topics); err != nil {
		return err
	}

	cfg := kafka.ReaderConfig{
		Brokers:     b.brokers,
		GroupID:     group,
		GroupTopics: topics,
		MinBytes:    b.opts.minBytes,
		MaxBytes:    b.opts.maxBytes,
		MaxWait:     b.opts.maxWait,
		StartOffset: b.opts.startOffset,
		Dialer:      b.opts.dialer,
	}
	r := kafka.NewReader(cfg)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		r.Close()
		return core.ErrBrokerClosed
	}
	b.readers = append(b.readers, r)
	b.mu.Unlock()

	return b.consumeLoop(ctx, r, handler)
}

// checkTopics reads cluster metadata without naming topics, so brokers with
// auto-creation enabled do not create missing ones.
func (b *Broker) checkTopics(ctx context.Context, topics []string) error {
	conn, err := b.dial(ctx)
	if err != nil {
		return fmt.Errorf("lakesink/kafka: dial for metadata: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("lakesink/kafka: read metadata: %w", err)
	}
	known := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		known[p.Topic] = true
	}
	for _, t := range topics {
		if !known[t] {
			return fmt.Errorf("%w: topic %q", core.ErrQueueNotFound, t)
		}
	}
	return nil
}

// consumeLoop fetches messages and dispatches them to the handler.
func (b *Broker) consumeLoop(ctx context.Context, r *kafka.Reader, handler core.Handler) error {
	// Commits must outlive cancellation so the in-flight message can still
	// be acked during shutdown.
	commitCtx := context.WithoutCancel(ctx)
	for {
		raw, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil // graceful shutdown
			}
			return fmt.Errorf("lakesink/kafka: fetch: %w", err)
		}

		msg := &message{raw: raw, reader: r, ctx: commitCtx}
		for {
			_ = handler(ctx, msg)
			if !msg.takeNack() || ctx.Err() != nil {
				break
			}
		}
	}
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close closes all readers, leaving the consumer group.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for _, r := range b.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("lakesink/kafka: close reader: %w", err))
		}
	}
	return errors.Join(errs...)
}

// optsFromConfig extracts options from the broker.Config.Extra map.
// SASL/PLAIN is enabled with Extra["sasl"] = true.
func optsFromConfig(cfg broker.Config) []Option {
	var opts []Option
	if v, ok := cfg.Extra["sasl"].(bool); ok && v {
		d := defaults().dialer
		d.SASLMechanism = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
		opts = append(opts, WithDialer(d))
	}
	if v, ok := cfg.Extra["max_bytes"].(int); ok {
		opts = append(opts, WithMaxBytes(v))
	}
	return opts
}
