// Package metrics exposes message processing, storage and broker lifecycle
// counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miladsoleymani/lakesink/core"
)

const (
	Namespace = "lakesink"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics implements middleware.MetricsCollector, sink.Recorder and
// core.EventListener. A nil *Metrics records nothing.
//
// Broker events also drive the session state reported by Health.
type Metrics struct {
	messagesProcessed         *prometheus.CounterVec // by pattern, status
	messageProcessingDuration prometheus.Histogram
	bytesAppended             prometheus.Counter
	brokerEvents              *prometheus.CounterVec // by kind
	brokerConnected           prometheus.Gauge

	mu      sync.Mutex
	session error // nil while the broker session is up
}

// New creates and registers all metrics with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_processed_total",
			Help:      "Total messages handled by route pattern and status",
		}, []string{"pattern", "status"}),
		messageProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "message_processing_duration_seconds",
			Help:      "Time from dispatch to handler return, including storage calls",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		bytesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bytes_appended_total",
			Help:      "Total payload bytes appended and flushed to storage",
		}),
		brokerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "broker_events_total",
			Help:      "Broker connection lifecycle events by kind",
		}, []string{"kind"}),
		brokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "broker_connected",
			Help:      "1 while the broker session is up, 0 while it is being re-established or lost",
		}),
	}
	m.brokerConnected.Set(1)

	err := errors.Join(
		reg.Register(m.messagesProcessed),
		reg.Register(m.messageProcessingDuration),
		reg.Register(m.bytesAppended),
		reg.Register(m.brokerEvents),
		reg.Register(m.brokerConnected),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MessageProcessed records a handler outcome. Pass nil error for success.
func (m *Metrics) MessageProcessed(pattern string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.messagesProcessed.WithLabelValues(pattern, status).Inc()
	m.messageProcessingDuration.Observe(duration.Seconds())
}

// BytesAppended adds n committed bytes. Topics are not used as a label to
// keep cardinality bounded.
func (m *Metrics) BytesAppended(_ string, n int) {
	if m == nil {
		return
	}
	m.bytesAppended.Add(float64(n))
}

// OnEvent counts broker lifecycle events and tracks the session state.
func (m *Metrics) OnEvent(e core.Event) {
	if m == nil {
		return
	}
	m.brokerEvents.WithLabelValues(e.Kind.String()).Inc()

	var state error
	switch e.Kind {
	case core.EventReconnecting:
		state = fmt.Errorf("broker reconnecting: %v", e.Cause)
	case core.EventInterrupted:
		state = fmt.Errorf("broker session interrupted: %v", e.Cause)
	}
	m.mu.Lock()
	m.session = state
	m.mu.Unlock()
	if state != nil {
		m.brokerConnected.Set(0)
	} else {
		m.brokerConnected.Set(1)
	}
}

// Health returns nil while the broker session is up, and the last
// reconnecting or interruption cause otherwise.
func (m *Metrics) Health() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}
