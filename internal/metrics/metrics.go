package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the transport engine and dispatcher.
type Metrics struct {
	MessagesSent     prometheus.Counter
	MessagesQueued   prometheus.Counter
	MessagesDropped  prometheus.Counter
	MessagesReceived *prometheus.CounterVec
	ProtocolErrors   *prometheus.CounterVec
	HandlerDuration  *prometheus.HistogramVec
	QueueDepth       prometheus.Gauge
}

// New creates a Metrics instance with all collectors registered on reg.
// A nil reg leaves the collectors unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "xfiber_transport_messages_sent_total",
			Help: "Total number of envelopes written to the connection",
		}),
		MessagesQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "xfiber_transport_messages_queued_total",
			Help: "Total number of envelopes queued while disconnected",
		}),
		MessagesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "xfiber_transport_messages_dropped_total",
			Help: "Total number of queued envelopes dropped on destroy",
		}),
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xfiber_transport_messages_received_total",
			Help: "Total number of inbound messages by kind",
		}, []string{"kind"}),
		ProtocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xfiber_transport_protocol_errors_total",
			Help: "Total number of protocol and routing errors by code",
		}, []string{"code"}),
		HandlerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xfiber_handler_duration_seconds",
			Help:    "Duration of controller and emitter handler invocations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind", "outcome"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "xfiber_transport_queue_depth",
			Help: "Number of envelopes waiting for the connection to open",
		}),
	}
}

// IncrementReceived records an inbound message of the given kind.
func (m *Metrics) IncrementReceived(kind string) {
	m.MessagesReceived.WithLabelValues(kind).Inc()
}

// IncrementProtocolError records an error envelope with the given code.
func (m *Metrics) IncrementProtocolError(code string) {
	m.ProtocolErrors.WithLabelValues(code).Inc()
}

// ObserveHandler records the duration of a handler invocation.
// Call with time.Now() at the start of the invocation.
func (m *Metrics) ObserveHandler(kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.HandlerDuration.WithLabelValues(kind, outcome).Observe(time.Since(start).Seconds())
}
