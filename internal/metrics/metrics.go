package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// Usage:
//
//	m := metrics.New(nil) // default registry
//	m.MessagesReceived.Inc()
//	m.EventsDispatched.WithLabelValues("item-created").Inc()
type Metrics struct {
	// ConnectionState reflects the push channel state as a number:
	// 0 disconnected, 1 connecting, 2 connected, 3 reconnecting.
	ConnectionState prometheus.Gauge

	// ReconnectAttempts counts reconnection dials across all outages.
	ReconnectAttempts prometheus.Counter

	// MessagesReceived counts raw frames taken off the push channel.
	MessagesReceived prometheus.Counter

	// EventsDispatched counts decoded events delivered to handlers.
	// Labels: type (wire event name)
	EventsDispatched *prometheus.CounterVec

	// ParseErrors counts frames that failed to decode.
	ParseErrors prometheus.Counter

	// UnknownEvents counts frames with an unrecognized event type.
	UnknownEvents prometheus.Counter

	// DuplicatesDropped counts redeliveries caught by the dedup window.
	DuplicatesDropped prometheus.Counter

	// HandlerPanics counts recovered subscriber panics.
	HandlerPanics prometheus.Counter

	// ReconcileRuns counts reconciliation outcomes.
	// Labels: trigger (interval|reconnect|manual), result (success|error)
	ReconcileRuns *prometheus.CounterVec

	// ReconcileDuration measures snapshot fetch-and-merge latency in seconds.
	// Buckets: 0.01s .. 30s
	ReconcileDuration prometheus.Histogram
}

// New creates and registers all metrics with reg. A nil registerer uses
// the Prometheus default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dashsync_connection_state",
			Help: "Push channel state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)",
		}),

		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "dashsync_reconnect_attempts_total",
			Help: "Total number of reconnection attempts",
		}),

		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "dashsync_messages_received_total",
			Help: "Total number of raw push channel frames received",
		}),

		EventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashsync_events_dispatched_total",
			Help: "Total number of events dispatched to handlers by event type",
		}, []string{"type"}),

		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "dashsync_parse_errors_total",
			Help: "Total number of frames that failed to decode",
		}),

		UnknownEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "dashsync_unknown_events_total",
			Help: "Total number of frames with an unrecognized event type",
		}),

		DuplicatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "dashsync_duplicates_dropped_total",
			Help: "Total number of redelivered events dropped by the dedup window",
		}),

		HandlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Name: "dashsync_handler_panics_total",
			Help: "Total number of recovered handler panics",
		}),

		ReconcileRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashsync_reconcile_runs_total",
			Help: "Total number of reconciliation runs by trigger and result",
		}, []string{"trigger", "result"}),

		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dashsync_reconcile_duration_seconds",
			Help:    "Duration of snapshot fetch and merge in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
	}
}
