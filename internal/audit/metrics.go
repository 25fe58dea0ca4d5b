package audit

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsLoggedTotal  *prometheus.CounterVec
	eventsDroppedTotal prometheus.Counter
	sinkErrorsTotal    *prometheus.CounterVec

	metricsOnce sync.Once
)

// InitMetrics registers the audit pipeline metrics. Call once at
// startup when metrics are enabled; recording is a no-op otherwise.
func InitMetrics() {
	metricsOnce.Do(func() {
		eventsLoggedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultwatch_audit_events_total",
				Help: "Total number of audit events accepted into the queue",
			},
			[]string{"event_type", "level"},
		)

		eventsDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vaultwatch_audit_events_dropped_total",
				Help: "Total number of audit events dropped because the queue was full",
			},
		)

		sinkErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultwatch_audit_sink_errors_total",
				Help: "Total number of emit failures, per sink",
			},
			[]string{"sink"},
		)
	})
}

func recordEventLogged(eventType EventType, level Level) {
	if eventsLoggedTotal != nil {
		eventsLoggedTotal.WithLabelValues(string(eventType), level.String()).Inc()
	}
}

func recordEventDropped() {
	if eventsDroppedTotal != nil {
		eventsDroppedTotal.Inc()
	}
}

func recordSinkError(sink string) {
	if sinkErrorsTotal != nil {
		sinkErrorsTotal.WithLabelValues(sink).Inc()
	}
}
