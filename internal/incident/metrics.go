package incident

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	incidentsDetectedTotal *prometheus.CounterVec
	responseActionsTotal   *prometheus.CounterVec
	notificationsTotal     *prometheus.CounterVec

	metricsOnce sync.Once
)

// InitMetrics registers incident metrics. Call once at startup when
// metrics are enabled; recording is a no-op otherwise.
func InitMetrics() {
	metricsOnce.Do(func() {
		incidentsDetectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultwatch_incidents_detected_total",
				Help: "Total number of incidents detected, per rule and severity",
			},
			[]string{"rule", "severity"},
		)

		responseActionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultwatch_response_actions_total",
				Help: "Total number of response actions executed",
			},
			[]string{"action", "status"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultwatch_notifications_total",
				Help: "Total number of alert notifications attempted, per channel",
			},
			[]string{"channel", "status"},
		)
	})
}

func recordIncidentDetected(ruleID string, severity Severity) {
	if incidentsDetectedTotal != nil {
		incidentsDetectedTotal.WithLabelValues(ruleID, string(severity)).Inc()
	}
}

func recordResponseAction(action ResponseAction, status string) {
	if responseActionsTotal != nil {
		responseActionsTotal.WithLabelValues(string(action), status).Inc()
	}
}

func recordNotification(channel, status string) {
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(channel, status).Inc()
	}
}
