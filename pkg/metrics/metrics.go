// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GatewayRequestDuration tracks backend call latency.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docet_gateway_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation", "status"},
	)

	// GatewayRequestsTotal counts backend calls.
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docet_gateway_requests_total",
			Help: "Total backend requests",
		},
		[]string{"operation", "status"},
	)

	// SessionMessagesTotal counts transcript appends.
	SessionMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docet_session_messages_total",
			Help: "Messages appended to session transcripts",
		},
		[]string{"role", "outcome"},
	)

	// ProvisionAttemptsTotal counts create-assistant submissions.
	ProvisionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docet_provision_attempts_total",
			Help: "Assistant provisioning attempts",
		},
		[]string{"outcome"},
	)
)

// RecordGatewayRequest records a backend call.
func RecordGatewayRequest(operation, status string, duration time.Duration) {
	GatewayRequestDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
	GatewayRequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordSessionMessage records a transcript append.
func RecordSessionMessage(role, outcome string) {
	SessionMessagesTotal.WithLabelValues(role, outcome).Inc()
}

// RecordProvisionAttempt records a provisioning outcome.
func RecordProvisionAttempt(outcome string) {
	ProvisionAttemptsTotal.WithLabelValues(outcome).Inc()
}
