package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventtz_validation_failures_total",
		Help: "Rejected event submissions by validation kind",
	}, []string{"kind", "mode"})

	eventsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventtz_events_submitted_total",
		Help: "Events accepted by the validator and sent to the backend",
	}, []string{"mode"})

	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventtz_backend_requests_total",
		Help: "Requests sent to the events backend by method and status code",
	}, []string{"method", "status"})

	backendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventtz_backend_request_duration_seconds",
		Help:    "Latency of requests sent to the events backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

func ValidationFailed(kind, mode string) {
	validationFailures.WithLabelValues(kind, mode).Inc()
}

func EventSubmitted(mode string) {
	eventsSubmitted.WithLabelValues(mode).Inc()
}

// BackendRequest records one backend round trip. status is 0 when no response
// was received.
func BackendRequest(method string, status int, took time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	backendRequests.WithLabelValues(method, label).Inc()
	backendLatency.WithLabelValues(method).Observe(took.Seconds())
}
