package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for outbound partner API calls.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// New creates and registers partner proxy metrics.
func New() *Metrics {
	return &Metrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "greengate_partner_requests_total",
			Help: "Outbound partner API calls by action and outcome.",
		}, []string{"action", "outcome"}),
		Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greengate_partner_request_duration_seconds",
			Help:    "Outbound partner API call latency by action.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// Observe records one completed call.
func (m *Metrics) Observe(action, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(action, outcome).Inc()
	m.Duration.WithLabelValues(action).Observe(time.Since(start).Seconds())
}
