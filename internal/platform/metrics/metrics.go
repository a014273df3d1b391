package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-level Prometheus metrics shared across domains.
type Metrics struct {
	PatientsRegistered prometheus.Counter
	OrdersPlaced       prometheus.Counter
	SyncPasses         prometheus.Counter
	SyncFailures       prometheus.Counter
}

// New creates and registers all shared Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PatientsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "greengate_patients_registered_total",
			Help: "Total number of patient records created.",
		}),
		OrdersPlaced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "greengate_orders_placed_total",
			Help: "Total number of orders placed through the partner.",
		}),
		SyncPasses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "greengate_sync_passes_total",
			Help: "Total number of verification sync passes completed.",
		}),
		SyncFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "greengate_sync_failures_total",
			Help: "Total number of verification sync fetches that failed.",
		}),
	}
}
