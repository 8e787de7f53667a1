package banci

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the session client.
type Metrics struct {
	// BootstrapProbes counts bootstrap probes by result: ok, auth_failed,
	// connection_error.
	BootstrapProbes *prometheus.CounterVec
	// SessionRetries counts business calls that detected session
	// invalidation and triggered the forced retry.
	SessionRetries prometheus.Counter
}

// NewMetrics creates and registers the session client metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		BootstrapProbes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ifn_gateway",
				Subsystem: "upstream",
				Name:      "bootstrap_probes_total",
				Help:      "Total bootstrap probes against the access-control layer",
			},
			[]string{"result"},
		),
		SessionRetries: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "ifn_gateway",
				Subsystem: "upstream",
				Name:      "session_retries_total",
				Help:      "Business calls retried after detected session invalidation",
			},
		),
	}
}
