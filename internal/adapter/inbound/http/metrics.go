package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the inbound Prometheus metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	TrailDropsTotal prometheus.CounterFunc
}

// NewMetrics creates and registers all inbound metrics with the registry.
// trailDrops reports the cumulative dropped call records; pass nil when the
// trail is disabled.
func NewMetrics(reg prometheus.Registerer, trailDrops func() float64) *Metrics {
	m := &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ifn_gateway",
				Name:      "requests_total",
				Help:      "Total inbound requests processed",
			},
			[]string{"path", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ifn_gateway",
				Name:      "request_duration_seconds",
				Help:      "Inbound request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path"},
		),
	}

	if trailDrops != nil {
		m.TrailDropsTotal = promauto.With(reg).NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: "ifn_gateway",
				Name:      "trail_drops_total",
				Help:      "Call trail records dropped due to backpressure",
			},
			trailDrops,
		)
	}

	return m
}
