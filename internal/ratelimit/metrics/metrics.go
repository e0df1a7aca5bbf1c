package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for rate limiting.
type Metrics struct {
	Checks     *prometheus.CounterVec
	Rejections *prometheus.CounterVec
}

// New registers and returns rate limit metrics collectors.
// Call once per process; promauto registers against the default registry.
func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regdesk_rate_limit_checks_total",
			Help: "Total number of rate limit checks by policy",
		}, []string{"policy"}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regdesk_rate_limit_rejections_total",
			Help: "Total number of rate limited requests by policy",
		}, []string{"policy"}),
	}
}
