package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for session operations.
type Metrics struct {
	SessionsCreated     prometheus.Counter
	ActiveSessions      prometheus.Gauge
	SessionsRevoked     prometheus.Counter
	TwoFactorPromotions prometheus.Counter
	AuthFailures        *prometheus.CounterVec
}

// New registers and returns session metrics collectors.
// Call once per process; promauto registers against the default registry.
func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regdesk_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "regdesk_active_sessions",
			Help: "Current number of active sessions",
		}),
		SessionsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regdesk_sessions_revoked_total",
			Help: "Total number of sessions revoked",
		}),
		TwoFactorPromotions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regdesk_two_factor_promotions_total",
			Help: "Total number of sessions promoted to two-factor verified",
		}),
		AuthFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regdesk_auth_failures_total",
			Help: "Total number of session verification failures by reason",
		}, []string{"reason"}),
	}
}
