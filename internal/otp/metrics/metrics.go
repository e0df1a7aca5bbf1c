// Package metrics exposes Prometheus counters for the OTP service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the OTP service counters.
type Metrics struct {
	ChallengesIssued prometheus.Counter
	DeliveryFailures prometheus.Counter
	Verifications    *prometheus.CounterVec
}

// New registers the OTP metrics on the default registry. Call once per
// process.
func New() *Metrics {
	return &Metrics{
		ChallengesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regdesk_otp_challenges_issued_total",
			Help: "Total OTP challenges created and stored.",
		}),
		DeliveryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regdesk_otp_delivery_failures_total",
			Help: "Total OTP emails that failed to send.",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regdesk_otp_verifications_total",
			Help: "Total OTP verification attempts by outcome.",
		}, []string{"outcome"}),
	}
}
