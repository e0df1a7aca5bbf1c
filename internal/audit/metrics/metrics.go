// Package metrics exposes Prometheus counters for the audit recorder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the audit recorder counters.
type Metrics struct {
	EventsRecorded prometheus.Counter
	AppendFailures prometheus.Counter
}

// New registers the audit metrics on the default registry. Call once per
// process.
func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regdesk_audit_events_recorded_total",
			Help: "Total audit events appended.",
		}),
		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regdesk_audit_append_failures_total",
			Help: "Total audit events dropped because the store append failed.",
		}),
	}
}
