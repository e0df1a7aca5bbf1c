package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"regdesk/internal/audit/metrics"
)

// Recorder appends audit events best-effort. Record returns an error that
// callers are free to ignore: audit logging must not fail the primary
// operation it accompanies, so failures surface in the process log.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderClock injects the time source for tests.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithRecorderMetrics sets the metrics recorder.
func WithRecorderMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder creates a Recorder around the given store.
func NewRecorder(store Store, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stamps and appends the event synchronously.
func (r *Recorder) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}

	if err := r.store.Append(ctx, event); err != nil {
		r.logger.ErrorContext(ctx, "failed to append audit event",
			"action", event.Action,
			"error", err,
		)
		if r.metrics != nil {
			r.metrics.AppendFailures.Inc()
		}
		return err
	}
	if r.metrics != nil {
		r.metrics.EventsRecorded.Inc()
	}
	return nil
}

// Query reads events for administrative review, newest first.
func (r *Recorder) Query(ctx context.Context, filter Filter, limit, offset int) ([]Event, error) {
	return r.store.Query(ctx, filter, limit, offset)
}
