package audit

import "context"

// Store is the append-only persistence boundary for audit events.
// Append never updates existing rows; Query returns newest-first pages.
type Store interface {
	Append(ctx context.Context, event Event) error
	Query(ctx context.Context, filter Filter, limit, offset int) ([]Event, error)
}
