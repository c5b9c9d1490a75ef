package triage

import "context"

// RunStore is the persistence interface for pass reports. It is an audit
// trail only: triage correctness never depends on it, so a store failure
// degrades to a logged error.
type RunStore interface {
	Put(ctx context.Context, r *Report) error
	Get(ctx context.Context, id string) (*Report, bool, error)
	Latest(ctx context.Context) (*Report, bool, error)
}

// Notifier delivers a pass summary to an external channel.
type Notifier interface {
	Send(ctx context.Context, r *Report) error
}
