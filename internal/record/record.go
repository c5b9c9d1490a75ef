// Package record defines the survey submission model and the contract with
// the external feature store that owns it. The store is the system of
// record; fieldtriage only reads unprocessed submissions and writes the
// triage status back.
package record

import "context"

// Status values written back to the store's status field. An absent or
// empty status means the record has not been triaged yet.
const (
	StatusEmergency = "911_REVIEW"
	StatusOK        = "OK"
)

// Record is one survey submission as read from the store.
type Record struct {
	ID     string `json:"id"`
	Note   string `json:"note,omitempty"`
	Status string `json:"status,omitempty"`
}

// Unprocessed reports whether the record still needs triage.
func (r *Record) Unprocessed() bool {
	return r.Status == ""
}

// Update carries the status to apply to a single record in a batch write.
type Update struct {
	ID     string
	Status string
}

// WriteResult is the store's per-record outcome of a batch write.
type WriteResult struct {
	ID     string
	OK     bool
	Reason string
}

// Store is the contract with the external feature store. Implementations
// resolve connectivity and credentials internally and surface only
// success or failure to callers.
//
// There is no compare-and-swap on the status field: two concurrent
// triage passes could both read the same unprocessed record and both
// write a status, last write wins. fieldtriage assumes a single
// scheduler drives passes; see the triage package docs.
type Store interface {
	// EnsureStatusField provisions the status field on the layer if it is
	// missing. Idempotent: an already existing field is success.
	EnsureStatusField(ctx context.Context) error

	// QueryUnprocessed returns all records whose status field is absent or
	// empty, in store order.
	QueryUnprocessed(ctx context.Context) ([]Record, error)

	// ApplyStatus writes all updates as one batch and returns one result
	// per update. A transport-level failure is returned as an error; a
	// rejected individual record is reported in its WriteResult.
	ApplyStatus(ctx context.Context, updates []Update) ([]WriteResult, error)
}
