package triage

import "time"

// RunStatus tracks how a triage pass ended.
type RunStatus string

const (
	// RunStatusComplete means the pass finished; individual records may
	// still have failed to write (see RecordOutcome).
	RunStatusComplete RunStatus = "complete"

	// RunStatusFailed means the pass aborted before reaching a consolidated
	// write result (store query or batch write unreachable).
	RunStatusFailed RunStatus = "failed"
)

// RecordOutcome is the audited, per-record result of one pass.
type RecordOutcome struct {
	RecordID       string `json:"record_id"`
	Label          string `json:"label"`
	Stage          Stage  `json:"stage"`
	SemanticFailed bool   `json:"semantic_failed,omitempty"`
	Written        bool   `json:"written"`
	WriteError     string `json:"write_error,omitempty"`
}

// Report summarizes one orchestration pass.
type Report struct {
	ID               string          `json:"id"`
	Status           RunStatus       `json:"status"`
	Queried          int             `json:"queried"`
	Flagged          int             `json:"flagged"`
	Cleared          int             `json:"cleared"`
	SemanticCalls    int             `json:"semantic_calls"`
	SemanticFailures int             `json:"semantic_failures"`
	Written          int             `json:"written"`
	Outcomes         []RecordOutcome `json:"outcomes,omitempty"`
	Error            string          `json:"error,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      time.Time       `json:"completed_at,omitempty"`
	Duration         float64         `json:"duration_seconds,omitempty"`
}

// WriteFailures returns the outcomes whose status write was rejected.
// Those records stay unprocessed in the store and replay next pass.
func (r *Report) WriteFailures() []RecordOutcome {
	var failed []RecordOutcome
	for _, o := range r.Outcomes {
		if !o.Written {
			failed = append(failed, o)
		}
	}
	return failed
}

// Empty reports whether the pass found nothing to triage.
func (r *Report) Empty() bool {
	return r.Queried == 0
}
