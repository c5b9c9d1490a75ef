package triage

import (
	"context"
	"errors"
)

// ErrSemanticUnconfigured is returned by Unconfigured so the pipeline can
// record "the deeper check never ran" distinctly from a genuine negative.
var ErrSemanticUnconfigured = errors.New("semantic classifier not configured")

// Semantic is the fallback classification stage, backed by an external
// inference service. Classify issues at most one call per invocation and
// carries its own timeout; it never retries (replays belong to the next
// pass, which is safe because classification is side-effect free).
type Semantic interface {
	// Configured reports whether the backend has usable credentials. The
	// probe is checked once at wiring time, not per call.
	Configured() bool

	// Classify reports whether text describes an emergency. Any error means
	// the semantic signal is unavailable, not that the text is an emergency.
	Classify(ctx context.Context, text string) (bool, error)
}

// Unconfigured is the Semantic injected when no inference backend is
// configured. It keeps the keyword stage fully functional while every
// fallback invocation is reported as a failed semantic call.
type Unconfigured struct{}

// Configured always reports false.
func (Unconfigured) Configured() bool { return false }

// Classify never runs an inference call.
func (Unconfigured) Classify(context.Context, string) (bool, error) {
	return false, ErrSemanticUnconfigured
}
