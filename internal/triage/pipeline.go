package triage

import (
	"context"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/fieldtriage/internal/record"
)

// Stage identifies how far the pipeline went to reach a decision.
type Stage string

const (
	// StageKeywordOnly means the keyword stage matched and the semantic
	// stage was never invoked.
	StageKeywordOnly Stage = "keyword_only"

	// StageSemanticFallback means the keyword stage found nothing and the
	// decision came from (or defaulted after) the semantic stage.
	StageSemanticFallback Stage = "semantic_fallback"
)

// Decision is the outcome of classifying one record. It lives for a single
// pass: the Service consumes it immediately to build the batch write.
type Decision struct {
	RecordID  string `json:"record_id"`
	Emergency bool   `json:"emergency"`
	Stage     Stage  `json:"stage"`

	// SemanticUsed is set when an inference call was actually issued.
	// Empty notes and an unconfigured backend reach the fallback stage
	// without one.
	SemanticUsed bool `json:"semantic_used,omitempty"`

	// SemanticFailed is set when the semantic stage should have run but
	// could not (unconfigured backend, transport failure, unusable
	// response). Operators audit these separately from true negatives.
	SemanticFailed bool `json:"semantic_failed,omitempty"`
}

// Label maps the boolean decision to the status written to the store.
func (d Decision) Label() string {
	if d.Emergency {
		return record.StatusEmergency
	}
	return record.StatusOK
}

// PipelineHooks are optional callbacks for instrumentation.
type PipelineHooks struct {
	// OnSemanticCall fires after each external inference attempt.
	OnSemanticCall func(duration float64, failed bool)

	// OnDecision fires once per classified record.
	OnDecision func(label string, stage Stage)
}

// Pipeline composes the keyword and semantic stages into a single decision
// per record. It holds no per-record state and is safe to invoke
// concurrently across independent records.
type Pipeline struct {
	keyword  *KeywordClassifier
	semantic Semantic
	logger   log.Logger
	hooks    PipelineHooks
}

// NewPipeline creates a pipeline. A nil semantic gets the Unconfigured
// implementation so the keyword stage keeps working without a backend.
func NewPipeline(keyword *KeywordClassifier, semantic Semantic, logger log.Logger, hooks PipelineHooks) *Pipeline {
	if keyword == nil {
		keyword = NewKeywordClassifier(DefaultVocabulary)
	}
	if semantic == nil || !semantic.Configured() {
		semantic = Unconfigured{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		keyword:  keyword,
		semantic: semantic,
		logger:   logger,
		hooks:    hooks,
	}
}

// Classify runs the two stages against one record. It never returns an
// error: a failed semantic call degrades to "no emergency signal" with
// SemanticFailed set, because a record must always reach a terminal label.
func (p *Pipeline) Classify(ctx context.Context, rec *record.Record) Decision {
	L := p.logger.With("record_id", rec.ID)

	d := Decision{RecordID: rec.ID, Stage: StageKeywordOnly}

	if p.keyword.Classify(rec.Note) {
		// Cheap signal already confirms emergency, skip the external call.
		d.Emergency = true
		L.Info(ctx, "keyword match, flagging immediately", "label", d.Label())
		p.decided(d)
		return d
	}

	d.Stage = StageSemanticFallback

	// Nothing for the semantic stage to read; avoid a paid call.
	if strings.TrimSpace(rec.Note) == "" {
		L.Info(ctx, "empty note, skipping semantic stage", "label", d.Label())
		p.decided(d)
		return d
	}

	// No backend means no call: the record degrades immediately and the
	// call metrics stay untouched.
	if !p.semantic.Configured() {
		d.SemanticFailed = true
		L.Warn(ctx, "semantic stage unavailable, defaulting to no emergency signal", "error", ErrSemanticUnconfigured)
		p.decided(d)
		return d
	}

	d.SemanticUsed = true
	start := time.Now()
	emergency, err := p.semantic.Classify(ctx, rec.Note)
	dur := time.Since(start).Seconds()
	if p.hooks.OnSemanticCall != nil {
		p.hooks.OnSemanticCall(dur, err != nil)
	}

	if err != nil {
		d.SemanticFailed = true
		L.Warn(ctx, "semantic stage unavailable, defaulting to no emergency signal", "error", err)
		p.decided(d)
		return d
	}

	d.Emergency = emergency
	L.Info(ctx, "semantic stage decided", "label", d.Label(), "duration", dur)
	p.decided(d)
	return d
}

func (p *Pipeline) decided(d Decision) {
	if p.hooks.OnDecision != nil {
		p.hooks.OnDecision(d.Label(), d.Stage)
	}
}
