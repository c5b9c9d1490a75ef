package triage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/linnemanlabs/fieldtriage/internal/record"
)

// fakeSemantic is a scripted Semantic that counts invocations.
type fakeSemantic struct {
	mu        sync.Mutex
	calls     int
	emergency bool
	err       error
}

func (f *fakeSemantic) Configured() bool { return true }

func (f *fakeSemantic) Classify(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.emergency, f.err
}

func (f *fakeSemantic) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestPipeline_KeywordHitSkipsSemantic(t *testing.T) {
	t.Parallel()

	sem := &fakeSemantic{emergency: false}
	p := NewPipeline(NewKeywordClassifier(DefaultVocabulary), sem, nil, PipelineHooks{})

	d := p.Classify(context.Background(), &record.Record{ID: "1", Note: "house is on fire"})

	if !d.Emergency {
		t.Error("expected emergency")
	}
	if d.Stage != StageKeywordOnly {
		t.Errorf("Stage = %q, want %q", d.Stage, StageKeywordOnly)
	}
	if d.SemanticFailed {
		t.Error("SemanticFailed should be false on keyword hit")
	}
	if sem.callCount() != 0 {
		t.Errorf("semantic calls = %d, want 0", sem.callCount())
	}
	if d.Label() != record.StatusEmergency {
		t.Errorf("Label = %q, want %q", d.Label(), record.StatusEmergency)
	}
}

func TestPipeline_SemanticFallbackEmergency(t *testing.T) {
	t.Parallel()

	sem := &fakeSemantic{emergency: true}
	p := NewPipeline(NewKeywordClassifier(DefaultVocabulary), sem, nil, PipelineHooks{})

	d := p.Classify(context.Background(), &record.Record{ID: "2", Note: "my grandmother needs her dialysis machine"})

	if !d.Emergency {
		t.Error("expected emergency from semantic stage")
	}
	if d.Stage != StageSemanticFallback {
		t.Errorf("Stage = %q, want %q", d.Stage, StageSemanticFallback)
	}
	if sem.callCount() != 1 {
		t.Errorf("semantic calls = %d, want 1", sem.callCount())
	}
}

func TestPipeline_SemanticFallbackClear(t *testing.T) {
	t.Parallel()

	sem := &fakeSemantic{emergency: false}
	p := NewPipeline(NewKeywordClassifier(DefaultVocabulary), sem, nil, PipelineHooks{})

	d := p.Classify(context.Background(), &record.Record{ID: "3", Note: "roads are muddy but passable"})

	if d.Emergency {
		t.Error("expected no emergency")
	}
	if d.SemanticFailed {
		t.Error("SemanticFailed should be false on a clean negative")
	}
	if d.Label() != record.StatusOK {
		t.Errorf("Label = %q, want %q", d.Label(), record.StatusOK)
	}
}

func TestPipeline_SemanticErrorDegradesWithFlag(t *testing.T) {
	t.Parallel()

	sem := &fakeSemantic{err: errors.New("backend unreachable")}
	p := NewPipeline(NewKeywordClassifier(DefaultVocabulary), sem, nil, PipelineHooks{})

	d := p.Classify(context.Background(), &record.Record{ID: "4", Note: "something feels wrong at the shelter"})

	if d.Emergency {
		t.Error("a failed semantic call must not flag an emergency")
	}
	if !d.SemanticFailed {
		t.Error("expected SemanticFailed to be set")
	}
	if !d.SemanticUsed {
		t.Error("a failed call was still an issued call")
	}
	if d.Stage != StageSemanticFallback {
		t.Errorf("Stage = %q, want %q", d.Stage, StageSemanticFallback)
	}
}

func TestPipeline_EmptyNoteSkipsSemantic(t *testing.T) {
	t.Parallel()

	sem := &fakeSemantic{emergency: true}
	p := NewPipeline(NewKeywordClassifier(DefaultVocabulary), sem, nil, PipelineHooks{})

	d := p.Classify(context.Background(), &record.Record{ID: "5", Note: "   "})

	if d.Emergency {
		t.Error("empty note must not be an emergency")
	}
	if d.SemanticFailed {
		t.Error("a skipped call is not a failed call")
	}
	if d.SemanticUsed {
		t.Error("SemanticUsed must be false when no call was issued")
	}
	if sem.callCount() != 0 {
		t.Errorf("semantic calls = %d, want 0", sem.callCount())
	}
}

func TestPipeline_UnconfiguredSemanticFlagsFailure(t *testing.T) {
	t.Parallel()

	var semanticHookCalls int
	hooks := PipelineHooks{
		OnSemanticCall: func(_ float64, _ bool) { semanticHookCalls++ },
	}

	// nil semantic degrades to Unconfigured inside NewPipeline.
	p := NewPipeline(NewKeywordClassifier(DefaultVocabulary), nil, nil, hooks)

	d := p.Classify(context.Background(), &record.Record{ID: "6", Note: "the water level is rising slowly"})

	if d.Emergency {
		t.Error("expected no emergency without a semantic backend")
	}
	if !d.SemanticFailed {
		t.Error("expected SemanticFailed when no backend is configured")
	}
	if d.SemanticUsed {
		t.Error("no backend means no issued call")
	}
	if semanticHookCalls != 0 {
		t.Errorf("OnSemanticCall fired %d times, want 0 without a backend", semanticHookCalls)
	}
}

func TestPipeline_HooksFire(t *testing.T) {
	t.Parallel()

	var (
		mu            sync.Mutex
		semanticCalls int
		decisions     []string
	)
	hooks := PipelineHooks{
		OnSemanticCall: func(_ float64, _ bool) {
			mu.Lock()
			semanticCalls++
			mu.Unlock()
		},
		OnDecision: func(label string, _ Stage) {
			mu.Lock()
			decisions = append(decisions, label)
			mu.Unlock()
		},
	}

	sem := &fakeSemantic{emergency: false}
	p := NewPipeline(NewKeywordClassifier(DefaultVocabulary), sem, nil, hooks)

	p.Classify(context.Background(), &record.Record{ID: "7", Note: "fire downtown"})
	p.Classify(context.Background(), &record.Record{ID: "8", Note: "all quiet"})

	mu.Lock()
	defer mu.Unlock()
	if semanticCalls != 1 {
		t.Errorf("OnSemanticCall fired %d times, want 1", semanticCalls)
	}
	if len(decisions) != 2 {
		t.Fatalf("OnDecision fired %d times, want 2", len(decisions))
	}
	if decisions[0] != record.StatusEmergency || decisions[1] != record.StatusOK {
		t.Errorf("decision labels = %v, want [%s %s]", decisions, record.StatusEmergency, record.StatusOK)
	}
}
