package memstore

import (
	"context"
	"testing"

	"github.com/linnemanlabs/fieldtriage/internal/record"
)

func TestQueryUnprocessed_FiltersAndKeepsOrder(t *testing.T) {
	t.Parallel()

	s := New()
	s.Seed(
		record.Record{ID: "1", Note: "first"},
		record.Record{ID: "2", Note: "done", Status: record.StatusOK},
		record.Record{ID: "3", Note: "third"},
	)

	recs, err := s.QueryUnprocessed(context.Background())
	if err != nil {
		t.Fatalf("QueryUnprocessed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if recs[0].ID != "1" || recs[1].ID != "3" {
		t.Errorf("order = [%s %s], want [1 3]", recs[0].ID, recs[1].ID)
	}
}

func TestApplyStatus(t *testing.T) {
	t.Parallel()

	s := New()
	s.Seed(record.Record{ID: "1", Note: "note"})

	results, err := s.ApplyStatus(context.Background(), []record.Update{
		{ID: "1", Status: record.StatusEmergency},
		{ID: "missing", Status: record.StatusOK},
	})
	if err != nil {
		t.Fatalf("ApplyStatus: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if !results[0].OK {
		t.Errorf("record 1 rejected: %s", results[0].Reason)
	}
	if results[1].OK {
		t.Error("expected rejection for unknown record")
	}
	if results[1].Reason != "record not found" {
		t.Errorf("Reason = %q, want %q", results[1].Reason, "record not found")
	}

	r, ok := s.Record("1")
	if !ok {
		t.Fatal("record 1 missing")
	}
	if r.Status != record.StatusEmergency {
		t.Errorf("status = %q, want %q", r.Status, record.StatusEmergency)
	}
}

func TestApplyStatus_InjectedFailure(t *testing.T) {
	t.Parallel()

	s := New()
	s.Seed(record.Record{ID: "1", Note: "note"})
	s.FailWrite("1", "version conflict")

	results, err := s.ApplyStatus(context.Background(), []record.Update{{ID: "1", Status: record.StatusOK}})
	if err != nil {
		t.Fatalf("ApplyStatus: %v", err)
	}
	if results[0].OK {
		t.Fatal("expected injected failure")
	}
	if results[0].Reason != "version conflict" {
		t.Errorf("Reason = %q, want %q", results[0].Reason, "version conflict")
	}

	// The record keeps its empty status and replays.
	r, _ := s.Record("1")
	if r.Status != "" {
		t.Errorf("status = %q, want empty", r.Status)
	}
}

func TestSeed_ReplacesExisting(t *testing.T) {
	t.Parallel()

	s := New()
	s.Seed(record.Record{ID: "1", Note: "old"})
	s.Seed(record.Record{ID: "1", Note: "new"})

	r, ok := s.Record("1")
	if !ok {
		t.Fatal("record 1 missing")
	}
	if r.Note != "new" {
		t.Errorf("Note = %q, want %q", r.Note, "new")
	}

	recs, err := s.QueryUnprocessed(context.Background())
	if err != nil {
		t.Fatalf("QueryUnprocessed: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("len = %d, want 1 (re-seed must not duplicate)", len(recs))
	}
}

func TestEnsureStatusField(t *testing.T) {
	t.Parallel()

	s := New()
	if err := s.EnsureStatusField(context.Background()); err != nil {
		t.Fatalf("EnsureStatusField: %v", err)
	}
	if err := s.EnsureStatusField(context.Background()); err != nil {
		t.Fatalf("EnsureStatusField twice: %v", err)
	}
}
