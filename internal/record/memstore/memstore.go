// Package memstore provides an in-memory implementation of record.Store
// for development and tests.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/fieldtriage/internal/record"
)

// Store holds records in memory. Records keep insertion order so query
// results are stable across passes.
type Store struct {
	mu        sync.Mutex
	records   []record.Record
	index     map[string]int // record ID -> slice position
	hasField  bool
	failWrite map[string]string // record ID -> injected rejection reason
}

// New initializes an empty in-memory Store.
func New() *Store {
	return &Store{
		index:     make(map[string]int),
		failWrite: make(map[string]string),
	}
}

// Seed inserts or replaces records.
func (s *Store) Seed(recs ...record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		if i, ok := s.index[r.ID]; ok {
			s.records[i] = r
			continue
		}
		s.index[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
}

// FailWrite makes the next ApplyStatus calls reject the given record with
// the given reason.
func (s *Store) FailWrite(id, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrite[id] = reason
}

// Record returns a copy of a stored record.
func (s *Store) Record(id string) (record.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return record.Record{}, false
	}
	return s.records[i], true
}

// EnsureStatusField marks the status field as provisioned. Idempotent.
func (s *Store) EnsureStatusField(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasField = true
	return nil
}

// QueryUnprocessed returns copies of all records without a terminal status,
// in insertion order.
func (s *Store) QueryUnprocessed(_ context.Context) ([]record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []record.Record
	for _, r := range s.records {
		if r.Unprocessed() {
			out = append(out, r)
		}
	}
	return out, nil
}

// ApplyStatus applies all updates, honoring injected per-record failures.
func (s *Store) ApplyStatus(_ context.Context, updates []record.Update) ([]record.WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]record.WriteResult, 0, len(updates))
	for _, u := range updates {
		if reason, fail := s.failWrite[u.ID]; fail {
			results = append(results, record.WriteResult{ID: u.ID, OK: false, Reason: reason})
			continue
		}
		i, ok := s.index[u.ID]
		if !ok {
			results = append(results, record.WriteResult{ID: u.ID, OK: false, Reason: "record not found"})
			continue
		}
		s.records[i].Status = u.Status
		results = append(results, record.WriteResult{ID: u.ID, OK: true})
	}
	return results, nil
}
