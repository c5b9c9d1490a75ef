// Package memstore provides an in-memory implementation of triage.RunStore.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/fieldtriage/internal/triage"
)

// Store holds pass reports in memory. Suitable for dev/testing and for
// running without a database.
type Store struct {
	mu      sync.RWMutex
	reports map[string]*triage.Report // run ID -> report
	order   []string                  // insertion order, newest last
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		reports: make(map[string]*triage.Report),
	}
}

// Put stores a copy of the report.
func (s *Store) Put(_ context.Context, r *triage.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[r.ID]; !exists {
		s.order = append(s.order, r.ID)
	}
	cp := *r
	s.reports[r.ID] = &cp
	return nil
}

// Get retrieves a report by run ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Report, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// Latest retrieves the most recently stored report. Returns a copy.
func (s *Store) Latest(_ context.Context) (*triage.Report, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil, false, nil
	}
	cp := *s.reports[s.order[len(s.order)-1]]
	return &cp, true, nil
}
