// Package memory provides an in-memory session store used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"sort"
	"sync"

	"testrig/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.SessionStore = (*Store)(nil)

// Store keeps deep copies of session records in a map.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.SessionRecord
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]domain.SessionRecord)}
}

// Save replaces the record with the same id.
func (s *Store) Save(_ context.Context, record domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

// Load returns a copy of the record if present.
func (s *Store) Load(_ context.Context, id string) (domain.SessionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.SessionRecord{}, false, nil
	}
	return rec.Clone(), true, nil
}

// List returns copies of every record ordered by id.
func (s *Store) List(_ context.Context) ([]domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SessionRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes a record and reports whether it existed.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
