package storage

import (
	"context"
	"sync"

	"github.com/shelfsync/shelfsync/pkg/records"
)

// MemoryStore is an in-memory Store for tests, examples, and the CLI.
type MemoryStore struct {
	mu          sync.RWMutex
	resolutions map[string]PersistedResolution // keyed by resolution ID
	prior       map[string]*records.Record     // keyed by book ID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resolutions: make(map[string]PersistedResolution),
		prior:       make(map[string]*records.Record),
	}
}

// PersistResolution implements Store.
func (s *MemoryStore) PersistResolution(_ context.Context, res PersistedResolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolutions[res.ResolutionID] = res
	if res.Prior != nil {
		s.prior[res.BookID] = res.Prior.Clone()
	}
	return nil
}

// LoadPriorState implements Store.
func (s *MemoryStore) LoadPriorState(_ context.Context, bookID string) (*records.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.prior[bookID]; ok {
		return rec.Clone(), nil
	}
	return nil, nil
}

// Resolution returns a persisted resolution by ID, if present.
func (s *MemoryStore) Resolution(resolutionID string) (PersistedResolution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.resolutions[resolutionID]
	return res, ok
}

// Len returns the number of persisted resolutions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.resolutions)
}
