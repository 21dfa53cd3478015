// Package memory is an in-memory run store for tests and runs with history disabled.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/storage"
)

// Store is an in-memory implementation of storage.RunStore.
type Store struct {
	mu   sync.RWMutex
	runs map[string]domain.RunRecord
}

var _ storage.RunStore = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{runs: make(map[string]domain.RunRecord)}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// CreateRun inserts a new run record.
func (s *Store) CreateRun(ctx context.Context, run *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.runs[run.ID] = *run
	return nil
}

// GetRun returns the run with the given ID, or domain.ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, exists := s.runs[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]*domain.RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		r := r
		runs = append(runs, &r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if offset >= len(runs) {
		return []*domain.RunRecord{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(runs) {
		end = len(runs)
	}
	return runs[offset:end], nil
}

// UpdateRun stores the final state of a run.
func (s *Store) UpdateRun(ctx context.Context, run *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		return domain.ErrNotFound
	}
	s.runs[run.ID] = *run
	return nil
}
