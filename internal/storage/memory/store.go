// Package memory keeps credits and blobs in process memory for tests and development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/castcrawler/internal/credit"
	"github.com/JakeFAU/castcrawler/internal/storage"
)

// Store provides an in-memory implementation of storage.Store.
type Store struct {
	mu      sync.RWMutex
	runs    map[string]credit.Run
	credits map[string][]credit.Credit
	latest  string
}

// NewStore constructs a Store.
func NewStore() *Store {
	return &Store{
		runs:    make(map[string]credit.Run),
		credits: make(map[string][]credit.Credit),
	}
}

// SaveRun stores a copy of credits under run.ID and marks it as the latest run.
func (s *Store) SaveRun(_ context.Context, run credit.Run, credits []credit.Credit) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if len(credits) == 0 {
		return storage.ErrNoCredits
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.credits[run.ID] = append([]credit.Credit(nil), credits...)
	s.latest = run.ID
	return nil
}

// ListCredits returns a copy of the credits for runID, or for the latest run.
func (s *Store) ListCredits(_ context.Context, runID string) ([]credit.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if runID == "" {
		runID = s.latest
	}
	credits, ok := s.credits[runID]
	if !ok {
		return nil, storage.ErrRunNotFound
	}
	return append([]credit.Credit(nil), credits...), nil
}

// Run returns the metadata stored for runID.
func (s *Store) Run(runID string) (credit.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	return run, ok
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
