package memory

import (
	"context"
	"sync"

	"fit-token/internal/storage"
)

// LedgerProgressStore is an in-memory implementation of storage.LedgerProgressStore.
type LedgerProgressStore struct {
	mu       sync.RWMutex
	progress *storage.LedgerProgress
}

// NewLedgerProgressStore creates a new in-memory ledger progress store.
func NewLedgerProgressStore() *LedgerProgressStore {
	return &LedgerProgressStore{}
}

// GetLastProcessed returns the last saved progress.
func (s *LedgerProgressStore) GetLastProcessed(_ context.Context) (*storage.LedgerProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.progress == nil {
		return nil, storage.ErrNotFound
	}

	p := *s.progress
	return &p, nil
}

// SetLastProcessed saves progress.
func (s *LedgerProgressStore) SetLastProcessed(_ context.Context, progress *storage.LedgerProgress) error {
	if progress == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := *progress
	s.progress = &p
	return nil
}

var _ storage.LedgerProgressStore = (*LedgerProgressStore)(nil)
