package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"fit-token/internal/domain"
	"fit-token/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
// Apply holds the write lock for the whole batch, so a batch is visible
// entirely or not at all.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[domain.Pubkey]*domain.Account
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[domain.Pubkey]*domain.Account),
	}
}

// Get retrieves an account by key. Returns ErrNotFound if not exists.
func (s *AccountStore) Get(_ context.Context, key domain.Pubkey) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, exists := s.accounts[key]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return acct.Clone(), nil
}

// GetMany retrieves several accounts. Missing keys are absent from the result.
func (s *AccountStore) GetMany(_ context.Context, keys []domain.Pubkey) (map[domain.Pubkey]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[domain.Pubkey]*domain.Account, len(keys))
	for _, key := range keys {
		if acct, exists := s.accounts[key]; exists {
			result[key] = acct.Clone()
		}
	}
	return result, nil
}

// GetByOwner retrieves all accounts owned by a program, ordered by key.
func (s *AccountStore) GetByOwner(_ context.Context, owner domain.Pubkey) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Account
	for _, acct := range s.accounts {
		if acct.Owner == owner {
			result = append(result, acct.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].Key[:], result[j].Key[:]) < 0
	})
	return result, nil
}

// Apply commits a batch of writes atomically.
func (s *AccountStore) Apply(_ context.Context, writes []domain.AccountWrite) error {
	for _, w := range writes {
		if w.Account == nil {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching state
	seen := make(map[domain.Pubkey]struct{}, len(writes))
	for _, w := range writes {
		key := w.Account.Key
		if _, dup := seen[key]; dup {
			return storage.ErrInvalidInput
		}
		seen[key] = struct{}{}

		var current uint64
		if acct, exists := s.accounts[key]; exists {
			current = acct.Version
		}
		if current != w.ExpectedVersion {
			return storage.ErrVersionConflict
		}
	}

	for _, w := range writes {
		acct := w.Account.Clone()
		acct.Version = w.ExpectedVersion + 1
		s.accounts[acct.Key] = acct
	}
	return nil
}

var _ storage.AccountStore = (*AccountStore)(nil)
