// Package cache provides a read-through LRU cache in front of an AccountStore.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"fit-token/internal/domain"
	"fit-token/internal/storage"
)

// DefaultSize is the number of accounts kept when no size is given.
const DefaultSize = 10000

// AccountStore caches account reads of a backing store. Committed writes
// update the cache; a failed Apply purges the written keys since another
// writer may have moved them.
//
// Reads do not hold the runtime's account locks, so a backend load may finish
// after a newer version was committed. A read only fills the cache when no
// write touched the cache since the load started.
type AccountStore struct {
	backend storage.AccountStore
	cache   *lru.Cache[domain.Pubkey, *domain.Account]

	mu    sync.Mutex
	epoch uint64 // bumped by every cache write from Apply
}

// NewAccountStore wraps backend with an LRU of the given size.
func NewAccountStore(backend storage.AccountStore, size int) (*AccountStore, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[domain.Pubkey, *domain.Account](size)
	if err != nil {
		return nil, fmt.Errorf("create account cache: %w", err)
	}
	return &AccountStore{backend: backend, cache: c}, nil
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Get returns the cached account or loads it from the backend.
func (s *AccountStore) Get(ctx context.Context, key domain.Pubkey) (*domain.Account, error) {
	if acct, ok := s.cache.Get(key); ok {
		return acct.Clone(), nil
	}

	epoch := s.currentEpoch()
	acct, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.fill(epoch, map[domain.Pubkey]*domain.Account{key: acct})
	return acct, nil
}

// GetMany serves what it can from the cache and loads the rest in one call.
func (s *AccountStore) GetMany(ctx context.Context, keys []domain.Pubkey) (map[domain.Pubkey]*domain.Account, error) {
	result := make(map[domain.Pubkey]*domain.Account, len(keys))

	var missing []domain.Pubkey
	for _, key := range keys {
		if acct, ok := s.cache.Get(key); ok {
			result[key] = acct.Clone()
			continue
		}
		missing = append(missing, key)
	}
	if len(missing) == 0 {
		return result, nil
	}

	epoch := s.currentEpoch()
	loaded, err := s.backend.GetMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	s.fill(epoch, loaded)
	for key, acct := range loaded {
		result[key] = acct
	}
	return result, nil
}

// GetByOwner always goes to the backend; owner scans are not cached.
func (s *AccountStore) GetByOwner(ctx context.Context, owner domain.Pubkey) ([]*domain.Account, error) {
	return s.backend.GetByOwner(ctx, owner)
}

// Apply writes through to the backend.
func (s *AccountStore) Apply(ctx context.Context, writes []domain.AccountWrite) error {
	if err := s.backend.Apply(ctx, writes); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			s.mu.Lock()
			s.epoch++
			for _, w := range writes {
				if w.Account != nil {
					s.cache.Remove(w.Account.Key)
				}
			}
			s.mu.Unlock()
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	for _, w := range writes {
		acct := w.Account.Clone()
		acct.Version = w.ExpectedVersion + 1
		s.cache.Add(acct.Key, acct)
	}
	return nil
}

func (s *AccountStore) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// fill caches accounts loaded from the backend, unless a write landed while
// they were loading and they may already be stale.
func (s *AccountStore) fill(epoch uint64, loaded map[domain.Pubkey]*domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}
	for key, acct := range loaded {
		s.cache.Add(key, acct.Clone())
	}
}

// Len returns the number of cached accounts.
func (s *AccountStore) Len() int {
	return s.cache.Len()
}

// Purge drops every cached account.
func (s *AccountStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.cache.Purge()
}
