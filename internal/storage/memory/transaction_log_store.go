package memory

import (
	"context"
	"sort"
	"sync"

	"fit-token/internal/domain"
	"fit-token/internal/storage"
)

// TransactionLogStore is an in-memory implementation of storage.TransactionLogStore.
type TransactionLogStore struct {
	mu          sync.RWMutex
	bySignature map[string]*domain.TransactionRecord
}

// NewTransactionLogStore creates a new in-memory transaction log store.
func NewTransactionLogStore() *TransactionLogStore {
	return &TransactionLogStore{
		bySignature: make(map[string]*domain.TransactionRecord),
	}
}

// Insert adds a record. Returns ErrDuplicateKey if signature exists.
func (s *TransactionLogStore) Insert(_ context.Context, r *domain.TransactionRecord) error {
	if r == nil || r.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySignature[r.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	s.bySignature[r.Signature] = copyRecord(r)
	return nil
}

// GetBySignature retrieves a record. Returns ErrNotFound if not exists.
func (s *TransactionLogStore) GetBySignature(_ context.Context, signature string) (*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.bySignature[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRecord(r), nil
}

// GetBySlotRange retrieves records within [start, end] (inclusive), ordered by slot ASC.
func (s *TransactionLogStore) GetBySlotRange(_ context.Context, start, end uint64) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionRecord
	for _, r := range s.bySignature {
		if r.Slot >= start && r.Slot <= end {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Slot != result[j].Slot {
			return result[i].Slot < result[j].Slot
		}
		return result[i].Signature < result[j].Signature
	})
	return result, nil
}

func copyRecord(r *domain.TransactionRecord) *domain.TransactionRecord {
	c := *r
	c.Signers = append([]string(nil), r.Signers...)
	c.Programs = append([]string(nil), r.Programs...)
	c.Logs = append([]string(nil), r.Logs...)
	if r.ErrorIndex != nil {
		idx := *r.ErrorIndex
		c.ErrorIndex = &idx
	}
	if r.ErrorCode != nil {
		code := *r.ErrorCode
		c.ErrorCode = &code
	}
	return &c
}

var _ storage.TransactionLogStore = (*TransactionLogStore)(nil)
