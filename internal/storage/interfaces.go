package storage

import (
	"context"

	"fit-token/internal/domain"
)

// AccountStore is the key-addressed, versioned ledger state.
type AccountStore interface {
	// Get retrieves an account by key. Returns ErrNotFound if not exists.
	Get(ctx context.Context, key domain.Pubkey) (*domain.Account, error)

	// GetMany retrieves several accounts. Missing keys are absent from the result.
	GetMany(ctx context.Context, keys []domain.Pubkey) (map[domain.Pubkey]*domain.Account, error)

	// GetByOwner retrieves all accounts owned by a program, ordered by key.
	GetByOwner(ctx context.Context, owner domain.Pubkey) ([]*domain.Account, error)

	// Apply commits a batch of writes atomically. Each stored version must equal
	// the write's ExpectedVersion (zero: account must not exist); the stored
	// version becomes ExpectedVersion+1. Returns ErrVersionConflict and writes
	// nothing if any check fails.
	Apply(ctx context.Context, writes []domain.AccountWrite) error
}

// TransactionLogStore provides access to the executed-transactions log.
type TransactionLogStore interface {
	// Insert adds a record. Returns ErrDuplicateKey if signature exists.
	Insert(ctx context.Context, r *domain.TransactionRecord) error

	// GetBySignature retrieves a record. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.TransactionRecord, error)

	// GetBySlotRange retrieves records within [start, end] (inclusive), ordered by slot ASC.
	GetBySlotRange(ctx context.Context, start, end uint64) ([]*domain.TransactionRecord, error)
}
