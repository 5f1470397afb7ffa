package postgres

import (
	"context"
	"fmt"
	"time"

	"fit-token/internal/storage"
)

// LedgerProgressStore is a PostgreSQL implementation of storage.LedgerProgressStore.
// Uses a single-row table ledger_progress.
type LedgerProgressStore struct {
	pool *Pool
}

// NewLedgerProgressStore creates a new PostgreSQL ledger progress store.
func NewLedgerProgressStore(pool *Pool) *LedgerProgressStore {
	return &LedgerProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerProgressStore = (*LedgerProgressStore)(nil)

// GetLastProcessed returns the last saved progress.
func (s *LedgerProgressStore) GetLastProcessed(ctx context.Context) (_ *storage.LedgerProgress, err error) {
	defer func(start time.Time) { observeQuery("get_progress", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `
		SELECT slot, block_time, signature
		FROM ledger_progress
		LIMIT 1
	`)

	var (
		progress storage.LedgerProgress
		slot     int64
	)
	err = row.Scan(&slot, &progress.BlockTime, &progress.Signature)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get ledger progress: %w", err)
	}
	progress.Slot = uint64(slot)

	return &progress, nil
}

// SetLastProcessed saves progress.
// Uses upsert to handle initial insert and subsequent updates.
func (s *LedgerProgressStore) SetLastProcessed(ctx context.Context, progress *storage.LedgerProgress) (err error) {
	if progress == nil {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observeQuery("set_progress", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, `
		INSERT INTO ledger_progress (id, slot, block_time, signature, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET slot = EXCLUDED.slot,
		    block_time = EXCLUDED.block_time,
		    signature = EXCLUDED.signature,
		    updated_at = NOW()
	`, int64(progress.Slot), progress.BlockTime, progress.Signature)
	if err != nil {
		return fmt.Errorf("set ledger progress: %w", err)
	}
	return nil
}
