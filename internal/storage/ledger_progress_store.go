package storage

import "context"

// LedgerProgress is the position of the ledger after the last executed transaction.
type LedgerProgress struct {
	Slot      uint64 // last assigned slot
	BlockTime int64  // ledger unix seconds observed at that slot
	Signature string // last executed transaction signature
}

// LedgerProgressStore persists ledger progress so a restarted node continues
// the slot sequence and never moves its clock backwards.
type LedgerProgressStore interface {
	// GetLastProcessed returns the last saved progress.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context) (*LedgerProgress, error)

	// SetLastProcessed saves progress.
	SetLastProcessed(ctx context.Context, progress *LedgerProgress) error
}
