// Package runtime executes signed transactions against the account store.
//
// A transaction runs in four steps: signature check, account locking,
// instruction execution against a staged copy of every referenced account,
// and a single batch commit. Nothing reaches the store unless every
// instruction succeeds.
package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"fit-token/internal/domain"
	"fit-token/internal/observability"
	"fit-token/internal/storage"
)

// Publisher receives every recorded transaction after execution.
type Publisher interface {
	Publish(rec *domain.TransactionRecord)
}

// Result describes an executed transaction, successful or not.
type Result struct {
	Signature string
	Slot      uint64
	BlockTime int64
	Logs      []string
	Written   int
	Err       error
}

// Runtime executes transactions. It is safe for concurrent use;
// transactions touching the same writable account run one at a time.
type Runtime struct {
	store     storage.AccountStore
	txLog     storage.TransactionLogStore
	progress  storage.LedgerProgressStore
	registry  *Registry
	publisher Publisher
	now       func() time.Time
	logger    *log.Logger
	locks     *lockTable

	clockMu  sync.Mutex
	slot     uint64
	lastTime int64

	progressMu sync.Mutex
	savedSlot  uint64
}

// Options contains configuration for creating a Runtime.
type Options struct {
	Store     storage.AccountStore        // required
	Registry  *Registry                   // required
	TxLog     storage.TransactionLogStore // optional; enables duplicate detection and getTransaction
	Progress  storage.LedgerProgressStore // optional; persists the last slot
	Publisher Publisher                   // optional
	Now       func() time.Time            // Default: time.Now
	Logger    *log.Logger
}

// New creates a new Runtime.
func New(opts Options) (*Runtime, error) {
	if opts.Store == nil {
		return nil, errors.New("runtime: account store is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("runtime: program registry is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runtime{
		store:     opts.Store,
		txLog:     opts.TxLog,
		progress:  opts.Progress,
		registry:  opts.Registry,
		publisher: opts.Publisher,
		now:       now,
		logger:    logger,
		locks:     newLockTable(),
	}, nil
}

// Restore resumes the clock from the progress store, if one is configured.
func (r *Runtime) Restore(ctx context.Context) error {
	if r.progress == nil {
		return nil
	}

	p, err := r.progress.GetLastProcessed(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load ledger progress: %w", err)
	}

	r.clockMu.Lock()
	r.slot = p.Slot
	r.lastTime = p.BlockTime
	r.clockMu.Unlock()

	r.progressMu.Lock()
	r.savedSlot = p.Slot
	r.progressMu.Unlock()

	r.logger.Printf("Resumed at slot %d (last tx %s)", p.Slot, p.Signature)
	return nil
}

// Slot returns the slot of the last executed transaction.
func (r *Runtime) Slot() uint64 {
	r.clockMu.Lock()
	defer r.clockMu.Unlock()
	return r.slot
}

// Store returns the account store the runtime commits to.
func (r *Runtime) Store() storage.AccountStore {
	return r.store
}

// Registry returns the program registry.
func (r *Runtime) Registry() *Registry {
	return r.registry
}

// nextClock assigns the slot and timestamp of a transaction.
// Slots are strictly increasing and timestamps never go backwards.
func (r *Runtime) nextClock() Clock {
	r.clockMu.Lock()
	defer r.clockMu.Unlock()

	r.slot++
	ts := r.now().Unix()
	if ts < r.lastTime {
		ts = r.lastTime
	}
	r.lastTime = ts
	observability.UpdateSlot(r.slot)
	return Clock{Slot: r.slot, UnixTimestamp: ts}
}

// Execute runs tx. A transaction rejected before execution returns a nil
// Result. Otherwise the Result is always returned; its Err (also returned
// as the error) is non-nil when the transaction failed and nothing was
// committed.
func (r *Runtime) Execute(ctx context.Context, tx *Transaction) (*Result, error) {
	start := time.Now()

	if err := tx.Verify(); err != nil {
		observability.RecordRejected()
		return nil, err
	}

	keys := tx.Message.AccountKeys()
	if len(keys) > MaxAccountLocks {
		observability.RecordRejected()
		return nil, fmt.Errorf("%w: %d accounts", ErrTooManyAccountLocks, len(keys))
	}

	release := r.locks.acquire(keys)
	defer release()

	signature := tx.ID()
	if r.txLog != nil {
		_, err := r.txLog.GetBySignature(ctx, signature)
		if err == nil {
			observability.RecordRejected()
			return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, signature)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("check transaction log: %w", err)
		}
	}

	staged, err := r.load(ctx, keys)
	if err != nil {
		return nil, err
	}

	clock := r.nextClock()
	ic := newInvokeContext(ctx, r.registry, clock, tx.Message.Signers, staged)

	var execErr error
	for i, ins := range tx.Message.Instructions {
		observability.RecordInstruction(r.programLabel(ins.ProgramID))
		if err := ic.processTop(ins); err != nil {
			execErr = &InstructionError{Index: i, Err: err}
			break
		}
	}

	written := 0
	if execErr == nil {
		writes := collectWrites(staged)
		commitStart := time.Now()
		if err := r.store.Apply(ctx, writes); err != nil {
			if !errors.Is(err, storage.ErrVersionConflict) {
				return nil, fmt.Errorf("commit transaction %s: %w", signature, err)
			}
			observability.RecordVersionConflict()
			execErr = ErrVersionConflict
		} else {
			written = len(writes)
			observability.RecordCommit(written, time.Since(commitStart).Seconds(), clock.UnixTimestamp)
		}
	}

	res := &Result{
		Signature: signature,
		Slot:      clock.Slot,
		BlockTime: clock.UnixTimestamp,
		Logs:      ic.Logs(),
		Written:   written,
		Err:       execErr,
	}
	r.record(ctx, tx, res)

	status := domain.TxStatusOK
	if execErr != nil {
		status = domain.TxStatusErr
		observability.RecordProgramError(ErrorName(execErr))
		r.logger.Printf("Transaction %s failed at slot %d: %v", signature, clock.Slot, execErr)
	}
	observability.RecordTransaction(status, time.Since(start).Seconds())

	return res, execErr
}

// load reads every referenced account into a staging set. Missing accounts
// are staged as empty system-owned accounts.
func (r *Runtime) load(ctx context.Context, keys map[domain.Pubkey]bool) (map[domain.Pubkey]*stagedAccount, error) {
	list := make([]domain.Pubkey, 0, len(keys))
	for k := range keys {
		list = append(list, k)
	}

	loaded, err := r.store.GetMany(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	staged := make(map[domain.Pubkey]*stagedAccount, len(list))
	for _, k := range list {
		staged[k] = newStagedAccount(k, loaded[k])
	}
	return staged, nil
}

func collectWrites(staged map[domain.Pubkey]*stagedAccount) []domain.AccountWrite {
	var writes []domain.AccountWrite
	for _, s := range staged {
		if s.exists && s.dirty() {
			writes = append(writes, s.write())
		}
	}
	sort.Slice(writes, func(i, j int) bool {
		return bytes.Compare(writes[i].Account.Key[:], writes[j].Account.Key[:]) < 0
	})
	return writes
}

// record appends the transaction log entry, persists progress and notifies
// the publisher. Failures here do not undo a commit and are only logged.
func (r *Runtime) record(ctx context.Context, tx *Transaction, res *Result) {
	rec := &domain.TransactionRecord{
		Signature:    res.Signature,
		Slot:         res.Slot,
		BlockTime:    res.BlockTime,
		Status:       domain.TxStatusOK,
		Logs:         append([]string(nil), res.Logs...),
		WrittenCount: res.Written,
		CreatedAt:    time.Now().UnixMilli(),
	}
	for _, s := range tx.Message.Signers {
		rec.Signers = append(rec.Signers, s.String())
	}
	seen := make(map[domain.Pubkey]struct{})
	for _, ins := range tx.Message.Instructions {
		if _, ok := seen[ins.ProgramID]; ok {
			continue
		}
		seen[ins.ProgramID] = struct{}{}
		rec.Programs = append(rec.Programs, ins.ProgramID.String())
	}
	if res.Err != nil {
		rec.Status = domain.TxStatusErr
		rec.Err = res.Err.Error()
		rec.ErrorName = ErrorName(res.Err)
		if idx, ok := ErrorIndex(res.Err); ok {
			i := uint8(idx)
			rec.ErrorIndex = &i
		}
		if code, ok := ErrorCode(res.Err); ok {
			rec.ErrorCode = &code
		}
	}

	if r.txLog != nil {
		if err := r.txLog.Insert(ctx, rec); err != nil {
			r.logger.Printf("Warning: failed to log transaction %s: %v", rec.Signature, err)
		}
	}

	if r.progress != nil {
		r.saveProgress(ctx, res)
	}

	if r.publisher != nil {
		r.publisher.Publish(rec)
	}
}

// saveProgress persists the highest committed slot. Concurrent transactions
// may finish out of order, so lower slots are skipped.
func (r *Runtime) saveProgress(ctx context.Context, res *Result) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()

	if res.Slot <= r.savedSlot {
		return
	}
	p := &storage.LedgerProgress{Slot: res.Slot, BlockTime: res.BlockTime, Signature: res.Signature}
	if err := r.progress.SetLastProcessed(ctx, p); err != nil {
		r.logger.Printf("Warning: failed to save ledger progress: %v", err)
		return
	}
	r.savedSlot = res.Slot
}

func (r *Runtime) programLabel(id domain.Pubkey) string {
	if r.registry.IsProgram(id) {
		return id.String()
	}
	return "unknown"
}
