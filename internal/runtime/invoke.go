package runtime

import (
	"context"
	"fmt"

	"fit-token/internal/domain"
)

// MaxInvokeDepth bounds the instruction stack, top-level call included.
const MaxInvokeDepth = 4

// Program is an on-ledger program the runtime can dispatch to.
type Program interface {
	ID() domain.Pubkey
	Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error
}

// Clock is the ledger time visible to programs.
type Clock struct {
	Slot          uint64
	UnixTimestamp int64
}

// frame is one entry of the instruction stack.
type frame struct {
	program   domain.Pubkey
	accounts  []*AccountInfo
	snapshots []snapshot
}

func newFrame(program domain.Pubkey, accounts []*AccountInfo) *frame {
	f := &frame{program: program, accounts: accounts}
	f.capture()
	return f
}

func (f *frame) capture() {
	f.snapshots = f.snapshots[:0]
	for _, a := range f.accounts {
		f.snapshots = append(f.snapshots, takeSnapshot(a.acct))
	}
}

func (f *frame) verify() error {
	// An account listed twice is writable if any of its entries is.
	writable := make(map[domain.Pubkey]bool, len(f.accounts))
	for _, a := range f.accounts {
		writable[a.Key] = writable[a.Key] || a.IsWritable
	}
	for i, a := range f.accounts {
		if err := verifyChange(f.program, writable[a.Key], f.snapshots[i], a.acct); err != nil {
			return fmt.Errorf("%w: %s", err, a.Key)
		}
	}
	return nil
}

// InvokeContext is handed to a program for the duration of one transaction.
// It carries the clock, the log sink and the cross-program invocation entry.
type InvokeContext struct {
	ctx      context.Context
	registry *Registry
	clock    Clock
	signers  map[domain.Pubkey]struct{}
	staged   map[domain.Pubkey]*stagedAccount
	stack    []*frame
	logs     []string
}

func newInvokeContext(ctx context.Context, registry *Registry, clock Clock, signers []domain.Pubkey, staged map[domain.Pubkey]*stagedAccount) *InvokeContext {
	ic := &InvokeContext{
		ctx:      ctx,
		registry: registry,
		clock:    clock,
		signers:  make(map[domain.Pubkey]struct{}, len(signers)),
		staged:   staged,
	}
	for _, s := range signers {
		ic.signers[s] = struct{}{}
	}
	return ic
}

// Context returns the context of the executing transaction.
func (ic *InvokeContext) Context() context.Context {
	return ic.ctx
}

// Clock returns the ledger clock of the executing transaction.
func (ic *InvokeContext) Clock() Clock {
	return ic.clock
}

// ProgramID returns the id of the running program.
func (ic *InvokeContext) ProgramID() domain.Pubkey {
	return ic.stack[len(ic.stack)-1].program
}

// Depth returns the current stack height, 1 for a top-level instruction.
func (ic *InvokeContext) Depth() int {
	return len(ic.stack)
}

// Log appends a program log line.
func (ic *InvokeContext) Log(format string, args ...any) {
	ic.logs = append(ic.logs, "Program log: "+fmt.Sprintf(format, args...))
}

// Logs returns the collected log lines.
func (ic *InvokeContext) Logs() []string {
	return ic.logs
}

// processTop runs a top-level instruction from the transaction message.
func (ic *InvokeContext) processTop(ins Instruction) error {
	accounts := make([]*AccountInfo, 0, len(ins.Accounts))
	for _, meta := range ins.Accounts {
		if meta.IsSigner {
			if _, ok := ic.signers[meta.Pubkey]; !ok {
				return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, meta.Pubkey)
			}
		}
		acct, ok := ic.staged[meta.Pubkey]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingAccount, meta.Pubkey)
		}
		accounts = append(accounts, &AccountInfo{
			Key:        meta.Pubkey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			acct:       acct,
		})
	}
	return ic.run(ins.ProgramID, accounts, ins.Data)
}

// Invoke performs a cross-program invocation from the running program.
// Every account of ins must be among the caller's accounts, and no account
// may gain the signer or writable privilege, except that signerSeeds may
// sign for addresses derived from the caller's program id.
func (ic *InvokeContext) Invoke(ins Instruction, signerSeeds ...[][]byte) error {
	caller := ic.stack[len(ic.stack)-1]

	pdaSigners := make(map[domain.Pubkey]struct{}, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := domain.CreateProgramAddress(seeds, caller.program)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
		}
		pdaSigners[addr] = struct{}{}
	}

	byKey := make(map[domain.Pubkey]*AccountInfo, len(caller.accounts))
	for _, a := range caller.accounts {
		if prev, ok := byKey[a.Key]; ok {
			// Duplicate metas: keep the union of privileges.
			merged := *prev
			merged.IsSigner = prev.IsSigner || a.IsSigner
			merged.IsWritable = prev.IsWritable || a.IsWritable
			byKey[a.Key] = &merged
			continue
		}
		byKey[a.Key] = a
	}

	if _, ok := byKey[ins.ProgramID]; !ok {
		return fmt.Errorf("%w: program %s", ErrMissingAccount, ins.ProgramID)
	}

	accounts := make([]*AccountInfo, 0, len(ins.Accounts))
	for _, meta := range ins.Accounts {
		held, ok := byKey[meta.Pubkey]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingAccount, meta.Pubkey)
		}
		if meta.IsWritable && !held.IsWritable {
			return fmt.Errorf("%w: %s writable", ErrPrivilegeEscalation, meta.Pubkey)
		}
		if meta.IsSigner && !held.IsSigner {
			if _, ok := pdaSigners[meta.Pubkey]; !ok {
				return fmt.Errorf("%w: %s signer", ErrPrivilegeEscalation, meta.Pubkey)
			}
		}
		accounts = append(accounts, &AccountInfo{
			Key:        meta.Pubkey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			acct:       held.acct,
		})
	}

	// Changes the caller made so far are its own; settle them before the
	// callee runs so they are not attributed to the callee.
	if err := caller.verify(); err != nil {
		return err
	}

	err := ic.run(ins.ProgramID, accounts, ins.Data)
	caller.capture()
	return err
}

func (ic *InvokeContext) run(programID domain.Pubkey, accounts []*AccountInfo, data []byte) error {
	if len(ic.stack) >= MaxInvokeDepth {
		return ErrCallDepth
	}
	for i, f := range ic.stack {
		// Self-recursion is allowed, re-entering a program further down the stack is not.
		if f.program == programID && i != len(ic.stack)-1 {
			return ErrReentrancyNotAllowed
		}
	}

	program, ok := ic.registry.Get(programID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}

	f := newFrame(programID, accounts)
	ic.stack = append(ic.stack, f)
	defer func() { ic.stack = ic.stack[:len(ic.stack)-1] }()

	ic.logs = append(ic.logs, fmt.Sprintf("Program %s invoke [%d]", programID, len(ic.stack)))

	err := program.Process(ic, accounts, data)
	if err == nil {
		err = f.verify()
	}
	if err != nil {
		ic.logs = append(ic.logs, fmt.Sprintf("Program %s failed: %v", programID, err))
		return err
	}

	ic.logs = append(ic.logs, fmt.Sprintf("Program %s success", programID))
	return nil
}
