// Package system implements the account allocator program.
package system

import (
	"fmt"

	"fit-token/internal/borsh"
	"fit-token/internal/domain"
	"fit-token/internal/runtime"
)

// ProgramID is the all-zero key, which also owns every unallocated account.
var ProgramID = runtime.SystemProgramID

// Instruction tags.
const (
	TagCreateAccount uint32 = 0
)

// MaxAccountDataLen is the largest allocation a single account may have.
const MaxAccountDataLen = 10 * 1024 * 1024

// Program is the system program.
type Program struct{}

// New creates the system program.
func New() *Program {
	return &Program{}
}

// ID returns ProgramID.
func (p *Program) ID() domain.Pubkey {
	return ProgramID
}

// Process dispatches a system instruction.
func (p *Program) Process(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, data []byte) error {
	dec := borsh.NewDecoder(data)
	tag := dec.ReadU32()
	if dec.Err() != nil {
		return runtime.ErrInvalidInstructionData
	}

	switch tag {
	case TagCreateAccount:
		space := dec.ReadU64()
		var owner domain.Pubkey
		copy(owner[:], dec.ReadFixed(len(owner)))
		if err := dec.Finish(); err != nil {
			return fmt.Errorf("%w: %v", runtime.ErrInvalidInstructionData, err)
		}
		return createAccount(ic, accounts, space, owner)
	default:
		return fmt.Errorf("%w: unknown system instruction %d", runtime.ErrInvalidInstructionData, tag)
	}
}

// createAccount allocates accounts[1] with zeroed data owned by owner.
// Accounts: [0] payer (signer, writable), [1] new account (signer, writable).
func createAccount(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, space uint64, owner domain.Pubkey) error {
	if len(accounts) < 2 {
		return runtime.ErrNotEnoughAccountKeys
	}
	payer, target := accounts[0], accounts[1]

	if !payer.IsSigner {
		ic.Log("Create Account: from %s must sign", payer.Key)
		return runtime.ErrMissingRequiredSignature
	}
	if !target.IsSigner {
		ic.Log("Create Account: to %s must sign", target.Key)
		return runtime.ErrMissingRequiredSignature
	}
	if space > MaxAccountDataLen {
		return fmt.Errorf("%w: space %d", runtime.ErrInvalidArgument, space)
	}
	if target.Exists() || target.Owner() != ProgramID {
		ic.Log("Create Account: account %s already in use", target.Key)
		return runtime.ErrAccountAlreadyInUse
	}

	return target.Allocate(int(space), owner)
}

// CreateAccount builds a CreateAccount instruction.
func CreateAccount(payer, newAccount domain.Pubkey, space uint64, owner domain.Pubkey) runtime.Instruction {
	enc := borsh.NewEncoder(4 + 8 + 32)
	enc.WriteU32(TagCreateAccount)
	enc.WriteU64(space)
	enc.WriteFixed(owner[:])

	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.WritableSigner(payer),
			runtime.WritableSigner(newAccount),
		},
		Data: enc.Bytes(),
	}
}
