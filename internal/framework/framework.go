// Package framework holds the account validation and instruction routing
// helpers shared by the on-ledger programs.
package framework

import (
	"crypto/sha256"
	"encoding"
	"errors"
	"fmt"

	"fit-token/internal/domain"
	"fit-token/internal/programs/system"
	"fit-token/internal/runtime"
)

// InstructionDiscriminator returns the 8-byte tag of an instruction handler,
// sha256("global:<name>")[:8] where name is the snake_case handler name.
func InstructionDiscriminator(name string) [domain.DiscriminatorLen]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [domain.DiscriminatorLen]byte
	copy(d[:], sum[:domain.DiscriminatorLen])
	return d
}

// Handler processes one instruction after its discriminator was stripped.
type Handler func(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, args []byte) error

// Router dispatches instruction data to handlers by discriminator.
type Router struct {
	handlers map[[domain.DiscriminatorLen]byte]route
}

type route struct {
	name    string
	handler Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[[domain.DiscriminatorLen]byte]route)}
}

// Handle registers h under the discriminator of name. display is the name
// written to the program log.
func (r *Router) Handle(name, display string, h Handler) {
	r.handlers[InstructionDiscriminator(name)] = route{name: display, handler: h}
}

// Dispatch routes data to its handler.
func (r *Router) Dispatch(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, data []byte) error {
	if len(data) < domain.DiscriminatorLen {
		return ErrInstructionMissing
	}

	var disc [domain.DiscriminatorLen]byte
	copy(disc[:], data)

	rt, ok := r.handlers[disc]
	if !ok {
		return ErrInstructionFallbackNotFound
	}

	ic.Log("Instruction: %s", rt.name)
	return rt.handler(ic, accounts, data[domain.DiscriminatorLen:])
}

// RequireAccounts fails unless at least n accounts were passed.
func RequireAccounts(accounts []*runtime.AccountInfo, n int) error {
	if len(accounts) < n {
		return ErrAccountNotEnoughKeys
	}
	return nil
}

// Signer requires the account to have signed.
func Signer(a *runtime.AccountInfo) error {
	if !a.IsSigner {
		return fmt.Errorf("%w: %s", ErrAccountNotSigner, a.Key)
	}
	return nil
}

// Mut requires the account to be writable.
func Mut(a *runtime.AccountInfo) error {
	if !a.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotMutable, a.Key)
	}
	return nil
}

// Program requires the account to be the given program.
func Program(a *runtime.AccountInfo, id domain.Pubkey) error {
	if a.Key != id {
		return fmt.Errorf("%w: got %s, want %s", ErrInvalidProgramID, a.Key, id)
	}
	return nil
}

// Owned requires the account to exist and belong to owner.
func Owned(a *runtime.AccountInfo, owner domain.Pubkey) error {
	if !a.Exists() {
		return fmt.Errorf("%w: %s", ErrAccountNotInitialized, a.Key)
	}
	if a.Owner() != owner {
		return fmt.Errorf("%w: %s", ErrAccountOwnedByWrongProgram, a.Key)
	}
	return nil
}

// Init allocates a new account of the given space owned by the running
// program, paid for by payer, through the system program.
// Accounts must include the system program.
func Init(ic *runtime.InvokeContext, payer, target *runtime.AccountInfo, space uint64) error {
	return ic.Invoke(system.CreateAccount(payer.Key, target.Key, space, ic.ProgramID()))
}

// Load decodes an account owned by owner into v.
func Load(a *runtime.AccountInfo, owner domain.Pubkey, v encoding.BinaryUnmarshaler) error {
	if err := Owned(a, owner); err != nil {
		return err
	}
	if err := v.UnmarshalBinary(a.Data()); err != nil {
		if errors.Is(err, domain.ErrDiscriminatorMismatch) {
			return fmt.Errorf("%w: %s", ErrAccountDiscriminatorMismatch, a.Key)
		}
		return fmt.Errorf("%w: %s: %v", ErrAccountDidNotDeserialize, a.Key, err)
	}
	return nil
}

// Save encodes v into the account data. The encoding must fit the
// allocated space; the remainder stays zeroed.
func Save(a *runtime.AccountInfo, v encoding.BinaryMarshaler) error {
	raw, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAccountDidNotSerialize, a.Key, err)
	}

	data := a.Data()
	if len(raw) > len(data) {
		return fmt.Errorf("%w: %s: need %d bytes, have %d", ErrAccountDidNotSerialize, a.Key, len(raw), len(data))
	}
	copy(data, raw)
	for i := len(raw); i < len(data); i++ {
		data[i] = 0
	}
	return nil
}
