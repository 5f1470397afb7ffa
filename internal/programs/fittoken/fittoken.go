// Package fittoken implements the reward token program: a token registry,
// reward minting and stake deposits into a custodial vault.
package fittoken

import (
	"fmt"

	"fit-token/internal/domain"
	"fit-token/internal/framework"
	"fit-token/internal/programs/token"
	"fit-token/internal/runtime"
)

// ProgramID is the fit-token program id.
var ProgramID = domain.MustParsePubkey("HHKQwGvQkppaA17kiM3ZYfcfNHGYaS89TL9Y2W4GhNwz")

// Handler names; their discriminators prefix instruction data.
const (
	InstructionInitialize  = "initialize"
	InstructionMintReward  = "mint_reward"
	InstructionStakeTokens = "stake_tokens"
)

// VaultSeed prefixes the seeds of a mint's vault owner address.
const VaultSeed = "vault"

// Options configures the program.
type Options struct {
	// StrictAuthority makes mint_reward require the token registry record as
	// a fifth account and reject signers other than its authority.
	StrictAuthority bool
}

// Program is the fit-token program.
type Program struct {
	strict bool
	router *framework.Router
}

// New creates the program.
func New(opts Options) *Program {
	p := &Program{strict: opts.StrictAuthority, router: framework.NewRouter()}
	p.router.Handle(InstructionInitialize, "Initialize", p.initialize)
	p.router.Handle(InstructionMintReward, "MintReward", p.mintReward)
	p.router.Handle(InstructionStakeTokens, "StakeTokens", p.stakeTokens)
	return p
}

// ID returns ProgramID.
func (p *Program) ID() domain.Pubkey {
	return ProgramID
}

// Process dispatches by instruction discriminator.
func (p *Program) Process(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, data []byte) error {
	return p.router.Dispatch(ic, accounts, data)
}

// VaultAddress derives the address that owns the vault balance of mint.
// No private key exists for it.
func VaultAddress(mint domain.Pubkey) (domain.Pubkey, uint8, error) {
	return domain.FindProgramAddress([][]byte{[]byte(VaultSeed), mint[:]}, ProgramID)
}

// loadMint validates an initialized mint of the token program.
func loadMint(a *runtime.AccountInfo) (*domain.Mint, error) {
	if err := framework.Owned(a, token.ProgramID); err != nil {
		return nil, err
	}
	var m domain.Mint
	if err := m.UnmarshalBinary(a.Data()); err != nil || !m.IsInitialized {
		return nil, fmt.Errorf("%w: mint %s", framework.ErrAccountDidNotDeserialize, a.Key)
	}
	return &m, nil
}

// loadTokenAccount validates an initialized balance record of the token program.
func loadTokenAccount(a *runtime.AccountInfo) (*domain.TokenAccount, error) {
	if err := framework.Owned(a, token.ProgramID); err != nil {
		return nil, err
	}
	var t domain.TokenAccount
	if err := t.UnmarshalBinary(a.Data()); err != nil || !t.IsInitialized() {
		return nil, fmt.Errorf("%w: token account %s", framework.ErrAccountDidNotDeserialize, a.Key)
	}
	return &t, nil
}

// checkAll returns the first failing check.
func checkAll(checks ...error) error {
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
