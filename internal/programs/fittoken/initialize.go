package fittoken

import (
	"fit-token/internal/domain"
	"fit-token/internal/framework"
	"fit-token/internal/programs/system"
	"fit-token/internal/programs/token"
	"fit-token/internal/runtime"
)

// initialize creates the token registry record.
//
// Accounts: [0] token_info (writable, signer, new), [1] mint (writable),
// [2] authority (writable, signer, payer), [3] system program, [4] token program.
func (p *Program) initialize(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, raw []byte) error {
	var args InitializeArgs
	if err := args.UnmarshalBinary(raw); err != nil {
		return framework.ErrInstructionDidNotDeserialize
	}
	if err := framework.RequireAccounts(accounts, 5); err != nil {
		return err
	}
	tokenInfo, mint, authority := accounts[0], accounts[1], accounts[2]

	err := checkAll(
		framework.Signer(tokenInfo),
		framework.Mut(tokenInfo),
		framework.Mut(mint),
		framework.Signer(authority),
		framework.Mut(authority),
		framework.Program(accounts[3], system.ProgramID),
		framework.Program(accounts[4], token.ProgramID),
	)
	if err != nil {
		return err
	}
	if _, err := loadMint(mint); err != nil {
		return err
	}

	if len(args.Name) > domain.MaxNameLen {
		return ErrNameTooLong
	}
	if len(args.Symbol) > domain.MaxSymbolLen {
		return ErrSymbolTooLong
	}

	// Allocation fails if the record already exists, so a registry can be
	// initialized once.
	if err := framework.Init(ic, authority, tokenInfo, domain.TokenInfoSpace); err != nil {
		return err
	}

	info := domain.TokenInfo{
		Name:      args.Name,
		Symbol:    args.Symbol,
		Decimals:  args.Decimals,
		Authority: authority.Key,
	}
	if err := framework.Save(tokenInfo, &info); err != nil {
		return err
	}

	ic.Log("Registered %s (%s) for mint %s", info.Name, info.Symbol, mint.Key)
	return nil
}
