package fittoken

import (
	"fit-token/internal/domain"
	"fit-token/internal/framework"
	"fit-token/internal/programs/token"
	"fit-token/internal/runtime"
)

// mintReward mints amount new units into a holder's balance.
//
// Accounts: [0] mint (writable), [1] destination (writable),
// [2] authority (signer), [3] token program, and in strict mode
// [4] token_info.
func (p *Program) mintReward(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, raw []byte) error {
	amount, err := decodeAmount(raw)
	if err != nil {
		return framework.ErrInstructionDidNotDeserialize
	}
	if err := framework.RequireAccounts(accounts, 4); err != nil {
		return err
	}
	mintInfo, dest, authority := accounts[0], accounts[1], accounts[2]

	err = checkAll(
		framework.Mut(mintInfo),
		framework.Mut(dest),
		framework.Signer(authority),
		framework.Program(accounts[3], token.ProgramID),
	)
	if err != nil {
		return err
	}
	mint, err := loadMint(mintInfo)
	if err != nil {
		return err
	}
	if _, err := loadTokenAccount(dest); err != nil {
		return err
	}

	if p.strict {
		if err := framework.RequireAccounts(accounts, 5); err != nil {
			return err
		}
		var info domain.TokenInfo
		if err := framework.Load(accounts[4], ProgramID, &info); err != nil {
			return err
		}
		// The registry must describe this mint's authority and the signer must be it.
		if info.Authority != authority.Key || mint.MintAuthority == nil || *mint.MintAuthority != info.Authority {
			return ErrUnauthorized
		}
	}

	if amount == 0 {
		return ErrInvalidAmount
	}

	if err := ic.Invoke(token.MintTo(mintInfo.Key, dest.Key, authority.Key, amount)); err != nil {
		return err
	}

	ic.Log("Minted %d to %s", amount, dest.Key)
	return nil
}
