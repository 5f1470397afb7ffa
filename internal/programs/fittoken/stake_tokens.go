package fittoken

import (
	"fit-token/internal/domain"
	"fit-token/internal/framework"
	"fit-token/internal/programs/system"
	"fit-token/internal/programs/token"
	"fit-token/internal/runtime"
)

// stakeTokens records a deposit and moves it into the vault.
//
// Accounts: [0] stake_info (writable, signer, new), [1] user token account
// (writable), [2] vault token account (writable), [3] user (writable,
// signer, payer), [4] system program, [5] token program.
//
// The record is written before the transfer; a failed transfer rolls both back.
func (p *Program) stakeTokens(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, raw []byte) error {
	amount, err := decodeAmount(raw)
	if err != nil {
		return framework.ErrInstructionDidNotDeserialize
	}
	if err := framework.RequireAccounts(accounts, 6); err != nil {
		return err
	}
	stakeInfo, userToken, vault, user := accounts[0], accounts[1], accounts[2], accounts[3]

	err = checkAll(
		framework.Signer(stakeInfo),
		framework.Mut(stakeInfo),
		framework.Mut(userToken),
		framework.Mut(vault),
		framework.Signer(user),
		framework.Mut(user),
		framework.Program(accounts[4], system.ProgramID),
		framework.Program(accounts[5], token.ProgramID),
	)
	if err != nil {
		return err
	}
	// A self-transfer moves nothing, which would leave the record unbacked.
	if userToken.Key == vault.Key {
		return ErrVaultIsSource
	}
	if _, err := loadTokenAccount(userToken); err != nil {
		return err
	}
	if _, err := loadTokenAccount(vault); err != nil {
		return err
	}

	if amount == 0 {
		return ErrInvalidAmount
	}

	if err := framework.Init(ic, user, stakeInfo, domain.StakeInfoSpace); err != nil {
		return err
	}

	record := domain.StakeInfo{
		User:      user.Key,
		Amount:    amount,
		Timestamp: ic.Clock().UnixTimestamp,
	}
	if err := framework.Save(stakeInfo, &record); err != nil {
		return err
	}

	if err := ic.Invoke(token.Transfer(userToken.Key, vault.Key, user.Key, amount)); err != nil {
		return err
	}

	ic.Log("Staked %d from %s at %d", amount, user.Key, record.Timestamp)
	return nil
}
