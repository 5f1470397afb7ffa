package token

import (
	"fit-token/internal/borsh"
	"fit-token/internal/domain"
	"fit-token/internal/programs/system"
	"fit-token/internal/runtime"
)

// InitializeMint2 builds an instruction that sets up an allocated mint.
func InitializeMint2(mint domain.Pubkey, decimals uint8, mintAuthority domain.Pubkey, freezeAuthority *domain.Pubkey) runtime.Instruction {
	enc := borsh.NewEncoder(67)
	enc.WriteU8(TagInitializeMint2)
	enc.WriteU8(decimals)
	enc.WriteFixed(mintAuthority[:])
	enc.WriteBool(freezeAuthority != nil)
	if freezeAuthority != nil {
		enc.WriteFixed(freezeAuthority[:])
	}

	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts:  []runtime.AccountMeta{runtime.Writable(mint)},
		Data:      enc.Bytes(),
	}
}

// InitializeAccount3 builds an instruction that sets up an allocated
// balance record for owner.
func InitializeAccount3(account, mint, owner domain.Pubkey) runtime.Instruction {
	enc := borsh.NewEncoder(33)
	enc.WriteU8(TagInitializeAccount3)
	enc.WriteFixed(owner[:])

	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.Writable(account),
			runtime.Readonly(mint),
		},
		Data: enc.Bytes(),
	}
}

// Transfer builds a transfer instruction signed by the source owner.
func Transfer(source, destination, owner domain.Pubkey, amount uint64) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.Writable(source),
			runtime.Writable(destination),
			runtime.ReadonlySigner(owner),
		},
		Data: amountData(TagTransfer, amount),
	}
}

// MintTo builds a mint instruction signed by the mint authority.
func MintTo(mint, destination, authority domain.Pubkey, amount uint64) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.Writable(mint),
			runtime.Writable(destination),
			runtime.ReadonlySigner(authority),
		},
		Data: amountData(TagMintTo, amount),
	}
}

func amountData(tag uint8, amount uint64) []byte {
	enc := borsh.NewEncoder(9)
	enc.WriteU8(tag)
	enc.WriteU64(amount)
	return enc.Bytes()
}

// CreateMint returns the instructions that allocate and initialize a mint
// with no freeze authority. Both payer and mint must sign.
func CreateMint(payer, mint, authority domain.Pubkey, decimals uint8) []runtime.Instruction {
	return []runtime.Instruction{
		system.CreateAccount(payer, mint, domain.MintLen, ProgramID),
		InitializeMint2(mint, decimals, authority, nil),
	}
}

// CreateAccount returns the instructions that allocate and initialize a
// balance record of mint held by owner. Both payer and account must sign.
func CreateAccount(payer, account, mint, owner domain.Pubkey) []runtime.Instruction {
	return []runtime.Instruction{
		system.CreateAccount(payer, account, domain.TokenAccountLen, ProgramID),
		InitializeAccount3(account, mint, owner),
	}
}
