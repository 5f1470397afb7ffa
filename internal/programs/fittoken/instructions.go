package fittoken

import (
	"fit-token/internal/borsh"
	"fit-token/internal/domain"
	"fit-token/internal/framework"
	"fit-token/internal/programs/system"
	"fit-token/internal/programs/token"
	"fit-token/internal/runtime"
)

// InitializeArgs are the arguments of the initialize instruction.
type InitializeArgs struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// MarshalBinary encodes the arguments without the discriminator.
func (a *InitializeArgs) MarshalBinary() ([]byte, error) {
	enc := borsh.NewEncoder(4 + len(a.Name) + 4 + len(a.Symbol) + 1)
	enc.WriteString(a.Name)
	enc.WriteString(a.Symbol)
	enc.WriteU8(a.Decimals)
	return enc.Bytes(), nil
}

// UnmarshalBinary decodes the arguments.
func (a *InitializeArgs) UnmarshalBinary(data []byte) error {
	dec := borsh.NewDecoder(data)
	a.Name = dec.ReadString()
	a.Symbol = dec.ReadString()
	a.Decimals = dec.ReadU8()
	return dec.Finish()
}

func decodeAmount(data []byte) (uint64, error) {
	dec := borsh.NewDecoder(data)
	amount := dec.ReadU64()
	return amount, dec.Finish()
}

func instructionData(name string, args []byte) []byte {
	disc := framework.InstructionDiscriminator(name)
	return append(disc[:], args...)
}

func amountData(name string, amount uint64) []byte {
	enc := borsh.NewEncoder(8)
	enc.WriteU64(amount)
	return instructionData(name, enc.Bytes())
}

// Initialize builds the registry initialization instruction.
// tokenInfo and authority must sign.
func Initialize(tokenInfo, mint, authority domain.Pubkey, name, symbol string, decimals uint8) runtime.Instruction {
	args := InitializeArgs{Name: name, Symbol: symbol, Decimals: decimals}
	raw, _ := args.MarshalBinary()

	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.WritableSigner(tokenInfo),
			runtime.Writable(mint),
			runtime.WritableSigner(authority),
			runtime.Readonly(system.ProgramID),
			runtime.Readonly(token.ProgramID),
		},
		Data: instructionData(InstructionInitialize, raw),
	}
}

// MintReward builds the reward minting instruction. A non-nil tokenInfo
// is appended for programs running with strict authority.
func MintReward(mint, destination, authority domain.Pubkey, amount uint64, tokenInfo *domain.Pubkey) runtime.Instruction {
	ix := runtime.Instruction{
		ProgramID: ProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.Writable(mint),
			runtime.Writable(destination),
			runtime.ReadonlySigner(authority),
			runtime.Readonly(token.ProgramID),
		},
		Data: amountData(InstructionMintReward, amount),
	}
	if tokenInfo != nil {
		ix.Accounts = append(ix.Accounts, runtime.Readonly(*tokenInfo))
	}
	return ix
}

// StakeTokens builds the stake deposit instruction. stakeInfo and user must sign.
func StakeTokens(stakeInfo, userToken, vault, user domain.Pubkey, amount uint64) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.WritableSigner(stakeInfo),
			runtime.Writable(userToken),
			runtime.Writable(vault),
			runtime.WritableSigner(user),
			runtime.Readonly(system.ProgramID),
			runtime.Readonly(token.ProgramID),
		},
		Data: amountData(InstructionStakeTokens, amount),
	}
}
