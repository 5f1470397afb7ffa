// Package token implements the token-unit program: mints, balance accounts,
// minting and transfers, in the SPL token wire format.
package token

import (
	"fmt"
	"math/bits"

	"fit-token/internal/borsh"
	"fit-token/internal/domain"
	"fit-token/internal/runtime"
)

// ProgramID is the token program id.
var ProgramID = domain.MustParsePubkey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

// Instruction tags.
const (
	TagTransfer           uint8 = 3
	TagMintTo             uint8 = 7
	TagInitializeAccount3 uint8 = 18
	TagInitializeMint2    uint8 = 20
)

// Program is the token program.
type Program struct{}

// New creates the token program.
func New() *Program {
	return &Program{}
}

// ID returns ProgramID.
func (p *Program) ID() domain.Pubkey {
	return ProgramID
}

// Process dispatches a token instruction.
func (p *Program) Process(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, data []byte) error {
	if len(data) == 0 {
		return ErrInvalidInstruction
	}
	dec := borsh.NewDecoder(data[1:])

	switch data[0] {
	case TagInitializeMint2:
		decimals := dec.ReadU8()
		authority := readKey(dec)
		freeze := readOptionKey(dec)
		if dec.Finish() != nil {
			return ErrInvalidInstruction
		}
		ic.Log("Instruction: InitializeMint2")
		return initializeMint(accounts, decimals, authority, freeze)

	case TagInitializeAccount3:
		owner := readKey(dec)
		if dec.Finish() != nil {
			return ErrInvalidInstruction
		}
		ic.Log("Instruction: InitializeAccount3")
		return initializeAccount(accounts, owner)

	case TagTransfer:
		amount := dec.ReadU64()
		if dec.Finish() != nil {
			return ErrInvalidInstruction
		}
		ic.Log("Instruction: Transfer")
		return transfer(accounts, amount)

	case TagMintTo:
		amount := dec.ReadU64()
		if dec.Finish() != nil {
			return ErrInvalidInstruction
		}
		ic.Log("Instruction: MintTo")
		return mintTo(accounts, amount)

	default:
		return ErrInvalidInstruction
	}
}

// initializeMint sets up accounts[0] as a mint.
func initializeMint(accounts []*runtime.AccountInfo, decimals uint8, authority domain.Pubkey, freeze *domain.Pubkey) error {
	if len(accounts) < 1 {
		return runtime.ErrNotEnoughAccountKeys
	}
	info := accounts[0]

	var mint domain.Mint
	if err := unpack(info, &mint, domain.MintLen); err != nil {
		return err
	}
	if mint.IsInitialized {
		return ErrAlreadyInUse
	}

	mint = domain.Mint{
		MintAuthority:   &authority,
		Decimals:        decimals,
		IsInitialized:   true,
		FreezeAuthority: freeze,
	}
	return pack(info, &mint)
}

// initializeAccount sets up accounts[0] as a balance record of mint accounts[1].
func initializeAccount(accounts []*runtime.AccountInfo, owner domain.Pubkey) error {
	if len(accounts) < 2 {
		return runtime.ErrNotEnoughAccountKeys
	}
	info, mintInfo := accounts[0], accounts[1]

	var acct domain.TokenAccount
	if err := unpack(info, &acct, domain.TokenAccountLen); err != nil {
		return err
	}
	if acct.IsInitialized() {
		return ErrAlreadyInUse
	}

	var mint domain.Mint
	if err := unpack(mintInfo, &mint, domain.MintLen); err != nil || !mint.IsInitialized {
		return ErrInvalidMint
	}

	acct = domain.TokenAccount{
		Mint:  mintInfo.Key,
		Owner: owner,
		State: domain.TokenAccountInitialized,
	}
	return pack(info, &acct)
}

// transfer moves amount from accounts[0] to accounts[1], authorized by the
// source owner accounts[2].
func transfer(accounts []*runtime.AccountInfo, amount uint64) error {
	if len(accounts) < 3 {
		return runtime.ErrNotEnoughAccountKeys
	}
	srcInfo, dstInfo, authority := accounts[0], accounts[1], accounts[2]

	var src, dst domain.TokenAccount
	if err := unpackInitialized(srcInfo, &src); err != nil {
		return err
	}
	if err := unpackInitialized(dstInfo, &dst); err != nil {
		return err
	}
	if src.State == domain.TokenAccountFrozen || dst.State == domain.TokenAccountFrozen {
		return ErrAccountFrozen
	}
	if src.Amount < amount {
		return ErrInsufficientFunds
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}
	if err := validateOwner(src.Owner, authority); err != nil {
		return err
	}

	// Self-transfer: both views share one account, nothing moves.
	if srcInfo.Key == dstInfo.Key {
		return nil
	}

	total, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	src.Amount -= amount
	dst.Amount = total

	if err := pack(srcInfo, &src); err != nil {
		return err
	}
	return pack(dstInfo, &dst)
}

// mintTo creates amount new units of mint accounts[0] in accounts[1],
// authorized by the mint authority accounts[2].
func mintTo(accounts []*runtime.AccountInfo, amount uint64) error {
	if len(accounts) < 3 {
		return runtime.ErrNotEnoughAccountKeys
	}
	mintInfo, dstInfo, authority := accounts[0], accounts[1], accounts[2]

	var dst domain.TokenAccount
	if err := unpackInitialized(dstInfo, &dst); err != nil {
		return err
	}
	if dst.State == domain.TokenAccountFrozen {
		return ErrAccountFrozen
	}
	if dst.Mint != mintInfo.Key {
		return ErrMintMismatch
	}

	var mint domain.Mint
	if err := unpack(mintInfo, &mint, domain.MintLen); err != nil {
		return err
	}
	if !mint.IsInitialized {
		return ErrUninitializedState
	}
	if mint.MintAuthority == nil {
		return ErrFixedSupply
	}
	if err := validateOwner(*mint.MintAuthority, authority); err != nil {
		return err
	}

	supply, carry := bits.Add64(mint.Supply, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	balance, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	mint.Supply = supply
	dst.Amount = balance

	if err := pack(mintInfo, &mint); err != nil {
		return err
	}
	return pack(dstInfo, &dst)
}

func validateOwner(expected domain.Pubkey, authority *runtime.AccountInfo) error {
	if authority.Key != expected {
		return ErrOwnerMismatch
	}
	if !authority.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}
	return nil
}

type record interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

func unpack(info *runtime.AccountInfo, v record, size int) error {
	if info.Owner() != ProgramID {
		return runtime.ErrIncorrectProgramID
	}
	if len(info.Data()) != size {
		return fmt.Errorf("%w: %s", runtime.ErrInvalidAccountData, info.Key)
	}
	if err := v.UnmarshalBinary(info.Data()); err != nil {
		return fmt.Errorf("%w: %v", runtime.ErrInvalidAccountData, err)
	}
	return nil
}

func unpackInitialized(info *runtime.AccountInfo, acct *domain.TokenAccount) error {
	if err := unpack(info, acct, domain.TokenAccountLen); err != nil {
		return err
	}
	if !acct.IsInitialized() {
		return ErrUninitializedState
	}
	return nil
}

func pack(info *runtime.AccountInfo, v record) error {
	raw, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	copy(info.Data(), raw)
	return nil
}

func readKey(dec *borsh.Decoder) domain.Pubkey {
	var k domain.Pubkey
	copy(k[:], dec.ReadFixed(len(k)))
	return k
}

// readOptionKey reads the instruction form of an optional key: a one-byte
// tag, then the key only when present.
func readOptionKey(dec *borsh.Decoder) *domain.Pubkey {
	if !dec.ReadBool() {
		return nil
	}
	k := readKey(dec)
	return &k
}
