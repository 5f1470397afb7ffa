package domain

import (
	"fmt"

	"fit-token/internal/borsh"
)

// SPL token layout sizes.
const (
	MintLen         = 82
	TokenAccountLen = 165
)

// TokenAccountState is the lifecycle state of a balance record.
type TokenAccountState uint8

const (
	TokenAccountUninitialized TokenAccountState = iota
	TokenAccountInitialized
	TokenAccountFrozen
)

// Mint is a token-unit descriptor.
// Layout: mint_authority COption<Pubkey>(36) | supply(8) | decimals(1) |
// is_initialized(1) | freeze_authority COption<Pubkey>(36).
type Mint struct {
	MintAuthority   *Pubkey // nil for fixed supply
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *Pubkey
}

// MarshalBinary encodes the mint into its 82-byte layout.
func (m *Mint) MarshalBinary() ([]byte, error) {
	enc := borsh.NewEncoder(MintLen)
	writeOptionalKey(enc, m.MintAuthority)
	enc.WriteU64(m.Supply)
	enc.WriteU8(m.Decimals)
	enc.WriteBool(m.IsInitialized)
	writeOptionalKey(enc, m.FreezeAuthority)
	return enc.Bytes(), nil
}

// UnmarshalBinary decodes the 82-byte layout.
func (m *Mint) UnmarshalBinary(data []byte) error {
	if len(data) != MintLen {
		return fmt.Errorf("%w: mint data %d bytes, want %d", ErrDataTooSmall, len(data), MintLen)
	}
	dec := borsh.NewDecoder(data)
	m.MintAuthority = readOptionalKey(dec)
	m.Supply = dec.ReadU64()
	m.Decimals = dec.ReadU8()
	m.IsInitialized = dec.ReadBool()
	m.FreezeAuthority = readOptionalKey(dec)
	if err := dec.Finish(); err != nil {
		return fmt.Errorf("decode mint: %w", err)
	}
	return nil
}

// TokenAccount is a holder's balance of one mint.
// Layout: mint(32) | owner(32) | amount(8) | delegate COption<Pubkey>(36) |
// state(1) | is_native COption<u64>(12) | delegated_amount(8) |
// close_authority COption<Pubkey>(36).
type TokenAccount struct {
	Mint            Pubkey
	Owner           Pubkey
	Amount          uint64
	Delegate        *Pubkey
	State           TokenAccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *Pubkey
}

// IsInitialized reports whether the account has been set up.
func (a *TokenAccount) IsInitialized() bool {
	return a.State != TokenAccountUninitialized
}

// MarshalBinary encodes the account into its 165-byte layout.
func (a *TokenAccount) MarshalBinary() ([]byte, error) {
	enc := borsh.NewEncoder(TokenAccountLen)
	enc.WriteFixed(a.Mint[:])
	enc.WriteFixed(a.Owner[:])
	enc.WriteU64(a.Amount)
	writeOptionalKey(enc, a.Delegate)
	enc.WriteU8(uint8(a.State))

	native := borsh.NewEncoder(8)
	if a.IsNative != nil {
		native.WriteU64(*a.IsNative)
	} else {
		native.WriteU64(0)
	}
	enc.WriteOption(a.IsNative != nil, native.Bytes())

	enc.WriteU64(a.DelegatedAmount)
	writeOptionalKey(enc, a.CloseAuthority)
	return enc.Bytes(), nil
}

// UnmarshalBinary decodes the 165-byte layout.
func (a *TokenAccount) UnmarshalBinary(data []byte) error {
	if len(data) != TokenAccountLen {
		return fmt.Errorf("%w: token account data %d bytes, want %d", ErrDataTooSmall, len(data), TokenAccountLen)
	}
	dec := borsh.NewDecoder(data)
	copy(a.Mint[:], dec.ReadFixed(PubkeyLen))
	copy(a.Owner[:], dec.ReadFixed(PubkeyLen))
	a.Amount = dec.ReadU64()
	a.Delegate = readOptionalKey(dec)
	a.State = TokenAccountState(dec.ReadU8())

	a.IsNative = nil
	if ok, raw := dec.ReadOption(8); ok {
		v := borsh.NewDecoder(raw).ReadU64()
		a.IsNative = &v
	}

	a.DelegatedAmount = dec.ReadU64()
	a.CloseAuthority = readOptionalKey(dec)
	if err := dec.Finish(); err != nil {
		return fmt.Errorf("decode token account: %w", err)
	}
	if a.State > TokenAccountFrozen {
		return fmt.Errorf("decode token account: invalid state %d", a.State)
	}
	return nil
}

func writeOptionalKey(enc *borsh.Encoder, key *Pubkey) {
	if key == nil {
		enc.WriteOption(false, make([]byte, PubkeyLen))
		return
	}
	enc.WriteOption(true, key[:])
}

func readOptionalKey(dec *borsh.Decoder) *Pubkey {
	ok, raw := dec.ReadOption(PubkeyLen)
	if !ok {
		return nil
	}
	var p Pubkey
	copy(p[:], raw)
	return &p
}
