package domain

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"fit-token/internal/borsh"
)

// DiscriminatorLen is the size of the type tag that prefixes every program record.
const DiscriminatorLen = 8

// Fixed limits for TokenInfo strings. The stored form is a u32 length prefix
// followed by the bytes, so the reserved space is 4+limit per string.
const (
	MaxNameLen   = 32
	MaxSymbolLen = 8
)

// Record sizes in bytes, discriminator included.
const (
	TokenInfoSpace = DiscriminatorLen + (4 + MaxNameLen) + (4 + MaxSymbolLen) + 1 + PubkeyLen // 89
	StakeInfoSpace = DiscriminatorLen + PubkeyLen + 8 + 8                                     // 56
)

var (
	// ErrDiscriminatorMismatch is returned when record data carries another type tag.
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")

	// ErrDataTooSmall is returned when record data is shorter than its tag or
	// when an encoded record does not fit into allocated space.
	ErrDataTooSmall = errors.New("account data too small")
)

// Type tags: first 8 bytes of SHA256("account:<TypeName>").
var (
	TokenInfoDiscriminator = AccountDiscriminator("TokenInfo")
	StakeInfoDiscriminator = AccountDiscriminator("StakeInfo")
)

// AccountDiscriminator computes the type tag for a record type name.
func AccountDiscriminator(name string) [DiscriminatorLen]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [DiscriminatorLen]byte
	copy(d[:], sum[:DiscriminatorLen])
	return d
}

// TokenInfo describes the reward token. Created once, never mutated.
type TokenInfo struct {
	Name      string
	Symbol    string
	Decimals  uint8
	Authority Pubkey // only identity allowed to approve minting
}

// MarshalBinary encodes the record with its discriminator.
func (t *TokenInfo) MarshalBinary() ([]byte, error) {
	enc := borsh.NewEncoder(TokenInfoSpace)
	enc.WriteFixed(TokenInfoDiscriminator[:])
	enc.WriteString(t.Name)
	enc.WriteString(t.Symbol)
	enc.WriteU8(t.Decimals)
	enc.WriteFixed(t.Authority[:])
	return enc.Bytes(), nil
}

// UnmarshalBinary decodes a record. Bytes after the last field are padding.
func (t *TokenInfo) UnmarshalBinary(data []byte) error {
	dec, err := openRecord(data, TokenInfoDiscriminator)
	if err != nil {
		return err
	}
	t.Name = dec.ReadString()
	t.Symbol = dec.ReadString()
	t.Decimals = dec.ReadU8()
	copy(t.Authority[:], dec.ReadFixed(PubkeyLen))
	if err := dec.Err(); err != nil {
		return fmt.Errorf("decode token info: %w", err)
	}
	return nil
}

// StakeInfo records one deposit into the vault.
type StakeInfo struct {
	User      Pubkey
	Amount    uint64
	Timestamp int64 // ledger unix seconds at deposit
}

// MarshalBinary encodes the record with its discriminator.
func (s *StakeInfo) MarshalBinary() ([]byte, error) {
	enc := borsh.NewEncoder(StakeInfoSpace)
	enc.WriteFixed(StakeInfoDiscriminator[:])
	enc.WriteFixed(s.User[:])
	enc.WriteU64(s.Amount)
	enc.WriteI64(s.Timestamp)
	return enc.Bytes(), nil
}

// UnmarshalBinary decodes a record.
func (s *StakeInfo) UnmarshalBinary(data []byte) error {
	dec, err := openRecord(data, StakeInfoDiscriminator)
	if err != nil {
		return err
	}
	copy(s.User[:], dec.ReadFixed(PubkeyLen))
	s.Amount = dec.ReadU64()
	s.Timestamp = dec.ReadI64()
	if err := dec.Err(); err != nil {
		return fmt.Errorf("decode stake info: %w", err)
	}
	return nil
}

// openRecord checks the type tag and returns a decoder positioned after it.
func openRecord(data []byte, want [DiscriminatorLen]byte) (*borsh.Decoder, error) {
	if len(data) < DiscriminatorLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooSmall, len(data))
	}
	if [DiscriminatorLen]byte(data[:DiscriminatorLen]) != want {
		return nil, ErrDiscriminatorMismatch
	}
	return borsh.NewDecoder(data[DiscriminatorLen:]), nil
}
