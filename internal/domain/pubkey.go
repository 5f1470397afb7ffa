package domain

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PubkeyLen is the size of an identity key in bytes.
const PubkeyLen = 32

// Seed limits for program-derived addresses.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

const pdaMarker = "ProgramDerivedAddress"

var (
	// ErrInvalidPubkey is returned when text or bytes do not form a 32-byte key.
	ErrInvalidPubkey = errors.New("invalid pubkey")

	// ErrInvalidSeeds is returned when PDA seeds exceed the allowed limits.
	ErrInvalidSeeds = errors.New("invalid seeds")

	// ErrAddressOnCurve is returned when derived bytes form a valid ed25519 point.
	ErrAddressOnCurve = errors.New("derived address is on curve")

	// ErrNoViableBump is returned when no bump produces an off-curve address.
	ErrNoViableBump = errors.New("unable to find a viable program address bump seed")
)

// Pubkey is a 32-byte identity key: an ed25519 public key, a program id or a
// program-derived address.
type Pubkey [PubkeyLen]byte

// String returns the base58 form of the key.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// IsZero reports whether all bytes are zero.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// Bytes returns a copy of the key bytes.
func (p Pubkey) Bytes() []byte {
	b := make([]byte, PubkeyLen)
	copy(b, p[:])
	return b
}

// IsOnCurve reports whether the key is a valid ed25519 point.
// Program-derived addresses are never on the curve.
func (p Pubkey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(p[:])
	return err == nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePubkey decodes a base58 key.
func ParsePubkey(s string) (Pubkey, error) {
	decoded, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("%w: %q: %v", ErrInvalidPubkey, s, err)
	}
	return PubkeyFromBytes(decoded)
}

// MustParsePubkey is like ParsePubkey but panics on error.
// Intended for well-known program ids.
func MustParsePubkey(s string) Pubkey {
	p, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PubkeyFromBytes copies a 32-byte slice into a Pubkey.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != PubkeyLen {
		return p, fmt.Errorf("%w: length %d", ErrInvalidPubkey, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// CreateProgramAddress derives an address from seeds and a program id.
// Formula: SHA256(seeds... | programID | "ProgramDerivedAddress").
// Fails if the result lies on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return Pubkey{}, fmt.Errorf("%w: %d seeds", ErrInvalidSeeds, len(seeds))
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return Pubkey{}, fmt.Errorf("%w: seed of %d bytes", ErrInvalidSeeds, len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var addr Pubkey
	copy(addr[:], h.Sum(nil))
	if addr.IsOnCurve() {
		return Pubkey{}, ErrAddressOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	if len(seeds)+1 > MaxSeeds {
		return Pubkey{}, 0, fmt.Errorf("%w: %d seeds", ErrInvalidSeeds, len(seeds))
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrAddressOnCurve) {
			return Pubkey{}, 0, err
		}
	}
	return Pubkey{}, 0, ErrNoViableBump
}
