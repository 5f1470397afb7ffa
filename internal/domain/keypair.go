package domain

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mr-tron/base58"
)

// SignatureLen is the size of an ed25519 signature.
const SignatureLen = ed25519.SignatureSize

// Signature is an ed25519 signature over a transaction message.
type Signature [SignatureLen]byte

// String returns the base58 form of the signature.
func (s Signature) String() string {
	return base58.Encode(s[:])
}

// ParseSignature decodes a base58 signature.
func ParseSignature(str string) (Signature, error) {
	var sig Signature
	decoded, err := base58.Decode(str)
	if err != nil {
		return sig, fmt.Errorf("decode signature: %w", err)
	}
	if len(decoded) != SignatureLen {
		return sig, fmt.Errorf("signature length %d, want %d", len(decoded), SignatureLen)
	}
	copy(sig[:], decoded)
	return sig, nil
}

// Verify checks the signature against a public key and message.
func (s Signature) Verify(pub Pubkey, msg []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, s[:])
}

// Keypair holds an ed25519 signing key.
type Keypair struct {
	priv ed25519.PrivateKey
}

// NewKeypair generates a random keypair.
func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromSeed builds a deterministic keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed length %d, want %d", len(seed), ed25519.SeedSize)
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// KeypairFromBytes parses the 64-byte secret||public form.
func KeypairFromBytes(b []byte) (*Keypair, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair length %d, want %d", len(b), ed25519.PrivateKeySize)
	}
	kp, err := KeypairFromSeed(b[:ed25519.SeedSize])
	if err != nil {
		return nil, err
	}
	if !kp.priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(b[ed25519.SeedSize:])) {
		return nil, fmt.Errorf("keypair public half does not match secret")
	}
	return kp, nil
}

// PublicKey returns the public identity key.
func (k *Keypair) PublicKey() Pubkey {
	var p Pubkey
	copy(p[:], k.priv.Public().(ed25519.PublicKey))
	return p
}

// Sign signs msg.
func (k *Keypair) Sign(msg []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(k.priv, msg))
	return sig
}

// Bytes returns the 64-byte secret||public form.
func (k *Keypair) Bytes() []byte {
	b := make([]byte, ed25519.PrivateKeySize)
	copy(b, k.priv)
	return b
}

// LoadKeypairFile reads a keypair stored as a JSON array of 64 bytes.
func LoadKeypairFile(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("parse keypair file %s: %w", path, err)
	}
	raw := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("parse keypair file %s: byte %d out of range", path, i)
		}
		raw[i] = byte(v)
	}
	return KeypairFromBytes(raw)
}

// SaveKeypairFile writes the keypair as a JSON array of 64 bytes.
func SaveKeypairFile(path string, k *Keypair) error {
	b := k.Bytes()
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("marshal keypair: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write keypair file: %w", err)
	}
	return nil
}
