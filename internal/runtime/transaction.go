package runtime

import (
	"fmt"

	"fit-token/internal/borsh"
	"fit-token/internal/domain"
)

// Limits enforced when decoding and executing transactions.
const (
	MaxSigners      = 8
	MaxInstructions = 16
	MaxAccountLocks = 64
	MaxDataLen      = 1232
)

// AccountMeta names one account of an instruction and the privileges the
// instruction requests for it.
type AccountMeta struct {
	Pubkey     domain.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Writable returns a writable, non-signer meta.
func Writable(key domain.Pubkey) AccountMeta {
	return AccountMeta{Pubkey: key, IsWritable: true}
}

// Readonly returns a read-only, non-signer meta.
func Readonly(key domain.Pubkey) AccountMeta {
	return AccountMeta{Pubkey: key}
}

// WritableSigner returns a writable signer meta.
func WritableSigner(key domain.Pubkey) AccountMeta {
	return AccountMeta{Pubkey: key, IsSigner: true, IsWritable: true}
}

// ReadonlySigner returns a read-only signer meta.
func ReadonlySigner(key domain.Pubkey) AccountMeta {
	return AccountMeta{Pubkey: key, IsSigner: true}
}

// Instruction is a single program call.
type Instruction struct {
	ProgramID domain.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// Message is the signed part of a transaction.
// Nonce distinguishes otherwise identical messages.
type Message struct {
	Signers      []domain.Pubkey
	Instructions []Instruction
	Nonce        uint64
}

// Transaction is a message plus one signature per signer, in signer order.
type Transaction struct {
	Message    Message
	Signatures []domain.Signature
}

// NewTransaction builds and signs a transaction. The order of keypairs
// defines the signer order; the first keypair's signature is the id.
func NewTransaction(instructions []Instruction, nonce uint64, signers ...*domain.Keypair) (*Transaction, error) {
	if len(signers) == 0 {
		return nil, ErrNoSigners
	}

	msg := Message{Instructions: instructions, Nonce: nonce}
	for _, kp := range signers {
		msg.Signers = append(msg.Signers, kp.PublicKey())
	}

	payload, err := msg.MarshalBinary()
	if err != nil {
		return nil, err
	}

	tx := &Transaction{Message: msg}
	for _, kp := range signers {
		tx.Signatures = append(tx.Signatures, kp.Sign(payload))
	}
	return tx, nil
}

// ID returns the transaction id, the base58 form of the first signature.
func (tx *Transaction) ID() string {
	if len(tx.Signatures) == 0 {
		return ""
	}
	return tx.Signatures[0].String()
}

// Verify checks signer uniqueness and every signature against the message.
func (tx *Transaction) Verify() error {
	msg := &tx.Message
	if len(msg.Signers) == 0 {
		return ErrNoSigners
	}
	if len(tx.Signatures) != len(msg.Signers) {
		return ErrSignatureCount
	}
	if len(msg.Instructions) == 0 {
		return ErrNoInstructions
	}

	seen := make(map[domain.Pubkey]struct{}, len(msg.Signers))
	for _, s := range msg.Signers {
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateSigner, s)
		}
		seen[s] = struct{}{}
	}

	payload, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	for i, sig := range tx.Signatures {
		if !sig.Verify(msg.Signers[i], payload) {
			return fmt.Errorf("%w: signer %s", ErrSignatureFailure, msg.Signers[i])
		}
	}
	return nil
}

// IsSigner reports whether key signed the message.
func (m *Message) IsSigner(key domain.Pubkey) bool {
	for _, s := range m.Signers {
		if s == key {
			return true
		}
	}
	return false
}

// AccountKeys returns every account referenced by the message, with the
// writable flag merged across instructions. Program ids are read-only.
func (m *Message) AccountKeys() map[domain.Pubkey]bool {
	keys := make(map[domain.Pubkey]bool)
	readonly := func(k domain.Pubkey) {
		if _, ok := keys[k]; !ok {
			keys[k] = false
		}
	}
	for _, s := range m.Signers {
		readonly(s)
	}
	for _, ins := range m.Instructions {
		readonly(ins.ProgramID)
		for _, meta := range ins.Accounts {
			keys[meta.Pubkey] = keys[meta.Pubkey] || meta.IsWritable
		}
	}
	return keys
}

// MarshalBinary encodes the message. These bytes are what signers sign.
func (m *Message) MarshalBinary() ([]byte, error) {
	if len(m.Signers) > MaxSigners {
		return nil, fmt.Errorf("%w: %d signers", ErrMalformedTransaction, len(m.Signers))
	}
	if len(m.Instructions) > MaxInstructions {
		return nil, fmt.Errorf("%w: %d instructions", ErrMalformedTransaction, len(m.Instructions))
	}

	enc := borsh.NewEncoder(256)
	enc.WriteU32(uint32(len(m.Signers)))
	for _, s := range m.Signers {
		enc.WriteFixed(s[:])
	}
	enc.WriteU32(uint32(len(m.Instructions)))
	for _, ins := range m.Instructions {
		if len(ins.Data) > MaxDataLen {
			return nil, fmt.Errorf("%w: instruction data %d bytes", ErrMalformedTransaction, len(ins.Data))
		}
		enc.WriteFixed(ins.ProgramID[:])
		enc.WriteU32(uint32(len(ins.Accounts)))
		for _, meta := range ins.Accounts {
			enc.WriteFixed(meta.Pubkey[:])
			enc.WriteBool(meta.IsSigner)
			enc.WriteBool(meta.IsWritable)
		}
		enc.WriteBytes(ins.Data)
	}
	enc.WriteU64(m.Nonce)
	return enc.Bytes(), nil
}

func decodeMessage(dec *borsh.Decoder) (Message, error) {
	var m Message

	n := dec.ReadU32()
	if n > MaxSigners {
		return m, fmt.Errorf("%w: %d signers", ErrMalformedTransaction, n)
	}
	for i := uint32(0); i < n && dec.Err() == nil; i++ {
		m.Signers = append(m.Signers, readKey(dec))
	}

	n = dec.ReadU32()
	if n > MaxInstructions {
		return m, fmt.Errorf("%w: %d instructions", ErrMalformedTransaction, n)
	}
	for i := uint32(0); i < n && dec.Err() == nil; i++ {
		ins := Instruction{ProgramID: readKey(dec)}
		metas := dec.ReadU32()
		if metas > MaxAccountLocks {
			return m, fmt.Errorf("%w: %d accounts", ErrMalformedTransaction, metas)
		}
		for j := uint32(0); j < metas && dec.Err() == nil; j++ {
			ins.Accounts = append(ins.Accounts, AccountMeta{
				Pubkey:     readKey(dec),
				IsSigner:   dec.ReadBool(),
				IsWritable: dec.ReadBool(),
			})
		}
		ins.Data = dec.ReadBytes()
		m.Instructions = append(m.Instructions, ins)
	}
	m.Nonce = dec.ReadU64()

	if err := dec.Err(); err != nil {
		return m, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	return m, nil
}

// MarshalBinary encodes signatures followed by the message.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, err
	}
	enc := borsh.NewEncoder(4 + len(tx.Signatures)*64 + len(msg))
	enc.WriteU32(uint32(len(tx.Signatures)))
	for _, sig := range tx.Signatures {
		enc.WriteFixed(sig[:])
	}
	enc.WriteFixed(msg)
	return enc.Bytes(), nil
}

// UnmarshalBinary decodes a transaction produced by MarshalBinary.
func (tx *Transaction) UnmarshalBinary(data []byte) error {
	dec := borsh.NewDecoder(data)

	n := dec.ReadU32()
	if n > MaxSigners {
		return fmt.Errorf("%w: %d signatures", ErrMalformedTransaction, n)
	}
	sigs := make([]domain.Signature, 0, n)
	for i := uint32(0); i < n && dec.Err() == nil; i++ {
		var sig domain.Signature
		copy(sig[:], dec.ReadFixed(len(sig)))
		sigs = append(sigs, sig)
	}

	msg, err := decodeMessage(dec)
	if err != nil {
		return err
	}
	if err := dec.Finish(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}

	tx.Signatures = sigs
	tx.Message = msg
	return nil
}

func readKey(dec *borsh.Decoder) domain.Pubkey {
	var k domain.Pubkey
	copy(k[:], dec.ReadFixed(len(k)))
	return k
}
