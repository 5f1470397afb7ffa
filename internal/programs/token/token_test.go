package token

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fit-token/internal/domain"
	"fit-token/internal/programs/system"
	"fit-token/internal/runtime"
	"fit-token/internal/storage/memory"
)

type env struct {
	t     *testing.T
	rt    *runtime.Runtime
	store *memory.AccountStore
	nonce uint64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	registry, err := runtime.NewRegistry(system.New(), New())
	require.NoError(t, err)
	store := memory.NewAccountStore()
	rt, err := runtime.New(runtime.Options{Store: store, Registry: registry})
	require.NoError(t, err)
	return &env{t: t, rt: rt, store: store}
}

func (e *env) keypair() *domain.Keypair {
	e.t.Helper()
	kp, err := domain.NewKeypair()
	require.NoError(e.t, err)
	return kp
}

func (e *env) exec(ixs []runtime.Instruction, signers ...*domain.Keypair) error {
	e.t.Helper()
	e.nonce++
	tx, err := runtime.NewTransaction(ixs, e.nonce, signers...)
	require.NoError(e.t, err)
	_, err = e.rt.Execute(context.Background(), tx)
	return err
}

func (e *env) mint(key domain.Pubkey) domain.Mint {
	e.t.Helper()
	acct, err := e.store.Get(context.Background(), key)
	require.NoError(e.t, err)
	var m domain.Mint
	require.NoError(e.t, m.UnmarshalBinary(acct.Data))
	return m
}

func (e *env) balance(key domain.Pubkey) uint64 {
	e.t.Helper()
	acct, err := e.store.Get(context.Background(), key)
	require.NoError(e.t, err)
	var a domain.TokenAccount
	require.NoError(e.t, a.UnmarshalBinary(acct.Data))
	return a.Amount
}

// fixture creates a mint with authority and two balance records owned by alice and bob.
type fixture struct {
	authority, alice, bob  *domain.Keypair
	mint, aliceATA, bobATA domain.Pubkey
}

func (e *env) fixture() fixture {
	e.t.Helper()
	f := fixture{authority: e.keypair(), alice: e.keypair(), bob: e.keypair()}
	mintKp, aKp, bKp := e.keypair(), e.keypair(), e.keypair()
	f.mint, f.aliceATA, f.bobATA = mintKp.PublicKey(), aKp.PublicKey(), bKp.PublicKey()

	payer := f.authority
	require.NoError(e.t, e.exec(CreateMint(payer.PublicKey(), f.mint, f.authority.PublicKey(), 6), payer, mintKp))
	require.NoError(e.t, e.exec(CreateAccount(payer.PublicKey(), f.aliceATA, f.mint, f.alice.PublicKey()), payer, aKp))
	require.NoError(e.t, e.exec(CreateAccount(payer.PublicKey(), f.bobATA, f.mint, f.bob.PublicKey()), payer, bKp))
	return f
}

func TestMintToAndTransfer(t *testing.T) {
	e := newEnv(t)
	f := e.fixture()

	m := e.mint(f.mint)
	assert.True(t, m.IsInitialized)
	assert.Equal(t, uint8(6), m.Decimals)
	require.NotNil(t, m.MintAuthority)
	assert.Equal(t, f.authority.PublicKey(), *m.MintAuthority)

	require.NoError(t, e.exec([]runtime.Instruction{MintTo(f.mint, f.aliceATA, f.authority.PublicKey(), 1000)}, f.authority))
	assert.Equal(t, uint64(1000), e.balance(f.aliceATA))
	assert.Equal(t, uint64(1000), e.mint(f.mint).Supply)

	require.NoError(t, e.exec([]runtime.Instruction{Transfer(f.aliceATA, f.bobATA, f.alice.PublicKey(), 400)}, f.alice))
	assert.Equal(t, uint64(600), e.balance(f.aliceATA))
	assert.Equal(t, uint64(400), e.balance(f.bobATA))

	// Self-transfer keeps the balance
	require.NoError(t, e.exec([]runtime.Instruction{Transfer(f.aliceATA, f.aliceATA, f.alice.PublicKey(), 100)}, f.alice))
	assert.Equal(t, uint64(600), e.balance(f.aliceATA))
	assert.Equal(t, uint64(1000), e.mint(f.mint).Supply)
}

func TestTokenErrors(t *testing.T) {
	e := newEnv(t)
	f := e.fixture()
	require.NoError(t, e.exec([]runtime.Instruction{MintTo(f.mint, f.aliceATA, f.authority.PublicKey(), 100)}, f.authority))

	other := e.fixture()

	tests := []struct {
		name    string
		ixs     []runtime.Instruction
		signer  *domain.Keypair
		wantErr error
	}{
		{
			name:    "insufficient funds",
			ixs:     []runtime.Instruction{Transfer(f.aliceATA, f.bobATA, f.alice.PublicKey(), 101)},
			signer:  f.alice,
			wantErr: ErrInsufficientFunds,
		},
		{
			name:    "wrong owner",
			ixs:     []runtime.Instruction{Transfer(f.aliceATA, f.bobATA, f.bob.PublicKey(), 1)},
			signer:  f.bob,
			wantErr: ErrOwnerMismatch,
		},
		{
			name:    "mint mismatch on transfer",
			ixs:     []runtime.Instruction{Transfer(f.aliceATA, other.bobATA, f.alice.PublicKey(), 1)},
			signer:  f.alice,
			wantErr: ErrMintMismatch,
		},
		{
			name:    "mint mismatch on mint",
			ixs:     []runtime.Instruction{MintTo(f.mint, other.aliceATA, f.authority.PublicKey(), 1)},
			signer:  f.authority,
			wantErr: ErrMintMismatch,
		},
		{
			name:    "not mint authority",
			ixs:     []runtime.Instruction{MintTo(f.mint, f.aliceATA, f.alice.PublicKey(), 1)},
			signer:  f.alice,
			wantErr: ErrOwnerMismatch,
		},
		{
			name:    "supply overflow",
			ixs:     []runtime.Instruction{MintTo(f.mint, f.aliceATA, f.authority.PublicKey(), math.MaxUint64)},
			signer:  f.authority,
			wantErr: ErrOverflow,
		},
		{
			name:    "reinitialize mint",
			ixs:     []runtime.Instruction{InitializeMint2(f.mint, 0, f.alice.PublicKey(), nil)},
			signer:  f.alice,
			wantErr: ErrAlreadyInUse,
		},
		{
			name:    "empty data",
			ixs:     []runtime.Instruction{{ProgramID: ProgramID}},
			signer:  f.alice,
			wantErr: ErrInvalidInstruction,
		},
		{
			name:    "account not owned by token program",
			ixs:     []runtime.Instruction{Transfer(f.alice.PublicKey(), f.bobATA, f.alice.PublicKey(), 1)},
			signer:  f.alice,
			wantErr: runtime.ErrIncorrectProgramID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.exec(tt.ixs, tt.signer)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, uint64(100), e.balance(f.aliceATA))
	assert.Equal(t, uint64(0), e.balance(f.bobATA))
	assert.Equal(t, uint64(100), e.mint(f.mint).Supply)
}

func TestInitializeAccount_InvalidMint(t *testing.T) {
	e := newEnv(t)
	payer, acct := e.keypair(), e.keypair()

	// Mint key that was never allocated
	bogus := e.keypair().PublicKey()
	err := e.exec(CreateAccount(payer.PublicKey(), acct.PublicKey(), bogus, payer.PublicKey()), payer, acct)
	assert.ErrorIs(t, err, ErrInvalidMint)

	_, err = e.store.Get(context.Background(), acct.PublicKey())
	assert.Error(t, err)
}

func TestInitializeMint2_FreezeAuthority(t *testing.T) {
	e := newEnv(t)
	payer, mintKp := e.keypair(), e.keypair()
	freeze := e.keypair().PublicKey()

	ixs := []runtime.Instruction{
		system.CreateAccount(payer.PublicKey(), mintKp.PublicKey(), domain.MintLen, ProgramID),
		InitializeMint2(mintKp.PublicKey(), 9, payer.PublicKey(), &freeze),
	}
	require.NoError(t, e.exec(ixs, payer, mintKp))

	m := e.mint(mintKp.PublicKey())
	require.NotNil(t, m.FreezeAuthority)
	assert.Equal(t, freeze, *m.FreezeAuthority)
	assert.Equal(t, uint8(9), m.Decimals)
}
