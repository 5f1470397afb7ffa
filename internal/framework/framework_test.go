package framework

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fit-token/internal/domain"
	"fit-token/internal/programs/system"
	"fit-token/internal/runtime"
	"fit-token/internal/storage/memory"
)

func TestInstructionDiscriminator(t *testing.T) {
	tests := []struct {
		name string
		want [8]byte
	}{
		{"initialize", [8]byte{175, 175, 109, 31, 13, 152, 155, 237}},
		{"mint_reward", [8]byte{172, 211, 182, 208, 125, 37, 188, 252}},
		{"stake_tokens", [8]byte{136, 126, 91, 162, 40, 131, 13, 127}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InstructionDiscriminator(tt.name))
		})
	}
}

func TestConstraints(t *testing.T) {
	owner := domain.Pubkey{7}
	key := domain.Pubkey{1}
	existing := &domain.Account{Key: key, Owner: owner, Data: []byte{0}}

	signerMut := runtime.NewAccountInfo(key, true, true, existing)
	plain := runtime.NewAccountInfo(key, false, false, existing)
	missing := runtime.NewAccountInfo(domain.Pubkey{2}, false, false, nil)

	assert.NoError(t, Signer(signerMut))
	assert.ErrorIs(t, Signer(plain), ErrAccountNotSigner)

	assert.NoError(t, Mut(signerMut))
	assert.ErrorIs(t, Mut(plain), ErrAccountNotMutable)

	assert.NoError(t, Program(plain, key))
	assert.ErrorIs(t, Program(plain, owner), ErrInvalidProgramID)

	assert.NoError(t, Owned(plain, owner))
	assert.ErrorIs(t, Owned(plain, key), ErrAccountOwnedByWrongProgram)
	assert.ErrorIs(t, Owned(missing, owner), ErrAccountNotInitialized)

	assert.NoError(t, RequireAccounts([]*runtime.AccountInfo{plain}, 1))
	assert.ErrorIs(t, RequireAccounts([]*runtime.AccountInfo{plain}, 2), ErrAccountNotEnoughKeys)

	code, ok := runtime.ErrorCode(Signer(plain))
	require.True(t, ok)
	assert.Equal(t, uint32(3010), code)
}

func TestLoadAndSave(t *testing.T) {
	program := domain.Pubkey{9}
	key := domain.Pubkey{1}
	info := runtime.NewAccountInfo(key, false, true, &domain.Account{
		Key:   key,
		Owner: program,
		Data:  make([]byte, domain.TokenInfoSpace),
	})

	// Blank data carries no discriminator
	var ti domain.TokenInfo
	assert.ErrorIs(t, Load(info, program, &ti), ErrAccountDiscriminatorMismatch)

	want := domain.TokenInfo{Name: "Fit", Symbol: "FIT", Decimals: 6, Authority: domain.Pubkey{3}}
	require.NoError(t, Save(info, &want))
	require.NoError(t, Load(info, program, &ti))
	assert.Equal(t, want, ti)

	// Wrong record type
	var si domain.StakeInfo
	assert.ErrorIs(t, Load(info, program, &si), ErrAccountDiscriminatorMismatch)

	// Wrong owner
	assert.ErrorIs(t, Load(info, domain.Pubkey{8}, &ti), ErrAccountOwnedByWrongProgram)

	// Does not fit
	small := runtime.NewAccountInfo(key, false, true, &domain.Account{Key: key, Owner: program, Data: make([]byte, 10)})
	assert.ErrorIs(t, Save(small, &want), ErrAccountDidNotSerialize)
}

// routed is a program built on Router and Init.
type routed struct {
	id     domain.Pubkey
	router *Router
}

func (p *routed) ID() domain.Pubkey { return p.id }

func (p *routed) Process(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, data []byte) error {
	return p.router.Dispatch(ic, accounts, data)
}

func TestRouterAndInit(t *testing.T) {
	prog := &routed{id: domain.Pubkey{0xAA}, router: NewRouter()}
	prog.router.Handle("make_record", "MakeRecord", func(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, args []byte) error {
		if err := RequireAccounts(accounts, 3); err != nil {
			return err
		}
		if len(args) != 1 {
			return ErrInstructionDidNotDeserialize
		}
		if err := Init(ic, accounts[1], accounts[0], 4); err != nil {
			return err
		}
		accounts[0].Data()[0] = args[0]
		return nil
	})

	registry, err := runtime.NewRegistry(system.New(), prog)
	require.NoError(t, err)
	store := memory.NewAccountStore()
	rt, err := runtime.New(runtime.Options{Store: store, Registry: registry})
	require.NoError(t, err)

	payer, record := newKeypair(t), newKeypair(t)
	disc := InstructionDiscriminator("make_record")
	ix := func(data []byte) runtime.Instruction {
		return runtime.Instruction{
			ProgramID: prog.id,
			Accounts: []runtime.AccountMeta{
				runtime.WritableSigner(record.PublicKey()),
				runtime.WritableSigner(payer.PublicKey()),
				runtime.Readonly(system.ProgramID),
			},
			Data: data,
		}
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"missing discriminator", []byte{1, 2}, ErrInstructionMissing},
		{"unknown discriminator", make([]byte, 8), ErrInstructionFallbackNotFound},
		{"bad args", disc[:], ErrInstructionDidNotDeserialize},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := runtime.NewTransaction([]runtime.Instruction{ix(tt.data)}, uint64(i), payer, record)
			require.NoError(t, err)
			_, err = rt.Execute(context.Background(), tx)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	tx, err := runtime.NewTransaction([]runtime.Instruction{ix(append(disc[:], 42))}, 99, payer, record)
	require.NoError(t, err)
	res, err := rt.Execute(context.Background(), tx)
	require.NoError(t, err)
	assert.Contains(t, res.Logs, "Program log: Instruction: MakeRecord")

	acct, err := store.Get(context.Background(), record.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, prog.id, acct.Owner)
	assert.Equal(t, []byte{42, 0, 0, 0}, acct.Data)
}

func newKeypair(t *testing.T) *domain.Keypair {
	t.Helper()
	kp, err := domain.NewKeypair()
	require.NoError(t, err)
	return kp
}
