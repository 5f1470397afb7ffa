package system

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fit-token/internal/domain"
	"fit-token/internal/runtime"
	"fit-token/internal/storage/memory"
)

func setup(t *testing.T) (*runtime.Runtime, *memory.AccountStore) {
	t.Helper()

	registry, err := runtime.NewRegistry(New())
	require.NoError(t, err)

	store := memory.NewAccountStore()
	rt, err := runtime.New(runtime.Options{Store: store, Registry: registry})
	require.NoError(t, err)
	return rt, store
}

func newKeypair(t *testing.T) *domain.Keypair {
	t.Helper()
	kp, err := domain.NewKeypair()
	require.NoError(t, err)
	return kp
}

func TestCreateAccount(t *testing.T) {
	rt, store := setup(t)
	payer, acct := newKeypair(t), newKeypair(t)
	owner := domain.Pubkey{1}

	tx, err := runtime.NewTransaction([]runtime.Instruction{
		CreateAccount(payer.PublicKey(), acct.PublicKey(), 16, owner),
	}, 0, payer, acct)
	require.NoError(t, err)

	_, err = rt.Execute(context.Background(), tx)
	require.NoError(t, err)

	got, err := store.Get(context.Background(), acct.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, owner, got.Owner)
	assert.Equal(t, make([]byte, 16), got.Data)

	// Second allocation of the same key
	tx, err = runtime.NewTransaction([]runtime.Instruction{
		CreateAccount(payer.PublicKey(), acct.PublicKey(), 8, domain.Pubkey{2}),
	}, 1, payer, acct)
	require.NoError(t, err)

	res, err := rt.Execute(context.Background(), tx)
	assert.ErrorIs(t, err, runtime.ErrAccountAlreadyInUse)
	require.NotNil(t, res)
	assert.Contains(t, res.Logs, "Program log: Create Account: account "+acct.PublicKey().String()+" already in use")

	got, err = store.Get(context.Background(), acct.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, owner, got.Owner)
	assert.Len(t, got.Data, 16)
}

func TestCreateAccount_Rejects(t *testing.T) {
	rt, _ := setup(t)
	payer, acct := newKeypair(t), newKeypair(t)

	tests := []struct {
		name    string
		ix      runtime.Instruction
		wantErr error
	}{
		{
			name:    "too large",
			ix:      CreateAccount(payer.PublicKey(), acct.PublicKey(), MaxAccountDataLen+1, domain.Pubkey{1}),
			wantErr: runtime.ErrInvalidArgument,
		},
		{
			name: "missing account",
			ix: runtime.Instruction{
				ProgramID: ProgramID,
				Accounts:  []runtime.AccountMeta{runtime.WritableSigner(payer.PublicKey())},
				Data:      CreateAccount(payer.PublicKey(), acct.PublicKey(), 1, domain.Pubkey{1}).Data,
			},
			wantErr: runtime.ErrNotEnoughAccountKeys,
		},
		{
			name: "new account not signing",
			ix: runtime.Instruction{
				ProgramID: ProgramID,
				Accounts:  []runtime.AccountMeta{runtime.WritableSigner(payer.PublicKey()), runtime.Writable(acct.PublicKey())},
				Data:      CreateAccount(payer.PublicKey(), acct.PublicKey(), 1, domain.Pubkey{1}).Data,
			},
			wantErr: runtime.ErrMissingRequiredSignature,
		},
		{
			name:    "unknown tag",
			ix:      runtime.Instruction{ProgramID: ProgramID, Data: []byte{9, 0, 0, 0}},
			wantErr: runtime.ErrInvalidInstructionData,
		},
		{
			name:    "truncated",
			ix:      runtime.Instruction{ProgramID: ProgramID, Data: []byte{0, 0, 0, 0, 1}},
			wantErr: runtime.ErrInvalidInstructionData,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := runtime.NewTransaction([]runtime.Instruction{tt.ix}, uint64(i), payer, acct)
			require.NoError(t, err)
			_, err = rt.Execute(context.Background(), tx)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
