package rpcclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"fit-token/internal/domain"
	"fit-token/internal/programs/fittoken"
	"fit-token/internal/programs/system"
	"fit-token/internal/programs/token"
	"fit-token/internal/rpcserver"
	"fit-token/internal/runtime"
	"fit-token/internal/storage/memory"
)

// startNode runs a real node over in-memory storage.
func startNode(t *testing.T) *httptest.Server {
	t.Helper()
	registry, err := runtime.NewRegistry(system.New(), token.New(), fittoken.New(fittoken.Options{}))
	if err != nil {
		t.Fatal(err)
	}

	txLog := memory.NewTransactionLogStore()
	hub := rpcserver.NewHub(nil, nil)
	rt, err := runtime.New(runtime.Options{
		Store:     memory.NewAccountStore(),
		Registry:  registry,
		TxLog:     txLog,
		Publisher: hub,
	})
	if err != nil {
		t.Fatal(err)
	}

	srv, err := rpcserver.New(rpcserver.Options{Runtime: rt, TxLog: txLog, Hub: hub})
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return server
}

func newKeypair(t *testing.T) *domain.Keypair {
	t.Helper()
	kp, err := domain.NewKeypair()
	if err != nil {
		t.Fatal(err)
	}
	return kp
}

type sender struct {
	t      *testing.T
	client *HTTPClient
	nonce  uint64
}

func (s *sender) send(ixs []runtime.Instruction, signers ...*domain.Keypair) (string, error) {
	s.t.Helper()
	s.nonce++
	tx, err := runtime.NewTransaction(ixs, s.nonce, signers...)
	if err != nil {
		s.t.Fatal(err)
	}
	return s.client.SendTransaction(context.Background(), tx)
}

func (s *sender) mustSend(ixs []runtime.Instruction, signers ...*domain.Keypair) string {
	s.t.Helper()
	sig, err := s.send(ixs, signers...)
	if err != nil {
		s.t.Fatalf("send: %v", err)
	}
	return sig
}

func TestHTTPClient_AgainstNode(t *testing.T) {
	server := startNode(t)
	ctx := context.Background()
	client := NewHTTPClient(server.URL)
	s := &sender{t: t, client: client}

	authority, user := newKeypair(t), newKeypair(t)
	mintKp, infoKp, userTokenKp, vaultKp, stakeKp := newKeypair(t), newKeypair(t), newKeypair(t), newKeypair(t), newKeypair(t)
	mint := mintKp.PublicKey()
	vaultOwner, _, err := fittoken.VaultAddress(mint)
	if err != nil {
		t.Fatal(err)
	}

	s.mustSend(token.CreateMint(authority.PublicKey(), mint, authority.PublicKey(), 2), authority, mintKp)
	s.mustSend([]runtime.Instruction{fittoken.Initialize(infoKp.PublicKey(), mint, authority.PublicKey(), "RewardCoin", "RWD", 2)}, authority, infoKp)
	s.mustSend(token.CreateAccount(authority.PublicKey(), userTokenKp.PublicKey(), mint, user.PublicKey()), authority, userTokenKp)
	s.mustSend(token.CreateAccount(authority.PublicKey(), vaultKp.PublicKey(), mint, vaultOwner), authority, vaultKp)
	s.mustSend([]runtime.Instruction{fittoken.MintReward(mint, userTokenKp.PublicKey(), authority.PublicKey(), 150, nil)}, authority)
	sig := s.mustSend([]runtime.Instruction{fittoken.StakeTokens(stakeKp.PublicKey(), userTokenKp.PublicKey(), vaultKp.PublicKey(), user.PublicKey(), 30)}, user, stakeKp)

	info, err := client.GetTokenInfo(ctx, infoKp.PublicKey())
	if err != nil {
		t.Fatalf("GetTokenInfo: %v", err)
	}
	want := domain.TokenInfo{Name: "RewardCoin", Symbol: "RWD", Decimals: 2, Authority: authority.PublicKey()}
	if *info != want {
		t.Errorf("expected %+v, got %+v", want, *info)
	}

	balance, err := client.GetTokenAccountBalance(ctx, userTokenKp.PublicKey())
	if err != nil {
		t.Fatalf("GetTokenAccountBalance: %v", err)
	}
	if balance.Amount != 120 || balance.UIAmountString != "1.2" {
		t.Errorf("expected 120 (1.2), got %+v", balance)
	}

	supply, err := client.GetTokenSupply(ctx, mint)
	if err != nil {
		t.Fatalf("GetTokenSupply: %v", err)
	}
	if supply.Amount != 150 {
		t.Errorf("expected supply 150, got %d", supply.Amount)
	}

	stake, err := client.GetStakeInfo(ctx, stakeKp.PublicKey())
	if err != nil {
		t.Fatalf("GetStakeInfo: %v", err)
	}
	if stake.User != user.PublicKey() || stake.Amount != 30 {
		t.Errorf("unexpected stake %+v", stake)
	}

	tx, err := client.GetTransaction(ctx, sig)
	if err != nil || tx == nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx.Err != nil || tx.BlockTime != stake.Timestamp {
		t.Errorf("unexpected transaction %+v", tx)
	}

	acc, err := client.GetAccountInfo(ctx, stakeKp.PublicKey())
	if err != nil || acc == nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if acc.Owner != fittoken.ProgramID || len(acc.Data) != domain.StakeInfoSpace {
		t.Errorf("unexpected account owner %s, %d bytes", acc.Owner, len(acc.Data))
	}

	owned, err := client.GetProgramAccounts(ctx, fittoken.ProgramID)
	if err != nil {
		t.Fatalf("GetProgramAccounts: %v", err)
	}
	if len(owned) != 2 {
		t.Errorf("expected registry and stake record, got %d accounts", len(owned))
	}

	slot, err := client.GetSlot(ctx)
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if slot != 6 {
		t.Errorf("expected slot 6, got %d", slot)
	}

	// Zero stake fails with InvalidAmount and is still recorded.
	zeroKp := newKeypair(t)
	_, err = s.send([]runtime.Instruction{fittoken.StakeTokens(zeroKp.PublicKey(), userTokenKp.PublicKey(), vaultKp.PublicKey(), user.PublicKey(), 0)}, user, zeroKp)
	var txErr *TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("expected *TransactionError, got %v", err)
	}
	if code, ok := txErr.CustomCode(); !ok || code != 6000 {
		t.Errorf("expected custom code 6000, got %d (%v)", code, ok)
	}
	failed, err := client.GetTransaction(ctx, txErr.Signature)
	if err != nil || failed == nil {
		t.Fatalf("GetTransaction(failed): %v", err)
	}
	if failed.Err == nil {
		t.Error("expected recorded failure")
	}
}
