package rpcserver

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"

	"fit-token/internal/domain"
	"fit-token/internal/programs/fittoken"
	"fit-token/internal/programs/token"
	"fit-token/internal/runtime"
	"fit-token/internal/storage"
)

type method func(ctx context.Context, p params) (any, *Error)

func (s *Server) methods() map[string]method {
	return map[string]method{
		"sendTransaction":        s.sendTransaction,
		"getAccountInfo":         s.getAccountInfo,
		"getProgramAccounts":     s.getProgramAccounts,
		"getTokenAccountBalance": s.getTokenAccountBalance,
		"getTokenSupply":         s.getTokenSupply,
		"getTokenInfo":           s.getTokenInfo,
		"getStakeInfo":           s.getStakeInfo,
		"getTransaction":         s.getTransaction,
		"getSlot":                s.getSlot,
	}
}

// txRejections are transaction-level errors reported as rejected.
var txRejections = []error{
	runtime.ErrNoSigners,
	runtime.ErrSignatureCount,
	runtime.ErrSignatureFailure,
	runtime.ErrDuplicateSigner,
	runtime.ErrNoInstructions,
	runtime.ErrAlreadyProcessed,
	runtime.ErrTooManyAccountLocks,
	runtime.ErrMalformedTransaction,
}

func (s *Server) sendTransaction(ctx context.Context, p params) (any, *Error) {
	encoded, rpcErr := p.string(0, "transaction")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if _, rpcErr := p.encoding(1); rpcErr != nil {
		return nil, rpcErr
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, invalidParams("transaction is not valid base64")
	}
	var tx runtime.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, invalidParams("decode transaction: %v", err)
	}

	res, err := s.runtime.Execute(ctx, &tx)
	if res == nil {
		for _, sentinel := range txRejections {
			if errors.Is(err, sentinel) {
				return nil, &Error{Code: CodeTransactionRejected, Message: err.Error()}
			}
		}
		return nil, internalError(err)
	}
	if res.Err != nil {
		var index *uint8
		if i, ok := runtime.ErrorIndex(res.Err); ok {
			idx := uint8(i)
			index = &idx
		}
		var code *uint32
		if c, ok := runtime.ErrorCode(res.Err); ok {
			code = &c
		}
		return nil, &Error{
			Code:    CodeTransactionFailed,
			Message: "Transaction failed: " + res.Err.Error(),
			Data: SendFailure{
				Signature: res.Signature,
				Err:       transactionError(runtime.ErrorName(res.Err), index, code),
				Logs:      res.Logs,
			},
		}
	}
	return res.Signature, nil
}

// withContext wraps a value with the current slot.
func (s *Server) withContext(value any) any {
	return struct {
		Context Context `json:"context"`
		Value   any     `json:"value"`
	}{Context{Slot: s.runtime.Slot()}, value}
}

func (s *Server) getAccountInfo(ctx context.Context, p params) (any, *Error) {
	key, rpcErr := p.pubkey(0, "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if _, rpcErr := p.encoding(1); rpcErr != nil {
		return nil, rpcErr
	}

	acct, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return s.withContext(nil), nil
	}
	if err != nil {
		return nil, internalError(err)
	}
	return s.withContext(accountValue(acct)), nil
}

func (s *Server) getProgramAccounts(ctx context.Context, p params) (any, *Error) {
	owner, rpcErr := p.pubkey(0, "program id")
	if rpcErr != nil {
		return nil, rpcErr
	}

	accounts, err := s.store.GetByOwner(ctx, owner)
	if err != nil {
		return nil, internalError(err)
	}
	result := make([]KeyedAccount, 0, len(accounts))
	for _, a := range accounts {
		result = append(result, KeyedAccount{Pubkey: a.Key.String(), Account: accountValue(a)})
	}
	return result, nil
}

// loadOwned reads an account and requires it to belong to owner.
func (s *Server) loadOwned(ctx context.Context, key, owner domain.Pubkey, kind string) (*domain.Account, *Error) {
	acct, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, invalidParams("could not find %s %s", kind, key)
	}
	if err != nil {
		return nil, internalError(err)
	}
	if acct.Owner != owner {
		return nil, invalidParams("%s is not a %s", key, kind)
	}
	return acct, nil
}

func (s *Server) loadMint(ctx context.Context, key domain.Pubkey) (*domain.Mint, *Error) {
	acct, rpcErr := s.loadOwned(ctx, key, token.ProgramID, "mint")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var m domain.Mint
	if err := m.UnmarshalBinary(acct.Data); err != nil || !m.IsInitialized {
		return nil, invalidParams("%s is not a mint", key)
	}
	return &m, nil
}

func (s *Server) getTokenAccountBalance(ctx context.Context, p params) (any, *Error) {
	key, rpcErr := p.pubkey(0, "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}
	acct, rpcErr := s.loadOwned(ctx, key, token.ProgramID, "token account")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var ta domain.TokenAccount
	if err := ta.UnmarshalBinary(acct.Data); err != nil || !ta.IsInitialized() {
		return nil, invalidParams("%s is not a token account", key)
	}
	mint, rpcErr := s.loadMint(ctx, ta.Mint)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.withContext(tokenAmount(ta.Amount, mint.Decimals)), nil
}

func (s *Server) getTokenSupply(ctx context.Context, p params) (any, *Error) {
	key, rpcErr := p.pubkey(0, "mint")
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := s.loadMint(ctx, key)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.withContext(tokenAmount(mint.Supply, mint.Decimals)), nil
}

func tokenAmount(amount uint64, decimals uint8) TokenAmount {
	return TokenAmount{
		Amount:         strconv.FormatUint(amount, 10),
		Decimals:       decimals,
		UIAmountString: formatAmount(amount, decimals),
	}
}

func (s *Server) getTokenInfo(ctx context.Context, p params) (any, *Error) {
	key, rpcErr := p.pubkey(0, "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}
	acct, rpcErr := s.loadOwned(ctx, key, fittoken.ProgramID, "token registry")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var info domain.TokenInfo
	if err := info.UnmarshalBinary(acct.Data); err != nil {
		return nil, invalidParams("%s is not a token registry: %v", key, err)
	}
	return s.withContext(TokenInfoValue{
		Name:      info.Name,
		Symbol:    info.Symbol,
		Decimals:  info.Decimals,
		Authority: info.Authority.String(),
	}), nil
}

func (s *Server) getStakeInfo(ctx context.Context, p params) (any, *Error) {
	key, rpcErr := p.pubkey(0, "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}
	acct, rpcErr := s.loadOwned(ctx, key, fittoken.ProgramID, "stake record")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var stake domain.StakeInfo
	if err := stake.UnmarshalBinary(acct.Data); err != nil {
		return nil, invalidParams("%s is not a stake record: %v", key, err)
	}
	return s.withContext(StakeInfoValue{
		User:      stake.User.String(),
		Amount:    stake.Amount,
		Timestamp: stake.Timestamp,
	}), nil
}

func (s *Server) getTransaction(ctx context.Context, p params) (any, *Error) {
	sig, rpcErr := p.string(0, "signature")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if _, err := domain.ParseSignature(sig); err != nil {
		return nil, invalidParams("signature: %v", err)
	}
	if s.txLog == nil {
		return nil, &Error{Code: CodeInternalError, Message: "transaction history is disabled"}
	}

	rec, err := s.txLog.GetBySignature(ctx, sig)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internalError(err)
	}
	return transactionValue(rec), nil
}

func (s *Server) getSlot(_ context.Context, _ params) (any, *Error) {
	return s.runtime.Slot(), nil
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
