// Package rpcclient talks to a fit-token node over JSON-RPC and
// WebSocket log subscriptions.
package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"

	"fit-token/internal/domain"
	"fit-token/internal/runtime"
)

// RPCClient defines the node JSON-RPC interface.
type RPCClient interface {
	// SendTransaction submits a signed transaction and returns its signature.
	SendTransaction(ctx context.Context, tx *runtime.Transaction) (string, error)

	// GetAccountInfo retrieves an account. Returns nil if not found.
	GetAccountInfo(ctx context.Context, key domain.Pubkey) (*domain.Account, error)

	// GetTokenAccountBalance retrieves the balance of a token account.
	GetTokenAccountBalance(ctx context.Context, key domain.Pubkey) (*TokenAmount, error)

	// GetTokenInfo retrieves a token registry record.
	GetTokenInfo(ctx context.Context, key domain.Pubkey) (*domain.TokenInfo, error)

	// GetStakeInfo retrieves a stake record.
	GetStakeInfo(ctx context.Context, key domain.Pubkey) (*domain.StakeInfo, error)

	// GetTransaction retrieves an executed transaction. Returns nil if not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (uint64, error)
}

// TokenAmount is a raw amount with its mint decimals.
type TokenAmount struct {
	Amount         uint64
	Decimals       uint8
	UIAmountString string
}

// Transaction is an executed transaction as reported by the node.
type Transaction struct {
	Slot        uint64
	Signature   string
	BlockTime   int64
	Err         interface{} // nil on success
	Logs        []string
	AccountKeys []string
}

// RPCError is a JSON-RPC error returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// TransactionError reports a transaction that executed and failed.
// Nothing it did was committed.
type TransactionError struct {
	Signature string
	Err       interface{} // e.g. {"InstructionError":[0,{"Custom":6000}]}
	Logs      []string
	Message   string
}

func (e *TransactionError) Error() string {
	return e.Message
}

// CustomCode returns the program error code of an InstructionError, if any.
func (e *TransactionError) CustomCode() (uint32, bool) {
	m, ok := e.Err.(map[string]interface{})
	if !ok {
		return 0, false
	}
	pair, ok := m["InstructionError"].([]interface{})
	if !ok || len(pair) != 2 {
		return 0, false
	}
	inner, ok := pair[1].(map[string]interface{})
	if !ok {
		return 0, false
	}
	code, ok := inner["Custom"].(float64)
	if !ok {
		return 0, false
	}
	return uint32(code), true
}
