package rpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"fit-token/internal/domain"
	"fit-token/internal/runtime"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// codeTransactionFailed mirrors the node's failed-transaction error code.
const codeTransactionFailed = -32002

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new node RPC client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Transport failures, 429 and 5xx are retried; RPC errors are not.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// SendTransaction submits tx. A transaction that executed and failed is
// returned as *TransactionError.
func (c *HTTPClient) SendTransaction(ctx context.Context, tx *runtime.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}

	params := []interface{}{
		base64.StdEncoding.EncodeToString(raw),
		map[string]interface{}{"encoding": "base64"},
	}

	var sig string
	err = c.call(ctx, "sendTransaction", params, &sig)

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == codeTransactionFailed {
		txErr := &TransactionError{Message: rpcErr.Message}
		var data struct {
			Signature string      `json:"signature"`
			Err       interface{} `json:"err"`
			Logs      []string    `json:"logs"`
		}
		if json.Unmarshal(rpcErr.Data, &data) == nil {
			txErr.Signature, txErr.Err, txErr.Logs = data.Signature, data.Err, data.Logs
		}
		return "", txErr
	}
	if err != nil {
		return "", err
	}
	return sig, nil
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if account not found.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, key domain.Pubkey) (*domain.Account, error) {
	params := []interface{}{
		key.String(),
		map[string]interface{}{"encoding": "base64"},
	}

	var result struct {
		Value *accountValue `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, nil
	}
	return result.Value.toAccount(key)
}

// GetProgramAccounts retrieves every account owned by program, ordered by key.
func (c *HTTPClient) GetProgramAccounts(ctx context.Context, program domain.Pubkey) ([]*domain.Account, error) {
	var result []struct {
		Pubkey  string       `json:"pubkey"`
		Account accountValue `json:"account"`
	}
	if err := c.call(ctx, "getProgramAccounts", []interface{}{program.String()}, &result); err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, 0, len(result))
	for _, r := range result {
		key, err := domain.ParsePubkey(r.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("account key: %w", err)
		}
		a, err := r.Account.toAccount(key)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

type accountValue struct {
	Owner string    `json:"owner"`
	Data  [2]string `json:"data"` // [base64_data, encoding]
}

func (v *accountValue) toAccount(key domain.Pubkey) (*domain.Account, error) {
	owner, err := domain.ParsePubkey(v.Owner)
	if err != nil {
		return nil, fmt.Errorf("account owner: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(v.Data[0])
	if err != nil {
		return nil, fmt.Errorf("account data: %w", err)
	}
	return &domain.Account{Key: key, Owner: owner, Data: data}, nil
}

// GetTokenAccountBalance retrieves the balance of a token account.
func (c *HTTPClient) GetTokenAccountBalance(ctx context.Context, key domain.Pubkey) (*TokenAmount, error) {
	return c.tokenAmount(ctx, "getTokenAccountBalance", key)
}

// GetTokenSupply retrieves the supply of a mint.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint domain.Pubkey) (*TokenAmount, error) {
	return c.tokenAmount(ctx, "getTokenSupply", mint)
}

func (c *HTTPClient) tokenAmount(ctx context.Context, method string, key domain.Pubkey) (*TokenAmount, error) {
	var result struct {
		Value struct {
			Amount         string `json:"amount"`
			Decimals       uint8  `json:"decimals"`
			UIAmountString string `json:"uiAmountString"`
		} `json:"value"`
	}
	if err := c.call(ctx, method, []interface{}{key.String()}, &result); err != nil {
		return nil, err
	}

	amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return &TokenAmount{
		Amount:         amount,
		Decimals:       result.Value.Decimals,
		UIAmountString: result.Value.UIAmountString,
	}, nil
}

// GetTokenInfo retrieves a token registry record.
func (c *HTTPClient) GetTokenInfo(ctx context.Context, key domain.Pubkey) (*domain.TokenInfo, error) {
	var result struct {
		Value struct {
			Name      string `json:"name"`
			Symbol    string `json:"symbol"`
			Decimals  uint8  `json:"decimals"`
			Authority string `json:"authority"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenInfo", []interface{}{key.String()}, &result); err != nil {
		return nil, err
	}

	authority, err := domain.ParsePubkey(result.Value.Authority)
	if err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}
	return &domain.TokenInfo{
		Name:      result.Value.Name,
		Symbol:    result.Value.Symbol,
		Decimals:  result.Value.Decimals,
		Authority: authority,
	}, nil
}

// GetStakeInfo retrieves a stake record.
func (c *HTTPClient) GetStakeInfo(ctx context.Context, key domain.Pubkey) (*domain.StakeInfo, error) {
	var result struct {
		Value struct {
			User      string `json:"user"`
			Amount    uint64 `json:"amount"`
			Timestamp int64  `json:"timestamp"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getStakeInfo", []interface{}{key.String()}, &result); err != nil {
		return nil, err
	}

	user, err := domain.ParsePubkey(result.Value.User)
	if err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	return &domain.StakeInfo{User: user, Amount: result.Value.Amount, Timestamp: result.Value.Timestamp}, nil
}

// GetTransaction retrieves a transaction by signature.
// Returns nil if the node has no record of it.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	var result *getTransactionResult
	if err := c.call(ctx, "getTransaction", []interface{}{signature}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	return &Transaction{
		Slot:        result.Slot,
		Signature:   signature,
		BlockTime:   result.BlockTime,
		Err:         result.Meta.Err,
		Logs:        result.Meta.LogMessages,
		AccountKeys: result.Transaction.Message.AccountKeys,
	}, nil
}

// getTransactionResult is the raw RPC response for getTransaction.
type getTransactionResult struct {
	Slot      uint64 `json:"slot"`
	BlockTime int64  `json:"blockTime"`
	Meta      struct {
		Err         interface{} `json:"err"`
		LogMessages []string    `json:"logMessages"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

// GetSlot retrieves the current slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (uint64, error) {
	var result uint64
	if err := c.call(ctx, "getSlot", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}
