package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fit-token/internal/domain"
)

// stubServer answers every request with handle(method, params).
func stubServer(t *testing.T, handle func(method string, params []json.RawMessage) interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch out := handle(req.Method, req.Params).(type) {
		case *RPCError:
			resp["error"] = out
		default:
			resp["result"] = out
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPClient_GetTransaction(t *testing.T) {
	server := stubServer(t, func(method string, params []json.RawMessage) interface{} {
		if method != "getTransaction" {
			t.Errorf("expected method getTransaction, got %s", method)
		}
		return map[string]interface{}{
			"slot":      7,
			"blockTime": int64(1700000000),
			"meta": map[string]interface{}{
				"err":         map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 6000}}},
				"logMessages": []string{"Program log: Instruction: StakeTokens"},
			},
			"transaction": map[string]interface{}{
				"signatures": []string{"sig1"},
				"message":    map[string]interface{}{"accountKeys": []string{"addr1", "addr2"}},
			},
		}
	})

	client := NewHTTPClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), "sig1")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx == nil {
		t.Fatal("expected transaction, got nil")
	}
	if tx.Slot != 7 || tx.BlockTime != 1700000000 || tx.Signature != "sig1" {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if len(tx.Logs) != 1 || len(tx.AccountKeys) != 2 {
		t.Errorf("expected 1 log and 2 keys, got %d and %d", len(tx.Logs), len(tx.AccountKeys))
	}
	if tx.Err == nil {
		t.Error("expected transaction error")
	}
}

func TestHTTPClient_GetTransaction_NotFound(t *testing.T) {
	server := stubServer(t, func(string, []json.RawMessage) interface{} { return nil })

	client := NewHTTPClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil, got %+v", tx)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := stubServer(t, func(string, []json.RawMessage) interface{} {
		return map[string]interface{}{"context": map[string]int{"slot": 1}, "value": nil}
	})

	client := NewHTTPClient(server.URL)
	acc, err := client.GetAccountInfo(context.Background(), domain.Pubkey{1})
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if acc != nil {
		t.Errorf("expected nil, got %+v", acc)
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := stubServer(t, func(string, []json.RawMessage) interface{} {
		calls.Add(1)
		return &RPCError{Code: -32602, Message: "Invalid params: account not found"}
	})

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))
	_, err := client.GetTokenInfo(context.Background(), domain.Pubkey{1})

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %v", err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 42})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))
	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if slot != 42 {
		t.Errorf("expected slot 42, got %d", slot)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_MaxRetriesExceeded(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(2), WithRetryDelay(time.Millisecond))
	if _, err := client.GetSlot(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetSlot(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestTransactionError_CustomCode(t *testing.T) {
	var failure interface{}
	if err := json.Unmarshal([]byte(`{"InstructionError":[1,{"Custom":6000}]}`), &failure); err != nil {
		t.Fatal(err)
	}

	code, ok := (&TransactionError{Err: failure}).CustomCode()
	if !ok || code != 6000 {
		t.Errorf("expected 6000, got %d (%v)", code, ok)
	}

	var builtin interface{}
	json.Unmarshal([]byte(`{"InstructionError":[0,"AccountAlreadyInUse"]}`), &builtin)
	if _, ok := (&TransactionError{Err: builtin}).CustomCode(); ok {
		t.Error("builtin error has no custom code")
	}
}
