package rpcserver

import (
	"encoding/json"
	"fmt"

	"fit-token/internal/domain"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeTransactionFailed reports a transaction that executed and failed.
	// Its state changes were discarded.
	CodeTransactionFailed = -32002
	// CodeTransactionRejected reports a transaction refused before execution.
	CodeTransactionRejected = -32003
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

func invalidParams(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params: " + fmt.Sprintf(format, args...)}
}

func internalError(err error) *Error {
	return &Error{Code: CodeInternalError, Message: "Internal error: " + err.Error()}
}

// params is a positional parameter list.
type params []json.RawMessage

func parseParams(raw json.RawMessage) (params, *Error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalidParams("expected an array")
	}
	return p, nil
}

func (p params) string(i int, name string) (string, *Error) {
	if i >= len(p) {
		return "", invalidParams("missing %s", name)
	}
	var s string
	if err := json.Unmarshal(p[i], &s); err != nil {
		return "", invalidParams("%s must be a string", name)
	}
	return s, nil
}

func (p params) pubkey(i int, name string) (domain.Pubkey, *Error) {
	s, rpcErr := p.string(i, name)
	if rpcErr != nil {
		return domain.Pubkey{}, rpcErr
	}
	key, err := domain.ParsePubkey(s)
	if err != nil {
		return domain.Pubkey{}, invalidParams("%s: %v", name, err)
	}
	return key, nil
}

// encoding reads the optional {"encoding": ...} config at position i.
func (p params) encoding(i int) (string, *Error) {
	if i >= len(p) {
		return "base64", nil
	}
	var cfg struct {
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal(p[i], &cfg); err != nil {
		return "", invalidParams("config must be an object")
	}
	switch cfg.Encoding {
	case "", "base64":
		return "base64", nil
	default:
		return "", invalidParams("unsupported encoding %q", cfg.Encoding)
	}
}
