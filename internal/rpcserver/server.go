// Package rpcserver exposes the ledger over JSON-RPC 2.0 on HTTP and
// streams transaction logs to WebSocket subscribers.
package rpcserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"fit-token/internal/observability"
	"fit-token/internal/runtime"
	"fit-token/internal/storage"
)

// MaxRequestBytes bounds a JSON-RPC request body.
const MaxRequestBytes = 1 << 20

// Server serves JSON-RPC, WebSocket subscriptions, health and metrics.
type Server struct {
	runtime *runtime.Runtime
	store   storage.AccountStore
	txLog   storage.TransactionLogStore
	hub     *Hub
	logger  *log.Logger
	started time.Time
	table   map[string]method
}

// Options contains configuration for creating a Server.
type Options struct {
	Runtime *runtime.Runtime            // required
	TxLog   storage.TransactionLogStore // optional; enables getTransaction
	Hub     *Hub                        // optional; enables /ws
	Logger  *log.Logger
}

// New creates a new Server.
func New(opts Options) (*Server, error) {
	if opts.Runtime == nil {
		return nil, errors.New("rpcserver: runtime is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[rpc] ", log.LstdFlags|log.Lshortfile)
	}

	s := &Server{
		runtime: opts.Runtime,
		store:   opts.Runtime.Store(),
		txLog:   opts.TxLog,
		hub:     opts.Hub,
		logger:  logger,
		started: time.Now(),
	}
	s.table = s.methods()
	return s, nil
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /{$}", s.handleRPC)

	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("GET /status", s.handleStatus)

	return mux
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully within timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, timeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Starting HTTP server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.hub != nil {
		s.hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", reqID)

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBytes+1))
	if err != nil {
		s.writeJSON(w, errorResponse(nil, &Error{Code: CodeParseError, Message: "Parse error"}))
		return
	}
	if len(body) > MaxRequestBytes {
		s.writeJSON(w, errorResponse(nil, &Error{Code: CodeInvalidRequest, Message: "Request too large"}))
		return
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			s.writeJSON(w, errorResponse(nil, &Error{Code: CodeParseError, Message: "Parse error"}))
			return
		}
		if len(batch) == 0 {
			s.writeJSON(w, errorResponse(nil, &Error{Code: CodeInvalidRequest, Message: "Empty batch"}))
			return
		}
		responses := make([]response, 0, len(batch))
		for _, raw := range batch {
			responses = append(responses, s.serve(r.Context(), reqID, raw))
		}
		s.writeJSON(w, responses)
		return
	}

	s.writeJSON(w, s.serve(r.Context(), reqID, trimmed))
}

// serve executes one JSON-RPC request.
func (s *Server) serve(ctx context.Context, reqID string, raw json.RawMessage) response {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, &Error{Code: CodeParseError, Message: "Parse error"})
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, &Error{Code: CodeInvalidRequest, Message: "Invalid request"})
	}

	m, ok := s.table[req.Method]
	if !ok {
		return errorResponse(req.ID, &Error{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method})
	}

	start := time.Now()
	result, rpcErr := s.call(ctx, m, req.Params)
	if rpcErr != nil {
		observability.RecordRPCCall(req.Method, time.Since(start).Seconds(), rpcErr)
		if rpcErr.Code == CodeInternalError {
			s.logger.Printf("Request %s: %s failed: %s", reqID, req.Method, rpcErr.Message)
		}
		return errorResponse(req.ID, rpcErr)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		observability.RecordRPCCall(req.Method, time.Since(start).Seconds(), err)
		return errorResponse(req.ID, internalError(err))
	}
	observability.RecordRPCCall(req.Method, time.Since(start).Seconds(), nil)
	return response{JSONRPC: "2.0", ID: req.ID, Result: encoded}
}

func (s *Server) call(ctx context.Context, m method, raw json.RawMessage) (any, *Error) {
	p, rpcErr := parseParams(raw)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return m(ctx, p)
}

func errorResponse(id json.RawMessage, err *Error) response {
	if id == nil {
		id = json.RawMessage("null")
	}
	return response{JSONRPC: "2.0", ID: id, Error: err}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("Warning: failed to write response: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	Started       time.Time `json:"started"`
	Slot          uint64    `json:"slot"`
	Subscriptions int       `json:"subscriptions"`
	Programs      []string  `json:"programs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:   "running",
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Started:  s.started,
		Slot:     s.runtime.Slot(),
		Programs: s.runtime.Registry().IDs(),
	}
	if s.hub != nil {
		resp.Subscriptions = s.hub.Subscriptions()
	}
	s.writeJSON(w, resp)
}
