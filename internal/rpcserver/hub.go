package rpcserver

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fit-token/internal/domain"
	"fit-token/internal/observability"
	"fit-token/internal/runtime"
)

// HubConfig configures WebSocket subscription behavior.
type HubConfig struct {
	// SendBuffer is the number of queued messages per connection. A
	// connection whose queue is full is dropped.
	SendBuffer int
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long a connection may stay silent, pongs included.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultHubConfig returns default subscription configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   1024,
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Hub fans executed transactions out to logsSubscribe subscribers.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool

	nextSub atomic.Int64
	wg      sync.WaitGroup
}

// Compile-time interface check.
var _ runtime.Publisher = (*Hub)(nil)

// NewHub creates a subscription hub. A nil config uses DefaultHubConfig.
func NewHub(config *HubConfig, logger *log.Logger) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lshortfile)
	}
	return &Hub{
		config:  cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and serves subscription requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("Warning: websocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
		done: make(chan struct{}),
		subs: make(map[int64]logsFilter),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()
}

var marshalNotification = func(n logsNotification) ([]byte, error) {
	return json.Marshal(n)
}

// Publish delivers rec to every subscription whose filter matches it.
func (h *Hub) Publish(rec *domain.TransactionRecord) {
	mentioned := mentionedKeys(rec)
	value := logsValue{
		Signature: rec.Signature,
		Err:       transactionError(rec.ErrorName, rec.ErrorIndex, rec.ErrorCode),
		Logs:      append([]string{}, rec.Logs...),
	}

	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		for _, subID := range c.matching(mentioned) {
			msg, err := marshalNotification(logsNotification{
				JSONRPC: "2.0",
				Method:  "logsNotification",
				Params: notificationParams{
					Subscription: subID,
					Result:       notificationResult{Context: Context{Slot: rec.Slot}, Value: value},
				},
			})
			if err != nil {
				h.logger.Printf("Warning: marshal notification for subscription %d: %v", subID, err)
				continue
			}
			if !c.enqueue(msg) {
				h.logger.Printf("Dropping slow subscriber %s", c.id)
				h.remove(c)
				break
			}
			observability.RecordWSNotification()
		}
	}
}

// Subscriptions returns the number of active subscriptions.
func (h *Hub) Subscriptions() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for c := range h.clients {
		n += c.count()
	}
	return n
}

// Close disconnects every subscriber and waits for their goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.wg.Wait()
	observability.UpdateWSSubscriptions(0)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	h.updateGauge()
}

func (h *Hub) updateGauge() {
	observability.UpdateWSSubscriptions(h.Subscriptions())
}

// mentionedKeys collects signers, top-level programs and every program
// invoked during execution.
func mentionedKeys(rec *domain.TransactionRecord) map[string]struct{} {
	keys := make(map[string]struct{}, len(rec.Signers)+len(rec.Programs))
	for _, k := range rec.Signers {
		keys[k] = struct{}{}
	}
	for _, k := range rec.Programs {
		keys[k] = struct{}{}
	}
	for _, line := range rec.Logs {
		rest, ok := strings.CutPrefix(line, "Program ")
		if !ok {
			continue
		}
		if id, _, ok := strings.Cut(rest, " invoke ["); ok {
			keys[id] = struct{}{}
		}
	}
	return keys
}

// logsFilter selects transactions for one subscription.
type logsFilter struct {
	all      bool
	mentions []string
}

func (f logsFilter) matches(keys map[string]struct{}) bool {
	if f.all {
		return true
	}
	for _, m := range f.mentions {
		if _, ok := keys[m]; ok {
			return true
		}
	}
	return false
}

// parseLogsFilter accepts "all", {"all":...} or {"mentions":[...]}.
func parseLogsFilter(raw json.RawMessage) (logsFilter, *Error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "all" || s == "allWithVotes" {
			return logsFilter{all: true}, nil
		}
		return logsFilter{}, invalidParams("unknown filter %q", s)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return logsFilter{}, invalidParams("filter must be a string or an object")
	}
	if _, ok := obj["all"]; ok {
		return logsFilter{all: true}, nil
	}
	mentionsRaw, ok := obj["mentions"]
	if !ok {
		return logsFilter{}, invalidParams("filter needs mentions")
	}
	var mentions []string
	if err := json.Unmarshal(mentionsRaw, &mentions); err != nil || len(mentions) == 0 {
		return logsFilter{}, invalidParams("mentions must be a non-empty list of keys")
	}
	for _, m := range mentions {
		if _, err := domain.ParsePubkey(m); err != nil {
			return logsFilter{}, invalidParams("mention %q: %v", m, err)
		}
	}
	return logsFilter{mentions: mentions}, nil
}

// wsClient is one subscriber connection.
type wsClient struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	subs map[int64]logsFilter
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *wsClient) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *wsClient) matching(keys map[string]struct{}) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []int64
	for id, f := range c.subs {
		if f.matches(keys) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *wsClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// readLoop handles subscription requests until the connection fails.
func (c *wsClient) readLoop() {
	defer c.hub.wg.Done()
	defer c.hub.remove(c)

	cfg := c.hub.config
	c.conn.SetReadLimit(64 << 10)
	c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		reply, err := json.Marshal(c.handle(message))
		if err != nil {
			c.hub.logger.Printf("Warning: marshal reply: %v", err)
			continue
		}
		if !c.enqueue(reply) {
			return
		}
	}
}

func (c *wsClient) handle(message []byte) response {
	var req request
	if err := json.Unmarshal(message, &req); err != nil {
		return errorResponse(nil, &Error{Code: CodeParseError, Message: "Parse error"})
	}
	p, rpcErr := parseParams(req.Params)
	if rpcErr != nil {
		return errorResponse(req.ID, rpcErr)
	}

	var result any
	switch req.Method {
	case "logsSubscribe":
		if len(p) == 0 {
			return errorResponse(req.ID, invalidParams("missing filter"))
		}
		filter, rpcErr := parseLogsFilter(p[0])
		if rpcErr != nil {
			return errorResponse(req.ID, rpcErr)
		}
		id := c.hub.nextSub.Add(1)
		c.mu.Lock()
		c.subs[id] = filter
		c.mu.Unlock()
		c.hub.updateGauge()
		result = id

	case "logsUnsubscribe":
		var id int64
		if len(p) == 0 || json.Unmarshal(p[0], &id) != nil {
			return errorResponse(req.ID, invalidParams("missing subscription id"))
		}
		c.mu.Lock()
		_, ok := c.subs[id]
		delete(c.subs, id)
		c.mu.Unlock()
		c.hub.updateGauge()
		result = ok

	default:
		return errorResponse(req.ID, &Error{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method})
	}

	encoded, _ := json.Marshal(result)
	return response{JSONRPC: "2.0", ID: req.ID, Result: encoded}
}

// writeLoop is the only writer of the connection.
func (c *wsClient) writeLoop() {
	defer c.hub.wg.Done()
	defer c.conn.Close()

	cfg := c.hub.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// WebSocket message types

type logsNotification struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  notificationParams `json:"params"`
}

type notificationParams struct {
	Subscription int64              `json:"subscription"`
	Result       notificationResult `json:"result"`
}

type notificationResult struct {
	Context Context   `json:"context"`
	Value   logsValue `json:"value"`
}

type logsValue struct {
	Signature string   `json:"signature"`
	Err       any      `json:"err"`
	Logs      []string `json:"logs"`
}
