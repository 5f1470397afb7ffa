package rpcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fit-token/internal/programs/fittoken"
	"fit-token/internal/programs/token"
	"fit-token/internal/runtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func testWSConfig() *WSClientConfig {
	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond
	cfg.SubscribeTimeout = 2 * time.Second
	return &cfg
}

// fakeNode confirms every logsSubscribe with the next id and notifies
// on request. Each accepted connection is reported on conns.
type fakeNode struct {
	nextID atomic.Int64
	mu     sync.Mutex
	conns  []*websocket.Conn
	subs   chan int64
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		id := f.nextID.Add(1)
		f.mu.Lock()
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": id})
		f.mu.Unlock()
		f.subs <- id
	}
}

func (f *fakeNode) notify(t *testing.T, subID int64, signature string) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	conn := f.conns[len(f.conns)-1]
	err := conn.WriteJSON(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "logsNotification",
		"params": map[string]interface{}{
			"subscription": subID,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": 3},
				"value":   map[string]interface{}{"signature": signature, "logs": []string{"Program log: Instruction: MintReward"}, "err": nil},
			},
		},
	})
	if err != nil {
		t.Fatalf("write notification: %v", err)
	}
}

func (f *fakeNode) dropConnection() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[len(f.conns)-1].Close()
}

func receive(t *testing.T, ch <-chan LogNotification) LogNotification {
	t.Helper()
	select {
	case n, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
	return LogNotification{}
}

func TestWSClient_SubscribeAndReconnect(t *testing.T) {
	node := &fakeNode{subs: make(chan int64, 8)}
	server := httptest.NewServer(node)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server, ""), testWSConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{fittoken.ProgramID.String()}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}
	first := <-node.subs

	node.notify(t, first, "sig1")
	n := receive(t, ch)
	if n.Signature != "sig1" || n.Slot != 3 || len(n.Logs) != 1 {
		t.Errorf("unexpected notification %+v", n)
	}

	node.dropConnection()

	var second int64
	select {
	case second = <-node.subs:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not resubscribe")
	}
	if second == first {
		t.Fatal("expected a new subscription id")
	}

	node.notify(t, second, "sig2")
	if n := receive(t, ch); n.Signature != "sig2" {
		t.Errorf("expected sig2 after reconnect, got %s", n.Signature)
	}
}

func TestWSClient_CloseClosesChannels(t *testing.T) {
	node := &fakeNode{subs: make(chan int64, 8)}
	server := httptest.NewServer(node)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server, ""), testWSConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
	if _, err := client.SubscribeLogs(context.Background(), LogsFilter{}); err != ErrClientClosed {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestWSClient_SubscribeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := testWSConfig()
	cfg.SubscribeTimeout = 50 * time.Millisecond
	client, err := NewWSClient(context.Background(), wsURL(server, ""), cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if _, err := client.SubscribeLogs(context.Background(), LogsFilter{}); err == nil {
		t.Fatal("expected timeout")
	}
}

func TestWSClient_AgainstNode(t *testing.T) {
	server := startNode(t)
	client, err := NewWSClient(context.Background(), wsURL(server, "/ws"), testWSConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{fittoken.ProgramID.String()}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	s := &sender{t: t, client: NewHTTPClient(server.URL)}
	authority, mintKp, infoKp := newKeypair(t), newKeypair(t), newKeypair(t)

	// Only the second transaction invokes the reward program.
	s.mustSend(token.CreateMint(authority.PublicKey(), mintKp.PublicKey(), authority.PublicKey(), 0), authority, mintKp)
	sig := s.mustSend([]runtime.Instruction{fittoken.Initialize(infoKp.PublicKey(), mintKp.PublicKey(), authority.PublicKey(), "RewardCoin", "RWD", 0)}, authority, infoKp)

	n := receive(t, ch)
	if n.Signature != sig {
		t.Errorf("expected %s, got %s", sig, n.Signature)
	}
	if n.Slot != 2 || n.Err != nil {
		t.Errorf("unexpected notification %+v", n)
	}
	raw, _ := json.Marshal(n.Logs)
	if !strings.Contains(string(raw), "Instruction: Initialize") {
		t.Errorf("expected Initialize log, got %s", raw)
	}
}
