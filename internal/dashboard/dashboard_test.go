package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/mschirtzinger/userlist/internal/eventloop"
	"github.com/mschirtzinger/userlist/internal/listvm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sliceCursor walks a fixed list of logins.
type sliceCursor struct {
	values []string
	pos    int
}

func (c *sliceCursor) Valid() bool    { return c.pos < len(c.values) }
func (c *sliceCursor) Value() string  { return c.values[c.pos] }
func (c *sliceCursor) Advance() error { c.pos++; return nil }

func (c *sliceCursor) Count() (int32, error) { return int32(len(c.values)), nil }

func newSnapshot(values ...string) *listvm.Cache {
	c := &sliceCursor{values: values}
	return listvm.New(c, c)
}

func startServer(t *testing.T, config *Config) *Server {
	t.Helper()

	config.Logger = discardLogger()
	server := NewServer(config)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func startLoop(t *testing.T) *eventloop.Loop {
	t.Helper()

	loop := eventloop.New(discardLogger())
	loop.Start(context.Background())
	t.Cleanup(loop.Stop)
	return loop
}

// dial connects a client and consumes the welcome message.
func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("Expected welcome message type %s, got %s", MessageTypeStatus, msg.Type)
	}
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Port: 0, Logger: discardLogger()})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if server.GetAddr() == "" {
		t.Fatal("Server address is empty")
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocketConnection(t *testing.T) {
	server := startServer(t, &Config{
		Port:   0,
		Status: func() any { return map[string]int{"syncs": 3} },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStatus {
		t.Errorf("Expected welcome message type %s, got %s", MessageTypeStatus, msg.Type)
	}

	var status map[string]int
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		t.Fatalf("Failed to unmarshal status data: %v", err)
	}
	if status["syncs"] != 3 {
		t.Errorf("Expected syncs 3 in welcome, got %v", status)
	}

	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}
}

func TestMultipleClients(t *testing.T) {
	server := startServer(t, &Config{Port: 0})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	numClients := 3
	clients := make([]*websocket.Conn, numClients)
	for i := 0; i < numClients; i++ {
		clients[i] = dial(t, ctx, server)
	}

	if count := server.ClientCount(); count != numClients {
		t.Errorf("Expected %d clients, got %d", numClients, count)
	}

	server.Broadcast(Message{Type: MessageTypeSyncFailed})
	for i, conn := range clients {
		if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeSyncFailed {
			t.Errorf("client %d: expected %s, got %s", i, MessageTypeSyncFailed, msg.Type)
		}
	}
}

func TestMessageBroadcast(t *testing.T) {
	server := startServer(t, &Config{Port: 0})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)

	dataJSON, _ := json.Marshal(SyncCompleteData{Rows: 42})
	server.Broadcast(Message{Type: MessageTypeSyncComplete, Data: dataJSON})

	received := readMessage(t, ctx, conn)
	if received.Type != MessageTypeSyncComplete {
		t.Errorf("Expected message type %s, got %s", MessageTypeSyncComplete, received.Type)
	}
	if received.Timestamp.IsZero() {
		t.Error("Broadcast did not stamp the message")
	}

	var data SyncCompleteData
	if err := json.Unmarshal(received.Data, &data); err != nil {
		t.Fatalf("Failed to unmarshal sync data: %v", err)
	}
	if data.Rows != 42 {
		t.Errorf("Expected 42 rows, got %d", data.Rows)
	}
}

func TestHandlerSyncComplete(t *testing.T) {
	server := startServer(t, &Config{Port: 0})
	loop := startLoop(t)
	handler := NewHandler(server, loop, discardLogger())
	handler.preview = 2

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)

	if err := loop.Call(ctx, func() { handler.OnUpdate(newSnapshot("a", "b", "c")) }); err != nil {
		t.Fatalf("Call() failed: %v", err)
	}

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeSyncComplete {
		t.Fatalf("Expected message type %s, got %s", MessageTypeSyncComplete, msg.Type)
	}

	var data SyncCompleteData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Failed to unmarshal sync data: %v", err)
	}
	if data.Rows != 3 {
		t.Errorf("Expected 3 rows, got %d", data.Rows)
	}
	want := []RowData{{Index: 0, Login: "a"}, {Index: 1, Login: "b"}}
	if len(data.Preview) != len(want) {
		t.Fatalf("Expected preview %v, got %v", want, data.Preview)
	}
	for i := range want {
		if data.Preview[i] != want[i] {
			t.Errorf("preview[%d] = %v, want %v", i, data.Preview[i], want[i])
		}
	}
}

func TestHandlerSyncFailed(t *testing.T) {
	server := startServer(t, &Config{Port: 0})
	loop := startLoop(t)
	handler := NewHandler(server, loop, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)

	if err := loop.Call(ctx, func() { handler.OnFailure(errors.New("remote down")) }); err != nil {
		t.Fatalf("Call() failed: %v", err)
	}

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeSyncFailed {
		t.Fatalf("Expected message type %s, got %s", MessageTypeSyncFailed, msg.Type)
	}

	var data SyncFailedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Failed to unmarshal failure data: %v", err)
	}
	if data.Error != "remote down" {
		t.Errorf("Expected error %q, got %q", "remote down", data.Error)
	}
}

func TestRowsEndpoint(t *testing.T) {
	server := NewServer(&Config{Logger: discardLogger()})
	loop := startLoop(t)
	handler := NewHandler(server, loop, discardLogger())

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	get := func(query string) (*http.Response, RowsResponse) {
		t.Helper()

		resp, err := http.Get(ts.URL + "/rows" + query)
		if err != nil {
			t.Fatalf("GET /rows%s failed: %v", query, err)
		}
		defer resp.Body.Close()

		var body RowsResponse
		if resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode rows: %v", err)
			}
		}
		return resp, body
	}

	if resp, _ := get(""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("before first sync: status %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	if err := loop.Call(context.Background(), func() {
		handler.OnUpdate(newSnapshot("a", "b", "c", "d"))
	}); err != nil {
		t.Fatalf("Call() failed: %v", err)
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLogins []string
	}{
		{"default window", "", http.StatusOK, []string{"a", "b", "c", "d"}},
		{"middle", "?start=1&n=2", http.StatusOK, []string{"b", "c"}},
		{"past end", "?start=10&n=5", http.StatusOK, []string{}},
		{"negative start", "?start=-1", http.StatusBadRequest, nil},
		{"bad n", "?n=abc", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(tt.query)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if body.Total != 4 {
				t.Errorf("total = %d, want 4", body.Total)
			}
			if len(body.Rows) != len(tt.wantLogins) {
				t.Fatalf("rows = %v, want %v", body.Rows, tt.wantLogins)
			}
			for i, login := range tt.wantLogins {
				if body.Rows[i].Login != login {
					t.Errorf("rows[%d] = %v, want %s", i, body.Rows[i], login)
				}
			}
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(&Config{
		Logger: discardLogger(),
		Status: func() any { return map[string]string{"state": "idle"} },
	})

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status  string            `json:"status"`
		Clients int               `json:"clients"`
		Sync    map[string]string `json:"sync"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if body.Status != "ok" || body.Clients != 0 {
		t.Errorf("health = %+v, want status ok with 0 clients", body)
	}
	if body.Sync["state"] != "idle" {
		t.Errorf("sync status = %v, want state idle", body.Sync)
	}
}
