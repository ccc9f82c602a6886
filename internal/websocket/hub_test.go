package websocket

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcast/pkg/contracts/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConn is an in-memory Connection. Reads block until closed.
type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	types   []int
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, messageType)
	f.written = append(f.written, data)
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) RemoteAddr() string                { return "127.0.0.1:9999" }

func (f *fakeConn) messageTypes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.types...)
}

func receive(t *testing.T, c *Client) events.WebSocketMessage {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var msg events.WebSocketMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
	return events.WebSocketMessage{}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger(), nil)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHubRegisterSendsConnectMessage(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, newFakeConn(), "trace-1", testLogger())

	hub.Register(client)

	msg := receive(t, client)
	assert.Equal(t, events.MessageTypeConnect, msg.Type)
	assert.Equal(t, "trace-1", msg.TraceID)
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, client.ID(), data["client_id"])
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHubBroadcastSnapshot(t *testing.T) {
	hub := startHub(t)
	a := NewClient(hub, newFakeConn(), "", testLogger())
	b := NewClient(hub, newFakeConn(), "", testLogger())
	hub.Register(a)
	hub.Register(b)
	receive(t, a)
	receive(t, b)

	snapshot := &events.RunSnapshot{RunID: "run-1", Status: "running", Progress: 50}
	hub.BroadcastUpdate(string(events.MessageTypeRunSnapshot), "run-1", "running", snapshot)

	for _, c := range []*Client{a, b} {
		msg := receive(t, c)
		assert.Equal(t, events.MessageTypeRunSnapshot, msg.Type)
		assert.NotEmpty(t, msg.ID)
		data := msg.Data.(map[string]interface{})
		assert.Equal(t, "run-1", data["run_id"])
		assert.Equal(t, float64(50), data["progress"])
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, newFakeConn(), "", testLogger())
	hub.Register(client)
	receive(t, client)

	hub.Unregister(client)

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	_, ok := <-client.send
	assert.False(t, ok)

	hub.Unregister(client)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, newFakeConn(), "", testLogger())
	hub.Register(client)

	// the client never reads, so its buffer eventually overflows
	assert.Eventually(t, func() bool {
		for i := 0; i < 64; i++ {
			hub.BroadcastUpdate("test", "", "", i)
		}
		return hub.ClientCount() == 0
	}, 5*time.Second, 5*time.Millisecond)
}

func TestHubStop(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	hub.Start()
	client := NewClient(hub, newFakeConn(), "", testLogger())
	hub.Register(client)
	receive(t, client)

	hub.Stop()
	hub.Stop()

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())

	done := make(chan struct{})
	go func() {
		hub.BroadcastUpdate("late", "", "", nil)
		hub.Register(NewClient(hub, newFakeConn(), "", testLogger()))
		hub.Start()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub blocked after stop")
	}
}

func TestWritePump(t *testing.T) {
	hub := startHub(t)
	conn := newFakeConn()
	client := NewClient(hub, conn, "", testLogger())

	finished := make(chan struct{})
	go func() {
		client.WritePump()
		close(finished)
	}()

	client.send <- []byte(`{"type":"a"}`)
	client.send <- []byte(`{"type":"b"}`)
	close(client.send)

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("write pump did not stop")
	}
	assert.Equal(t, []int{gorilla.TextMessage, gorilla.TextMessage, gorilla.CloseMessage}, conn.messageTypes())
}

func TestHandler(t *testing.T) {
	hub := startHub(t)
	server := httptest.NewServer(Handler(hub, []string{"http://dashboard.example"}, testLogger()))
	t.Cleanup(server.Close)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	t.Run("accepts listed origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://dashboard.example"}}
		conn, _, err := gorilla.DefaultDialer.Dial(wsURL, header)
		require.NoError(t, err)
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var connect events.WebSocketMessage
		require.NoError(t, conn.ReadJSON(&connect))
		assert.Equal(t, events.MessageTypeConnect, connect.Type)

		hub.BroadcastUpdate(string(events.MessageTypeRunSnapshot), "run-9", "completed",
			&events.RunSnapshot{RunID: "run-9", Status: "completed"})

		var update events.WebSocketMessage
		require.NoError(t, conn.ReadJSON(&update))
		assert.Equal(t, events.MessageTypeRunSnapshot, update.Type)
	})

	t.Run("rejects unknown origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://evil.example"}}
		_, resp, err := gorilla.DefaultDialer.Dial(wsURL, header)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestOriginAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://localhost:8080/ws", nil)
	assert.True(t, originAllowed(req, nil), "no origin header")

	req.Header.Set("Origin", "http://localhost:8080")
	assert.True(t, originAllowed(req, nil), "same host")

	req.Header.Set("Origin", "http://other:3000")
	assert.False(t, originAllowed(req, []string{"http://localhost:3000"}))
	assert.True(t, originAllowed(req, []string{"*"}))
}
