package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil)
	hub.SetGreeting(func() *Message {
		return &Message{Type: "dashboard", Payload: map[string]int{"oee": 88}}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestClientReceivesGreetingAndBroadcasts(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv)

	greeting := readMessage(t, conn)
	assert.Equal(t, "dashboard", greeting.Type)
	assert.Equal(t, map[string]any{"oee": float64(88)}, greeting.Payload)
	assert.Equal(t, 1, hub.ClientCount())

	require.NoError(t, hub.Broadcast("alert", "vibração alta"))
	msg := readMessage(t, conn)
	assert.Equal(t, "alert", msg.Type)
	assert.Equal(t, "vibração alta", msg.Payload)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv)
	readMessage(t, conn)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStoppedHubRejectsBroadcasts(t *testing.T) {
	hub, srv, cancel := startHub(t)
	conn := dial(t, srv)
	readMessage(t, conn)

	cancel()

	assert.Eventually(t, func() bool {
		return hub.Broadcast("dashboard", nil) == ErrHubStopped
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "hub closes clients on shutdown")
	assert.Equal(t, 0, hub.ClientCount())
}
