package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, hub *Hub, userID string, onMessage func(*Client, []byte)) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, userID)
		if onMessage != nil {
			client.OnMessage(func(data []byte) { onMessage(client, data) })
		}
		if hub != nil {
			hub.Register(client)
		}
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_PushReachesUser(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	conn := dial(t, hub, "u1", nil)
	require.Eventually(t, func() bool { return hub.ConnectionCount("u1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Push("u2", "notification", map[string]string{"id": "other"})
	hub.Push("u1", "unread_count", map[string]int{"total_unread": 3})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Type    string         `json:"type"`
		Payload map[string]int `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "unread_count", ev.Type)
	assert.Equal(t, 3, ev.Payload["total_unread"])
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	conn := dial(t, hub, "u1", nil)
	require.Eventually(t, func() bool { return hub.ConnectionCount("u1") == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ConnectionCount("u1") == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestClient_EchoWithoutHub(t *testing.T) {
	conn := dial(t, nil, "u1", func(c *Client, data []byte) {
		c.Send(map[string]string{"echo": string(data), "user": c.UserID()})
	})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":"ping","user":"u1"}`, string(data))
}

func TestClient_SendAfterClose(t *testing.T) {
	c := NewClient(nil, nil, "u1")
	c.close()
	assert.False(t, c.Send("x"))
	select {
	case <-c.Done():
	default:
		t.Fatal("done should be closed")
	}
}
