package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// push-only connections only ever receive control frames
	maxPushMessageSize = 512
	// intent frames carry message text and attachment metadata
	maxIntentMessageSize = 64 << 10
)

// Client is one WebSocket connection. Notification clients belong to a Hub;
// session clients have no hub and handle inbound frames with OnMessage.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	userID    string
	onMessage func([]byte)
}

// NewClient creates a new WebSocket client. hub may be nil.
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		userID: userID,
	}
}

// OnMessage sets the inbound frame handler. Frames are handled in order on
// the read goroutine.
func (c *Client) OnMessage(fn func([]byte)) *Client {
	c.onMessage = fn
	return c
}

// UserID returns the connection's user
func (c *Client) UserID() string {
	return c.userID
}

// Done is closed once the connection is finished
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send queues v as a JSON text frame. It reports false when the connection is
// closed or too far behind.
func (c *Client) Send(v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	if !c.enqueue(data) {
		c.close()
		return false
	}
	return true
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump reads frames until the connection fails, then releases the client
func (c *Client) ReadPump() {
	defer func() {
		if c.hub != nil {
			select {
			case c.hub.unregister <- c:
			case <-c.hub.ctx.Done():
			}
		}
		c.close()
		c.conn.Close()
	}()

	limit := int64(maxPushMessageSize)
	if c.onMessage != nil {
		limit = maxIntentMessageSize
	}
	c.conn.SetReadLimit(limit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}

// WritePump sends queued frames and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.close()
				return
			}
			w.Write(message) //nolint:errcheck
			if err := w.Close(); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))    //nolint:errcheck
			c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
