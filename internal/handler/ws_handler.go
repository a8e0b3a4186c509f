package handler

import (
	"net/http"
	"strings"

	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler handles notification WebSocket connections
type WSHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *ws.Hub, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:      hub,
		upgrader: newUpgrader(allowedOrigins),
	}
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r, allowedOrigins)
		},
	}
}

// checkOrigin validates the request origin against allowed origins
func checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // Same-origin requests don't have Origin header
	}
	// If no allowed origins configured, allow all (development mode)
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(origin, a) {
			return true
		}
	}
	return false
}

// Connect handles GET /ws/notifications (WebSocket upgrade)
// @Summary 실시간 알림 WebSocket
// @Tags notifications
// @Router /ws/notifications [get]
func (h *WSHandler) Connect(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	done := middleware.TrackWebSocket("notifications")
	client := ws.NewClient(h.hub, conn, userID)
	h.hub.Register(client)

	go client.WritePump()
	go func() {
		defer done()
		client.ReadPump()
	}()
}
