package ws

import (
	"context"
	"encoding/json"
	"sync"

	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisPubSubChannel = "messenger:notifications"

// Event is a server-push frame
type Event struct {
	Type    string      `json:"type"`    // "notification", "unread_count"
	Payload interface{} `json:"payload"` // event-specific data
}

// Hub tracks notification connections per user and fans events out to them,
// across instances when redis is configured.
type Hub struct {
	// user ID -> live connections
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *targetedEvent

	mu          sync.RWMutex
	redisClient *redis.Client
	instanceID  string
	ctx         context.Context
	cancel      context.CancelFunc
}

type targetedEvent struct {
	UserID string
	Event  *Event
}

type redisMessage struct {
	Instance string `json:"instance"`
	UserID   string `json:"user_id"`
	Event    *Event `json:"event"`
}

// NewHub creates a new Hub; redisClient may be nil
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *targetedEvent, 256),
		redisClient: redisClient,
		instanceID:  uuid.NewString(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.close()
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	if h.redisClient != nil {
		go h.subscribeRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.ctx.Done():
			h.mu.Lock()
			for _, clients := range h.clients {
				for client := range clients {
					client.close()
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.clients[client.userID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			client.close()
			if len(clients) == 0 {
				delete(h.clients, client.userID)
			}
		}
	}
}

func (h *Hub) deliver(msg *targetedEvent) {
	data, err := json.Marshal(msg.Event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.clients[msg.UserID]
	for client := range clients {
		if !client.enqueue(data) {
			// 느린 클라이언트는 끊음
			delete(clients, client)
			client.close()
		}
	}
	if len(clients) == 0 {
		delete(h.clients, msg.UserID)
	}
}

// SendToUser sends an event to every connection of userID (local + redis)
func (h *Hub) SendToUser(userID string, event *Event) {
	select {
	case h.broadcast <- &targetedEvent{UserID: userID, Event: event}:
	case <-h.ctx.Done():
		return
	}

	if h.redisClient != nil {
		data, err := json.Marshal(&redisMessage{Instance: h.instanceID, UserID: userID, Event: event})
		if err == nil {
			if err := h.redisClient.Publish(h.ctx, redisPubSubChannel, data).Err(); err != nil {
				pkglogger.GetLogger().Warn().Err(err).Msg("ws: publish failed")
			}
		}
	}
}

// Push implements the notification pusher
func (h *Hub) Push(userID, eventType string, payload interface{}) {
	h.SendToUser(userID, &Event{Type: eventType, Payload: payload})
}

// ConnectionCount returns the number of connections held for userID
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// subscribeRedis listens for events published by other instances
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, redisPubSubChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rm redisMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil || rm.Instance == h.instanceID {
				continue
			}
			// Only local broadcast (don't re-publish to Redis)
			select {
			case h.broadcast <- &targetedEvent{UserID: rm.UserID, Event: rm.Event}:
			case <-h.ctx.Done():
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}
