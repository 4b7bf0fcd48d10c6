// Package realtime is the WebSocket push side of the outbox broker sink:
// agents subscribe to a room's channel and receive the domain events C5
// dispatches after each committed state change (spec §4.4).
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// AudienceChangeHandler is called when the number of connected agents in
// a room changes.
type AudienceChangeHandler func(roomID uuid.UUID, count int)

// AgentReadyHandler is called once a client's WebSocket registration
// confirms its broker subscription, the event that moves an Agent from
// in_progress to ready (spec §3 Agent invariant, §4.1 room.enter).
type AgentReadyHandler func(roomID, agentID uuid.UUID)

// Hub maintains room_id -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// roomID -> map[clientID]*Client
	rooms      map[uuid.UUID]map[string]*Client
	subs       map[uuid.UUID]func() // cancel Redis subscription per room
	mu         sync.RWMutex
	logger     *zap.Logger
	redis      RedisPublisher
	redisSub   RedisSubscriber
	onAudience AudienceChangeHandler
	onReady    AgentReadyHandler
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishRoomEvent(roomID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to room channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeRoom(roomID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// SetAudienceChangeHandler sets the callback invoked when a room's
// connected-agent count changes.
func (h *Hub) SetAudienceChangeHandler(fn AudienceChangeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAudience = fn
}

// SetAgentReadyHandler sets the callback invoked when a client's
// WebSocket connection registers, confirming its broker subscription.
func (h *Hub) SetAgentReadyHandler(fn AgentReadyHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReady = fn
}

// Register adds a client to a room. Starts Redis subscription for this room if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.RoomID] == nil {
		h.rooms[c.RoomID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeRoom(c.RoomID, func(event string, payload []byte) {
				h.BroadcastToRoom(c.RoomID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.RoomID] = cancel
			}
		}
	}
	h.rooms[c.RoomID][c.ID] = c
	count := len(h.rooms[c.RoomID])
	onAudience := h.onAudience
	onReady := h.onReady
	h.mu.Unlock()
	if onAudience != nil {
		onAudience(c.RoomID, count)
	}
	if onReady != nil {
		onReady(c.RoomID, c.AgentID)
	}
	h.logger.Debug("agent connected", zap.String("client_id", c.ID), zap.String("room_id", c.RoomID.String()))
}

// Unregister removes a client from a room. Cancels Redis subscription when last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	var count int
	if m, ok := h.rooms[c.RoomID]; ok {
		delete(m, c.ID)
		count = len(m)
		if count == 0 {
			delete(h.rooms, c.RoomID)
			if cancel, ok := h.subs[c.RoomID]; ok {
				cancel()
				delete(h.subs, c.RoomID)
			}
		}
	}
	onAudience := h.onAudience
	h.mu.Unlock()
	if onAudience != nil && count > 0 {
		onAudience(c.RoomID, count)
	}
	h.logger.Debug("agent disconnected", zap.String("client_id", c.ID), zap.String("room_id", c.RoomID.String()))
}

// BroadcastToRoom sends a message to all clients in a room (local only).
func (h *Hub) BroadcastToRoom(roomID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[roomID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToRoomAndPublish sends to local clients and publishes to Redis for other instances.
func (h *Hub) BroadcastToRoomAndPublish(roomID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToRoom(roomID, event, payload)
	if h.redis != nil {
		_ = h.redis.PublishRoomEvent(roomID, event, data)
	}
}

// PublishToRoomOnly publishes to Redis only (no local broadcast). Used so
// the Redis subscriber callback performs the broadcast once for all
// instances (including this one), avoiding duplicate delivery.
func (h *Hub) PublishToRoomOnly(roomID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		_ = h.redis.PublishRoomEvent(roomID, event, data)
		return
	}
	h.BroadcastToRoom(roomID, event, payload)
}

// AudienceCount returns the number of connected clients in a room.
func (h *Hub) AudienceCount(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// SendToClient sends a message to a single client in a room.
func (h *Hub) SendToClient(roomID uuid.UUID, clientID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	clients := h.rooms[roomID]
	c, ok := clients[clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
