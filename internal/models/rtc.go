package models

import (
	"time"

	"github.com/google/uuid"
)

// Rtc is a publish/subscribe channel within a room.
type Rtc struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ConnectIntent is the intent of an rtc.connect request.
type ConnectIntent string

const (
	IntentRead  ConnectIntent = "read"
	IntentWrite ConnectIntent = "write"
)

// AgentStatus is the lifecycle state of an Agent row.
type AgentStatus string

const (
	AgentInProgress AgentStatus = "in_progress"
	AgentReady      AgentStatus = "ready"
)

// Agent is a client's presence in a room.
type Agent struct {
	AgentID   uuid.UUID   `json:"agent_id"`
	RoomID    uuid.UUID   `json:"room_id"`
	Status    AgentStatus `json:"status"`
	Label     string      `json:"label,omitempty"`
	EnteredAt time.Time   `json:"entered_at"`
}

// ConnectionStatus is the lifecycle state of an AgentConnection row.
type ConnectionStatus string

const (
	ConnInProgress ConnectionStatus = "in_progress"
	ConnConnected  ConnectionStatus = "connected"
)

// AgentConnection is one agent attached to one RTC via a backend handle.
type AgentConnection struct {
	AgentID   uuid.UUID        `json:"agent_id"`
	RtcID     uuid.UUID        `json:"rtc_id"`
	HandleID  int64            `json:"handle_id"`
	BackendID uuid.UUID        `json:"backend_id"`
	Intent    ConnectIntent    `json:"intent"`
	Status    ConnectionStatus `json:"status"`
	Label     string           `json:"label,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// OrphanedRoom marks a room whose host has left, pending forced closure.
type OrphanedRoom struct {
	RoomID  uuid.UUID `json:"room_id"`
	AddedAt time.Time `json:"added_at"`
}
