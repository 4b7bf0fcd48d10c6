package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxErrorKind classifies why a delivery attempt failed.
type OutboxErrorKind string

const (
	OutboxErrNone      OutboxErrorKind = ""
	OutboxErrPublish   OutboxErrorKind = "publish_failed"
	OutboxErrMarshal   OutboxErrorKind = "message_building_failed"
	OutboxErrTransport OutboxErrorKind = "transport_unavailable"
)

// OutboxStage names the pending payload kind for an entry; it doubles as
// the event label delivered to consumers (spec §4.4).
type OutboxStage string

const (
	StageRoomCreate          OutboxStage = "room.create"
	StageRoomUpdate          OutboxStage = "room.update"
	StageRoomClose           OutboxStage = "room.close"
	StageRoomEnter           OutboxStage = "room.enter"
	StageRoomLeave           OutboxStage = "room.leave"
	StageRtcCreate           OutboxStage = "rtc.create"
	StageRtcStreamUpdate     OutboxStage = "rtc_stream.update"
	StageAgentWriterConfig   OutboxStage = "agent_writer_config.update"
	StageAgentReaderConfig   OutboxStage = "agent_reader_config.update"
	StageGroupUpdate         OutboxStage = "group.update"
	StageRoomUpload          OutboxStage = "room.upload"
	StageVideoGroupCreate    OutboxStage = "video_group.create"
	StageVideoGroupUpdate    OutboxStage = "video_group.update"
	StageVideoGroupDelete    OutboxStage = "video_group.delete"
)

// OutboxTopic selects which external sink an entry targets.
type OutboxTopic string

const (
	TopicAudience OutboxTopic = "audience" // audiences/:audience/events
	TopicRoom     OutboxTopic = "room"     // rooms/:room_id/events
	TopicBus      OutboxTopic = "bus"      // inter-service event bus
)

// OutboxEntry is a durable (entity_type,id) row with a pending payload,
// inserted in the same transaction as the state change that produced it
// (spec §4.4, §5, §8).
type OutboxEntry struct {
	ID                 uuid.UUID       `json:"id"`
	EntityType         string          `json:"entity_type"`
	EntityID           uuid.UUID       `json:"entity_id"`
	Stage              OutboxStage     `json:"stage"`
	Topic              OutboxTopic     `json:"topic"`
	RoutingKey         string          `json:"routing_key"`
	Payload            json.RawMessage `json:"payload"`
	CreatedAt          time.Time       `json:"created_at"`
	DeliveryDeadlineAt time.Time       `json:"delivery_deadline_at"`
	RetryCount         int             `json:"retry_count"`
	ErrorKind          OutboxErrorKind `json:"error_kind,omitempty"`
}

// BusEnvelope is the versioned inter-service event-bus payload shape
// (spec §6 "Broker API"). CreatedAt is stamped at event-creation time,
// not at request-arrival time (see SPEC_FULL.md Open Questions §1).
type BusEnvelope struct {
	Type       string          `json:"type"`
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
}
