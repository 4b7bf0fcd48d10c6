package models

import (
	"time"

	"github.com/google/uuid"
)

// RtcWriterConfig is the per-RTC publisher policy.
type RtcWriterConfig struct {
	RtcID      uuid.UUID `json:"rtc_id"`
	SendVideo  bool      `json:"send_video"`
	SendAudio  bool      `json:"send_audio"`
	VideoRemb  *int64    `json:"video_remb,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WriterConfigDelta is a partial update; nil fields are left unchanged.
type WriterConfigDelta struct {
	SendVideo *bool  `json:"send_video,omitempty"`
	SendAudio *bool  `json:"send_audio,omitempty"`
	VideoRemb *int64 `json:"video_remb,omitempty"`
}

// Merge applies non-nil fields from delta onto the config, returning the
// new state. The receiver is not mutated.
func (c RtcWriterConfig) Merge(delta WriterConfigDelta) RtcWriterConfig {
	next := c
	if delta.SendVideo != nil {
		next.SendVideo = *delta.SendVideo
	}
	if delta.SendAudio != nil {
		next.SendAudio = *delta.SendAudio
	}
	if delta.VideoRemb != nil {
		next.VideoRemb = delta.VideoRemb
	}
	return next
}

// RtcWriterConfigSnapshot is an immutable append-only row capturing only
// the fields touched by one update call, so transcoders can replay mute
// history (spec §4.6/§8).
type RtcWriterConfigSnapshot struct {
	ID        uuid.UUID          `json:"id"`
	RtcID     uuid.UUID          `json:"rtc_id"`
	Delta     WriterConfigDelta  `json:"delta"`
	CreatedAt time.Time          `json:"created_at"`
}

// RtcReaderConfig is the per-(rtc, reader) receive policy.
type RtcReaderConfig struct {
	RtcID         uuid.UUID `json:"rtc_id"`
	ReaderAgentID uuid.UUID `json:"reader_agent_id"`
	ReceiveVideo  bool      `json:"receive_video"`
	ReceiveAudio  bool      `json:"receive_audio"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ReaderConfigDelta is a partial reader-config update.
type ReaderConfigDelta struct {
	ReceiveVideo *bool `json:"receive_video,omitempty"`
	ReceiveAudio *bool `json:"receive_audio,omitempty"`
}

// Merge applies non-nil fields from delta onto the config.
func (c RtcReaderConfig) Merge(delta ReaderConfigDelta) RtcReaderConfig {
	next := c
	if delta.ReceiveVideo != nil {
		next.ReceiveVideo = *delta.ReceiveVideo
	}
	if delta.ReceiveAudio != nil {
		next.ReceiveAudio = *delta.ReceiveAudio
	}
	return next
}

// GroupAgent is a room's partition of agents into numbered groups.
type GroupAgent struct {
	RoomID  uuid.UUID `json:"room_id"`
	AgentID uuid.UUID `json:"agent_id"`
	Number  int       `json:"number"`
}
