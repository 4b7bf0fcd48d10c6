package session

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/outbox"
)

// enqueueRtcCreate emits rtc.create to the room topic (spec §4.4).
func enqueueRtcCreate(ctx context.Context, tx pgx.Tx, rtc *models.Rtc) error {
	return outbox.Enqueue(ctx, tx, "rtc", rtc.ID, models.StageRtcCreate, models.TopicRoom, rtc.RoomID.String(), rtc)
}

// enqueueStreamUpdate emits rtc_stream.update to the room topic on every
// JanusRtcStream transition (webrtcup/hangup/detach/backend offline).
func enqueueStreamUpdate(ctx context.Context, tx pgx.Tx, stream *models.JanusRtcStream) error {
	return outbox.Enqueue(ctx, tx, "janus_rtc_stream", stream.ID, models.StageRtcStreamUpdate, models.TopicRoom, stream.RtcID.String(), stream)
}
