package outbox

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/realtime"
)

// BrokerSink delivers audience/room-topic entries to connected agents via
// the realtime hub (spec §4.4 "broker topic for client notifications").
type BrokerSink struct {
	Hub *realtime.Hub
}

func (b BrokerSink) Deliver(ctx context.Context, entry models.OutboxEntry) error {
	roomID, err := routingKeyRoomID(entry)
	if err != nil {
		return err
	}
	b.Hub.BroadcastToRoomAndPublish(roomID, string(entry.Stage), entry.Payload)
	return nil
}

func routingKeyRoomID(entry models.OutboxEntry) (uuid.UUID, error) {
	if entry.Topic == models.TopicRoom {
		return uuid.Parse(entry.RoutingKey)
	}
	// Audience-topic entries carry the audience string as routing key; every
	// one of them is a room entity, so it routes to the room it names.
	return entry.EntityID, nil
}
