package outbox

import (
	"context"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
)

// Sink delivers one entry's payload to its external destination (broker
// topic for client notifications, event bus for inter-service events;
// spec §4.4).
type Sink interface {
	Deliver(ctx context.Context, entry models.OutboxEntry) error
}

// Sinks routes an entry to the sink for its topic.
type Sinks struct {
	Broker Sink // audience/room topics, client-facing
	Bus    Sink // inter-service event bus
}

func (s Sinks) deliver(ctx context.Context, entry models.OutboxEntry) error {
	var sink Sink
	switch entry.Topic {
	case models.TopicBus:
		sink = s.Bus
	case models.TopicAudience, models.TopicRoom:
		sink = s.Broker
	default:
		return apperr.New(apperr.KindMessageBuildingFailed, "unknown outbox topic: "+string(entry.Topic))
	}
	if sink == nil {
		return apperr.New(apperr.KindPublishFailed, "no sink configured for topic "+string(entry.Topic))
	}
	return sink.Deliver(ctx, entry)
}
