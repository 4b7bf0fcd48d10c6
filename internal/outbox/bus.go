package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
)

// busListKey is the Redis list other services consume from (spec §4.4
// "event bus for inter-service events"; VideoGroup intent events flow
// here for cross-service orchestration).
const busListKey = "bus:domain-events"

// BusSink pushes bus-topic entries onto the inter-service event-bus list.
type BusSink struct {
	Client *redis.Client
	Logger *zap.Logger
}

func (b BusSink) Deliver(ctx context.Context, entry models.OutboxEntry) error {
	envelope := models.BusEnvelope{
		Type:       string(entry.Stage),
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Data:       entry.Payload,
		CreatedAt:  entry.CreatedAt,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return apperr.Wrap(apperr.KindMessageBuildingFailed, err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.Client.RPush(ctx, busListKey, body).Err(); err != nil {
		return apperr.Wrap(apperr.KindPublishFailed, err)
	}
	return nil
}
