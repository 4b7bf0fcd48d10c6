// Package intake consumes the cross-service VideoGroup-intent events
// (spec §4.4 "VideoGroup intent events for cross-service orchestration
// (create/update/delete), consumed by this same service and transformed
// into domain events after backend reconfiguration succeeds"). Another
// service publishes a group-partition change intent onto the shared bus
// list; this consumer applies it through the same C4 path an operator's
// group.update HTTP call uses, so the resulting group.update domain
// event is emitted exactly once, after the partition change commits.
package intake

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/session"
)

// videoGroupIntentListKey is the Redis list VideoGroup intents arrive on,
// separate from the outbox's own outbound outbox.busListKey.
const videoGroupIntentListKey = "bus:video-group-intents"

// VideoGroupIntent is the inbound payload for a create/update/delete
// group-partition intent.
type VideoGroupIntent struct {
	Type   models.OutboxStage  `json:"type"`
	RoomID uuid.UUID           `json:"room_id"`
	Groups []models.GroupAgent `json:"groups"`
}

// Consumer drains VideoGroup intents and applies them via session.Service.
type Consumer struct {
	client *redis.Client
	svc    *session.Service
	logger *zap.Logger
}

// NewConsumer creates a VideoGroup intent consumer.
func NewConsumer(client *redis.Client, svc *session.Service, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{client: client, svc: svc, logger: logger}
}

// Run drains the intent list until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("video group intent consumer stopping")
			return
		default:
		}

		result, err := c.client.BLPop(ctx, 5*time.Second, videoGroupIntentListKey).Result()
		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				c.logger.Warn("video group intent blpop failed", zap.Error(err))
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}
		c.handle(ctx, result[1])
	}
}

func (c *Consumer) handle(ctx context.Context, raw string) {
	var intent VideoGroupIntent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		c.logger.Warn("invalid video group intent payload", zap.Error(err))
		return
	}

	groups := intent.Groups
	if intent.Type == models.StageVideoGroupDelete {
		groups = nil
	}
	if _, err := c.svc.UpdateGroups(ctx, intent.RoomID, groups); err != nil {
		c.logger.Warn("apply video group intent failed", zap.Error(err),
			zap.String("room_id", intent.RoomID.String()), zap.String("type", string(intent.Type)))
	}
}
