// Package outbox implements the C5 Outbox/Notifier: entries are written
// in the same transaction as the state change that produced them, then
// delivered at-least-once by a background worker (spec §4.4, §5).
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
)

// Enqueue inserts one outbox entry within the caller's transaction.
// Callers in the session package call this immediately after the state
// mutation that produced the event, before committing.
func Enqueue(ctx context.Context, tx pgx.Tx, entityType string, entityID uuid.UUID, stage models.OutboxStage, topic models.OutboxTopic, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.KindMessageBuildingFailed, err)
	}
	const q = `INSERT INTO outbox_entries (id, entity_type, entity_id, stage, topic, routing_key, payload, created_at, delivery_deadline_at, retry_count)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, now(), now(), 0)`
	_, err = tx.Exec(ctx, q, entityType, entityID, stage, topic, routingKey, body)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return nil
}

// backoff computes the next delivery_deadline_at for a failed entry,
// doubling per retry and bounded by maxInterval (spec §4.4).
func backoff(retryCount int, base, maxInterval time.Duration) time.Duration {
	d := base
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= maxInterval {
			return maxInterval
		}
	}
	if d > maxInterval {
		return maxInterval
	}
	return d
}
