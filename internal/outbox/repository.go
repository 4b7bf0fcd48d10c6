package outbox

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
)

// Repository pulls due entries and records delivery outcomes.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PullDue returns up to limit entries whose delivery_deadline_at has
// passed (spec §4.4 "a worker pulls up to messages_per_try entries").
func (r *Repository) PullDue(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	const q = `SELECT id, entity_type, entity_id, stage, topic, routing_key, payload, created_at, delivery_deadline_at, retry_count, COALESCE(error_kind,'')
		FROM outbox_entries WHERE delivery_deadline_at <= now() ORDER BY created_at LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer rows.Close()
	var out []models.OutboxEntry
	for rows.Next() {
		var e models.OutboxEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Stage, &e.Topic, &e.RoutingKey, &e.Payload,
			&e.CreatedAt, &e.DeliveryDeadlineAt, &e.RetryCount, &e.ErrorKind); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes a successfully delivered entry.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM outbox_entries WHERE id = $1`, id)
	return err
}

// MarkFailed increments retry_count, records the failure kind, and
// reschedules delivery_deadline_at per the backoff policy.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, kind models.OutboxErrorKind, nextDeadlineSeconds int) error {
	const q = `UPDATE outbox_entries SET retry_count = retry_count + 1, error_kind = $2,
		delivery_deadline_at = now() + make_interval(secs => $3) WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, kind, nextDeadlineSeconds)
	return err
}
