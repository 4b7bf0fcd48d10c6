// Package recordings persists the per-RTC Recording finalization artifact
// produced by the vacuum sweep (spec §3 "Recording", §4.5) and serves
// authenticated download links for finished recordings.
package recordings

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
	"github.com/aura-webinar/backend/internal/outbox"
)

// Repository handles Recording persistence, keyed by the owning RTC.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecording(row rowScanner) (*models.Recording, error) {
	var rec models.Recording
	var segments []byte
	var mjr []string
	if err := row.Scan(&rec.RtcID, &rec.StartedAt, &segments, &rec.Status, &mjr, &rec.S3Key, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.MjrDumpsURIs = mjr
	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &rec.Segments); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

// GetByRtcID returns the recording for an RTC, or nil if none exists yet.
func (r *Repository) GetByRtcID(ctx context.Context, rtcID uuid.UUID) (*models.Recording, error) {
	const q = `SELECT rtc_id, started_at, segments, status, mjr_dumps_uris, COALESCE(s3_key,''), created_at, updated_at
		FROM recordings WHERE rtc_id = $1`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, rtcID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return rec, nil
}

// MarkInProgress creates (or re-marks) the recording row as in_progress,
// ahead of an upload request to its owning backend (spec §4.5).
func (r *Repository) MarkInProgress(ctx context.Context, rtcID uuid.UUID) error {
	const q = `INSERT INTO recordings (rtc_id, status, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (rtc_id) DO UPDATE SET status = $2, updated_at = now()`
	_, err := r.pool.Exec(ctx, q, rtcID, models.RecordingInProgress)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return nil
}

// MarkReadyWithEvent marks the recording ready (started_at, segments,
// mjr dump URIs) and enqueues the room.upload notification spec
// §4.4 requires when a Recording reaches a terminal status; both happen
// in one transaction so the event is never visible for a rolled-back
// finalization.
func (r *Repository) MarkReadyWithEvent(ctx context.Context, roomID, rtcID uuid.UUID, startedAt int64, segments []models.Segment, mjrDumpsURIs []string) error {
	body, err := json.Marshal(segments)
	if err != nil {
		return apperr.Wrap(apperr.KindMessageBuildingFailed, err)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseConnectionAcquisitionFailed, err)
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE recordings SET status = $2, started_at = $3, segments = $4, mjr_dumps_uris = $5, updated_at = now() WHERE rtc_id = $1`
	if _, err := tx.Exec(ctx, q, rtcID, models.RecordingReady, startedAt, body, mjrDumpsURIs); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	rec := models.Recording{RtcID: rtcID, StartedAt: &startedAt, Segments: segments, Status: models.RecordingReady, MjrDumpsURIs: mjrDumpsURIs}
	if err := outbox.Enqueue(ctx, tx, "rtc", rtcID, models.StageRoomUpload, models.TopicRoom, roomID.String(), rec); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return nil
}

// MarkMissingWithEvent marks the recording missing and enqueues the
// room.upload notification (spec §4.4), committed together.
func (r *Repository) MarkMissingWithEvent(ctx context.Context, roomID, rtcID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseConnectionAcquisitionFailed, err)
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE recordings SET status = $2, updated_at = now() WHERE rtc_id = $1`
	if _, err := tx.Exec(ctx, q, rtcID, models.RecordingMissing); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	rec := models.Recording{RtcID: rtcID, Status: models.RecordingMissing}
	if err := outbox.Enqueue(ctx, tx, "rtc", rtcID, models.StageRoomUpload, models.TopicRoom, roomID.String(), rec); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return nil
}

// SetS3Key records the archival object key after an optional copy of a
// finalized recording's mjr dumps to long-term storage.
func (r *Repository) SetS3Key(ctx context.Context, rtcID uuid.UUID, key string) error {
	const q = `UPDATE recordings SET s3_key = $2, updated_at = now() WHERE rtc_id = $1`
	if _, err := r.pool.Exec(ctx, q, rtcID, key); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return nil
}

// ListByRoom returns every recording belonging to RTCs owned by a room.
func (r *Repository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Recording, error) {
	const q = `SELECT r.rtc_id, r.started_at, r.segments, r.status, r.mjr_dumps_uris, COALESCE(r.s3_key,''), r.created_at, r.updated_at
		FROM recordings r JOIN rtcs t ON t.id = r.rtc_id WHERE t.room_id = $1 ORDER BY r.created_at`
	rows, err := r.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer rows.Close()
	var out []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ListPendingForClosedRooms returns RTCs belonging to already-closed rooms
// whose recording has not yet reached a terminal status (ready/missing),
// driving the vacuum sweep's upload-request pass (spec §4.5).
func (r *Repository) ListPendingForClosedRooms(ctx context.Context) ([]models.Rtc, error) {
	const q = `SELECT t.id, t.room_id, t.created_by, t.created_at
		FROM rtcs t
		JOIN rooms rm ON rm.id = t.room_id
		LEFT JOIN recordings r ON r.rtc_id = t.id
		WHERE upper(rm.time) IS NOT NULL AND upper(rm.time) <= now()
		  AND (r.rtc_id IS NULL OR r.status = $1)`
	rows, err := r.pool.Query(ctx, q, models.RecordingInProgress)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer rows.Close()
	var out []models.Rtc
	for rows.Next() {
		var rtc models.Rtc
		if err := rows.Scan(&rtc.ID, &rtc.RoomID, &rtc.CreatedBy, &rtc.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		out = append(out, rtc)
	}
	return out, rows.Err()
}
