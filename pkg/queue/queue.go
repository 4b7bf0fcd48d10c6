// Package queue provides a small Redis-backed job queue used to archive
// finalized recordings to long-term S3 storage outside of the vacuum
// sweep's own request/response cycle with backends.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueRecordingArchival is the Redis list key for archival jobs.
	QueueRecordingArchival = "vacuum:recording_archival"
	// QueueDLQ is the dead-letter queue for jobs that exhausted retries.
	QueueDLQ = "vacuum:dlq"
	// MaxRetries is the number of failed attempts after which a job moves to the DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between dequeue retries on error.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind. Recording archival is the only kind
// this service produces.
type JobType string

const (
	JobTypeRecordingArchival JobType = "recording_archival"
)

// RecordingArchivalPayload carries what's needed to copy a finalized
// recording's media to the archival bucket: one of its backend mjr dump
// URIs, fetched and re-uploaded under a stable S3 key.
type RecordingArchivalPayload struct {
	RtcID      uuid.UUID `json:"rtc_id"`
	SourceURI  string    `json:"source_uri"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueRecordingArchival enqueues a recording archival job.
func (q *Queue) EnqueueRecordingArchival(ctx context.Context, payload RecordingArchivalPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeRecordingArchival,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueRecordingArchival, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued recording archival job", zap.String("job_id", job.ID), zap.String("rtc_id", payload.RtcID.String()))
	return nil
}

// Dequeue blocks until a job is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, 0, QueueRecordingArchival).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt, or moves it to the DLQ
// once MaxRetries is exhausted.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueRecordingArchival, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
