// Package worker drains the recording archival queue: one job per
// finalized recording's backend mjr dump, copied into the archival S3
// bucket so the plain download-url endpoint keeps working after a
// backend rotates its local storage.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/backend/internal/recordings"
	"github.com/aura-webinar/backend/pkg/queue"
	"github.com/aura-webinar/backend/pkg/storage"
)

// RecordingArchiver processes recording archival jobs: fetch a backend's
// mjr dump URI and copy it into the recordings S3 bucket.
type RecordingArchiver struct {
	recRepo *recordings.Repository
	s3      *storage.S3
	queue   *queue.Queue
	logger  *zap.Logger
}

// NewRecordingArchiver creates a recording archival processor.
func NewRecordingArchiver(recRepo *recordings.Repository, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *RecordingArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingArchiver{recRepo: recRepo, s3: s3, queue: q, logger: logger}
}

// Process executes one archival job.
func (p *RecordingArchiver) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRecordingArchival {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RecordingArchivalPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	rec, err := p.recRepo.GetByRtcID(ctx, payload.RtcID)
	if err != nil {
		return fmt.Errorf("load recording: %w", err)
	}
	if rec == nil || rec.S3Key != "" {
		p.logger.Debug("recording already archived or missing", zap.String("rtc_id", payload.RtcID.String()))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.SourceURI, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch mjr dump: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch mjr dump status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.RecordingKey(payload.RtcID.String(), "mjr")

	if _, err := p.s3.Upload(ctx, p.s3.UploadRecordingsBucket(), key, contentType, resp.Body, resp.ContentLength, false); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.recRepo.SetS3Key(ctx, payload.RtcID, key); err != nil {
		return fmt.Errorf("record s3 key: %w", err)
	}

	p.logger.Info("recording archived", zap.String("rtc_id", payload.RtcID.String()), zap.String("s3_key", key))
	return nil
}

// Run drains the archival queue until ctx is cancelled, retrying failed
// jobs with bounded attempts before they land in the DLQ.
func (p *RecordingArchiver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("recording archiver stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
