package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/backend/internal/models"
)

// Config bundles the outbox worker's tunables (spec §4.4).
type Config struct {
	MessagesPerTry      int
	PollInterval        time.Duration
	BaseRetryInterval    time.Duration
	MaxDeliveryInterval time.Duration
}

// Worker pulls due entries and dispatches them to their sink, retrying
// with bounded exponential backoff on failure (spec §4.4).
type Worker struct {
	repo   *Repository
	sinks  Sinks
	cfg    Config
	logger *zap.Logger
}

func NewWorker(repo *Repository, sinks Sinks, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{repo: repo, sinks: sinks, cfg: cfg, logger: logger}
}

// Run polls until ctx is cancelled, then returns without a final flush;
// entries not yet delivered stay in outbox_entries.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	entries, err := w.repo.PullDue(ctx, w.cfg.MessagesPerTry)
	if err != nil {
		w.logger.Warn("outbox pull failed", zap.Error(err))
		return
	}
	for _, entry := range entries {
		w.deliver(ctx, entry)
	}
}

func (w *Worker) deliver(ctx context.Context, entry models.OutboxEntry) {
	if err := w.sinks.deliver(ctx, entry); err != nil {
		w.logger.Warn("outbox delivery failed", zap.String("entry_id", entry.ID.String()),
			zap.String("stage", string(entry.Stage)), zap.Error(err))
		next := backoff(entry.RetryCount, w.cfg.BaseRetryInterval, w.cfg.MaxDeliveryInterval)
		if markErr := w.repo.MarkFailed(ctx, entry.ID, classifyFailure(err), int(next.Seconds())); markErr != nil {
			w.logger.Error("outbox mark-failed update failed", zap.Error(markErr))
		}
		return
	}
	if err := w.repo.Delete(ctx, entry.ID); err != nil {
		w.logger.Error("outbox delete after delivery failed", zap.Error(err))
	}
}

func classifyFailure(err error) models.OutboxErrorKind {
	// Sinks return apperr-wrapped errors; the specific kind is not load
	// bearing for retry policy, so every failed entry is tagged as a
	// publish failure.
	if err == nil {
		return models.OutboxErrNone
	}
	return models.OutboxErrPublish
}
