package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/kuma-mall/kuma-admin/internal/jobs"
)

const defaultKeyRetention = 72 * time.Hour

// KeyCleaner deletes idempotency keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob prunes the purchase idempotency table.
type IdempotencyCleanupJob struct {
	store   KeyCleaner
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob constructs the job handler.
func NewIdempotencyCleanupJob(store KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{store: store, logger: logger, metrics: metrics}
}

// Handle executes the cleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	var payload IdempotencyCleanupPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = defaultKeyRetention
	}

	tracker := j.metrics.Track(TaskIdempotencyCleanup)
	defer func() {
		err = tracker.End(err)
	}()

	removed, err := j.store.Cleanup(ctx, retention)
	if err != nil {
		j.logger.Error("cleanup idempotency keys", slog.String("job", TaskIdempotencyCleanup), slog.Any("error", err))
		return err
	}
	j.logger.Info("cleaned idempotency keys",
		slog.String("job", TaskIdempotencyCleanup),
		slog.Int64("removed", removed),
		slog.Duration("retention", retention))
	return nil
}
