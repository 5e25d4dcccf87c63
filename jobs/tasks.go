package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFlashSaleReconcile brings stored flash sale statuses in line with
	// their schedule and inventory.
	TaskFlashSaleReconcile = "flashsale:reconcile"
	// TaskIdempotencyCleanup prunes old purchase idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// reconcileUniqueTTL keeps at most one reconcile task queued per tick.
const reconcileUniqueTTL = 55 * time.Second

// NewFlashSaleReconcileTask builds the reconcile task. It carries no payload.
func NewFlashSaleReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskFlashSaleReconcile, nil, asynq.Queue(QueueDefault))
}

// ReconcileTaskOptions are the scheduler options for the reconcile task.
func ReconcileTaskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Unique(reconcileUniqueTTL),
		asynq.MaxRetry(0),
		asynq.Timeout(reconcileUniqueTTL),
	}
}

// IdempotencyCleanupPayload configures the retention window.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
