package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kuma-mall/kuma-admin/internal/flashsale"
	jobmetrics "github.com/kuma-mall/kuma-admin/internal/jobs"
	"github.com/kuma-mall/kuma-admin/internal/shared"
)

// reconcileLockTTL stays under the one minute cron period so a crashed run
// never blocks the next tick.
const reconcileLockTTL = 55 * time.Second

// Reconciler runs both reconciliation passes.
type Reconciler interface {
	Reconcile(ctx context.Context, now time.Time) (flashsale.ReconcileResult, error)
	Now() time.Time
}

// FlashSaleReconcileJob runs the scheduled reconciliation under a Redis lock
// so overlapping workers never process the same tick twice.
type FlashSaleReconcileJob struct {
	reconciler Reconciler
	locker     *shared.Locker
	logger     *slog.Logger
	metrics    *jobmetrics.Metrics
}

// NewFlashSaleReconcileJob constructs the job handler. locker may be nil to
// run without cross-instance locking.
func NewFlashSaleReconcileJob(reconciler Reconciler, locker *shared.Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *FlashSaleReconcileJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlashSaleReconcileJob{reconciler: reconciler, locker: locker, logger: logger, metrics: metrics}
}

// Handle executes one reconciliation tick.
func (j *FlashSaleReconcileJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.reconciler == nil {
		return errors.New("flashsale reconcile: dependencies not configured")
	}
	log := j.logger.With(slog.String("job", TaskFlashSaleReconcile))

	if j.locker != nil {
		lock, lerr := j.locker.Acquire(ctx, shared.ReconcileLockKey, reconcileLockTTL)
		if errors.Is(lerr, shared.ErrLockNotAcquired) {
			log.Info("reconcile already running elsewhere, skipping tick")
			return nil
		}
		if lerr != nil {
			return lerr
		}
		defer func() {
			if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
				log.Warn("release reconcile lock", slog.Any("error", rerr))
			}
		}()
	}

	tracker := j.metrics.Track(TaskFlashSaleReconcile)
	defer func() {
		err = tracker.End(err)
	}()

	res, err := j.reconciler.Reconcile(ctx, j.reconciler.Now())
	j.metrics.AddRecordErrors(TaskFlashSaleReconcile, res.Time.Errors+res.SoldOut.Errors)
	if err != nil {
		log.Error("reconcile flash sales", slog.Any("error", err))
		return err
	}
	log.Info("reconciled flash sales",
		slog.Int("total", res.Time.Total),
		slog.Int("pending_to_active", res.Time.PendingToActive),
		slog.Int("active_to_expired", res.Time.ActiveToExpired),
		slog.Int("no_change", res.Time.NoChange),
		slog.Int("updated_to_sold_out", res.SoldOut.UpdatedToSoldOut),
		slog.Int("errors", res.Time.Errors+res.SoldOut.Errors))
	return nil
}
