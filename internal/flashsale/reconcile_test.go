package flashsale

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileTimeExpiresEndedSale(t *testing.T) {
	f := newFixture()
	seeded := f.sale("SKU-1", -2*time.Hour, -time.Minute, 5, StatusActive)

	res, err := f.svc.ReconcileTime(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, TimeResult{Total: 1, ActiveToExpired: 1}, res)
	assert.Equal(t, StatusExpired, f.repo.snapshot(seeded.ID).Status)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, SourceReconcile, events[0].Source)
	assert.Equal(t, 1, f.metrics.counts[string(StatusExpired)])
}

func TestReconcileTimeTransitions(t *testing.T) {
	f := newFixture()
	opened := f.sale("OPENED", -time.Hour, time.Hour, 5, StatusPending)
	ended := f.sale("ENDED", -3*time.Hour, -time.Hour, 5, StatusPending)
	waiting := f.sale("WAITING", time.Hour, 2*time.Hour, 5, StatusPending)
	running := f.sale("RUNNING", -time.Hour, time.Hour, 5, StatusActive)
	done := f.sale("DONE", -3*time.Hour, -time.Hour, 5, StatusExpired)

	res, err := f.svc.ReconcileTime(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, TimeResult{Total: 5, PendingToActive: 1, ActiveToExpired: 1, NoChange: 3}, res)

	assert.Equal(t, StatusActive, f.repo.snapshot(opened.ID).Status)
	assert.Equal(t, StatusExpired, f.repo.snapshot(ended.ID).Status)
	assert.Equal(t, StatusPending, f.repo.snapshot(waiting.ID).Status)
	assert.Equal(t, StatusActive, f.repo.snapshot(running.ID).Status)
	assert.Equal(t, StatusExpired, f.repo.snapshot(done.ID).Status)
}

func TestReconcileTimeNeverRevivesExpiredSale(t *testing.T) {
	f := newFixture()
	// The window was extended after the sale had expired.
	revived := f.sale("SKU-1", -time.Hour, time.Hour, 5, StatusExpired)
	early := f.sale("SKU-2", time.Hour, 2*time.Hour, 5, StatusExpired)

	for i := 0; i < 3; i++ {
		_, err := f.svc.ReconcileTime(context.Background(), f.now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	assert.Equal(t, StatusExpired, f.repo.snapshot(revived.ID).Status)
	assert.Equal(t, StatusExpired, f.repo.snapshot(early.ID).Status)
}

func TestReconcilePrefersSoldOutOverExpired(t *testing.T) {
	f := newFixture()
	seeded := f.sale("SKU-1", -3*time.Hour, -time.Hour, 0, StatusActive)

	res, err := f.svc.Reconcile(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Time.ActiveToExpired)
	assert.Equal(t, 1, res.Time.NoChange)
	assert.Equal(t, SoldOutResult{Total: 1, UpdatedToSoldOut: 1}, res.SoldOut)
	assert.Equal(t, StatusSoldOut, f.repo.snapshot(seeded.ID).Status)
	assert.Equal(t, seeded.Derive(f.now), f.repo.snapshot(seeded.ID).Status)
}

func TestReconcileSoldOutPass(t *testing.T) {
	f := newFixture()
	empty := f.sale("EMPTY", -time.Hour, time.Hour, 0, StatusActive)
	emptyPending := f.sale("EMPTY-PENDING", time.Hour, 2*time.Hour, 0, StatusPending)
	f.sale("ALREADY", -time.Hour, time.Hour, 0, StatusSoldOut)
	f.sale("STOCKED", -time.Hour, time.Hour, 4, StatusActive)

	res, err := f.svc.ReconcileSoldOut(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, SoldOutResult{Total: 2, UpdatedToSoldOut: 2}, res)
	assert.Equal(t, StatusSoldOut, f.repo.snapshot(empty.ID).Status)
	assert.Equal(t, StatusSoldOut, f.repo.snapshot(emptyPending.ID).Status)
}

func TestReconcileCountsErrorsAndContinues(t *testing.T) {
	f := newFixture()
	broken := f.sale("BROKEN", -3*time.Hour, -time.Hour, 5, StatusActive)
	fine := f.sale("FINE", -3*time.Hour, -time.Hour, 5, StatusActive)
	brokenEmpty := f.sale("BROKEN-EMPTY", -time.Hour, time.Hour, 0, StatusActive)
	f.repo.failStatus[broken.ID] = errStore
	f.repo.failStatus[brokenEmpty.ID] = errStore

	res, err := f.svc.Reconcile(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, TimeResult{Total: 3, ActiveToExpired: 1, NoChange: 1, Errors: 1}, res.Time)
	assert.Equal(t, SoldOutResult{Total: 1, Errors: 1}, res.SoldOut)
	assert.Equal(t, StatusExpired, f.repo.snapshot(fine.ID).Status)
	assert.Equal(t, StatusActive, f.repo.snapshot(broken.ID).Status)
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture()
	f.sale("A", -time.Hour, time.Hour, 5, StatusPending)
	f.sale("B", -3*time.Hour, -time.Hour, 5, StatusActive)
	f.sale("C", -time.Hour, time.Hour, 0, StatusActive)

	_, err := f.svc.Reconcile(context.Background(), f.now)
	require.NoError(t, err)
	writes := f.repo.writes()

	second, err := f.svc.Reconcile(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, writes, f.repo.writes())
	assert.Equal(t, 3, second.Time.NoChange)
	assert.Zero(t, second.SoldOut.Total)
}

func TestReconcileStopsOnCancelledContext(t *testing.T) {
	f := newFixture()
	seeded := f.sale("SKU-1", -3*time.Hour, -time.Hour, 5, StatusActive)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := f.svc.Reconcile(ctx, f.now)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Time.Total)
	assert.Zero(t, res.Time.ActiveToExpired)
	assert.Equal(t, StatusActive, f.repo.snapshot(seeded.ID).Status)
}

func TestReconcileListFailure(t *testing.T) {
	f := newFixture()
	f.repo.listErr = errStore
	_, err := f.svc.Reconcile(context.Background(), f.now)
	assert.ErrorIs(t, err, errStore)
}
