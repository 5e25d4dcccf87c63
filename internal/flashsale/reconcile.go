package flashsale

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ReconcileTime runs the time-based pass at now: pending sales whose window
// has opened become active and sales past their end become expired. Sales
// with no quantity left are left to ReconcileSoldOut so sold_out wins over
// expired. A failing record is counted and skipped. A cancelled context stops
// the pass and leaves the remaining records untouched.
func (s *Service) ReconcileTime(ctx context.Context, now time.Time) (TimeResult, error) {
	now = now.UTC().Truncate(time.Microsecond)
	sales, err := s.repo.ListAll(ctx)
	if err != nil {
		return TimeResult{}, fmt.Errorf("flashsale: list for time pass: %w", err)
	}

	res := TimeResult{Total: len(sales)}
	for _, sale := range sales {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var target Status
		switch {
		case sale.Derive(now) == StatusSoldOut:
			res.NoChange++
			continue
		case now.After(sale.EndAt) && sale.Status != StatusExpired:
			target = StatusExpired
		case !now.Before(sale.StartAt) && !now.After(sale.EndAt) && sale.Status == StatusPending:
			target = StatusActive
		default:
			res.NoChange++
			continue
		}

		ok, err := s.repo.UpdateStatus(ctx, sale.ID, sale.Status, target, now)
		if err != nil {
			res.Errors++
			s.log.Error("flash sale time reconcile failed",
				slog.Int64("flash_sale_id", sale.ID),
				slog.String("to", string(target)),
				slog.Any("error", err))
			continue
		}
		if !ok {
			// Another writer moved it first.
			res.NoChange++
			continue
		}
		if target == StatusExpired {
			res.ActiveToExpired++
		} else {
			res.PendingToActive++
		}
		s.transitioned(ctx, sale, sale.Status, target, SourceReconcile, now)
	}
	return res, nil
}

// ReconcileSoldOut marks every sale with no quantity left as sold_out.
func (s *Service) ReconcileSoldOut(ctx context.Context, now time.Time) (SoldOutResult, error) {
	now = now.UTC().Truncate(time.Microsecond)
	sales, err := s.repo.ListSoldOutCandidates(ctx)
	if err != nil {
		return SoldOutResult{}, fmt.Errorf("flashsale: list for sold-out pass: %w", err)
	}

	res := SoldOutResult{Total: len(sales)}
	for _, sale := range sales {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ok, err := s.repo.UpdateStatus(ctx, sale.ID, sale.Status, StatusSoldOut, now)
		if err != nil {
			res.Errors++
			s.log.Error("flash sale sold-out reconcile failed",
				slog.Int64("flash_sale_id", sale.ID),
				slog.Any("error", err))
			continue
		}
		if !ok {
			continue
		}
		res.UpdatedToSoldOut++
		s.transitioned(ctx, sale, sale.Status, StatusSoldOut, SourceReconcile, now)
	}
	return res, nil
}

// Reconcile runs the time pass then the sold-out pass.
func (s *Service) Reconcile(ctx context.Context, now time.Time) (ReconcileResult, error) {
	var out ReconcileResult
	timeRes, err := s.ReconcileTime(ctx, now)
	out.Time = timeRes
	if err != nil {
		return out, err
	}
	soldOut, err := s.ReconcileSoldOut(ctx, now)
	out.SoldOut = soldOut
	if err != nil {
		return out, err
	}
	s.log.Info("flash sale reconcile complete",
		slog.Int("total", timeRes.Total),
		slog.Int("pending_to_active", timeRes.PendingToActive),
		slog.Int("active_to_expired", timeRes.ActiveToExpired),
		slog.Int("updated_to_sold_out", soldOut.UpdatedToSoldOut),
		slog.Int("errors", timeRes.Errors+soldOut.Errors))
	return out, nil
}

// Now exposes the service clock so triggers share one time source.
func (s *Service) Now() time.Time {
	return s.now()
}
