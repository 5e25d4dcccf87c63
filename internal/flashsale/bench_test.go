package flashsale

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func BenchmarkCalculateStatus(b *testing.B) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	start, end := now.Add(-time.Hour), now.Add(time.Hour)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = CalculateStatus(start, end, i%3, now)
	}
}

// BenchmarkReconcileSteadyState measures a pass over a catalogue that is
// already in sync, which is what most scheduled ticks see.
func BenchmarkReconcileSteadyState(b *testing.B) {
	f := newFixture()
	for i := 0; i < 1000; i++ {
		f.sale(fmt.Sprintf("SKU-%04d", i), time.Duration(i%5-2)*time.Hour, time.Duration(i%5+1)*time.Hour, i%7, StatusPending)
	}
	ctx := context.Background()
	if _, err := f.svc.Reconcile(ctx, f.now); err != nil {
		b.Fatalf("prime reconcile: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, err := f.svc.Reconcile(ctx, f.now)
		if err != nil {
			b.Fatalf("reconcile: %v", err)
		}
		if result.Time.Errors+result.SoldOut.Errors > 0 {
			b.Fatalf("unexpected record errors: %+v", result)
		}
	}
}
