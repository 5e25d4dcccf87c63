package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kuma-mall/kuma-admin/internal/platform/db"
	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
)

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = fmt.Errorf("%w: idempotent request already processed", httpx.ErrDuplicate)

// IdempotencyStore persists processed request keys. Claim runs on whatever
// DBTX it is given so callers can make the claim part of their transaction.
type IdempotencyStore struct {
	db  db.DBTX
	now func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(conn db.DBTX) *IdempotencyStore {
	return &IdempotencyStore{db: conn, now: time.Now}
}

// Claim records key for module on conn. A repeated key yields ErrIdempotencyConflict.
func (s *IdempotencyStore) Claim(ctx context.Context, conn db.DBTX, key, module string) error {
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	if conn == nil {
		conn = s.db
	}
	_, err := conn.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, s.now())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention and reports how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	cutoff := s.now().Add(-olderThan)
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
