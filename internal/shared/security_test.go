package shared_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
	"github.com/kuma-mall/kuma-admin/internal/shared"
)

func TestCSRFTokenLifecycle(t *testing.T) {
	sm, _ := newManager(t)
	sess, _ := roundTrip(t, sm, nil)
	csrf := shared.NewCSRFManager("csrf-secret")
	ctx := context.Background()

	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	require.NoError(t, csrf.VerifyToken(ctx, sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, "nope"), shared.ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, ""), shared.ErrCSRFTokenMissing)
}

func TestAPIKeyMatches(t *testing.T) {
	cases := []struct {
		name       string
		configured string
		presented  string
		want       bool
	}{
		{"match", "k3y", "k3y", true},
		{"wrong", "k3y", "key", false},
		{"prefix", "k3y", "k3", false},
		{"empty presented", "k3y", "", false},
		{"unconfigured", "", "", false},
		{"unconfigured with key", "", "k3y", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, shared.APIKeyMatches(tc.configured, tc.presented))
		})
	}
}

func TestLockerExclusive(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := shared.NewLocker(client)
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, shared.ReconcileLockKey, 55*time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, shared.ReconcileLockKey, 55*time.Second)
	assert.ErrorIs(t, err, shared.ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists(shared.ReconcileLockKey))

	second, err := locker.Acquire(ctx, shared.ReconcileLockKey, 55*time.Second)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestLockExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := shared.NewLocker(client)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	// The stale holder must not release the new owner's lock.
	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("k"))
	require.NoError(t, fresh.Release(ctx))
}

func TestPagination(t *testing.T) {
	p := shared.NewPagination(0, 0, 25)
	assert.Equal(t, shared.Pagination{Page: 1, PerPage: 10, Total: 25, TotalPages: 3}, p)

	p = shared.NewPagination(2, 500, 250)
	assert.Equal(t, 100, p.PerPage)
	assert.Equal(t, 3, p.TotalPages)

	assert.Equal(t, 20, shared.Offset(3, 10))
	assert.Equal(t, 0, shared.Offset(-1, 10))
}

func TestParseListFilters(t *testing.T) {
	filters, err := shared.ParseListFilters(url.Values{
		"page": {"2"}, "limit": {"500"}, "search": {"tea"}, "sort": {"price"},
		"dir": {"desc"}, "is_active": {"false"}, "category_id": {"7"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, filters.Page)
	assert.Equal(t, shared.MaxLimit, filters.Limit)
	assert.Equal(t, shared.SortDesc, filters.SortDir)
	require.NotNil(t, filters.IsActive)
	assert.False(t, *filters.IsActive)
	require.NotNil(t, filters.CategoryID)
	assert.Equal(t, int64(7), *filters.CategoryID)

	filters, err = shared.ParseListFilters(url.Values{"dir": {"sideways"}})
	require.NoError(t, err)
	assert.Equal(t, shared.SortAsc, filters.SortDir)
	assert.Nil(t, filters.IsActive)

	_, err = shared.ParseListFilters(url.Values{"is_active": {"maybe"}})
	assert.ErrorIs(t, err, httpx.ErrValidation)
	_, err = shared.ParseListFilters(url.Values{"category_id": {"-1"}})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}
