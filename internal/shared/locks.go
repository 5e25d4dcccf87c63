package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ReconcileLockKey is the Redis key guarding flash-sale reconciliation.
const ReconcileLockKey = "flashsale:reconcile:lock"

// release only deletes the key while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lock is a held Redis lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// Locker hands out short lived Redis locks using SET NX.
type Locker struct {
	client *redis.Client
}

// NewLocker constructs a Locker.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// Acquire takes key for ttl. It returns ErrLockNotAcquired when another owner holds it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return &Lock{client: l.client, key: key, token: token}, nil
}

// Release frees the lock if it is still owned. Expired locks are ignored.
func (lk *Lock) Release(ctx context.Context) error {
	if lk == nil {
		return nil
	}
	return releaseScript.Run(ctx, lk.client, []string{lk.key}, lk.token).Err()
}
