package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// DefaultLease bounds how long a crashed holder can block a key.
const DefaultLease = 60 * time.Second

// releaseScript deletes the key only when this holder still owns it, so an
// expired lease re-acquired by another worker is never released by us.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// RedisLock implements Lock with a SET NX PX lease.
type RedisLock struct {
	client redis.UniversalClient
	holder string
	lease  time.Duration
}

// NewRedisLock creates a lock backed by the given client. Each RedisLock
// instance has its own holder token; Release only removes leases this
// instance acquired.
func NewRedisLock(client redis.UniversalClient, lease time.Duration) *RedisLock {
	if lease <= 0 {
		lease = DefaultLease
	}

	return &RedisLock{
		client: client,
		holder: uuid.New().String(),
		lease:  lease,
	}
}

func (l *RedisLock) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.holder, l.lease).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	err := l.client.Eval(ctx, releaseScript, []string{key}, l.holder).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}

	return nil
}
