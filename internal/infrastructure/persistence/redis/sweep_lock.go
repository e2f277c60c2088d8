package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a SET NX based lock shared by every instance.
type Locker struct {
	cache *Cache
}

// NewLocker creates a Locker.
func NewLocker(cache *Cache) *Locker {
	return &Locker{cache: cache}
}

// Acquire takes key for ttl. It fails with shared.ErrLocked while another
// holder owns it. The returned func releases the lock if it is still ours.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}

	token := uuid.NewString()
	lockKey := LockKey(key)

	ok, err := l.cache.Client().SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, shared.ErrLocked
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.cache.Client(), []string{lockKey}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}, nil
}
