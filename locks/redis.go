package locks

import (
	"context"
	"time"

	"github.com/playgrid/fieldbook/cache"
	"github.com/playgrid/fieldbook/utils"
)

// RedisLocker backs the reservation lock with the shared store so duplicate
// submissions are collapsed across processes. TTL expiry is enforced by redis
// itself, which also self-heals locks held by crashed processes.
type RedisLocker struct {
	cache *cache.RedisCache
}

func CreateRedisLocker(c *cache.RedisCache) *RedisLocker {
	return &RedisLocker{cache: c}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.cache.SetIfAbsent(ctx, key, "1", ttl)
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	return l.cache.Delete(ctx, key)
}

// Select health-probes the shared store at startup and falls back to the
// in-process locker when it is unreachable. The choice is made once so tests
// can force either path deterministically.
func Select(ctx context.Context, c *cache.RedisCache) Locker {
	if c == nil {
		utils.Warn(ctx, "lock store not configured, using in-process locks")
		return CreateLocalLocker()
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.Ping(probeCtx); err != nil {
		utils.Warn(ctx, "lock store unreachable, using in-process locks", map[string]interface{}{
			"error": err.Error(),
		})
		return CreateLocalLocker()
	}

	return CreateRedisLocker(c)
}
