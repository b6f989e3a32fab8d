package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisLocker creates a locker that uses one Redis key per lock key, shared
// by every instance of the service.
func NewRedisLocker(client *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "redis_lock").Logger(),
	}
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	redisKey := "lock:" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}

	// Release with a fresh context so a cancelled request still frees the key.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		released, err := l.release(releaseCtx, redisKey, token)
		switch {
		case err != nil:
			// The key still expires after ttl.
			l.log.Warn().Err(err).Str("key", redisKey).Dur("ttl", l.ttl).Msg("failed to release lock")
		case !released:
			l.log.Warn().Str("key", redisKey).Dur("ttl", l.ttl).Msg("lock expired before release")
		}
	}()

	// The critical section must finish before the key can expire under it.
	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// release deletes the key only while it still holds token. It reports false
// when the key had already expired or been taken over.
func (l *RedisLocker) release(ctx context.Context, key, token string) (bool, error) {
	n, err := unlockScript.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("release lock: %w", err)
	}
	return n == 1, nil
}
