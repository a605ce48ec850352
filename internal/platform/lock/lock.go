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

// ErrNotAcquired means another holder owns the key right now.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker runs fn while holding an exclusive lock on key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger zerolog.Logger
}

// NewRedisLocker returns a Locker backed by SET NX with a per-holder token.
// A busy key is retried until wait elapses; the lock expires after ttl even if
// the holder dies. Release failures are logged; the key then expires on ttl.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, logger zerolog.Logger) Locker {
	return &redisLocker{client: client, ttl: ttl, wait: wait, logger: logger}
}

func (l *redisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	key = "lock:" + key
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		// Release even when ctx is already cancelled.
		if err := l.release(context.WithoutCancel(ctx), key, token); err != nil {
			l.logger.Warn().Err(err).Str("lock_key", key).Dur("ttl", l.ttl).Msg("lock release failed")
		}
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(lockCtx)
}

func (l *redisLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	backoff := 25 * time.Millisecond
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		if time.Now().Add(backoff).After(deadline) {
			return ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// Nop runs fn without locking. Used when Redis is not configured; callers
// still rely on database constraints for correctness.
type Nop struct{}

func (Nop) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
