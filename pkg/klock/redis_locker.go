package klock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/redis/go-redis/v9"
)

// redisUnlockScript releases the lock only if the caller still holds it
// (value matches), avoiding a release race against a lock that expired
// and was re-acquired by another holder.
var redisUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

// RedisLock is the external-lock-service Locker for multi-process
// deployments: SET NX with a TTL, released by a fenced Lua script.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLock returns a RedisLock guarding the given key.
func NewRedisLock(addr, password string, db int, key string) *RedisLock {
	return &RedisLock{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		key:    key,
		ttl:    30 * time.Second,
	}
}

// Acquire implements Locker using SET NX with a TTL and a fencing token
// checked on release.
func (l *RedisLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.New().String()

	for attempt := 0; attempt < MaxRetries; attempt++ {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, kerr.New(kerr.CodeAuditLockFailed, "redis lock error", kerr.WithCause(err))
		}
		if ok {
			return func() {
				_ = redisUnlockScript.Run(context.Background(), l.client, []string{l.key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, kerr.New(kerr.CodeAuditLockFailed, "lock acquisition cancelled", kerr.WithCause(ctx.Err()))
		case <-time.After(RetryInterval):
		}
	}
	return nil, kerr.New(kerr.CodeAuditLockFailed, fmt.Sprintf("timed out acquiring redis lock after %d attempts", MaxRetries))
}
