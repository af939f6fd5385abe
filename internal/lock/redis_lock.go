// Package lock provides a Redis advisory lock used to keep concurrent
// lifecycle scans from doing duplicate work across processes.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// ErrNotHeld is returned by an unlock whose lock had already expired or
// been taken over.
var ErrNotHeld = errors.New("lock no longer held")

// RedisLock is a single-key SET NX PX lock.
type RedisLock struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

// NewRedisLock returns a lock on key that expires after ttl if its holder
// never releases it.
func NewRedisLock(rdb redis.Cmdable, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLock{rdb: rdb, key: key, ttl: ttl}
}

// TryLock attempts to take the lock without waiting.  When acquired, the
// returned unlock function must be called to release it.
func (l *RedisLock) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Int()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}
	return unlock, true, nil
}
