package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	startLockPrefix = "chat:start-lock:"
	lockRetryDelay  = 25 * time.Millisecond
)

// ErrLockTimeout is returned when the lock is still held after the context ends
var ErrLockTimeout = errors.New("timed out waiting for lock")

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// UserLock serializes session start per user across server processes
type UserLock struct {
	client *Client
}

// NewUserLock creates a new user lock
func NewUserLock(client *Client) *UserLock {
	return &UserLock{client: client}
}

// Acquire blocks until the lock for key is held or ctx ends.
// The lock expires after ttl even if release is never called.
func (l *UserLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := startLockPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.rdb.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
			}
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-time.After(lockRetryDelay):
		}
	}

	release := func() {
		// the caller's context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		releaseScript.Run(releaseCtx, l.client.rdb, []string{fullKey}, token)
	}
	return release, nil
}
