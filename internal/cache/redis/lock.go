package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// keyPrefix namespaces lock keys away from the event streams.
const keyPrefix = "arbwatch:lock:"

// releaseTimeout bounds the release call, which runs detached from the
// caller's context.
const releaseTimeout = 5 * time.Second

// releaseScript deletes the key only while it still holds our token, so a
// holder whose TTL lapsed cannot free its successor's lock.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockManager hands out single-holder locks built on SET NX PX.
type LockManager struct {
	rdb *redis.Client
}

func NewLockManager(c *Client) *LockManager {
	return &LockManager{rdb: c.rdb}
}

// Acquire never blocks: a held key yields domain.ErrLockHeld. The returned
// release func is idempotent and still works after ctx is cancelled.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	name := keyPrefix + key
	token := uuid.NewString()

	won, err := lm.rdb.SetNX(ctx, name, token, ttl).Result()
	switch {
	case err != nil:
		return nil, fmt.Errorf("redis: lock %s: %w", key, err)
	case !won:
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = releaseScript.Run(rctx, lm.rdb, []string{name}, token).Err()
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
