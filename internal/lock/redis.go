package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

var ErrNotAcquired = errors.New("lock not acquired")

// compare-and-delete so an expired holder never frees someone else's lock
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock shared by every API instance.
type RedisLocker struct {
	RDB        *redis.Client
	TTL        time.Duration
	RetryEvery time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{RDB: rdb, TTL: ttl, RetryEvery: 25 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ticker := time.NewTicker(l.RetryEvery)
	defer ticker.Stop()

	for {
		ok, err := l.RDB.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s: %w: %v", key, ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		// release even if the request context is already cancelled
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.RDB, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			log.WithError(err).WithField("key", key).Warn("lock release failed")
		}
	}, nil
}
