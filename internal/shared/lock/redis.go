package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes a key across processes with SET NX PX. Callers in
// the same process queue on a local mutex first so only one of them polls redis.
type RedisLocker struct {
	client   *redis.Client
	local    *LocalLocker
	prefix   string
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewRedisLocker creates a locker. ttl bounds how long a crashed holder can
// block others.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client:   client,
		local:    NewLocalLocker(),
		prefix:   prefix,
		ttl:      ttl,
		interval: 25 * time.Millisecond,
		logger:   logger,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	releaseLocal, err := l.local.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}

	redisKey := l.prefix + key
	token := uuid.New().String()
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			releaseLocal()
			if ctx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock %s: %w", redisKey, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			releaseLocal()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's context may already be cancelled
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("Failed to release redis lock", zap.String("key", redisKey), zap.Error(err))
			}
			releaseLocal()
		})
	}, nil
}
