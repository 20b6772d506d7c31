package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/example/inventory-control/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "lock:"

var ErrNotAcquired = inventory.ErrLockNotAcquired

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisConfig struct {
	TTL         time.Duration
	RetryDelay  time.Duration
	MaxAttempts int
}

// RedisLocker is a lease lock shared by every instance pointed at the same
// Redis. The lease expires after TTL if the holder dies.
type RedisLocker struct {
	client *redis.Client
	cfg    RedisConfig
	logger *zap.Logger
}

func NewRedisLocker(client *redis.Client, cfg RedisConfig, logger *zap.Logger) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 40
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, cfg: cfg, logger: logger}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.New().String()

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			return func() { r.unlock(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.cfg.RetryDelay):
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrNotAcquired, redisKey, r.cfg.MaxAttempts)
}

func (r *RedisLocker) unlock(redisKey, token string) {
	// The caller's context may already be cancelled; release must still run.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
		r.logger.Warn("failed to release lock", zap.String("key", redisKey), zap.Error(err))
	}
}
