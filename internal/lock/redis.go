package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

type RedisConfig struct {
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

// RedisLocker takes SET NX locks with a per-holder token, so a holder whose lock expired
// can never release somebody else's.
type RedisLocker struct {
	client *cache.RedisClient
	cfg    RedisConfig
	logger logger.ZapLogger
}

func NewRedisLocker(client *cache.RedisClient, cfg RedisConfig, log logger.ZapLogger) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return &RedisLocker{client: client, cfg: cfg, logger: log}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	delay := l.cfg.RetryDelay

	for attempt := 0; attempt < l.cfg.Retries; attempt++ {
		ok, err := l.client.AcquireLock(ctx, key, token, l.cfg.TTL)
		if err != nil {
			l.logger.Error("failed to acquire lock redis error", zap.String("key", key), zap.Error(err))
		}
		if ok {
			return l.unlocker(key, token), nil
		}

		if attempt == l.cfg.Retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("%s after %d attempts: %w", key, l.cfg.Retries, ErrBusy)
}

func (l *RedisLocker) unlocker(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be done; release on a fresh one.
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := l.client.ReleaseLock(ctx, key, token); err != nil {
				l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}
}
