package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

func getRedisClient(t *testing.T) *cache.RedisClient {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return cache.NewFromClient(client)
}

func TestRedisLockerExclusive(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	key := ProductKey("test-" + uuid.NewString())

	locker := NewRedisLocker(client, RedisConfig{TTL: 2 * time.Second, Retries: 2, RetryDelay: 10 * time.Millisecond}, logger.NewNop())

	unlock, err := locker.Lock(ctx, key)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	if _, err := locker.Lock(ctx, key); !errors.Is(err, ErrBusy) {
		t.Fatalf("second lock err = %v, want ErrBusy", err)
	}

	unlock()
	unlock()

	unlock, err = locker.Lock(ctx, key)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	unlock()
}

func TestRedisLockerDoesNotReleaseForeignLock(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	key := ProductKey("test-" + uuid.NewString())

	if err := client.ReleaseLock(ctx, key, "not-mine"); err != nil {
		t.Fatalf("release: %v", err)
	}

	ok, err := client.AcquireLock(ctx, key, "owner", time.Second)
	if err != nil || !ok {
		t.Fatalf("acquire = %v, %v", ok, err)
	}
	client.ReleaseLock(ctx, key, "not-mine")

	if v, _ := client.Client.Get(ctx, key).Result(); v != "owner" {
		t.Fatalf("lock value = %q, want owner", v)
	}
	client.ReleaseLock(ctx, key, "owner")
}
