package config

import (
	"testing"
	"time"
)

func TestLoadEnvDefaults(t *testing.T) {
	cfg := LoadEnv()

	if cfg.Store.Backend != StorePostgres || cfg.Lock.Backend != LockLocal {
		t.Fatalf("backends = %q, %q", cfg.Store.Backend, cfg.Lock.Backend)
	}
	if cfg.Lock.TTL != 5*time.Second || cfg.Lock.Retries != 3 {
		t.Fatalf("lock = %+v", cfg.Lock)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("LOCK_TTL", "7")
	t.Setenv("LOCK_RETRIES", "nope")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("KAFKA_ENABLED", "false")

	cfg := LoadEnv()

	if cfg.Store.Backend != StoreMemory || cfg.Store.Timeout != 250*time.Millisecond {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.Lock.TTL != 7*time.Second {
		t.Fatalf("lock ttl = %v", cfg.Lock.TTL)
	}
	if cfg.Lock.Retries != 3 {
		t.Fatalf("invalid int should fall back, got %d", cfg.Lock.Retries)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" || cfg.Kafka.Enabled {
		t.Fatalf("kafka = %+v", cfg.Kafka)
	}
}
