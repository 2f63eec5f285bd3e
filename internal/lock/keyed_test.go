package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "p1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			defer unlock()

			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	if maxInside.Load() != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxInside.Load())
	}
	if m.size() != 0 {
		t.Fatalf("idle keys should be dropped, have %d", m.size())
	}
}

func TestKeyedMutexDifferentKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	unlock, err := m.Lock(ctx, "p1")
	if err != nil {
		t.Fatalf("lock p1: %v", err)
	}
	defer unlock()

	ctx2, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	unlock2, err := m.Lock(ctx2, "p2")
	if err != nil {
		t.Fatalf("lock p2 should not wait for p1: %v", err)
	}
	unlock2()
}

func TestKeyedMutexHonoursCancellation(t *testing.T) {
	m := NewKeyedMutex()

	unlock, _ := m.Lock(context.Background(), "p1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Lock(ctx, "p1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}

	unlock()
	unlock()

	if m.size() != 0 {
		t.Fatalf("keys left behind: %d", m.size())
	}

	again, err := m.Lock(context.Background(), "p1")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}
