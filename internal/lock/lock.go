// Package lock serializes work per key, either inside one process or across processes
// through Redis.
package lock

import (
	"context"
	"errors"
)

// ErrBusy is returned when a lock could not be taken within the allowed attempts.
var ErrBusy = errors.New("lock busy")

// Locker hands out exclusive per-key locks. The returned unlock function is safe to call
// more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ProductKey is the lock key guarding one product's inventory.
func ProductKey(productID string) string {
	return "lock:inventory:" + productID
}
