// Package lock provides fail-fast mutual exclusion keyed by string.
package lock

import (
	"context"
	"errors"
	"strings"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker guards a critical section per key. WithLock never waits for a held
// key: it returns ErrNotAcquired immediately.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// SlotKey names the lock for one slot of a doctor on a date.
func SlotKey(doctorID, date, slotTime string) string {
	return strings.Join([]string{"slot", doctorID, date, slotTime}, ":")
}
