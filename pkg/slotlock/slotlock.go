// Package slotlock provides short-lived, non-blocking mutual exclusion keyed
// by provider slot. A lock is held by a holder token and expires after its
// TTL even when the holder dies without releasing it.
package slotlock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTTL = errors.New("slot lock ttl must be positive")

// Locker acquires and releases slot locks.
//
// Acquire never waits: it reports false at once when a live lock exists for
// key. Release removes the lock only if holder still owns it, and releasing
// an absent or expired lock is not an error.
type Locker interface {
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, holder string) error
}

// CalendarKey names the lock serializing changes to a provider's windows.
func CalendarKey(providerID string) string {
	return "calendar:" + providerID
}

// Key names the lock guarding a provider's slot starting at start.
func Key(providerID string, start time.Time) string {
	return fmt.Sprintf("slot:%s:%d", providerID, start.UTC().Unix())
}
