// Package lock serializes work per key, in process or across replicas.
package lock

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyKey is returned when a lock key is blank.
	ErrEmptyKey = errors.New("lock key cannot be empty")
	// ErrNilFunc is returned when no work is supplied.
	ErrNilFunc = errors.New("lock function is nil")
	// ErrNotAcquired is returned when the lock could not be taken before the
	// retry budget or context ran out.
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrLockLost is the cancellation cause handed to work whose lock could
	// not be kept alive.
	ErrLockLost = errors.New("lock lost")
)

// Locker runs fn while holding the lock named key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

func validate(key string, fn func(context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if fn == nil {
		return ErrNilFunc
	}
	return nil
}
