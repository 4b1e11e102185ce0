// Package lock provides named, time-bounded locks for scheduled jobs that must
// run on at most one instance at a time.
//
// A lock is acquired with two durations:
//
//   - atMost bounds how long the lock can be held; a holder that crashes
//     releases it implicitly when atMost elapses.
//   - atLeast is the minimum hold. Releasing earlier keeps the lock until
//     atLeast has passed since acquisition, so a fast job on one instance
//     cannot be re-run immediately by another instance whose clock ticks a
//     little later.
package lock

import (
	"context"
	"errors"
	"time"
)

// Provider acquires named locks. Acquire reports ok=false without error when
// the lock is held elsewhere.
type Provider interface {
	Acquire(ctx context.Context, name string, atMost, atLeast time.Duration) (Lease, bool, error)
}

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// ErrInvalidDurations is returned when atMost is not positive or atLeast
// exceeds atMost.
var ErrInvalidDurations = errors.New("lock: atMost must be positive and not less than atLeast")

func validate(atMost, atLeast time.Duration) error {
	if atMost <= 0 || atLeast < 0 || atLeast > atMost {
		return ErrInvalidDurations
	}
	return nil
}

// releaseUntil is when a lease acquired at lockedAt may actually free the
// lock if released at now.
func releaseUntil(lockedAt, now time.Time, atLeast time.Duration) time.Time {
	minUntil := lockedAt.Add(atLeast)
	if now.After(minUntil) {
		return now
	}
	return minUntil
}
