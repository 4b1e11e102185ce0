package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestLocalExclusive(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	l := NewLocal(WithClock(clock.Now))
	ctx := context.Background()

	lease, ok, err := l.Acquire(ctx, "job", 10*time.Minute, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "job", 10*time.Minute, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock cannot be taken")

	_, ok, err = l.Acquire(ctx, "other", 10*time.Minute, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "locks are independent by name")

	clock.Advance(10 * time.Second)
	require.NoError(t, lease.Release(ctx))

	_, ok, _ = l.Acquire(ctx, "job", 10*time.Minute, time.Minute)
	assert.False(t, ok, "min hold keeps the lock after an early release")

	clock.Advance(50 * time.Second)
	_, ok, _ = l.Acquire(ctx, "job", 10*time.Minute, time.Minute)
	assert.True(t, ok)
}

func TestLocalExpiresAfterAtMost(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	l := NewLocal(WithClock(clock.Now))
	ctx := context.Background()

	stale, ok, err := l.Acquire(ctx, "job", 10*time.Minute, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(10 * time.Minute)
	_, ok, err = l.Acquire(ctx, "job", 10*time.Minute, time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "a crashed holder frees the lock after atMost")

	// The stale lease must not free the new holder's lock.
	require.NoError(t, stale.Release(ctx))
	_, ok, _ = l.Acquire(ctx, "job", 10*time.Minute, time.Minute)
	assert.False(t, ok)
}

func TestValidateDurations(t *testing.T) {
	l := NewLocal()
	_, _, err := l.Acquire(context.Background(), "job", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidDurations)
	_, _, err = l.Acquire(context.Background(), "job", time.Minute, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidDurations)
}

func TestReleaseUntil(t *testing.T) {
	lockedAt := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, lockedAt.Add(time.Minute), releaseUntil(lockedAt, lockedAt.Add(time.Second), time.Minute))
	late := lockedAt.Add(2 * time.Minute)
	assert.Equal(t, late, releaseUntil(lockedAt, late, time.Minute))
}
