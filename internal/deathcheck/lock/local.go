package lock

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process Provider for single-instance deployments and tests.
type Local struct {
	mu    sync.Mutex
	until map[string]time.Time
	held  map[string]uint64
	seq   uint64
	now   func() time.Time
}

type LocalOption func(*Local)

// WithClock overrides the time source.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) {
		l.now = now
	}
}

func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		until: make(map[string]time.Time),
		held:  make(map[string]uint64),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Local) Acquire(_ context.Context, name string, atMost, atLeast time.Duration) (Lease, bool, error) {
	if err := validate(atMost, atLeast); err != nil {
		return nil, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.until[name]; ok && now.Before(until) {
		return nil, false, nil
	}
	l.seq++
	l.until[name] = now.Add(atMost)
	l.held[name] = l.seq
	return &localLease{owner: l, name: name, token: l.seq, lockedAt: now, atLeast: atLeast}, true, nil
}

type localLease struct {
	owner    *Local
	name     string
	token    uint64
	lockedAt time.Time
	atLeast  time.Duration
}

func (ls *localLease) Release(_ context.Context) error {
	l := ls.owner
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[ls.name] != ls.token {
		return nil
	}
	l.until[ls.name] = releaseUntil(ls.lockedAt, l.now(), ls.atLeast)
	return nil
}
