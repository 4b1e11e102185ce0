// Package deathcheck runs the periodic sweep that moves owners from
// "consensus reached" to "dead" once their death timeout has elapsed.
//
// Every tick takes a named distributed lock so only one instance sweeps at a
// time. A tick that cannot get the lock is skipped, not queued.
package deathcheck

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"mywill/internal/deathcheck/lock"
	"mywill/internal/deathcheck/metrics"
	"mywill/internal/trust/models"
	"mywill/pkg/requestcontext"
)

// LockName identifies the sweep lock across instances.
const LockName = "deathcheck_finalize"

// Finalizer is the trust-side port the scheduler drives.
type Finalizer interface {
	ListPendingDeath(ctx context.Context) ([]*models.Owner, error)
	FinalizeDeath(ctx context.Context, ownerEmail string) (bool, error)
}

type Config struct {
	Interval       time.Duration
	InitialDelay   time.Duration
	LockAtMostFor  time.Duration
	LockAtLeastFor time.Duration
}

// DefaultConfig matches the production schedule.
func DefaultConfig() Config {
	return Config{
		Interval:       time.Minute,
		InitialDelay:   3 * time.Minute,
		LockAtMostFor:  10 * time.Minute,
		LockAtLeastFor: time.Minute,
	}
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Skipped   bool
	Pending   int
	Finalized []string
	Failed    []string
}

type Scheduler struct {
	finalizer Finalizer
	locks     lock.Provider
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     func() time.Time
	running   atomic.Bool
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithClock sets the time source used to stamp each tick.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

func New(finalizer Finalizer, locks lock.Provider, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		finalizer: finalizer,
		locks:     locks,
		cfg:       cfg,
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start sweeps every Interval after InitialDelay until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.InitialDelay > 0 {
		timer := time.NewTimer(s.cfg.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(requestcontext.WithTime(ctx, s.clock())); err != nil {
		s.logger.ErrorContext(ctx, "death check sweep failed", "error", err)
	}
}

// RunOnce takes the sweep lock and finalizes every owner whose timeout has
// elapsed as of requestcontext.Now(ctx). It returns a skipped result when the
// lock is held elsewhere or a sweep is already running in this process.
func (s *Scheduler) RunOnce(ctx context.Context) (SweepResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.skip(ctx, metrics.SkipBusy)
		return SweepResult{Skipped: true}, nil
	}
	defer s.running.Store(false)

	lease, ok, err := s.locks.Acquire(ctx, LockName, s.cfg.LockAtMostFor, s.cfg.LockAtLeastFor)
	if err != nil {
		s.skip(ctx, metrics.SkipLockError)
		s.logger.WarnContext(ctx, "death check lock unavailable", "error", err)
		return SweepResult{Skipped: true}, nil
	}
	if !ok {
		s.skip(ctx, metrics.SkipLockHeld)
		return SweepResult{Skipped: true}, nil
	}
	defer func() {
		// Release on a fresh context so shutdown does not leave the lock
		// held until atMost expires.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			s.logger.WarnContext(ctx, "failed to release death check lock", "error", err)
		}
	}()

	return s.sweep(ctx)
}

func (s *Scheduler) sweep(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)

	owners, err := s.finalizer.ListPendingDeath(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Pending: len(owners)}
	for _, owner := range owners {
		if ctx.Err() != nil {
			break
		}
		if !owner.IsDeathDue(now) {
			continue
		}
		finalized, err := s.finalizer.FinalizeDeath(ctx, owner.Email)
		if err != nil {
			result.Failed = append(result.Failed, owner.Email)
			if s.metrics != nil {
				s.metrics.FinalizeFailures.Inc()
			}
			s.logger.ErrorContext(ctx, "failed to finalize death",
				"owner_email", owner.Email,
				"error", err,
			)
			continue
		}
		if finalized {
			result.Finalized = append(result.Finalized, owner.Email)
			if s.metrics != nil {
				s.metrics.OwnersFinalized.Inc()
			}
		}
	}

	if s.metrics != nil {
		s.metrics.Sweeps.Inc()
		s.metrics.PendingOwners.Set(float64(len(owners) - len(result.Finalized)))
		s.metrics.ObserveSweep(start)
	}
	if len(result.Finalized) > 0 || len(result.Failed) > 0 {
		s.logger.InfoContext(ctx, "death check sweep complete",
			"pending", result.Pending,
			"finalized", len(result.Finalized),
			"failed", len(result.Failed),
		)
	}
	return result, nil
}

func (s *Scheduler) skip(ctx context.Context, reason string) {
	if s.metrics != nil {
		s.metrics.SkippedTicks.WithLabelValues(reason).Inc()
	}
	s.logger.DebugContext(ctx, "death check tick skipped", "reason", reason)
}
