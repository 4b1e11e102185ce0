package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the death-check scheduler.
type Metrics struct {
	Sweeps           prometheus.Counter
	SkippedTicks     *prometheus.CounterVec
	OwnersFinalized  prometheus.Counter
	FinalizeFailures prometheus.Counter
	PendingOwners    prometheus.Gauge
	SweepDuration    prometheus.Histogram
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Sweeps: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_deathcheck_sweeps_total",
			Help: "Total number of completed finalization sweeps",
		}),
		SkippedTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mywill_deathcheck_skipped_ticks_total",
			Help: "Ticks that did not sweep, by reason",
		}, []string{"reason"}),
		OwnersFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_deathcheck_owners_finalized_total",
			Help: "Owners marked dead by the scheduler",
		}),
		FinalizeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_deathcheck_finalize_failures_total",
			Help: "Per-owner finalization failures",
		}),
		PendingOwners: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mywill_deathcheck_pending_owners",
			Help: "Owners with consensus awaiting finalization at the last sweep",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mywill_deathcheck_sweep_duration_seconds",
			Help:    "Duration of finalization sweeps",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveSweep(start time.Time) {
	m.SweepDuration.Observe(time.Since(start).Seconds())
}

// Skip reasons.
const (
	SkipLockHeld  = "lock_held"
	SkipLockError = "lock_error"
	SkipBusy      = "busy"
)
