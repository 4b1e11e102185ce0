package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the trust module: trusted-person edges,
// confirmations and the consensus state machine.
type Metrics struct {
	TrustedPeopleAdded    prometheus.Counter
	TrustedPeopleRemoved  prometheus.Counter
	DeathConfirmations    prometheus.Counter
	ConsensusReached      prometheus.Counter
	DeathsFinalized       prometheus.Counter
	Revocations           prometheus.Counter
	InvitationFailures    prometheus.Counter
	OwnersDeleted         prometheus.Counter
	ConfirmDeathDuration  prometheus.Histogram
	FinalizeDeathDuration prometheus.Histogram
}

// New registers the trust metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the trust metrics on reg. Tests pass a fresh
// registry to avoid duplicate registration panics.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TrustedPeopleAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_trusted_people_added_total",
			Help: "Total number of trusted people added",
		}),
		TrustedPeopleRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_trusted_people_removed_total",
			Help: "Total number of trusted people removed",
		}),
		DeathConfirmations: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_death_confirmations_total",
			Help: "Total number of accepted death confirmations",
		}),
		ConsensusReached: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_death_consensus_reached_total",
			Help: "Total number of owners whose trusted people unanimously confirmed death",
		}),
		DeathsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_deaths_finalized_total",
			Help: "Total number of owners finalized as dead after their timeout",
		}),
		Revocations: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_death_confirmations_cancelled_total",
			Help: "Total number of owner-invoked death confirmation resets",
		}),
		InvitationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_invitation_failures_total",
			Help: "Total number of invitation emails that could not be sent",
		}),
		OwnersDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_owners_deleted_total",
			Help: "Total number of deleted owner accounts",
		}),
		ConfirmDeathDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mywill_confirm_death_duration_seconds",
			Help:    "Duration of ConfirmDeath operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		FinalizeDeathDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mywill_finalize_death_duration_seconds",
			Help:    "Duration of per-owner death finalization",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveConfirmDeath records the duration of a ConfirmDeath operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveConfirmDeath(start time.Time) {
	m.ConfirmDeathDuration.Observe(time.Since(start).Seconds())
}

// ObserveFinalizeDeath records the duration of a FinalizeDeath operation.
func (m *Metrics) ObserveFinalizeDeath(start time.Time) {
	m.FinalizeDeathDuration.Observe(time.Since(start).Seconds())
}
