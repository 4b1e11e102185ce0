package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Disclosure gate outcomes.
const (
	OutcomeOwner     = "owner"
	OutcomeDisclosed = "disclosed"
	OutcomeDenied    = "denied"
	OutcomeNotOpened = "not_opened"
)

// Metrics tracks will reads by gate outcome.
type Metrics struct {
	WillReads    *prometheus.CounterVec
	WillsCreated prometheus.Counter
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WillReads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mywill_will_reads_total",
			Help: "Will read attempts by disclosure gate outcome",
		}, []string{"outcome"}),
		WillsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_wills_created_total",
			Help: "Total number of wills created",
		}),
	}
}

func (m *Metrics) IncrementRead(outcome string) {
	m.WillReads.WithLabelValues(outcome).Inc()
}
