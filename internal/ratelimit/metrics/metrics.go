package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Denied         *prometheus.CounterVec
	StoreErrors    prometheus.Counter
	FallbackChecks prometheus.Counter
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Denied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mywill_ratelimit_denied_total",
			Help: "Requests rejected by the per-caller rate limiter, by endpoint class",
		}, []string{"class"}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_ratelimit_store_errors_total",
			Help: "Errors from the primary rate limit store",
		}),
		FallbackChecks: factory.NewCounter(prometheus.CounterOpts{
			Name: "mywill_ratelimit_fallback_checks_total",
			Help: "Checks answered by the in-memory fallback while the primary store is degraded",
		}),
	}
}
