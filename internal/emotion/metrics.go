package emotion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Provider attempt outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeMalformed = "malformed"
	OutcomePanic     = "panic"
)

// Metrics exposes Prometheus collectors for chain activity. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	attempts  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	exhausted prometheus.Counter
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns collectors registered once with the global registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bodyfeel",
			Subsystem: "analysis",
			Name:      "provider_attempts_total",
			Help:      "Provider attempts by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bodyfeel",
			Subsystem: "analysis",
			Name:      "provider_duration_seconds",
			Help:      "Time spent in each provider attempt.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
	exhausted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bodyfeel",
			Subsystem: "analysis",
			Name:      "chain_exhausted_total",
			Help:      "Analyses where every provider failed.",
		},
	)
	reg.MustRegister(attempts, duration, exhausted)
	return &Metrics{attempts: attempts, duration: duration, exhausted: exhausted}
}

func (m *Metrics) observeAttempt(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(provider, outcome).Inc()
	m.duration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) observeExhausted() {
	if m == nil {
		return
	}
	m.exhausted.Inc()
}
