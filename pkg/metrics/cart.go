package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart write contention and checkout outcomes.
type CartMetrics struct {
	conflicts        *prometheus.CounterVec
	retriesExhausted prometheus.Counter
	checkouts        *prometheus.CounterVec
	checkoutDuration prometheus.Histogram
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "version_conflicts_total",
		Help:      "Cart writes that lost a version check and were retried.",
	}, []string{"op"})
	exhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "retries_exhausted_total",
		Help:      "Cart writes that gave up after the retry limit.",
	})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "runs_total",
		Help:      "Checkout runs by terminal state and failing step.",
	}, []string{"outcome", "step"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "duration_seconds",
		Help:      "Checkout latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
	reg.MustRegister(conflicts, exhausted, checkouts, duration)
	return &CartMetrics{
		conflicts:        conflicts,
		retriesExhausted: exhausted,
		checkouts:        checkouts,
		checkoutDuration: duration,
	}
}

func (m *CartMetrics) IncConflict(op string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *CartMetrics) IncRetriesExhausted() {
	if m == nil || m.retriesExhausted == nil {
		return
	}
	m.retriesExhausted.Inc()
}

// ObserveCheckout records a finished checkout. step is the state that failed,
// or empty on success.
func (m *CartMetrics) ObserveCheckout(outcome, step string, d time.Duration) {
	if m == nil || m.checkouts == nil {
		return
	}
	if step == "" {
		step = "none"
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome), step).Inc()
	m.checkoutDuration.Observe(d.Seconds())
}
