package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	cycleDuration    prom.Histogram
	cycleOutcome     *prom.CounterVec
	dispatched       prom.Counter
	lastDispatchSize prom.Gauge
	markerFailures   prom.Counter
	dangling         prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.cycleDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "cdispd",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one comparison and dispatch cycle",
			Buckets:   prom.DefBuckets,
		})
		pr.cycleOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "cdispd",
			Name:      "cycle_outcomes_total",
			Help:      "Cycle outcomes by final status",
		}, []string{"outcome"})
		pr.dispatched = prom.NewCounter(prom.CounterOpts{
			Namespace: "cdispd",
			Name:      "components_dispatched_total",
			Help:      "Total components handed to the reconfiguration program",
		})
		pr.lastDispatchSize = prom.NewGauge(prom.GaugeOpts{
			Namespace: "cdispd",
			Name:      "last_dispatch_size",
			Help:      "Components dispatched in the most recent cycle",
		})
		pr.markerFailures = prom.NewCounter(prom.CounterOpts{
			Namespace: "cdispd",
			Name:      "marker_failures_total",
			Help:      "State marker create/remove failures",
		})
		pr.dangling = prom.NewCounter(prom.CounterOpts{
			Namespace: "cdispd",
			Name:      "dangling_subscriptions_total",
			Help:      "Subscribed paths missing from the new profile",
		})
		reg.MustRegister(pr.cycleDuration, pr.cycleOutcome, pr.dispatched, pr.lastDispatchSize, pr.markerFailures, pr.dangling)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveCycleDuration(d time.Duration) {
	if p == nil || p.cycleDuration == nil {
		return
	}
	p.cycleDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCycleOutcome(outcome string) {
	if p == nil || p.cycleOutcome == nil {
		return
	}
	p.cycleOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) AddDispatched(n int) {
	if p == nil || p.dispatched == nil || n <= 0 {
		return
	}
	p.dispatched.Add(float64(n))
}

func (p *PrometheusRecorder) SetLastDispatchSize(n int) {
	if p == nil || p.lastDispatchSize == nil {
		return
	}
	p.lastDispatchSize.Set(float64(n))
}

func (p *PrometheusRecorder) IncMarkerFailure() {
	if p == nil || p.markerFailures == nil {
		return
	}
	p.markerFailures.Inc()
}

func (p *PrometheusRecorder) AddDanglingSubscriptions(n int) {
	if p == nil || p.dangling == nil || n <= 0 {
		return
	}
	p.dangling.Add(float64(n))
}
