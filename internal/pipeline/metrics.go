package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "testweave"

// Metrics holds the pipeline's prometheus collectors. Each Metrics owns its
// registry, so tests and batch runs never collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	// RunsTotal counts finished runs. Labels: outcome (a terminal phase, or
	// "error").
	RunsTotal *prometheus.CounterVec

	VerifyCyclesTotal prometheus.Counter
	RepairsTotal      prometheus.Counter
	ArbitrationsTotal prometheus.Counter
	FragmentsSkipped  prometheus.Counter

	RunDurationSeconds prometheus.Histogram
}

// NewMetrics creates and registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Finished generation runs by outcome",
		}, []string{"outcome"}),
		VerifyCyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "verify_cycles_total",
			Help:      "Verification runs of assembled suites",
		}),
		RepairsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "repairs_total",
			Help:      "Repair generation calls",
		}),
		ArbitrationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "consensus",
			Name:      "arbitrations_total",
			Help:      "Member fragments settled by the arbitrator",
		}),
		FragmentsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "fragments_skipped_total",
			Help:      "Generated member fragments that were empty or did not parse",
		}),
		RunDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a generation run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
	m.Registry.MustRegister(
		m.RunsTotal,
		m.VerifyCyclesTotal,
		m.RepairsTotal,
		m.ArbitrationsTotal,
		m.FragmentsSkipped,
		m.RunDurationSeconds,
	)
	return m
}

func (m *Metrics) observeRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDurationSeconds.Observe(d.Seconds())
}

func (m *Metrics) verified() {
	if m != nil {
		m.VerifyCyclesTotal.Inc()
	}
}

func (m *Metrics) repaired() {
	if m != nil {
		m.RepairsTotal.Inc()
	}
}

func (m *Metrics) arbitrated() {
	if m != nil {
		m.ArbitrationsTotal.Inc()
	}
}

func (m *Metrics) skipped() {
	if m != nil {
		m.FragmentsSkipped.Inc()
	}
}
