package rbac

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for permission matching.
type Metrics struct {
	evaluationTotal    *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	ruleSkipTotal      *prometheus.CounterVec
	ruleCount          prometheus.Gauge
	registry           *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rolegate"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.evaluationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rbac",
			Name:      "evaluation_total",
			Help:      "Total number of permission evaluations",
		},
		[]string{"decision"},
	)

	m.evaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rbac",
			Name:      "evaluation_duration_seconds",
			Help:      "Permission evaluation duration in seconds",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .025, .05, .1},
		},
		[]string{"decision"},
	)

	m.ruleSkipTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rbac",
			Name:      "rule_skip_total",
			Help:      "Total number of rules skipped as structurally invalid",
		},
		[]string{"reason"},
	)

	m.ruleCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rbac",
			Name:      "rule_count",
			Help:      "Number of permission rules held by the matcher",
		},
	)

	// Register all metrics
	m.registry.MustRegister(
		m.evaluationTotal,
		m.evaluationDuration,
		m.ruleSkipTotal,
		m.ruleCount,
	)

	return m
}

// RecordEvaluation records a permission evaluation.
func (m *Metrics) RecordEvaluation(decision string, duration time.Duration) {
	m.evaluationTotal.WithLabelValues(decision).Inc()
	m.evaluationDuration.WithLabelValues(decision).Observe(duration.Seconds())
}

// RecordSkippedRule records a structurally invalid rule skip.
func (m *Metrics) RecordSkippedRule(reason string) {
	m.ruleSkipTotal.WithLabelValues(reason).Inc()
}

// SetRuleCount sets the rule count.
func (m *Metrics) SetRuleCount(count int) {
	m.ruleCount.Set(float64(count))
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MustRegister registers the metrics with the given registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.evaluationTotal,
		m.evaluationDuration,
		m.ruleSkipTotal,
		m.ruleCount,
	)
}
