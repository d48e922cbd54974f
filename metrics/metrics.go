// Package metrics exposes the clausereview core's Prometheus
// instrumentation: one Metrics struct of counters and histograms,
// constructed against a registry, the shape grounded on the kubernaut
// pack's datastorage/metrics package (NewMetricsWithRegistry(namespace,
// subsystem, registry), WithLabelValues().Inc()/.Observe() counters and
// histograms keyed by outcome labels). Skill-call wall time, node
// transitions, and retry counts all land here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter/histogram the review core publishes.
type Metrics struct {
	SkillCallsTotal   *prometheus.CounterVec
	SkillCallDuration *prometheus.HistogramVec
	NodeTransitions   *prometheus.CounterVec
	ClauseRetries     *prometheus.CounterVec
	DiffsProposed     *prometheus.CounterVec
	ApprovalDecisions *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
	StreamSubscribers prometheus.Gauge
}

// NewMetrics builds a Metrics instance registered against the default
// Prometheus registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer builds a Metrics instance against an explicit
// Registerer, matching the kubernaut pack's NewMetricsWithRegistry shape
// so tests can pass a fresh prometheus.NewRegistry() and avoid duplicate
// registration panics across test runs.
func NewMetricsWithRegisterer(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		SkillCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skill_calls_total",
			Help:      "Total skill dispatcher calls, by skill id, backend, and outcome.",
		}, []string{"skill_id", "backend", "outcome"}),
		SkillCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "skill_call_duration_seconds",
			Help:      "Skill dispatcher call wall time, by skill id and backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"skill_id", "backend"}),
		NodeTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_node_transitions_total",
			Help:      "Review state machine node transitions, by node name.",
		}, []string{"node"}),
		ClauseRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_clause_retries_total",
			Help:      "validate_strategy retry/skip/best-effort-exhausted outcomes, by clause outcome.",
		}, []string{"outcome"}),
		DiffsProposed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_diffs_proposed_total",
			Help:      "Diffs proposed by generate_diffs, by risk level.",
		}, []string{"risk"}),
		ApprovalDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_decisions_total",
			Help:      "Approval coordinator decisions recorded, by decision.",
		}, []string{"decision"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Stream events published, by event kind.",
		}, []string{"kind"}),
		StreamSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_active_subscribers",
			Help:      "Count of currently active event stream replay subscribers.",
		}),
	}
	return m
}
