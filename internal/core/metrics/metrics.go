// Package metrics provides Prometheus instrumentation for decisions and the
// candidate registry.
//
// Metrics:
//   - priorauth_decisions_total: aggregated decisions by outcome
//   - priorauth_rule_results_total: per-rule verdicts by status
//   - priorauth_condition_reports_total: evaluator reports by kind
//     (unknown_operator, comparison_error)
//   - priorauth_registry_transitions_total: review transitions by target status
//   - priorauth_candidates_added_total: candidates appended to the registry
//   - priorauth_evaluation_duration_seconds: wall time of one Evaluate call
//   - priorauth_extraction_fallbacks_total: chunks mined with the manual
//     review fallback, by reason (empty, error)
//
// A nil *Collector is valid and records nothing, so library code can accept an
// optional collector without branching at every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "priorauth"

// Collector owns all registered metric vectors.
type Collector struct {
	registry *prometheus.Registry

	decisionsTotal     *prometheus.CounterVec
	ruleResultsTotal   *prometheus.CounterVec
	conditionReports   *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	candidatesAdded    prometheus.Counter
	evaluationDuration prometheus.Histogram
	extractionFallback *prometheus.CounterVec
}

// NewCollector creates and registers all metrics with registry.
// If registry is nil, a fresh registry is created.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of prior-authorization decisions by outcome",
			},
			[]string{"decision"},
		),
		ruleResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_results_total",
				Help:      "Total number of per-rule verdicts by status",
			},
			[]string{"status"},
		),
		conditionReports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "condition_reports_total",
				Help:      "Conditions that degraded to PEND or FAIL because of authoring or data problems",
			},
			[]string{"kind"},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_transitions_total",
				Help:      "Candidate review transitions by target status",
			},
			[]string{"status"},
		),
		candidatesAdded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_added_total",
				Help:      "Candidate rules appended to the registry",
			},
		),
		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of rule set evaluation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),
		extractionFallback: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_fallbacks_total",
				Help:      "Chunks mined with the manual review fallback",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		c.decisionsTotal,
		c.ruleResultsTotal,
		c.conditionReports,
		c.transitionsTotal,
		c.candidatesAdded,
		c.evaluationDuration,
		c.extractionFallback,
	)

	return c
}

// Registry returns the underlying Prometheus registry for HTTP exposure.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordDecision records one aggregated decision and its duration.
func (c *Collector) RecordDecision(decision string, duration time.Duration) {
	if c == nil {
		return
	}
	c.decisionsTotal.WithLabelValues(decision).Inc()
	c.evaluationDuration.Observe(duration.Seconds())
}

// RecordRuleResult records one per-rule verdict.
func (c *Collector) RecordRuleResult(status string) {
	if c == nil {
		return
	}
	c.ruleResultsTotal.WithLabelValues(status).Inc()
}

// RecordConditionReport records an evaluator report (unknown operator or
// comparison error).
func (c *Collector) RecordConditionReport(kind string) {
	if c == nil {
		return
	}
	c.conditionReports.WithLabelValues(kind).Inc()
}

// RecordTransition records a candidate moving to status.
func (c *Collector) RecordTransition(status string) {
	if c == nil {
		return
	}
	c.transitionsTotal.WithLabelValues(status).Inc()
}

// RecordCandidatesAdded records n candidates appended to the registry.
func (c *Collector) RecordCandidatesAdded(n int) {
	if c == nil {
		return
	}
	c.candidatesAdded.Add(float64(n))
}

// RecordExtractionFallback records a chunk that fell back to manual review.
func (c *Collector) RecordExtractionFallback(reason string) {
	if c == nil {
		return
	}
	c.extractionFallback.WithLabelValues(reason).Inc()
}
