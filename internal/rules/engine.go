// internal/rules/engine.go
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/priorauth/internal/core/metrics"
	"github.com/solatis/priorauth/internal/types"
	"go.uber.org/zap"
)

// Report kinds recorded for evaluator anomalies.
const (
	ReportUnknownOperator = "unknown_operator"
	ReportComparisonError = "comparison_error"
)

// Engine evaluates rule sets against a patient and aggregates a decision.
// Holds no mutable state; one Engine may serve any number of goroutines.
type Engine struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used to report evaluator anomalies.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the collector for decision metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = c
	}
}

// NewEngine creates a new rules engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every rule against patient and aggregates the decision.
//
// Aggregation:
//   - failed_rules: FAIL and Required
//   - missing_info: PEND, whether required or not
//   - APPROVE when both are empty, PEND when missing_info is non-empty
//     (even if failures exist), DENY otherwise
func (e *Engine) Evaluate(rules []types.Rule, patient types.PatientContext) types.Decision {
	start := time.Now()

	facts := patient.Facts()
	evidence := FormatEvidence(facts)

	decision := types.Decision{
		FailedRules: []types.EvaluationResult{},
		MissingInfo: []types.EvaluationResult{},
		AllResults:  make([]types.EvaluationResult, 0, len(rules)),
	}

	for _, rule := range rules {
		status, reports := EvaluateRule(rule, facts)

		result := types.EvaluationResult{
			RuleID:   rule.ID,
			Status:   status,
			Score:    1.0,
			Evidence: evidence,
		}
		for _, report := range reports {
			result.Notes = append(result.Notes, report.Error())
			e.report(rule.ID, report)
		}

		decision.AllResults = append(decision.AllResults, result)
		e.metrics.RecordRuleResult(string(status))

		switch {
		case status == types.StatusFail && rule.Required:
			decision.FailedRules = append(decision.FailedRules, result)
		case status == types.StatusPend:
			decision.MissingInfo = append(decision.MissingInfo, result)
		}
	}

	decision.Decision = decide(decision.FailedRules, decision.MissingInfo)

	e.metrics.RecordDecision(string(decision.Decision), time.Since(start))
	e.logger.Debug("rule set evaluated",
		zap.String("decision", string(decision.Decision)),
		zap.Int("rules", len(rules)),
		zap.Int("failed", len(decision.FailedRules)),
		zap.Int("missing", len(decision.MissingInfo)),
	)

	return decision
}

// decide maps the filtered result sets onto the final outcome.
// PEND is checked before DENY.
func decide(failed, missing []types.EvaluationResult) types.Outcome {
	switch {
	case len(failed) == 0 && len(missing) == 0:
		return types.OutcomeApprove
	case len(missing) > 0:
		return types.OutcomePend
	default:
		return types.OutcomeDeny
	}
}

// report logs and counts one evaluator anomaly.
func (e *Engine) report(ruleID string, err error) {
	kind := ReportComparisonError
	if errors.Is(err, types.ErrUnknownOperator) {
		kind = ReportUnknownOperator
	}
	e.metrics.RecordConditionReport(kind)
	e.logger.Warn("condition evaluation reported",
		zap.String("rule_id", ruleID),
		zap.String("kind", kind),
		zap.Error(err),
	)
}

// FormatEvidence renders the fact bag used for a decision.
// encoding/json sorts map keys, so the same facts always produce the same text.
func FormatEvidence(facts map[string]any) string {
	data, err := json.Marshal(facts)
	if err != nil {
		return fmt.Sprintf("Patient data: %v", facts)
	}
	return "Patient data: " + string(data)
}
