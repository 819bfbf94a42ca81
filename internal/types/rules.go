// internal/types/rules.go
package types

import "encoding/json"

/*
 * Domain types for rule evaluation.
 *
 * Provides Rule, RuleCondition, EvaluationResult and Decision used by
 * internal/rules for evaluation and by internal/registry for storage. These
 * types are wire-format agnostic beyond their JSON tags; gRPC conversion
 * happens at the API boundary.
 *
 * Key types:
 *   - RuleCondition: single predicate over one patient fact
 *   - Rule: AND of conditions representing one policy requirement
 *   - EvaluationResult: per-rule verdict with evidence
 *   - Decision: aggregated APPROVE/DENY/PEND with all per-rule results
 *
 * Dependencies: None (encoding/json only)
 */

// RuleCondition is a single checkable predicate.
// Operator is kept as written by the author; unknown names are handled at
// evaluation time rather than rejected here.
type RuleCondition struct {
	Parameter string `json:"parameter"`
	Operator  string `json:"operator"`
	Value     any    `json:"value"`
}

// Rule is the structured representation of one policy requirement.
// An empty Conditions list is legal and evaluates to PASS.
type Rule struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Conditions     []RuleCondition `json:"conditions"`
	Description    string          `json:"description"`
	Required       bool            `json:"required"`
	ParentPolicyID *string         `json:"parent_policy_id"`
}

// UnmarshalJSON implements json.Unmarshaler.
// Required defaults to true when the field is absent.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type ruleAlias Rule
	aux := struct {
		*ruleAlias
		Required *bool `json:"required"`
	}{ruleAlias: (*ruleAlias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Required = aux.Required == nil || *aux.Required
	return nil
}

// PolicyID returns the parent policy id or "" when unset.
func (r Rule) PolicyID() string {
	if r.ParentPolicyID == nil {
		return ""
	}
	return *r.ParentPolicyID
}

// WithPolicyID returns a copy of r bound to the given policy.
func (r Rule) WithPolicyID(policyID string) Rule {
	id := policyID
	r.ParentPolicyID = &id
	return r
}

// EvaluationResult is the verdict for a single rule.
type EvaluationResult struct {
	RuleID   string   `json:"rule_id"`
	Status   Status   `json:"status"`
	Score    float64  `json:"score"`
	Evidence string   `json:"evidence"`
	Notes    []string `json:"notes,omitempty"`
}

// Decision is the aggregated outcome over a rule set.
// AllResults keeps every rule's verdict so failures never vanish from the audit trail.
type Decision struct {
	Decision    Outcome            `json:"decision"`
	FailedRules []EvaluationResult `json:"failed_rules"`
	MissingInfo []EvaluationResult `json:"missing_info"`
	AllResults  []EvaluationResult `json:"all_results"`
}
