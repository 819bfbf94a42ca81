package api

import "github.com/solatis/priorauth/internal/types"

// EvaluateRequest carries a patient and either explicit rules or a policy
// whose approved rules are evaluated. Explicit rules win when both are set.
type EvaluateRequest struct {
	Patient  map[string]any `json:"patient"`
	Rules    []types.Rule   `json:"rules"`
	PolicyID string         `json:"policy_id,omitempty"`
}

// EvaluateResponse is the decision and its provider-facing explanation.
type EvaluateResponse struct {
	Decision    types.Decision `json:"decision"`
	Explanation string         `json:"explanation"`
}

// EvaluateBatchRequest evaluates several requests in one call.
type EvaluateBatchRequest struct {
	Requests []EvaluateRequest `json:"requests"`
}

// BatchResult is the outcome of one batched request. Error is set instead of
// Decision when that request could not be evaluated.
type BatchResult struct {
	Index       int             `json:"index"`
	Decision    *types.Decision `json:"decision,omitempty"`
	Explanation string          `json:"explanation,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// EvaluateBatchResponse holds one result per request, in request order.
type EvaluateBatchResponse struct {
	Results   []BatchResult `json:"results"`
	Evaluated int           `json:"evaluated"`
}

// ListCandidatesRequest filters candidates by status; empty lists all.
type ListCandidatesRequest struct {
	Status string `json:"status,omitempty"`
}

// ListCandidatesResponse holds candidates in registry order.
type ListCandidatesResponse struct {
	Candidates []types.CandidateRule `json:"candidates"`
}

// ReviewCandidateRequest moves a candidate to a new review status.
// Conditions, when present, replace the candidate's conditions.
type ReviewCandidateRequest struct {
	CandidateID string                 `json:"candidate_id"`
	Status      string                 `json:"status"`
	Conditions  *[]types.RuleCondition `json:"conditions,omitempty"`
}

// ReviewCandidateResponse is the candidate after the transition.
type ReviewCandidateResponse struct {
	Candidate types.CandidateRule `json:"candidate"`
}

// ApprovedRulesRequest optionally scopes approved rules to one policy.
type ApprovedRulesRequest struct {
	PolicyID string `json:"policy_id,omitempty"`
}

// ApprovedRulesResponse holds the approved, evaluable rules.
type ApprovedRulesResponse struct {
	Rules []types.Rule `json:"rules"`
}

// ListPoliciesResponse holds every registered policy.
type ListPoliciesResponse struct {
	Policies []types.PolicyMeta `json:"policies"`
}
