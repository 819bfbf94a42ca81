// Package types provides domain models shared across priorauth components.
//
// Zero-dependency design: everything except ids.go uses only the standard
// library so the evaluation contract can be embedded in other services
// without pulling in storage or transport dependencies.
//
// Separation of shapes: CandidateRule is the stored, reviewable shape and Rule
// is the evaluation shape. CandidateRule.ToRule is the only conversion between
// them; the registry never reshapes raw JSON by field name.
package types

// Status is the verdict of a single condition or rule.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusPend Status = "PEND"
)

// Outcome is the aggregated prior-authorization decision.
type Outcome string

const (
	OutcomeApprove Outcome = "APPROVE"
	OutcomeDeny    Outcome = "DENY"
	OutcomePend    Outcome = "PEND"
)

// ReviewStatus is the lifecycle state of a candidate rule.
type ReviewStatus string

const (
	ReviewDraft    ReviewStatus = "DRAFT"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewRejected ReviewStatus = "REJECTED"
)

// ParseReviewStatus validates a lifecycle state name.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch ReviewStatus(s) {
	case ReviewDraft, ReviewApproved, ReviewRejected:
		return ReviewStatus(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// CanTransition reports whether a candidate may move from one review state to
// another. DRAFT is the only non-terminal state.
func CanTransition(from, to ReviewStatus) bool {
	return from == ReviewDraft && (to == ReviewApproved || to == ReviewRejected)
}

// PolicyStatusIngested marks a policy whose candidates have been mined.
const PolicyStatusIngested = "INGESTED"

// Limits applied when mining and truncating rule text.
const (
	// DescriptionMaxLength bounds generated descriptions before the "..." suffix.
	DescriptionMaxLength = 100

	// DefaultConfidence is the placeholder confidence assigned to mined candidates.
	DefaultConfidence = 0.75

	// DefaultRuleType is used when a chunk carries no category.
	DefaultRuleType = "Eligibility"
)
