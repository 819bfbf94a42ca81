// Package registry persists mined candidate rules and drives their review
// lifecycle.
//
// States: DRAFT → APPROVED, DRAFT → REJECTED. APPROVED and REJECTED are
// terminal; any transition out of them fails with types.ErrInvalidTransition
// and leaves the candidate untouched.
//
// Two backends implement Store:
//   - DocumentStore: one JSON document rewritten atomically per mutation.
//     Single writer per process.
//   - SQLStore: rows keyed by candidate id plus an append-only transition
//     log. Each transition is one database transaction.
//
// Approved rules read from a Store are the only feed into the rule engine
// and the search index.
package registry

import (
	"context"
	"fmt"

	"github.com/solatis/priorauth/internal/types"
)

// Store is the persistence contract shared by all registry backends.
type Store interface {
	// AddCandidates binds each candidate to policyID, registers the policy
	// if new and appends the candidates in order.
	AddCandidates(ctx context.Context, candidates []types.CandidateRule, policyID string) error

	// ListByStatus returns candidates in insertion order.
	ListByStatus(ctx context.Context, status types.ReviewStatus) ([]types.CandidateRule, error)

	// UpdateStatus moves a candidate to status. When conditions is non-nil
	// it replaces the embedded rule's conditions. Unknown ids return
	// types.ErrCandidateNotFound without mutation.
	UpdateStatus(ctx context.Context, candidateID string, status types.ReviewStatus, conditions *[]types.RuleCondition) (types.CandidateRule, error)

	// ApprovedRules materializes every APPROVED candidate. An empty
	// policyID matches all policies.
	ApprovedRules(ctx context.Context, policyID string) ([]types.Rule, error)

	// Policies returns registered policy metadata ordered by id.
	Policies(ctx context.Context) ([]types.PolicyMeta, error)

	// Snapshot returns the full registry in document layout.
	Snapshot(ctx context.Context) (*types.Registry, error)

	// Restore appends a document's policies and candidates verbatim.
	// Candidate ids already present fail with types.ErrDuplicateCandidate.
	Restore(ctx context.Context, doc *types.Registry) error
}

// prepareCandidates validates a batch and binds it to policyID.
// The input slice is not modified.
func prepareCandidates(candidates []types.CandidateRule, policyID string) ([]types.CandidateRule, error) {
	if policyID == "" {
		return nil, types.ErrEmptyPolicyID
	}

	out := make([]types.CandidateRule, len(candidates))
	for i, c := range candidates {
		if c.ID == "" {
			c.ID = types.NewCandidateID()
		}
		if c.Status == "" {
			c.Status = types.ReviewDraft
		}
		if _, err := types.ParseReviewStatus(string(c.Status)); err != nil {
			return nil, err
		}
		c.RuleData = c.ToRule().WithPolicyID(policyID)
		out[i] = c
	}
	return out, nil
}

// applyTransition checks the lifecycle and applies a review to c in place.
func applyTransition(c *types.CandidateRule, status types.ReviewStatus, conditions *[]types.RuleCondition) error {
	if _, err := types.ParseReviewStatus(string(status)); err != nil {
		return err
	}
	if !types.CanTransition(c.Status, status) {
		return &TransitionError{CandidateID: c.ID, From: c.Status, To: status}
	}

	c.Status = status
	if conditions != nil {
		c.RuleData.Conditions = append([]types.RuleCondition{}, (*conditions)...)
	}
	return nil
}

// validateRestore rejects documents whose candidates could not have been
// produced by AddCandidates.
func validateRestore(doc *types.Registry) error {
	for _, c := range doc.Rules {
		if c.ID == "" {
			return fmt.Errorf("%w: candidate without id", types.ErrRegistryCorrupt)
		}
		if _, err := types.ParseReviewStatus(string(c.Status)); err != nil {
			return fmt.Errorf("candidate %s: %w", c.ID, err)
		}
		if c.RuleData.PolicyID() == "" {
			return fmt.Errorf("candidate %s: %w", c.ID, types.ErrEmptyPolicyID)
		}
	}
	return nil
}
