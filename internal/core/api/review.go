package api

import (
	"context"

	"github.com/solatis/priorauth/internal/registry"
	"github.com/solatis/priorauth/internal/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

// ListCandidates returns candidates, optionally filtered by review status.
func (s *DecisionService) ListCandidates(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ListCandidatesRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}

	var candidates []types.CandidateRule
	if req.Status == "" {
		doc, err := s.registry.Snapshot(ctx)
		if err != nil {
			return nil, toStatus(err)
		}
		candidates = doc.Rules
	} else {
		filter, err := types.ParseReviewStatus(req.Status)
		if err != nil {
			return nil, toStatus(err)
		}
		if candidates, err = s.registry.ListByStatus(ctx, filter); err != nil {
			return nil, toStatus(err)
		}
	}
	return encode(ListCandidatesResponse{Candidates: nonNilCandidates(candidates)})
}

// ReviewCandidate approves or rejects a draft candidate.
func (s *DecisionService) ReviewCandidate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ReviewCandidateRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}

	next, err := types.ParseReviewStatus(req.Status)
	if err != nil {
		return nil, toStatus(err)
	}

	updated, err := s.registry.UpdateStatus(ctx, req.CandidateID, next, req.Conditions)
	if err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info("candidate reviewed",
		zap.String("candidate_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.String("reviewer", registry.ReviewerFromContext(ctx)),
	)
	return encode(ReviewCandidateResponse{Candidate: updated})
}

// ApprovedRules returns the evaluable rules, optionally for one policy.
func (s *DecisionService) ApprovedRules(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ApprovedRulesRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}

	approved, err := s.registry.ApprovedRules(ctx, req.PolicyID)
	if err != nil {
		return nil, toStatus(err)
	}
	if approved == nil {
		approved = []types.Rule{}
	}
	return encode(ApprovedRulesResponse{Rules: approved})
}

// ListPolicies returns every registered policy.
func (s *DecisionService) ListPolicies(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	policies, err := s.registry.Policies(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	if policies == nil {
		policies = []types.PolicyMeta{}
	}
	return encode(ListPoliciesResponse{Policies: policies})
}

func nonNilCandidates(c []types.CandidateRule) []types.CandidateRule {
	if c == nil {
		return []types.CandidateRule{}
	}
	return c
}
