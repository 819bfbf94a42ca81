package api

import (
	"context"
	"fmt"

	"github.com/solatis/priorauth/internal/rules"
	"github.com/solatis/priorauth/internal/types"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Evaluate decides one prior-authorization request.
func (s *DecisionService) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req EvaluateRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}

	resp, err := s.evaluate(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(resp)
}

// EvaluateBatch decides several requests. A request that cannot be evaluated
// reports its error in place; the others still complete.
func (s *DecisionService) EvaluateBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req EvaluateBatchRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}

	if len(req.Requests) == 0 || len(req.Requests) > s.cfg.MaxBatchSize {
		return nil, status.Error(codes.InvalidArgument,
			fmt.Sprintf("batch must hold between 1 and %d requests, got %d", s.cfg.MaxBatchSize, len(req.Requests)))
	}

	resp := EvaluateBatchResponse{Results: make([]BatchResult, len(req.Requests))}
	for i, r := range req.Requests {
		if err := ctx.Err(); err != nil {
			return nil, toStatus(err)
		}

		result := BatchResult{Index: i}
		out, err := s.evaluate(ctx, r)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Decision = &out.Decision
			result.Explanation = out.Explanation
			resp.Evaluated++
		}
		resp.Results[i] = result
	}

	return encode(resp)
}

func (s *DecisionService) evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResponse, error) {
	if req.Patient == nil {
		return EvaluateResponse{}, fmt.Errorf("%w: patient is required", errInvalidRequest)
	}

	ruleSet := req.Rules
	if ruleSet == nil {
		if req.PolicyID == "" {
			return EvaluateResponse{}, fmt.Errorf("%w: rules or policy_id is required", errInvalidRequest)
		}
		approved, err := s.registry.ApprovedRules(ctx, req.PolicyID)
		if err != nil {
			return EvaluateResponse{}, err
		}
		ruleSet = approved
	}

	decision := s.engine.Evaluate(ruleSet, types.NormalizePatient(req.Patient))
	s.logger.Info("request evaluated",
		zap.String("decision", string(decision.Decision)),
		zap.String("policy_id", req.PolicyID),
		zap.Int("rules", len(ruleSet)),
	)

	return EvaluateResponse{
		Decision:    decision,
		Explanation: rules.Explain(decision),
	}, nil
}
