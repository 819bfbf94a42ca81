package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote DecisionServer using the typed messages.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return err
	}
	return decode(out, resp)
}

// Evaluate decides one request remotely.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest, opts ...grpc.CallOption) (EvaluateResponse, error) {
	var resp EvaluateResponse
	err := c.invoke(ctx, MethodEvaluate, req, &resp, opts...)
	return resp, err
}

// EvaluateBatch decides several requests remotely.
func (c *Client) EvaluateBatch(ctx context.Context, req EvaluateBatchRequest, opts ...grpc.CallOption) (EvaluateBatchResponse, error) {
	var resp EvaluateBatchResponse
	err := c.invoke(ctx, MethodEvaluateBatch, req, &resp, opts...)
	return resp, err
}

// ListCandidates lists candidates remotely.
func (c *Client) ListCandidates(ctx context.Context, req ListCandidatesRequest, opts ...grpc.CallOption) (ListCandidatesResponse, error) {
	var resp ListCandidatesResponse
	err := c.invoke(ctx, MethodListCandidates, req, &resp, opts...)
	return resp, err
}

// ReviewCandidate reviews a candidate remotely.
func (c *Client) ReviewCandidate(ctx context.Context, req ReviewCandidateRequest, opts ...grpc.CallOption) (ReviewCandidateResponse, error) {
	var resp ReviewCandidateResponse
	err := c.invoke(ctx, MethodReviewCandidate, req, &resp, opts...)
	return resp, err
}

// ApprovedRules fetches approved rules remotely.
func (c *Client) ApprovedRules(ctx context.Context, req ApprovedRulesRequest, opts ...grpc.CallOption) (ApprovedRulesResponse, error) {
	var resp ApprovedRulesResponse
	err := c.invoke(ctx, MethodApprovedRules, req, &resp, opts...)
	return resp, err
}

// ListPolicies lists registered policies remotely.
func (c *Client) ListPolicies(ctx context.Context, opts ...grpc.CallOption) (ListPoliciesResponse, error) {
	var resp ListPoliciesResponse
	err := c.invoke(ctx, MethodListPolicies, struct{}{}, &resp, opts...)
	return resp, err
}
