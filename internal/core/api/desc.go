package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "priorauth.v1.DecisionService"

// Method names, relative to ServiceName.
const (
	MethodEvaluate        = "Evaluate"
	MethodEvaluateBatch   = "EvaluateBatch"
	MethodListCandidates  = "ListCandidates"
	MethodReviewCandidate = "ReviewCandidate"
	MethodApprovedRules   = "ApprovedRules"
	MethodListPolicies    = "ListPolicies"
)

// DecisionServer is the server API for the decision service.
// Every message is a google.protobuf.Struct holding the JSON form of the
// typed request and response in messages.go.
type DecisionServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EvaluateBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCandidates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReviewCandidate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApprovedRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPolicies(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterDecisionServer registers srv on s.
func RegisterDecisionServer(s grpc.ServiceRegistrar, srv DecisionServer) {
	s.RegisterService(&DecisionServiceDesc, srv)
}

// DecisionServiceDesc is the grpc.ServiceDesc for DecisionServer.
var DecisionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DecisionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodEvaluate, Handler: unaryHandler(MethodEvaluate, DecisionServer.Evaluate)},
		{MethodName: MethodEvaluateBatch, Handler: unaryHandler(MethodEvaluateBatch, DecisionServer.EvaluateBatch)},
		{MethodName: MethodListCandidates, Handler: unaryHandler(MethodListCandidates, DecisionServer.ListCandidates)},
		{MethodName: MethodReviewCandidate, Handler: unaryHandler(MethodReviewCandidate, DecisionServer.ReviewCandidate)},
		{MethodName: MethodApprovedRules, Handler: unaryHandler(MethodApprovedRules, DecisionServer.ApprovedRules)},
		{MethodName: MethodListPolicies, Handler: unaryHandler(MethodListPolicies, DecisionServer.ListPolicies)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "priorauth/v1/decision.proto",
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler(method string, call func(DecisionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DecisionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DecisionServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
