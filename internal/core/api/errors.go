package api

import (
	"context"
	"errors"

	"github.com/solatis/priorauth/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errInvalidRequest marks malformed request payloads.
var errInvalidRequest = errors.New("invalid request")

// toStatus maps domain errors onto gRPC codes.
// Auth errors are mapped in the auth interceptor.
// Storage errors map to UNAVAILABLE.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, types.ErrCandidateNotFound):
		code = codes.NotFound
	case errors.Is(err, types.ErrInvalidTransition):
		code = codes.FailedPrecondition
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, types.ErrInvalidStatus),
		errors.Is(err, types.ErrInvalidRule),
		errors.Is(err, types.ErrEmptyPolicyID):
		code = codes.InvalidArgument
	case errors.Is(err, types.ErrDuplicateCandidate):
		code = codes.AlreadyExists
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}
