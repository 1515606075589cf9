package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/stashkeeper/internal/types"
)

// Auth errors are mapped in the auth package interceptor.
// Malformed requests and unresolvable forms map to INVALID_ARGUMENT.
// Calls before LoadWorld map to FAILED_PRECONDITION.
// Rule store errors map to UNAVAILABLE.
// Context timeouts map to DEADLINE_EXCEEDED.

// errInvalidRequest marks a request document that cannot be decoded.
var errInvalidRequest = errors.New("invalid request")

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrNoWorld):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, types.ErrUnknownReference):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, types.ErrInvalidWorld),
		errors.Is(err, types.ErrFormNotFound),
		errors.Is(err, types.ErrNotContainer),
		errors.Is(err, types.ErrInvalidIdentifier):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
