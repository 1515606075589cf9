package auth

import "errors"

// Both failures map to UNAUTHENTICATED.
var (
	ErrMissingToken = errors.New("bridge token required in x-bridge-token metadata")
	ErrInvalidToken = errors.New("invalid bridge token")
)
