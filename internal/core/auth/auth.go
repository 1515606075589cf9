// Package auth provides shared-token authentication for the host bridge.
package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TokenMetadataKey is the gRPC metadata key carrying the bridge token.
const TokenMetadataKey = "x-bridge-token"

// Authenticator checks the bridge token. Only an HMAC digest of the token is
// held; presented tokens are digested with the same per-process key and
// compared in constant time.
type Authenticator struct {
	key    []byte
	digest []byte
}

// NewAuthenticator creates an authenticator for token. An empty token
// yields a disabled authenticator that accepts every request.
func NewAuthenticator(token string) (*Authenticator, error) {
	if token == "" {
		return &Authenticator{}, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate hmac key: %w", err)
	}
	return &Authenticator{key: key, digest: ComputeHMAC(key, token)}, nil
}

// Enabled reports whether a token is required.
func (a *Authenticator) Enabled() bool {
	return a.digest != nil
}

// Authenticate validates a presented token.
func (a *Authenticator) Authenticate(token string) error {
	if !a.Enabled() {
		return nil
	}
	if token == "" {
		return ErrMissingToken
	}
	if !VerifyHMAC(a.digest, ComputeHMAC(a.key, token)) {
		return ErrInvalidToken
	}
	return nil
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// Health checks are always allowed.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !a.Enabled() || strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		var token string
		if tokens := md.Get(TokenMetadataKey); len(tokens) > 0 {
			token = tokens[0]
		}
		if err := a.Authenticate(token); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(ctx, req)
	}
}
