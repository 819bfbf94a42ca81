// Package auth provides HMAC-based API key authentication for reviewer
// access to the decision service.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/solatis/priorauth/internal/registry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MetadataKey is the gRPC metadata header carrying the API key.
const MetadataKey = "x-api-key"

// Queries defines database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(name string, dest interface{}, args ...interface{}) error
	Exec(name string, args ...interface{}) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate validates an API key and returns the reviewer it belongs to.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	computedHash := ComputeHMAC(secret, apiKey)

	// key_hash is unique, so at most one row matches.
	var result struct {
		APIKeyID   string       `db:"api_key_id"`
		Reviewer   string       `db:"reviewer"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
	}

	err = a.queries.Get("get-api-key-by-hash", &result, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// Throttled to one write per minute per key.
	if shouldUpdateLastUsed(result.LastUsedAt, a.now()) {
		_, _ = a.queries.Exec("update-last-used", a.now(), result.APIKeyID)
	}

	return result.Reviewer, nil
}

func shouldUpdateLastUsed(lastUsed sql.NullTime, now time.Time) bool {
	if !lastUsed.Valid {
		return true
	}
	return now.Sub(lastUsed.Time) > time.Minute
}

// IssuedKey is a freshly created API key. Key is shown once and never stored.
type IssuedKey struct {
	APIKeyID string
	Reviewer string
	Key      string
}

// CreateAPIKey generates a key for reviewer signed with the secret secretID
// and stores its hash.
func (a *Authenticator) CreateAPIKey(reviewer, secretID string) (IssuedKey, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return IssuedKey{}, fmt.Errorf("reviewer cannot be empty")
	}
	secret, ok := a.secrets[secretID]
	if !ok {
		return IssuedKey{}, ErrUnknownKey
	}

	key, err := GenerateAPIKey(secretID)
	if err != nil {
		return IssuedKey{}, err
	}

	issued := IssuedKey{
		APIKeyID: uuid.Must(uuid.NewV7()).String(),
		Reviewer: reviewer,
		Key:      key,
	}
	_, err = a.queries.Exec("insert-api-key", issued.APIKeyID, reviewer, secretID, ComputeHMAC(secret, key), a.now())
	if err != nil {
		return IssuedKey{}, fmt.Errorf("failed to store API key: %w", err)
	}
	return issued, nil
}

// RevokeAPIKey marks a key revoked. Revoking twice is not an error.
func (a *Authenticator) RevokeAPIKey(apiKeyID string) error {
	if _, err := a.queries.Exec("revoke-api-key", a.now(), apiKeyID); err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	return nil
}

// healthMethodPrefix covers the gRPC health service, which probes call
// without credentials.
var healthMethodPrefix = "/" + grpc_health_v1.Health_ServiceDesc.ServiceName + "/"

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// The reviewer is attached to the handler context for the transition log.
// Health checks pass through unauthenticated.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, healthMethodPrefix) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(MetadataKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		reviewer, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			return nil, status.Error(Code(err), err.Error())
		}

		return handler(registry.WithReviewer(ctx, reviewer), req)
	}
}

// Code maps an authentication error to its gRPC status code.
func Code(err error) codes.Code {
	switch {
	case errors.Is(err, ErrKeyRevoked):
		return codes.PermissionDenied
	case errors.Is(err, ErrStoreUnavailable):
		return codes.Unavailable
	default:
		return codes.Unauthenticated
	}
}
