package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"go.uber.org/zap"
)

// TokenPrefix marks finagent API tokens.
const TokenPrefix = "fa_"

// APIKeyHeader carries the raw API token.
const APIKeyHeader = "X-API-Key"

// GenerateAPIToken creates a new raw token ("fa_" + 64 hex chars from 32 random bytes),
// returning the raw token, its SHA-256 hash, and the prefix (first 8 chars of full token).
func GenerateAPIToken() (raw string, hash string, prefix string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generate random bytes: %w", err)
	}
	raw = TokenPrefix + hex.EncodeToString(b)
	hash = HashAPIToken(raw)
	prefix = raw[:8]
	return raw, hash, prefix, nil
}

// HashAPIToken computes the SHA-256 hex digest of a raw token.
func HashAPIToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// NormalizeTokenHash accepts either a raw token or its hash and returns the hash.
func NormalizeTokenHash(tokenOrHash string) string {
	if tokenOrHash == "" {
		return ""
	}
	if strings.HasPrefix(tokenOrHash, TokenPrefix) {
		return HashAPIToken(tokenOrHash)
	}
	return strings.ToLower(tokenOrHash)
}

// tokenFromRequest reads the raw token from X-API-Key, falling back to a
// Bearer Authorization header.
func tokenFromRequest(header interface{ Get(string) string }) string {
	if key := header.Get(APIKeyHeader); key != "" {
		return key
	}
	if authz := header.Get("Authorization"); authz != "" {
		if token, err := ExtractTokenFromHeader(authz); err == nil {
			return token
		}
	}
	return ""
}

// verifyToken compares the hash of raw with want in constant time.
func verifyToken(raw, wantHash string) bool {
	got := HashAPIToken(raw)
	return subtle.ConstantTimeCompare([]byte(got), []byte(wantHash)) == 1
}

// APITokenInterceptor requires every non-public request to carry the token
// whose SHA-256 hash is tokenHash.
func APITokenInterceptor(tokenHash string, logger *zap.Logger) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("auth")

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if isPublicEndpoint(req.Spec().Procedure) {
				return next(ctx, req)
			}

			raw := tokenFromRequest(req.Header())
			if raw == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("API token required in %s header", APIKeyHeader))
			}
			if !verifyToken(raw, tokenHash) {
				logger.Warn("rejected API token", zap.String("procedure", req.Spec().Procedure), zap.String("peer", req.Peer().Addr))
				return nil, connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("invalid API token"))
			}

			prefix := raw
			if len(prefix) > 8 {
				prefix = prefix[:8]
			}
			ctx = withUserClaims(ctx, &UserClaims{
				UID:         LocalUserID,
				TokenPrefix: prefix,
				Verified:    true,
			})
			return next(ctx, req)
		}
	}
}
