package auth

import (
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"go.uber.org/zap"
)

// NewInterceptor returns the API token interceptor when a token hash is
// configured, and the local interceptor otherwise.
func NewInterceptor(tokenHash string, logger *zap.Logger) connect.UnaryInterceptorFunc {
	if tokenHash == "" {
		if logger != nil {
			logger.Warn("no API token configured, accepting unauthenticated requests")
		}
		return LocalDevInterceptor()
	}
	return APITokenInterceptor(tokenHash, logger)
}

// ExtractTokenFromHeader extracts the token from an Authorization header
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is required")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("authorization header must be Bearer token")
	}

	return parts[1], nil
}

// isPublicEndpoint checks if an endpoint should be accessible without authentication
func isPublicEndpoint(procedure string) bool {
	publicEndpoints := []string{
		"/health",
		"/ping",
	}

	for _, endpoint := range publicEndpoints {
		if procedure == endpoint {
			return true
		}
	}

	return false
}
