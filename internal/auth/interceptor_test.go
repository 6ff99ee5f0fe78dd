package auth

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtractTokenFromHeader(t *testing.T) {
	tests := []struct {
		name        string
		authHeader  string
		expectedErr bool
		errContains string
		wantToken   string
	}{
		{
			name:        "empty header",
			authHeader:  "",
			expectedErr: true,
			errContains: "authorization header is required",
		},
		{
			name:        "no bearer prefix",
			authHeader:  "token123",
			expectedErr: true,
			errContains: "must be Bearer token",
		},
		{
			name:        "wrong prefix",
			authHeader:  "Basic token123",
			expectedErr: true,
			errContains: "must be Bearer token",
		},
		{
			name:        "bearer only no token",
			authHeader:  "Bearer",
			expectedErr: true,
			errContains: "must be Bearer token",
		},
		{
			name:        "valid bearer token",
			authHeader:  "Bearer mytoken123",
			expectedErr: false,
			wantToken:   "mytoken123",
		},
		{
			name:        "bearer lowercase",
			authHeader:  "bearer mytoken456",
			expectedErr: false,
			wantToken:   "mytoken456",
		},
		{
			name:        "bearer mixed case",
			authHeader:  "BEARER mytoken789",
			expectedErr: false,
			wantToken:   "mytoken789",
		},
		{
			name:        "token with spaces",
			authHeader:  "Bearer token with spaces",
			expectedErr: false,
			wantToken:   "token with spaces",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ExtractTokenFromHeader(tt.authHeader)

			if tt.expectedErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Empty(t, token)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantToken, token)
			}
		})
	}
}

func TestContextUserClaims(t *testing.T) {
	t.Run("WithUserClaims adds claims to context", func(t *testing.T) {
		ctx := context.Background()
		claims := &UserClaims{
			UID:         LocalUserID,
			TokenPrefix: "fa_ab12c",
			Verified:    true,
		}

		newCtx := WithUserClaims(ctx, claims)

		retrievedClaims, ok := GetUserClaims(newCtx)
		require.True(t, ok)
		assert.Equal(t, claims.UID, retrievedClaims.UID)
		assert.Equal(t, claims.TokenPrefix, retrievedClaims.TokenPrefix)
		assert.Equal(t, claims.Verified, retrievedClaims.Verified)
	})

	t.Run("GetUserClaims returns false for empty context", func(t *testing.T) {
		ctx := context.Background()

		claims, ok := GetUserClaims(ctx)
		assert.False(t, ok)
		assert.Nil(t, claims)
	})

	t.Run("GetUserID returns UID when claims exist", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithUserClaims(ctx, &UserClaims{UID: "user-123"})

		uid, ok := GetUserID(ctx)
		assert.True(t, ok)
		assert.Equal(t, "user-123", uid)
	})

	t.Run("GetUserID returns empty for empty context", func(t *testing.T) {
		ctx := context.Background()

		uid, ok := GetUserID(ctx)
		assert.False(t, ok)
		assert.Empty(t, uid)
	})
}

func TestIsPublicEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		procedure string
		expected  bool
	}{
		{"health endpoint", "/health", true},
		{"ping endpoint", "/ping", true},
		{"agent service endpoint", "/finagent.v1.AgentService/Chat", false},
		{"other endpoint", "/api/v1/users", false},
		{"empty endpoint", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isPublicEndpoint(tt.procedure)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// runInterceptor passes a request with the given headers through interceptor
// and returns the claims the next handler saw.
func runInterceptor(t *testing.T, interceptor connect.UnaryInterceptorFunc, headers map[string]string) (*UserClaims, error) {
	t.Helper()
	req := connect.NewRequest(&struct{}{})
	for k, v := range headers {
		req.Header().Set(k, v)
	}

	var seen *UserClaims
	next := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		seen, _ = GetUserClaims(ctx)
		return connect.NewResponse(&struct{}{}), nil
	}
	_, err := interceptor(next)(context.Background(), req)
	return seen, err
}

func TestAPITokenInterceptor(t *testing.T) {
	raw, hash, prefix, err := GenerateAPIToken()
	require.NoError(t, err)
	interceptor := APITokenInterceptor(hash, zap.NewNop())

	tests := []struct {
		name     string
		headers  map[string]string
		wantCode connect.Code
	}{
		{name: "valid api key header", headers: map[string]string{APIKeyHeader: raw}},
		{name: "valid bearer token", headers: map[string]string{"Authorization": "Bearer " + raw}},
		{name: "missing token", headers: nil, wantCode: connect.CodeUnauthenticated},
		{name: "wrong token", headers: map[string]string{APIKeyHeader: "fa_nope"}, wantCode: connect.CodeUnauthenticated},
		{name: "basic auth ignored", headers: map[string]string{"Authorization": "Basic " + raw}, wantCode: connect.CodeUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := runInterceptor(t, interceptor, tt.headers)
			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, connect.CodeOf(err))
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, claims)
			assert.Equal(t, LocalUserID, claims.UID)
			assert.Equal(t, prefix, claims.TokenPrefix)
			assert.True(t, claims.Verified)
		})
	}
}

func TestNewInterceptor(t *testing.T) {
	t.Run("no token configured allows local requests", func(t *testing.T) {
		claims, err := runInterceptor(t, NewInterceptor("", zap.NewNop()), nil)
		require.NoError(t, err)
		require.NotNil(t, claims)
		assert.Equal(t, LocalUserID, claims.UID)
		assert.False(t, claims.Verified)
	})

	t.Run("configured token is enforced", func(t *testing.T) {
		_, hash, _, err := GenerateAPIToken()
		require.NoError(t, err)
		_, err = runInterceptor(t, NewInterceptor(hash, zap.NewNop()), nil)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})
}
