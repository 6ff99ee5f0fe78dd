package auth

import (
	"context"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAuth(t *testing.T) {
	t.Run("returns error when no claims in context", func(t *testing.T) {
		ctx := context.Background()
		claims, err := RequireAuth(ctx)
		assert.Nil(t, claims)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unauthenticated")
	})

	t.Run("returns claims when present in context", func(t *testing.T) {
		ctx := context.Background()
		expectedClaims := &UserClaims{UID: LocalUserID, TokenPrefix: "fa_12345"}
		ctx = withUserClaims(ctx, expectedClaims)

		claims, err := RequireAuth(ctx)
		require.NoError(t, err)
		assert.Equal(t, expectedClaims.UID, claims.UID)
		assert.Equal(t, expectedClaims.TokenPrefix, claims.TokenPrefix)
	})
}

func TestNormalizePageSize(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		expected int32
	}{
		{"zero returns default", 0, 50},
		{"negative returns default", -1, 50},
		{"valid size unchanged", 20, 20},
		{"over max returns max", 2000, 200},
		{"exactly max unchanged", 200, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizePageSize(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestConvertDateRange(t *testing.T) {
	t.Run("both empty", func(t *testing.T) {
		start, end, err := ConvertDateRange("", "")
		require.NoError(t, err)
		assert.Nil(t, start)
		assert.Nil(t, end)
	})

	t.Run("end date is inclusive", func(t *testing.T) {
		start, end, err := ConvertDateRange("2024-01-01", "2024-01-31")
		require.NoError(t, err)
		require.NotNil(t, start)
		require.NotNil(t, end)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *start)
		assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), *end)
	})

	t.Run("rfc3339 accepted", func(t *testing.T) {
		start, end, err := ConvertDateRange("2024-01-01T10:00:00Z", "")
		require.NoError(t, err)
		assert.Equal(t, 10, start.Hour())
		assert.Nil(t, end)
	})

	t.Run("invalid date", func(t *testing.T) {
		_, _, err := ConvertDateRange("01/02/2024", "")
		require.Error(t, err)
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})

	t.Run("end before start", func(t *testing.T) {
		_, _, err := ConvertDateRange("2024-02-01", "2024-01-01")
		require.Error(t, err)
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})
}

func TestWrapStoreError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		err := WrapStoreError("create document", nil)
		assert.Nil(t, err)
	})

	t.Run("wraps error with operation", func(t *testing.T) {
		err := WrapStoreError("create document", assert.AnError)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create document")
		assert.ErrorIs(t, err, assert.AnError)
	})
}
