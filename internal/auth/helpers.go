package auth

import (
	"context"
	"fmt"
	"time"

	"connectrpc.com/connect"
)

// RequireAuth extracts user claims from context or returns an unauthenticated error
func RequireAuth(ctx context.Context) (*UserClaims, error) {
	claims, ok := GetUserClaims(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("user not authenticated"))
	}
	return claims, nil
}

// NormalizePageSize returns a valid page size (default 50, max 200)
func NormalizePageSize(pageSize int32) int32 {
	if pageSize <= 0 {
		return 50
	}
	if pageSize > 200 {
		return 200
	}
	return pageSize
}

// ConvertDateRange parses optional YYYY-MM-DD (or RFC 3339) bounds. The end
// date is inclusive, so a bare date is moved to the end of that day.
func ConvertDateRange(startDate, endDate string) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if startDate != "" {
		t, err := parseDate(startDate)
		if err != nil {
			return nil, nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid start date %q", startDate))
		}
		start = &t
	}
	if endDate != "" {
		t, err := parseDate(endDate)
		if err != nil {
			return nil, nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid end date %q", endDate))
		}
		if len(endDate) == len(time.DateOnly) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		end = &t
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("end date is before start date"))
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// WrapStoreError wraps store errors with operation context
func WrapStoreError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}
