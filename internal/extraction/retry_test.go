package extraction

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestWithRetry_SuccessFirstAttempt(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    3,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	attempts := 0
	result, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (string, error) {
		attempts++
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected 'ok', got %q", result)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithRetry_TransientThenSuccess(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    3,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	attempts := 0
	result, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &ExtractionError{
				Code:      ErrLLMUnavailable,
				Message:   "transient",
				Retryable: true,
			}
		}
		return "recovered", nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != "recovered" {
		t.Fatalf("expected 'recovered', got %q", result)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_ExhaustsAllAttempts(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    2,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	attempts := 0
	_, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (string, error) {
		attempts++
		return "", &ExtractionError{
			Code:      ErrLLMUnavailable,
			Message:   "always failing",
			Retryable: true,
		}
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	// initial attempt + 2 retries = 3 total
	if attempts != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
}

func TestWithRetry_NonRetryableStopsImmediately(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    3,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	attempts := 0
	_, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (string, error) {
		attempts++
		return "", &ExtractionError{
			Code:      ErrInvalidDocument,
			Message:   "bad document",
			Retryable: false,
		}
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt (non-retryable should stop immediately), got %d", attempts)
	}
	extErr, ok := err.(*ExtractionError)
	if !ok {
		t.Fatal("expected *ExtractionError")
	}
	if extErr.Code != ErrInvalidDocument {
		t.Fatalf("expected ErrInvalidDocument, got %s", extErr.Code)
	}
}

func TestWithRetry_ContextCancellation(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    5,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	_, err := WithRetry(ctx, cfg, func(ctx context.Context) (string, error) {
		attempts++
		return "", &ExtractionError{
			Code:      ErrLLMUnavailable,
			Message:   "failing",
			Retryable: true,
		}
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	// Should have been cancelled before exhausting all retries
	if attempts >= 5 {
		t.Fatalf("expected fewer than 5 attempts due to context cancellation, got %d", attempts)
	}
}

func TestWithRetry_RegularErrorIsRetried(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    2,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	attempts := 0
	_, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (string, error) {
		attempts++
		return "", fmt.Errorf("generic error")
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	// Non-ExtractionError errors should be retried (no Retryable field to check)
	if attempts != 3 {
		t.Fatalf("expected 3 attempts for generic errors, got %d", attempts)
	}
}

func TestWithRetry_WrappedNonRetryableStops(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    3,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	attempts := 0
	_, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, fmt.Errorf("analyze: %w", &ExtractionError{
			Code:    ErrLLMNotConfigured,
			Message: "no api key",
		})
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt for wrapped non-retryable error, got %d", attempts)
	}
	if !HasCode(err, ErrLLMNotConfigured) {
		t.Fatalf("expected wrapped ErrLLMNotConfigured, got %v", err)
	}
}

func TestWithRetry_CanceledErrorNotRetried(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    3,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	attempts := 0
	_, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (string, error) {
		attempts++
		return "", fmt.Errorf("request: %w", context.Canceled)
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithRetry_MaxDelayIsCapped(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      60 * time.Millisecond, // Very low max
		BackoffFactor: 10.0,                  // Aggressive backoff
	}

	start := time.Now()
	attempts := 0
	WithRetry(context.Background(), cfg, func(ctx context.Context) (string, error) {
		attempts++
		return "", &ExtractionError{
			Code:      ErrLLMUnavailable,
			Message:   "failing",
			Retryable: true,
		}
	})
	elapsed := time.Since(start)

	// With capped delay, total time should be roughly: 50ms + 60ms + 60ms = 170ms
	// Without cap: 50ms + 500ms + 5000ms = 5550ms
	// Allow generous margin for test flakiness
	if elapsed > 500*time.Millisecond {
		t.Fatalf("expected delay to be capped, but total time was %v", elapsed)
	}
}
