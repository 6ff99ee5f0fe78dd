package extraction

import (
	"errors"
	"fmt"
)

// ExtractionErrorCode represents specific extraction error types.
type ExtractionErrorCode string

const (
	ErrFileNotFound         ExtractionErrorCode = "FILE_NOT_FOUND"
	ErrUnsupportedFormat    ExtractionErrorCode = "UNSUPPORTED_FORMAT"
	ErrTextExtractionFailed ExtractionErrorCode = "TEXT_EXTRACTION_FAILED"
	ErrInvalidDocument      ExtractionErrorCode = "INVALID_DOCUMENT"
	ErrLLMUnavailable       ExtractionErrorCode = "LLM_UNAVAILABLE"
	ErrLLMRateLimited       ExtractionErrorCode = "LLM_RATE_LIMITED"
	ErrLLMNotConfigured     ExtractionErrorCode = "LLM_NOT_CONFIGURED"
	ErrParseFailed          ExtractionErrorCode = "PARSE_FAILED"
)

// ExtractionError is a structured error for extraction failures.
type ExtractionError struct {
	Code              ExtractionErrorCode
	Message           string
	Method            string // e.g. "pdf-text", "pdf-rows" or "openai"
	Retryable         bool
	SuggestedFallback string
	Cause             error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error is retryable.
func (e *ExtractionError) IsRetryable() bool {
	return e.Retryable
}

// HasCode reports whether err wraps an ExtractionError with the given code.
func HasCode(err error, code ExtractionErrorCode) bool {
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return extErr.Code == code
	}
	return false
}
