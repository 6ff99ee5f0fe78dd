package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

func notConfigured(provider string) *extraction.ExtractionError {
	if provider == "" {
		provider = ProviderOpenAI
	}
	return &extraction.ExtractionError{
		Code:              extraction.ErrLLMNotConfigured,
		Message:           fmt.Sprintf("no API key configured for %s", provider),
		Method:            provider,
		SuggestedFallback: "text-extraction",
	}
}

// statusCode pulls the HTTP status out of an SDK error, or 0 when the
// request never got a response.
func statusCode(err error) int {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return oaiErr.StatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}
	var genErr genai.APIError
	if errors.As(err, &genErr) {
		return genErr.Code
	}
	var genErrPtr *genai.APIError
	if errors.As(err, &genErrPtr) {
		return genErrPtr.Code
	}
	return 0
}

// ClassifyError converts provider SDK errors to ExtractionErrors so the
// retry loop and the API layer can reason about them uniformly.
func ClassifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var extErr *extraction.ExtractionError
	if errors.As(err, &extErr) {
		return err
	}

	code := statusCode(err)
	switch {
	case code == http.StatusTooManyRequests:
		return &extraction.ExtractionError{
			Code:      extraction.ErrLLMRateLimited,
			Message:   fmt.Sprintf("%s API rate limited", provider),
			Method:    provider,
			Retryable: true,
			Cause:     err,
		}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &extraction.ExtractionError{
			Code:    extraction.ErrLLMNotConfigured,
			Message: fmt.Sprintf("%s rejected the API key (HTTP %d)", provider, code),
			Method:  provider,
			Cause:   err,
		}
	case code >= 400 && code < 500:
		return &extraction.ExtractionError{
			Code:    extraction.ErrLLMUnavailable,
			Message: fmt.Sprintf("%s API rejected the request (HTTP %d)", provider, code),
			Method:  provider,
			Cause:   err,
		}
	default:
		// 5xx and transport failures.
		return &extraction.ExtractionError{
			Code:      extraction.ErrLLMUnavailable,
			Message:   fmt.Sprintf("%s API request failed", provider),
			Method:    provider,
			Retryable: true,
			Cause:     err,
		}
	}
}
