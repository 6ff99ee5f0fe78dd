package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/castlemilk/finagent/internal/profile"
	"go.uber.org/zap"
)

// maxDocumentChars bounds the document text sent for analysis.
const maxDocumentChars = 100_000

// Client wraps a Provider with the finance prompts, retries and response parsing.
type Client struct {
	provider Provider
	retry    extraction.RetryConfig
	logger   *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg extraction.RetryConfig) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

func NewClient(provider Provider, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		provider: provider,
		retry:    extraction.DefaultLLMRetryConfig,
		logger:   logger.Named("llm").With(zap.String("provider", provider.Name()), zap.String("model", provider.Model())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider { return c.provider }

func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	return extraction.WithRetry(ctx, c.retry, func(ctx context.Context) (string, error) {
		return c.provider.Complete(ctx, req)
	})
}

// AnalyzeFinancialDocument asks the model for a structured analysis of text.
// When the model answers with something that is not JSON the raw answer is
// returned with ParsingError set. Fields of an unexpected type are decoded
// leniently or dropped on their own.
func (c *Client) AnalyzeFinancialDocument(ctx context.Context, text string, docType extraction.DocumentType) (*extraction.DocumentAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &extraction.ExtractionError{
			Code:    extraction.ErrInvalidDocument,
			Message: "no text to analyze",
			Method:  c.provider.Name(),
		}
	}

	pages := strings.Count(text, "--- Page ")
	maxTokens := extraction.AnalyzeText(text, pages).MaxOutputTokens
	text = truncate(text, maxDocumentChars)

	if docType == "" {
		docType = extraction.DocumentTypeOther
	}

	content, err := c.complete(ctx, Request{
		System:      analysisSystemPrompt,
		Prompt:      analysisPrompt(text, string(docType)),
		Temperature: analysisTemperature,
		MaxTokens:   maxTokens,
		JSON:        true,
	})
	if err != nil {
		c.logger.Warn("document analysis failed", zap.Error(err))
		return nil, err
	}

	analysis, skipped, err := decodeAnalysis(content)
	if err != nil {
		c.logger.Warn("model returned unparseable analysis", zap.Error(err), zap.Int("response_len", len(content)))
		return &extraction.DocumentAnalysis{
			DocumentType: docType,
			RawAnalysis:  content,
			ParsingError: true,
			ModelUsed:    c.provider.Model(),
		}, nil
	}
	if len(skipped) > 0 {
		c.logger.Warn("dropped malformed analysis fields", zap.Strings("fields", skipped))
	}
	if analysis.DocumentType == "" {
		analysis.DocumentType = docType
	} else {
		analysis.DocumentType = extraction.ParseDocumentType(string(analysis.DocumentType))
	}
	analysis.ModelUsed = c.provider.Model()

	c.logger.Info("document analyzed",
		zap.String("document_type", string(analysis.DocumentType)),
		zap.Int("transactions", len(analysis.Transactions)),
		zap.Int("investments", len(analysis.Investments)))
	return analysis, nil
}

// ChatWithContext answers a question using the profile context and, when
// non-empty, excerpts retrieved from indexed documents.
func (c *Client) ChatWithContext(ctx context.Context, message string, financial *profile.ChatContext, documentContext string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message is required")
	}
	answer, err := c.complete(ctx, Request{
		System:      advisorSystemPrompt,
		Prompt:      chatPrompt(message, financial.String(), documentContext),
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		c.logger.Warn("chat failed", zap.Error(err))
		return "", err
	}
	return answer, nil
}

// ReadDocument implements extraction.DocumentReader when the provider can
// read documents directly.
func (c *Client) ReadDocument(ctx context.Context, data []byte, mimeType string) (string, error) {
	reader, ok := c.provider.(extraction.DocumentReader)
	if !ok {
		return "", &extraction.ExtractionError{
			Code:    extraction.ErrUnsupportedFormat,
			Message: fmt.Sprintf("%s cannot read documents directly", c.provider.Name()),
			Method:  c.provider.Name(),
		}
	}
	return extraction.WithRetry(ctx, c.retry, func(ctx context.Context) (string, error) {
		return reader.ReadDocument(ctx, data, mimeType)
	})
}

// DocumentReader returns a reader for scanned documents, or nil when the
// provider has none.
func (c *Client) DocumentReader() extraction.DocumentReader {
	if _, ok := c.provider.(extraction.DocumentReader); ok {
		return c
	}
	return nil
}

// extractJSON decodes the first balanced JSON object found in text.
func extractJSON(text string, v any) error {
	start := -1
	end := -1
	depth := 0
	inString := false
	escaped := false

	for i, c := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if start != -1 {
				inString = true
			}
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			if start == -1 {
				continue
			}
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
		if end != -1 {
			break
		}
	}

	if start == -1 || end == -1 {
		return fmt.Errorf("no JSON object found in response")
	}
	return json.Unmarshal([]byte(text[start:end]), v)
}

func truncate(s string, maxChars int) string {
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxChars])
}
