package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/castlemilk/finagent/internal/extraction"
)

const (
	DefaultOllamaURL   = "http://localhost:11434/api/embed"
	DefaultOllamaModel = "nomic-embed-text"
	ollamaEmbedDims    = 768

	// nomic task prefixes for asymmetric retrieval.
	documentPrefix = "search_document: "
	queryPrefix    = "search_query: "
)

// OllamaEmbedder calls an Ollama-compatible /api/embed endpoint.
type OllamaEmbedder struct {
	url    string
	model  string
	dims   int
	client *http.Client
}

// OllamaOption configures an OllamaEmbedder.
type OllamaOption func(*OllamaEmbedder)

func WithOllamaURL(url string) OllamaOption {
	return func(e *OllamaEmbedder) { e.url = url }
}

func WithOllamaModel(model string) OllamaOption {
	return func(e *OllamaEmbedder) { e.model = model }
}

// WithOllamaDimensions sets the vector width reported by Dimensions.
func WithOllamaDimensions(dims int) OllamaOption {
	return func(e *OllamaEmbedder) { e.dims = dims }
}

func WithOllamaHTTPClient(c *http.Client) OllamaOption {
	return func(e *OllamaEmbedder) { e.client = c }
}

func NewOllamaEmbedder(opts ...OllamaOption) *OllamaEmbedder {
	e := &OllamaEmbedder{
		url:    DefaultOllamaURL,
		model:  DefaultOllamaModel,
		dims:   ollamaEmbedDims,
		client: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *OllamaEmbedder) Name() string    { return EmbedderOllama }
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

func (e *OllamaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatches(ctx, texts, defaultBatchSize, func(ctx context.Context, batch []string) ([][]float32, error) {
		prefixed := make([]string, len(batch))
		for i, t := range batch {
			prefixed[i] = documentPrefix + t
		}
		return e.embed(ctx, prefixed)
	})
}

func (e *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := extraction.WithRetry(ctx, extraction.DefaultEmbeddingRetryConfig, func(ctx context.Context) ([][]float32, error) {
		return e.embed(ctx, []string{queryPrefix + text})
	})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, input []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &extraction.ExtractionError{
			Code:      extraction.ErrLLMUnavailable,
			Message:   "ollama embedding request failed",
			Method:    EmbedderOllama,
			Retryable: true,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &extraction.ExtractionError{
			Code:      extraction.ErrLLMUnavailable,
			Message:   fmt.Sprintf("ollama embedding error (%d): %s", resp.StatusCode, bytes.TrimSpace(respBody)),
			Method:    EmbedderOllama,
			Retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	var out ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Embeddings) != len(input) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(out.Embeddings), len(input))
	}
	return out.Embeddings, nil
}
