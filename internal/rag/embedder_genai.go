package rag

import (
	"context"
	"fmt"

	"github.com/castlemilk/finagent/internal/llm"
	"google.golang.org/genai"
)

const (
	DefaultGenAIEmbeddingModel = "gemini-embedding-001"
	genaiEmbeddingDims         = 768
)

// GenAIEmbedder embeds text with the Gemini embedding API.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
	dims   int
}

func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embeddings require an API key")
	}
	if model == "" {
		model = DefaultGenAIEmbeddingModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GenAIEmbedder{client: client, model: model, dims: genaiEmbeddingDims}, nil
}

func (e *GenAIEmbedder) Name() string    { return EmbedderGemini }
func (e *GenAIEmbedder) Dimensions() int { return e.dims }

func (e *GenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatches(ctx, texts, defaultBatchSize, func(ctx context.Context, batch []string) ([][]float32, error) {
		return e.embed(ctx, batch, "RETRIEVAL_DOCUMENT")
	})
}

func (e *GenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *GenAIEmbedder) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: genai.Ptr(int32(e.dims)),
	})
	if err != nil {
		return nil, llm.ClassifyError(EmbedderGemini, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
