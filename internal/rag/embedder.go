package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/castlemilk/finagent/internal/extraction"
	"golang.org/x/sync/errgroup"
)

// Embedder turns text into vectors. Documents and queries are embedded
// separately because some models use asymmetric task types.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
}

// Embedding provider names.
const (
	EmbedderHash   = "hash"
	EmbedderGemini = "gemini"
	EmbedderOpenAI = "openai"
	EmbedderOllama = "ollama"
)

const (
	defaultBatchSize   = 64
	defaultConcurrency = 4
)

// EmbedderConfig selects an embedding backend.
type EmbedderConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// NewEmbedder builds the embedder named in cfg. An empty provider selects
// the offline hash embedder.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", EmbedderHash:
		return NewHashEmbedder(0), nil
	case EmbedderGemini:
		return NewGenAIEmbedder(ctx, cfg.APIKey, cfg.Model)
	case EmbedderOpenAI:
		return NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case EmbedderOllama:
		var opts []OllamaOption
		if cfg.BaseURL != "" {
			opts = append(opts, WithOllamaURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, WithOllamaModel(cfg.Model))
		}
		return NewOllamaEmbedder(opts...), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// embedBatches splits texts into batches and embeds them concurrently,
// retrying each batch on transient failures. Output order matches input.
func embedBatches(ctx context.Context, texts []string, batchSize int, fn func(ctx context.Context, batch []string) ([][]float32, error)) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultConcurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := extraction.WithRetry(gctx, extraction.DefaultEmbeddingRetryConfig, func(ctx context.Context) ([][]float32, error) {
				return fn(ctx, texts[start:end])
			})
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding batch returned %d vectors for %d texts", len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// HashEmbedder is a deterministic feature-hashing embedder. It needs no
// network access and keeps lexical overlap, which is enough for keyword-heavy
// statements and for tests.
type HashEmbedder struct {
	dims int
}

const defaultHashDims = 256

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = defaultHashDims
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Name() string    { return EmbedderHash }
func (h *HashEmbedder) Dimensions() int { return h.dims }

func (h *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

func (h *HashEmbedder) embed(text string) []float32 {
	vec := make([]float32, h.dims)
	tokens := tokenize(text)
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func (h *HashEmbedder) add(vec []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	idx := int(sum % uint64(h.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
