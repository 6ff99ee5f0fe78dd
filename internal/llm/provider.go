// Package llm talks to hosted language models for document analysis,
// advisor chat and scanned-page transcription.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider names accepted in settings and configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Default models per provider.
const (
	DefaultOpenAIModel    = "gpt-4o"
	DefaultAnthropicModel = "claude-3-5-sonnet-latest"
	DefaultGeminiModel    = "gemini-2.0-flash"
)

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Provider is a single-turn completion backend.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderConfig selects and configures a Provider.
type ProviderConfig struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the API endpoint, mostly for proxies and tests.
	BaseURL string
}

// NewProvider builds the Provider named in cfg.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, notConfigured(cfg.Provider)
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		return NewOpenAIProvider(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg), nil
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// SupportedProviders lists the provider names NewProvider accepts.
func SupportedProviders() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini}
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) == "" {
		return def
	}
	return model
}
