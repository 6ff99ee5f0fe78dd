// Package service implements the finagent.v1.AgentService API over connect
// with a JSON codec.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/castlemilk/finagent/internal/blob"
	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/castlemilk/finagent/internal/llm"
	"github.com/castlemilk/finagent/internal/profile"
	"github.com/castlemilk/finagent/internal/rag"
	"github.com/castlemilk/finagent/internal/search"
	"github.com/castlemilk/finagent/internal/store"
	"go.uber.org/zap"
)

// ProviderFactory builds an LLM provider from resolved settings.
type ProviderFactory func(ctx context.Context, cfg llm.ProviderConfig) (llm.Provider, error)

// Options tunes the service.
type Options struct {
	// DefaultLLM is used when no API key has been saved in settings.
	DefaultLLM llm.ProviderConfig
	// Documents with more pages than this are ingested asynchronously.
	// Zero disables the automatic async path.
	AsyncPageThreshold int
	MaxUploadBytes     int64
	MaxContextTokens   int
	SearchResults      int
	IngestTimeout      time.Duration
	LLMRetry           *extraction.RetryConfig
}

// Deps are the collaborators the service needs. Search may be nil, in which
// case ledger search falls back to the store.
type Deps struct {
	Store   store.Store
	Blobs   blob.Store
	Vectors *rag.VectorStore
	Search  search.Index
	Jobs    *extraction.JobStore
	Logger  *zap.Logger
	// NewProvider defaults to llm.NewProvider.
	NewProvider ProviderFactory
}

type AgentService struct {
	store       store.Store
	blobs       blob.Store
	vectors     *rag.VectorStore
	search      search.Index
	jobs        *extraction.JobStore
	profile     *profile.Manager
	newProvider ProviderFactory
	opts        Options
	logger      *zap.Logger
	now         func() time.Time

	wg sync.WaitGroup
}

func NewAgentService(deps Deps, opts Options) (*AgentService, error) {
	if deps.Store == nil || deps.Blobs == nil || deps.Vectors == nil {
		return nil, fmt.Errorf("store, blob store and vector store are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Search == nil {
		deps.Search = search.NewStoreIndex(deps.Store)
	}
	if deps.Jobs == nil {
		deps.Jobs = extraction.NewJobStore(time.Hour)
	}
	if deps.NewProvider == nil {
		deps.NewProvider = llm.NewProvider
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = rag.DefaultMaxContextTokens
	}
	if opts.SearchResults <= 0 {
		opts.SearchResults = rag.DefaultSearchResults
	}
	if opts.IngestTimeout <= 0 {
		opts.IngestTimeout = 10 * time.Minute
	}

	return &AgentService{
		store:       deps.Store,
		blobs:       deps.Blobs,
		vectors:     deps.Vectors,
		search:      deps.Search,
		jobs:        deps.Jobs,
		profile:     profile.NewManager(deps.Store, logger),
		newProvider: deps.NewProvider,
		opts:        opts,
		logger:      logger.Named("agent"),
		now:         time.Now,
	}, nil
}

// Wait blocks until background ingestions finish.
func (s *AgentService) Wait() {
	s.wg.Wait()
}

// Close waits for background work and stops the job store cleanup.
func (s *AgentService) Close() {
	s.wg.Wait()
	s.jobs.Stop()
}

// Profile exposes the finance profile manager.
func (s *AgentService) Profile() *profile.Manager { return s.profile }

// loadSettings returns stored settings, or defaults when none were saved.
func (s *AgentService) loadSettings(ctx context.Context) (*store.Settings, error) {
	settings, err := s.store.GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		settings = store.DefaultSettings()
		if s.opts.DefaultLLM.Provider != "" {
			settings.LLMProvider = s.opts.DefaultLLM.Provider
		}
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// providerConfig resolves the LLM configuration: saved settings first, then
// the configured default when it names the same provider.
func (s *AgentService) providerConfig(settings *store.Settings) llm.ProviderConfig {
	cfg := llm.ProviderConfig{
		Provider: settings.LLMProvider,
		APIKey:   settings.LLMAPIKey,
		Model:    settings.LLMModel,
	}
	def := s.opts.DefaultLLM
	if strings.EqualFold(cfg.Provider, def.Provider) || cfg.Provider == "" {
		if cfg.Provider == "" {
			cfg.Provider = def.Provider
		}
		if cfg.APIKey == "" {
			cfg.APIKey = def.APIKey
		}
		if cfg.Model == "" {
			cfg.Model = def.Model
		}
		cfg.BaseURL = def.BaseURL
	}
	return cfg
}

// llmClient builds a client for the current settings. It returns an
// LLM_NOT_CONFIGURED ExtractionError when no API key is available.
func (s *AgentService) llmClient(ctx context.Context) (*llm.Client, error) {
	settings, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	return s.clientFor(ctx, settings)
}

func (s *AgentService) clientFor(ctx context.Context, settings *store.Settings) (*llm.Client, error) {
	provider, err := s.newProvider(ctx, s.providerConfig(settings))
	if err != nil {
		return nil, err
	}
	var opts []llm.ClientOption
	if s.opts.LLMRetry != nil {
		opts = append(opts, llm.WithRetryConfig(*s.opts.LLMRetry))
	}
	return llm.NewClient(provider, s.logger, opts...), nil
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}

func settingsView(settings *store.Settings) SettingsView {
	return SettingsView{
		LLMProvider:        settings.LLMProvider,
		LLMModel:           settings.LLMModel,
		HasAPIKey:          settings.LLMAPIKey != "",
		APIKeyHint:         maskKey(settings.LLMAPIKey),
		EmbeddingProvider:  settings.EmbeddingProvider,
		AutoIndex:          settings.AutoIndex,
		CheckInterval:      settings.CheckInterval,
		UpdatedAt:          settings.UpdatedAt,
		SupportedProviders: llm.SupportedProviders(),
	}
}

// GetSettings returns the runtime settings with the API key masked.
func (s *AgentService) GetSettings(ctx context.Context, req *connect.Request[GetSettingsRequest]) (*connect.Response[GetSettingsResponse], error) {
	settings, err := s.loadSettings(ctx)
	if err != nil {
		return nil, toConnectError("get settings", err)
	}
	return connect.NewResponse(&GetSettingsResponse{Settings: settingsView(settings)}), nil
}

// UpdateSettings applies the set fields and saves the result.
func (s *AgentService) UpdateSettings(ctx context.Context, req *connect.Request[UpdateSettingsRequest]) (*connect.Response[UpdateSettingsResponse], error) {
	settings, err := s.loadSettings(ctx)
	if err != nil {
		return nil, toConnectError("get settings", err)
	}

	msg := req.Msg
	if msg.LLMProvider != nil {
		provider := strings.ToLower(strings.TrimSpace(*msg.LLMProvider))
		if !contains(llm.SupportedProviders(), provider) {
			return nil, connect.NewError(connect.CodeInvalidArgument,
				fmt.Errorf("unsupported llm provider %q (supported: %s)", *msg.LLMProvider, strings.Join(llm.SupportedProviders(), ", ")))
		}
		if provider != settings.LLMProvider {
			// Neither a key nor a model name carries over between providers.
			if msg.LLMModel == nil {
				settings.LLMModel = ""
			}
			if msg.LLMAPIKey == nil {
				settings.LLMAPIKey = ""
			}
		}
		settings.LLMProvider = provider
	}
	if msg.LLMAPIKey != nil {
		settings.LLMAPIKey = strings.TrimSpace(*msg.LLMAPIKey)
	}
	if msg.LLMModel != nil {
		settings.LLMModel = strings.TrimSpace(*msg.LLMModel)
	}
	if msg.EmbeddingProvider != nil {
		provider := strings.ToLower(strings.TrimSpace(*msg.EmbeddingProvider))
		if !contains([]string{rag.EmbedderHash, rag.EmbedderGemini, rag.EmbedderOpenAI, rag.EmbedderOllama}, provider) {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unsupported embedding provider %q", *msg.EmbeddingProvider))
		}
		settings.EmbeddingProvider = provider
	}
	if msg.AutoIndex != nil {
		settings.AutoIndex = *msg.AutoIndex
	}
	if msg.CheckInterval != nil {
		if *msg.CheckInterval <= 0 {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("check_interval must be positive"))
		}
		settings.CheckInterval = *msg.CheckInterval
	}
	settings.UpdatedAt = s.now().UTC()

	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return nil, toConnectError("save settings", err)
	}
	s.logger.Info("settings updated",
		zap.String("llm_provider", settings.LLMProvider),
		zap.Bool("has_api_key", settings.LLMAPIKey != ""))
	return connect.NewResponse(&UpdateSettingsResponse{Settings: settingsView(settings)}), nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
