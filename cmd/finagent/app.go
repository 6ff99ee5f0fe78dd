package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/firestore"
	"github.com/castlemilk/finagent/internal/blob"
	"github.com/castlemilk/finagent/internal/config"
	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/castlemilk/finagent/internal/llm"
	"github.com/castlemilk/finagent/internal/rag"
	"github.com/castlemilk/finagent/internal/search"
	"github.com/castlemilk/finagent/internal/service"
	"github.com/castlemilk/finagent/internal/store"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// app holds the wired components for one process.
type app struct {
	store   store.Store
	vectors *rag.VectorStore
	svc     *service.AgentService
	closers []func() error
}

// newApp wires storage, retrieval, search and the agent service from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Storage.Backend != config.BackendMemory {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	// The vector index lives in SQLite next to the ledger, except for the
	// memory backend where it stays in process.
	var vectorDB *sql.DB
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		a.store = store.NewMemoryStore()
	case config.BackendSQLite:
		db, err := store.OpenSQLite(cfg.Storage.DatabasePath())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		s, err := store.NewSQLiteStore(db)
		if err != nil {
			return nil, err
		}
		a.store, vectorDB = s, db
	case config.BackendFirestore:
		var opts []option.ClientOption
		if cfg.Storage.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Storage.CredentialsFile))
		}
		client, err := firestore.NewClient(ctx, cfg.Storage.FirestoreProject, opts...)
		if err != nil {
			return nil, fmt.Errorf("create firestore client: %w", err)
		}
		a.store = store.NewFirestoreStore(client)
		a.closers = append(a.closers, a.store.Close)

		db, err := store.OpenSQLite(filepath.Join(cfg.Storage.DataDir, "vectors.db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		vectorDB = db
	}
	logger.Info("storage ready", zap.String("backend", cfg.Storage.Backend))

	var blobs blob.Store
	if cfg.Storage.UploadBucket != "" {
		gcs, err := blob.NewGCSStore(ctx, cfg.Storage.UploadBucket, "finagent", cfg.Storage.CredentialsFile)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gcs.Close)
		blobs = gcs
	} else {
		dir := cfg.Storage.UploadDir()
		if cfg.Storage.Backend == config.BackendMemory {
			dir = filepath.Join(os.TempDir(), "finagent-uploads")
		}
		local, err := blob.NewLocalStore(dir)
		if err != nil {
			return nil, err
		}
		blobs = local
	}

	embedder, err := rag.NewEmbedder(ctx, embedderConfig(ctx, cfg, a.store))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	a.vectors, err = rag.NewVectorStore(vectorDB, embedder, logger,
		rag.WithChunking(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap))
	if err != nil {
		return nil, err
	}
	logger.Info("retrieval index ready",
		zap.String("embedder", embedder.Name()),
		zap.Int("dimensions", embedder.Dimensions()),
		zap.Int("chunks", a.vectors.Count()))

	var index search.Index
	if cfg.Search.Enabled() {
		index, err = search.NewAlgoliaClient(search.Config{
			AppID:     cfg.Search.AlgoliaAppID,
			APIKey:    cfg.Search.AlgoliaAPIKey,
			IndexName: cfg.Search.IndexName,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("algolia search enabled", zap.String("index", cfg.Search.IndexName))
	}

	a.svc, err = service.NewAgentService(service.Deps{
		Store:   a.store,
		Blobs:   blobs,
		Vectors: a.vectors,
		Search:  index,
		Jobs:    extraction.NewJobStore(cfg.Ingestion.JobTTL),
		Logger:  logger,
	}, service.Options{
		DefaultLLM: llm.ProviderConfig{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			Model:    cfg.LLM.Model,
			BaseURL:  cfg.LLM.BaseURL,
		},
		AsyncPageThreshold: cfg.Ingestion.AsyncPageThreshold,
		MaxUploadBytes:     cfg.Ingestion.MaxUploadBytes,
		MaxContextTokens:   cfg.RAG.MaxContextTokens,
		SearchResults:      cfg.RAG.SearchResults,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// embedderConfig resolves the embedding backend. A provider saved in
// settings wins over the config file; API keys fall back to the LLM key
// when both use the same vendor.
func embedderConfig(ctx context.Context, cfg *config.Config, s store.Store) rag.EmbedderConfig {
	ec := rag.EmbedderConfig{
		Provider: cfg.Embedding.Provider,
		APIKey:   cfg.Embedding.APIKey,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
	}
	settings, err := s.GetSettings(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return ec
	}
	if settings != nil && settings.EmbeddingProvider != "" && settings.EmbeddingProvider != ec.Provider {
		ec.Provider = settings.EmbeddingProvider
		ec.Model = ""
	}
	if ec.APIKey == "" {
		switch {
		case settings != nil && settings.LLMProvider == ec.Provider && settings.LLMAPIKey != "":
			ec.APIKey = settings.LLMAPIKey
		case cfg.LLM.Provider == ec.Provider:
			ec.APIKey = cfg.LLM.APIKey
		}
	}
	return ec
}

// Close waits for background work and releases resources in reverse order.
func (a *app) Close() {
	if a.svc != nil {
		a.svc.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
