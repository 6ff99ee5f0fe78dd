// Package config loads finagent.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendSQLite    = "sqlite"
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
)

// Config represents the top-level finagent.yaml configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	RAG       RAGConfig       `yaml:"rag"`
	Search    SearchConfig    `yaml:"search"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	// APIToken is a raw "fa_" token or its SHA-256 hex digest. Empty
	// disables authentication.
	APIToken string `yaml:"api_token,omitempty"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects where documents, the ledger and uploads live.
type StorageConfig struct {
	Backend          string `yaml:"backend"` // sqlite, memory or firestore
	DataDir          string `yaml:"data_dir"`
	SQLitePath       string `yaml:"sqlite_path,omitempty"`
	FirestoreProject string `yaml:"firestore_project,omitempty"`
	UploadBucket     string `yaml:"upload_bucket,omitempty"` // GCS bucket; local dir when empty
	CredentialsFile  string `yaml:"credentials_file,omitempty"`
}

// DatabasePath returns the SQLite file, defaulting to DataDir/finagent.db.
func (s StorageConfig) DatabasePath() string {
	if s.SQLitePath != "" {
		return s.SQLitePath
	}
	return filepath.Join(s.DataDir, "finagent.db")
}

// UploadDir is where uploads are kept when no bucket is configured.
func (s StorageConfig) UploadDir() string {
	return filepath.Join(s.DataDir, "uploads")
}

// LLMConfig is the fallback LLM configuration, used until settings are
// saved through the API.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // hash, gemini, openai or ollama
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// RAGConfig tunes chunking and retrieval.
type RAGConfig struct {
	ChunkSize        int `yaml:"chunk_size"`
	ChunkOverlap     int `yaml:"chunk_overlap"`
	SearchResults    int `yaml:"search_results"`
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// SearchConfig enables Algolia ledger search.
type SearchConfig struct {
	AlgoliaAppID  string `yaml:"algolia_app_id,omitempty"`
	AlgoliaAPIKey string `yaml:"algolia_api_key,omitempty"`
	IndexName     string `yaml:"index_name,omitempty"`
}

// Enabled reports whether Algolia credentials are present.
func (s SearchConfig) Enabled() bool {
	return s.AlgoliaAppID != "" && s.AlgoliaAPIKey != ""
}

// IngestionConfig controls the async upload path.
type IngestionConfig struct {
	AsyncPageThreshold int           `yaml:"async_page_threshold"`
	JobTTL             time.Duration `yaml:"job_ttl"`
	MaxUploadBytes     int64         `yaml:"max_upload_bytes"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// Home returns FINAGENT_HOME, defaulting to ~/.finagent.
func Home() string {
	if h := os.Getenv("FINAGENT_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".finagent"
	}
	return filepath.Join(home, ".finagent")
}

// DefaultPath is the config file location.
func DefaultPath() string {
	return filepath.Join(Home(), "finagent.yaml")
}

// Default returns a Config with sensible defaults for a local install.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8111,
			AllowedOrigins: []string{
				"http://localhost:8111",
				"http://127.0.0.1:8111",
			},
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			DataDir: filepath.Join(Home(), "data"),
		},
		LLM: LLMConfig{
			Provider: "openai",
		},
		Embedding: EmbeddingConfig{
			Provider: "hash",
		},
		RAG: RAGConfig{
			ChunkSize:        1000,
			ChunkOverlap:     100,
			SearchResults:    5,
			MaxContextTokens: 2000,
		},
		Search: SearchConfig{
			IndexName: "finagent",
		},
		Ingestion: IngestionConfig{
			AsyncPageThreshold: 5,
			JobTTL:             time.Hour,
			MaxUploadBytes:     25 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	set(&c.Server.APIToken, "FINAGENT_API_TOKEN")
	set(&c.Storage.DataDir, "FINAGENT_DATA_DIR")
	set(&c.Storage.Backend, "FINAGENT_STORE")
	set(&c.Storage.FirestoreProject, "GOOGLE_CLOUD_PROJECT")
	set(&c.Storage.UploadBucket, "FINAGENT_UPLOAD_BUCKET")
	set(&c.Storage.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	set(&c.LLM.Provider, "LLM_PROVIDER")
	set(&c.LLM.Model, "LLM_MODEL")
	set(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	set(&c.Search.AlgoliaAppID, "ALGOLIA_APP_ID")
	set(&c.Search.AlgoliaAPIKey, "ALGOLIA_API_KEY")

	// Provider-specific keys apply only to the selected provider.
	keyEnv := map[string]string{
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
		"gemini":    "GEMINI_API_KEY",
	}
	set(&c.LLM.APIKey, "LLM_API_KEY", keyEnv[strings.ToLower(c.LLM.Provider)])
	if env, ok := keyEnv[strings.ToLower(c.Embedding.Provider)]; ok && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = getenv(env)
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Storage.Backend {
	case BackendSQLite, BackendMemory:
	case BackendFirestore:
		if c.Storage.FirestoreProject == "" {
			errs = append(errs, fmt.Errorf("storage.firestore_project is required for the firestore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, fmt.Errorf("storage.data_dir is required"))
	}
	if c.RAG.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk_size must be positive"))
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size)"))
	}
	if c.Ingestion.AsyncPageThreshold < 0 {
		errs = append(errs, fmt.Errorf("ingestion.async_page_threshold must not be negative"))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
