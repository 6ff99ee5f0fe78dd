package service

import (
	"time"

	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/castlemilk/finagent/internal/profile"
	"github.com/castlemilk/finagent/internal/rag"
	"github.com/castlemilk/finagent/internal/search"
	"github.com/castlemilk/finagent/internal/store"
)

// SettingsView is Settings as returned to clients, with the API key masked.
type SettingsView struct {
	LLMProvider        string    `json:"llm_provider"`
	LLMModel           string    `json:"llm_model,omitempty"`
	HasAPIKey          bool      `json:"has_api_key"`
	APIKeyHint         string    `json:"api_key_hint,omitempty"`
	EmbeddingProvider  string    `json:"embedding_provider,omitempty"`
	AutoIndex          bool      `json:"auto_index"`
	CheckInterval      int       `json:"check_interval"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
	SupportedProviders []string  `json:"supported_providers"`
}

type GetSettingsRequest struct{}

type GetSettingsResponse struct {
	Settings SettingsView `json:"settings"`
}

// UpdateSettingsRequest changes only the fields that are set. An empty
// llm_api_key clears the stored key.
type UpdateSettingsRequest struct {
	LLMProvider       *string `json:"llm_provider,omitempty"`
	LLMAPIKey         *string `json:"llm_api_key,omitempty"`
	LLMModel          *string `json:"llm_model,omitempty"`
	EmbeddingProvider *string `json:"embedding_provider,omitempty"`
	AutoIndex         *bool   `json:"auto_index,omitempty"`
	CheckInterval     *int    `json:"check_interval,omitempty"`
}

type UpdateSettingsResponse struct {
	Settings SettingsView `json:"settings"`
}

type UploadDocumentRequest struct {
	Filename     string `json:"filename"`
	Data         []byte `json:"data"`
	DocumentType string `json:"document_type,omitempty"`
	Async        bool   `json:"async,omitempty"`
}

type UploadDocumentResponse struct {
	Document *store.Document      `json:"document"`
	JobID    string               `json:"job_id,omitempty"`
	Status   extraction.JobStatus `json:"status"`
	Imported profile.ImportCounts `json:"imported"`
}

type ListDocumentsRequest struct {
	PageSize  int32  `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

type ListDocumentsResponse struct {
	Documents     []*store.Document `json:"documents"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type GetDocumentRequest struct {
	ID string `json:"id"`
}

type GetDocumentResponse struct {
	Document *store.Document  `json:"document"`
	Index    rag.DocumentInfo `json:"index"`
}

type DeleteDocumentRequest struct {
	ID string `json:"id"`
}

type DeleteDocumentResponse struct {
	EntriesRemoved int  `json:"entries_removed"`
	ChunksRemoved  bool `json:"chunks_removed"`
}

type GetIngestionJobRequest struct {
	JobID string `json:"job_id"`
}

type GetIngestionJobResponse struct {
	Job *extraction.Job `json:"job"`
}

type GetProfileRequest struct{}

type GetProfileResponse struct {
	Summary *profile.Summary `json:"summary"`
}

type GetSpendingTrendsRequest struct {
	Days int `json:"days,omitempty"`
}

type GetSpendingTrendsResponse struct {
	Trends *profile.SpendingTrends `json:"trends"`
}

type ChatRequest struct {
	Message string `json:"message"`
	// UseRAG defaults to true.
	UseRAG *bool `json:"use_rag,omitempty"`
}

type ChatResponse struct {
	Response    string    `json:"response"`
	ContextUsed string    `json:"context_used,omitempty"`
	MessageID   string    `json:"message_id"`
	Timestamp   time.Time `json:"timestamp"`
}

type GetChatHistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

type GetChatHistoryResponse struct {
	Messages []*store.ChatMessage `json:"messages"`
}

type SearchTransactionsRequest struct {
	Query     string `json:"query,omitempty"`
	Category  string `json:"category,omitempty"`
	StartDate string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate   string `json:"end_date,omitempty"`   // YYYY-MM-DD, inclusive
	Page      int    `json:"page,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
}

type SearchTransactionsResponse struct {
	Results *search.Response `json:"results"`
}

type SearchDocumentsRequest struct {
	Query string `json:"query"`
	N     int    `json:"n,omitempty"`
}

type SearchDocumentsResponse struct {
	Results []rag.SearchResult `json:"results"`
}
