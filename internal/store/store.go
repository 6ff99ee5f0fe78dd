package store

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=store

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for all database operations used by the service
type Store interface {
	// Settings
	GetSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, settings *Settings) error

	// Documents
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	UpdateDocument(ctx context.Context, doc *Document) error
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, pageSize int32, pageToken string) ([]*Document, string, error)

	// Ledger entries
	CreateEntries(ctx context.Context, entries []*FinancialEntry) error
	ListEntries(ctx context.Context, filter EntryFilter) ([]*FinancialEntry, error)
	DeleteEntriesByDocument(ctx context.Context, documentID string) (int, error)

	// Chat log
	CreateChatMessage(ctx context.Context, msg *ChatMessage) error
	ListChatMessages(ctx context.Context, limit int) ([]*ChatMessage, error)

	Close() error
}

// Settings are the user-editable runtime settings.
type Settings struct {
	LLMProvider       string    `json:"llm_provider"`
	LLMAPIKey         string    `json:"llm_api_key,omitempty"`
	LLMModel          string    `json:"llm_model,omitempty"`
	EmbeddingProvider string    `json:"embedding_provider,omitempty"`
	AutoIndex         bool      `json:"auto_index"`
	CheckInterval     int       `json:"check_interval"` // minutes
	UpdatedAt         time.Time `json:"updated_at"`
}

// DefaultSettings returns the settings used before the user saves any.
func DefaultSettings() *Settings {
	return &Settings{
		LLMProvider:   "openai",
		AutoIndex:     true,
		CheckInterval: 60,
	}
}

// DocumentStatus is the ingestion state of an uploaded document.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentProcessed  DocumentStatus = "processed"
	DocumentFailed     DocumentStatus = "failed"
)

// Document is an uploaded file and the result of processing it.
type Document struct {
	ID           string                       `json:"id"`
	Filename     string                       `json:"filename"`
	BlobKey      string                       `json:"blob_key"`
	DocumentType extraction.DocumentType      `json:"document_type"`
	FileSize     int64                        `json:"file_size"`
	PageCount    int                          `json:"page_count"`
	Status       DocumentStatus               `json:"status"`
	Processed    bool                         `json:"processed"`
	Error        string                       `json:"error,omitempty"`
	Method       string                       `json:"extraction_method,omitempty"`
	Analysis     *extraction.DocumentAnalysis `json:"analysis,omitempty"`
	Insights     []string                     `json:"insights,omitempty"`
	ChunkCount   int                          `json:"chunk_count"`
	EntryCount   int                          `json:"entry_count"`
	UploadedAt   time.Time                    `json:"uploaded_at"`
	ProcessedAt  *time.Time                   `json:"processed_at,omitempty"`
}

// FinancialEntry is one row of the finance profile ledger.
type FinancialEntry struct {
	ID               string            `json:"id"`
	Category         string            `json:"category"`
	Subcategory      string            `json:"subcategory"`
	Amount           decimal.Decimal   `json:"amount"`
	Date             time.Time         `json:"date"`
	Description      string            `json:"description"`
	SourceDocumentID string            `json:"source_document_id,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// EntryFilter narrows ListEntries. Zero values match everything.
type EntryFilter struct {
	Categories []string
	Since      *time.Time
	Until      *time.Time
	DocumentID string
	// Sign keeps only negative (-1) or positive (+1) amounts when non-zero.
	Sign  int
	Query string
	// Limit caps the result after sorting by date, newest first.
	Limit int
}

// Match reports whether e passes the filter.
func (f EntryFilter) Match(e *FinancialEntry) bool {
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if e.Category == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Since != nil && e.Date.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Date.After(*f.Until) {
		return false
	}
	if f.DocumentID != "" && e.SourceDocumentID != f.DocumentID {
		return false
	}
	if f.Sign < 0 && !e.Amount.IsNegative() {
		return false
	}
	if f.Sign > 0 && !e.Amount.IsPositive() {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(e.Description), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

// ChatMessage is one question/answer exchange.
type ChatMessage struct {
	ID          string    `json:"id"`
	Message     string    `json:"message"`
	Response    string    `json:"response"`
	ContextUsed string    `json:"context_used,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// EncodePageToken encodes a document ID into a page token.
func EncodePageToken(docID string) string {
	if docID == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(docID))
}

// DecodePageToken decodes a page token back to a document ID.
func DecodePageToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// paginateOrdered pages through ids, already in display order. The page
// token names the last ID of the previous page.
func paginateOrdered(ids []string, pageSize int32, pageToken string) ([]string, string) {
	if pageSize <= 0 {
		pageSize = 100
	}

	startIdx := 0
	if pageToken != "" {
		cursorID, err := DecodePageToken(pageToken)
		if err == nil {
			startIdx = len(ids)
			for i, id := range ids {
				if id == cursorID {
					startIdx = i + 1
					break
				}
			}
		}
	}
	ids = ids[startIdx:]

	var nextToken string
	if int32(len(ids)) > pageSize {
		ids = ids[:pageSize]
		nextToken = EncodePageToken(ids[pageSize-1])
	}
	return ids, nextToken
}
