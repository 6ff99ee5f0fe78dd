// Package search provides full-text search over ledger entries.
package search

import (
	"context"
	"time"

	"github.com/castlemilk/finagent/internal/store"
	"github.com/shopspring/decimal"
)

// Params defines the input for a ledger search.
type Params struct {
	Query     string
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
	// Pagination (offset-based)
	Page     int
	PageSize int
}

// Hit is one matching ledger entry.
type Hit struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	DocumentID  string          `json:"document_id,omitempty"`
}

// Response holds one page of hits.
type Response struct {
	Hits       []Hit `json:"hits"`
	TotalCount int   `json:"total_count"`
	TotalPages int   `json:"total_pages"`
	Page       int   `json:"page"`
}

// Index keeps ledger entries searchable.
type Index interface {
	IndexEntries(ctx context.Context, entries []*store.FinancialEntry) error
	DeleteDocumentEntries(ctx context.Context, documentID string) error
	Search(ctx context.Context, params Params) (*Response, error)
}

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

func pageBounds(params Params) (page, size int) {
	size = params.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	page = max(params.Page, 0)
	return page, size
}

func hitFromEntry(e *store.FinancialEntry) Hit {
	return Hit{
		ID:          e.ID,
		Description: e.Description,
		Category:    e.Category,
		Subcategory: e.Subcategory,
		Amount:      e.Amount,
		Date:        e.Date,
		DocumentID:  e.SourceDocumentID,
	}
}

// StoreIndex searches the ledger store directly. Entries are already
// persisted, so indexing is a no-op.
type StoreIndex struct {
	store store.Store
}

func NewStoreIndex(s store.Store) *StoreIndex {
	return &StoreIndex{store: s}
}

func (i *StoreIndex) IndexEntries(ctx context.Context, entries []*store.FinancialEntry) error {
	return nil
}

func (i *StoreIndex) DeleteDocumentEntries(ctx context.Context, documentID string) error {
	return nil
}

func (i *StoreIndex) Search(ctx context.Context, params Params) (*Response, error) {
	filter := store.EntryFilter{
		Query: params.Query,
		Since: params.StartDate,
		Until: params.EndDate,
	}
	if params.Category != "" {
		filter.Categories = []string{params.Category}
	}
	entries, err := i.store.ListEntries(ctx, filter)
	if err != nil {
		return nil, err
	}

	page, size := pageBounds(params)
	resp := &Response{
		Hits:       []Hit{},
		TotalCount: len(entries),
		TotalPages: (len(entries) + size - 1) / size,
		Page:       page,
	}
	start := page * size
	if start >= len(entries) {
		return resp, nil
	}
	end := min(start+size, len(entries))
	for _, e := range entries[start:end] {
		resp.Hits = append(resp.Hits, hitFromEntry(e))
	}
	return resp, nil
}
