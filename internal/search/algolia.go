package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/algolia/algoliasearch-client-go/v4/algolia/search"
	"github.com/castlemilk/finagent/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds Algolia configuration.
type Config struct {
	AppID     string
	APIKey    string // needs addObject/deleteObject rights for indexing
	IndexName string
}

const defaultIndexName = "finagent"

// AlgoliaClient wraps the Algolia search API client.
type AlgoliaClient struct {
	client    *search.APIClient
	indexName string
	logger    *zap.Logger
}

// NewAlgoliaClient creates a new Algolia search client.
func NewAlgoliaClient(cfg Config, logger *zap.Logger) (*AlgoliaClient, error) {
	if cfg.AppID == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("algolia AppID and APIKey are required")
	}
	if cfg.IndexName == "" {
		cfg.IndexName = defaultIndexName
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := search.NewClient(cfg.AppID, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("creating algolia client: %w", err)
	}

	return &AlgoliaClient{
		client:    client,
		indexName: cfg.IndexName,
		logger:    logger.Named("algolia"),
	}, nil
}

// entryRecord is the Algolia object stored for a ledger entry.
func entryRecord(e *store.FinancialEntry) map[string]any {
	return map[string]any{
		"objectID":         e.ID,
		"Description":      e.Description,
		"Category":         e.Category,
		"Subcategory":      e.Subcategory,
		"Merchant":         e.Metadata["merchant"],
		"Amount":           e.Amount.InexactFloat64(),
		"Date":             e.Date.UTC().Format(time.RFC3339),
		"DateUnix":         e.Date.Unix(),
		"SourceDocumentId": e.SourceDocumentID,
	}
}

// IndexEntries adds or replaces entries in one batch.
func (c *AlgoliaClient) IndexEntries(ctx context.Context, entries []*store.FinancialEntry) error {
	if len(entries) == 0 {
		return nil
	}
	requests := make([]search.BatchRequest, 0, len(entries))
	for _, e := range entries {
		requests = append(requests, *search.NewEmptyBatchRequest().
			SetAction(search.ACTION_ADD_OBJECT).
			SetBody(entryRecord(e)))
	}

	resp, err := c.client.Batch(c.client.NewApiBatchRequest(
		c.indexName, search.NewEmptyBatchWriteParams().SetRequests(requests)))
	if err != nil {
		return fmt.Errorf("algolia batch: %w", err)
	}
	c.logger.Debug("entries indexed", zap.Int("count", len(entries)), zap.Int64("task_id", resp.TaskID))
	return nil
}

// DeleteDocumentEntries removes every entry imported from documentID.
func (c *AlgoliaClient) DeleteDocumentEntries(ctx context.Context, documentID string) error {
	params := search.NewEmptyDeleteByParams().SetFilters(fmt.Sprintf("SourceDocumentId:%q", documentID))
	if _, err := c.client.DeleteBy(c.client.NewApiDeleteByRequest(c.indexName, params)); err != nil {
		return fmt.Errorf("algolia delete by document: %w", err)
	}
	return nil
}

// Search performs a full-text search via Algolia.
func (c *AlgoliaClient) Search(ctx context.Context, params Params) (*Response, error) {
	page, pageSize := pageBounds(params)

	searchParams := search.SearchParamsObjectAsSearchParams(
		search.NewSearchParamsObject().
			SetQuery(params.Query).
			SetHitsPerPage(int32(pageSize)).
			SetPage(int32(page)).
			SetFilters(buildFilters(params)),
	)

	resp, err := c.client.SearchSingleIndex(c.client.NewApiSearchSingleIndexRequest(c.indexName).WithSearchParams(searchParams))
	if err != nil {
		return nil, fmt.Errorf("algolia search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		hit, ok := hitFromProps(h.AdditionalProperties)
		if !ok {
			c.logger.Warn("skipping hit with no objectID")
			continue
		}
		hits = append(hits, hit)
	}

	out := &Response{Hits: hits, Page: page}
	if resp.NbHits != nil {
		out.TotalCount = int(*resp.NbHits)
	}
	if resp.NbPages != nil {
		out.TotalPages = int(*resp.NbPages)
	}
	return out, nil
}

// ConfigureIndex applies the searchable, facet and ranking settings.
func (c *AlgoliaClient) ConfigureIndex(ctx context.Context) error {
	settings := &search.IndexSettings{
		SearchableAttributes: []string{
			"Description",
			"Merchant",
			"Category",
		},
		AttributesForFaceting: []string{
			"searchable(Category)",
			"filterOnly(Subcategory)",
			"filterOnly(SourceDocumentId)",
		},
		NumericAttributesForFiltering: []string{
			"Amount",
			"DateUnix",
		},
		// Most recent entries first after text relevance.
		CustomRanking: []string{
			"desc(DateUnix)",
		},
		AttributesToHighlight: []string{
			"Description",
			"Merchant",
		},
		HitsPerPage:          int32Ptr(defaultPageSize),
		MinWordSizefor1Typo:  int32Ptr(4),
		MinWordSizefor2Typos: int32Ptr(8),
	}

	resp, err := c.client.SetSettings(c.client.NewApiSetSettingsRequest(c.indexName, settings))
	if err != nil {
		return fmt.Errorf("algolia set settings: %w", err)
	}
	c.logger.Info("index settings applied", zap.String("index", c.indexName), zap.Int64("task_id", resp.TaskID))
	return nil
}

func int32Ptr(v int32) *int32 { return &v }

// buildFilters constructs an Algolia filter string from search params.
func buildFilters(params Params) string {
	var parts []string
	if params.Category != "" {
		parts = append(parts, fmt.Sprintf("Category:%q", params.Category))
	}
	if params.StartDate != nil {
		parts = append(parts, fmt.Sprintf("DateUnix >= %d", params.StartDate.Unix()))
	}
	if params.EndDate != nil {
		parts = append(parts, fmt.Sprintf("DateUnix <= %d", params.EndDate.Unix()))
	}
	return strings.Join(parts, " AND ")
}

// hitFromProps converts an Algolia hit into a Hit.
func hitFromProps(props map[string]any) (Hit, bool) {
	var hit Hit
	if v, ok := props["objectID"].(string); ok {
		hit.ID = v
	}
	if hit.ID == "" {
		return Hit{}, false
	}
	if v, ok := props["Description"].(string); ok {
		hit.Description = v
	}
	if v, ok := props["Category"].(string); ok {
		hit.Category = v
	}
	if v, ok := props["Subcategory"].(string); ok {
		hit.Subcategory = v
	}
	if v, ok := props["SourceDocumentId"].(string); ok {
		hit.DocumentID = v
	}
	if v, ok := props["Amount"].(float64); ok {
		hit.Amount = decimal.NewFromFloat(v).Round(2)
	}

	// Prefer DateUnix (unix timestamp).
	if v, ok := props["DateUnix"].(float64); ok && v > 0 {
		hit.Date = time.Unix(int64(v), 0).UTC()
	} else if v, ok := props["Date"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			hit.Date = t
		}
	}
	return hit, true
}
