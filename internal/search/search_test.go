package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/castlemilk/finagent/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilters(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		params Params
		want   string
	}{
		{name: "empty", params: Params{}, want: ""},
		{name: "category", params: Params{Category: "expenses"}, want: `Category:"expenses"`},
		{
			name:   "category and dates",
			params: Params{Category: "income", StartDate: &start, EndDate: &end},
			want:   fmt.Sprintf(`Category:"income" AND DateUnix >= %d AND DateUnix <= %d`, start.Unix(), end.Unix()),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildFilters(tt.params))
		})
	}
}

func TestHitFromProps(t *testing.T) {
	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	hit, ok := hitFromProps(map[string]any{
		"objectID":         "e1",
		"Description":      "WOOLWORTHS 1234",
		"Category":         "expenses",
		"Subcategory":      "debit",
		"Amount":           -45.1,
		"DateUnix":         float64(date.Unix()),
		"SourceDocumentId": "doc-1",
	})
	require.True(t, ok)
	assert.Equal(t, "e1", hit.ID)
	assert.Equal(t, "doc-1", hit.DocumentID)
	assert.True(t, decimal.RequireFromString("-45.10").Equal(hit.Amount))
	assert.Equal(t, date, hit.Date)

	hit, ok = hitFromProps(map[string]any{"objectID": "e2", "Date": "2024-03-05T00:00:00Z"})
	require.True(t, ok)
	assert.True(t, hit.Date.Equal(date))

	_, ok = hitFromProps(map[string]any{"Description": "orphan"})
	assert.False(t, ok)
}

func TestEntryRecord(t *testing.T) {
	e := &store.FinancialEntry{
		ID:               "e1",
		Category:         "expenses",
		Amount:           decimal.RequireFromString("-12.50"),
		Date:             time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Description:      "UBER *TRIP",
		SourceDocumentID: "doc-1",
		Metadata:         map[string]string{"merchant": "Uber"},
	}
	rec := entryRecord(e)
	assert.Equal(t, "e1", rec["objectID"])
	assert.Equal(t, -12.5, rec["Amount"])
	assert.Equal(t, "Uber", rec["Merchant"])
	assert.Equal(t, "2024-03-05T00:00:00Z", rec["Date"])
	assert.Equal(t, "doc-1", rec["SourceDocumentId"])
}

func TestNewAlgoliaClient_RequiresCredentials(t *testing.T) {
	_, err := NewAlgoliaClient(Config{AppID: "app"}, nil)
	assert.Error(t, err)
}

func TestStoreIndex_Search(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var entries []*store.FinancialEntry
	for i := range 30 {
		entries = append(entries, &store.FinancialEntry{
			Category:    "expenses",
			Amount:      decimal.NewFromInt(int64(-i - 1)),
			Date:        base.AddDate(0, 0, i),
			Description: fmt.Sprintf("Coffee shop %d", i),
		})
	}
	entries = append(entries, &store.FinancialEntry{
		Category:    "income",
		Amount:      decimal.NewFromInt(5000),
		Date:        base,
		Description: "Salary ACME",
	})
	require.NoError(t, s.CreateEntries(ctx, entries))

	idx := NewStoreIndex(s)
	require.NoError(t, idx.IndexEntries(ctx, entries))

	resp, err := idx.Search(ctx, Params{Query: "coffee"})
	require.NoError(t, err)
	assert.Equal(t, 30, resp.TotalCount)
	assert.Equal(t, 2, resp.TotalPages)
	require.Len(t, resp.Hits, defaultPageSize)
	assert.Equal(t, "Coffee shop 29", resp.Hits[0].Description, "newest first")

	resp, err = idx.Search(ctx, Params{Query: "coffee", Page: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 5)

	resp, err = idx.Search(ctx, Params{Query: "coffee", Page: 5})
	require.NoError(t, err)
	assert.Empty(t, resp.Hits)

	resp, err = idx.Search(ctx, Params{Category: "income"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "Salary ACME", resp.Hits[0].Description)
}
