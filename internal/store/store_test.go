package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns every Store implementation that can run without network access.
func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			db, err := OpenSQLite(":memory:")
			require.NoError(t, err)
			s, err := NewSQLiteStore(db)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStore_Settings(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			_, err := s.GetSettings(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			settings := DefaultSettings()
			settings.LLMAPIKey = "sk-test"
			settings.LLMModel = "gpt-4o-mini"
			require.NoError(t, s.SaveSettings(ctx, settings))

			got, err := s.GetSettings(ctx)
			require.NoError(t, err)
			assert.Equal(t, "openai", got.LLMProvider)
			assert.Equal(t, "sk-test", got.LLMAPIKey)
			assert.Equal(t, "gpt-4o-mini", got.LLMModel)
			assert.True(t, got.AutoIndex)
			assert.Equal(t, 60, got.CheckInterval)
			assert.False(t, got.UpdatedAt.IsZero())

			settings.LLMProvider = "anthropic"
			settings.AutoIndex = false
			require.NoError(t, s.SaveSettings(ctx, settings))
			got, err = s.GetSettings(ctx)
			require.NoError(t, err)
			assert.Equal(t, "anthropic", got.LLMProvider)
			assert.False(t, got.AutoIndex)
		})
	}
}

func TestStore_DocumentLifecycle(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			doc := &Document{
				Filename:     "statement.pdf",
				DocumentType: extraction.DocumentTypeCreditCard,
				FileSize:     1024,
				Status:       DocumentPending,
			}
			require.NoError(t, s.CreateDocument(ctx, doc))
			require.NotEmpty(t, doc.ID)
			assert.False(t, doc.UploadedAt.IsZero())

			got, err := s.GetDocument(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, "statement.pdf", got.Filename)
			assert.Equal(t, DocumentPending, got.Status)
			assert.Nil(t, got.Analysis)

			processed := time.Now()
			got.Status = DocumentProcessed
			got.Processed = true
			got.ProcessedAt = &processed
			got.Insights = []string{"3 transactions processed"}
			got.Analysis = &extraction.DocumentAnalysis{
				DocumentType: extraction.DocumentTypeCreditCard,
				Transactions: []extraction.Transaction{
					{Date: "2024-05-01", Description: "Coffee", Amount: decimal.RequireFromString("-4.50")},
				},
			}
			require.NoError(t, s.UpdateDocument(ctx, got))

			got, err = s.GetDocument(ctx, doc.ID)
			require.NoError(t, err)
			assert.True(t, got.Processed)
			require.NotNil(t, got.ProcessedAt)
			require.NotNil(t, got.Analysis)
			require.Len(t, got.Analysis.Transactions, 1)
			assert.True(t, got.Analysis.Transactions[0].Amount.Equal(decimal.RequireFromString("-4.5")))
			assert.Equal(t, []string{"3 transactions processed"}, got.Insights)

			require.NoError(t, s.DeleteDocument(ctx, doc.ID))
			_, err = s.GetDocument(ctx, doc.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.DeleteDocument(ctx, doc.ID), ErrNotFound)
			assert.ErrorIs(t, s.UpdateDocument(ctx, &Document{ID: "missing"}), ErrNotFound)
		})
	}
}

func TestStore_ListDocumentsPagination(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < 5; i++ {
				require.NoError(t, s.CreateDocument(ctx, &Document{
					ID:         fmt.Sprintf("doc-%d", i),
					Filename:   fmt.Sprintf("file-%d.pdf", i),
					Status:     DocumentProcessed,
					UploadedAt: base.Add(time.Duration(i) * time.Hour),
				}))
			}

			page1, token, err := s.ListDocuments(ctx, 2, "")
			require.NoError(t, err)
			require.Len(t, page1, 2)
			assert.Equal(t, "doc-4", page1[0].ID)
			assert.Equal(t, "doc-3", page1[1].ID)
			require.NotEmpty(t, token)

			page2, token, err := s.ListDocuments(ctx, 2, token)
			require.NoError(t, err)
			require.Len(t, page2, 2)
			assert.Equal(t, "doc-2", page2[0].ID)
			assert.Equal(t, "doc-1", page2[1].ID)

			page3, token, err := s.ListDocuments(ctx, 2, token)
			require.NoError(t, err)
			require.Len(t, page3, 1)
			assert.Equal(t, "doc-0", page3[0].ID)
			assert.Empty(t, token)
		})
	}
}

func TestStore_Entries(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
			entries := []*FinancialEntry{
				{Category: "income", Amount: decimal.NewFromInt(3000), Date: day(1), Description: "Salary", SourceDocumentID: "doc-a"},
				{Category: "food", Amount: decimal.RequireFromString("-42.10"), Date: day(5), Description: "Woolworths", SourceDocumentID: "doc-a"},
				{Category: "expenses", Amount: decimal.NewFromInt(-1200), Date: day(3), Description: "Rent", SourceDocumentID: "doc-b",
					Metadata: map[string]string{"merchant": "Landlord"}},
				{Category: "investments", Amount: decimal.NewFromInt(500), Date: day(2), Description: "VTI - 2 shares", SourceDocumentID: "doc-b",
					Metadata: map[string]string{"symbol": "VTI"}},
			}
			require.NoError(t, s.CreateEntries(ctx, entries))
			for _, e := range entries {
				assert.NotEmpty(t, e.ID)
			}

			all, err := s.ListEntries(ctx, EntryFilter{})
			require.NoError(t, err)
			require.Len(t, all, 4)
			assert.Equal(t, "Woolworths", all[0].Description, "newest first")
			assert.Equal(t, "Salary", all[3].Description)

			tests := []struct {
				name   string
				filter EntryFilter
				want   []string
			}{
				{"categories", EntryFilter{Categories: []string{"food", "expenses"}}, []string{"Woolworths", "Rent"}},
				{"since", EntryFilter{Since: timePtr(day(3))}, []string{"Woolworths", "Rent"}},
				{"until", EntryFilter{Until: timePtr(day(2))}, []string{"VTI - 2 shares", "Salary"}},
				{"document", EntryFilter{DocumentID: "doc-b"}, []string{"Rent", "VTI - 2 shares"}},
				{"negative", EntryFilter{Sign: -1}, []string{"Woolworths", "Rent"}},
				{"positive", EntryFilter{Sign: 1}, []string{"VTI - 2 shares", "Salary"}},
				{"query", EntryFilter{Query: "wool"}, []string{"Woolworths"}},
				{"limit", EntryFilter{Limit: 1}, []string{"Woolworths"}},
				{"limit with sign", EntryFilter{Sign: 1, Limit: 1}, []string{"VTI - 2 shares"}},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := s.ListEntries(ctx, tt.filter)
					require.NoError(t, err)
					descs := make([]string, 0, len(got))
					for _, e := range got {
						descs = append(descs, e.Description)
					}
					assert.Equal(t, tt.want, descs)
				})
			}

			rent, err := s.ListEntries(ctx, EntryFilter{Query: "rent"})
			require.NoError(t, err)
			require.Len(t, rent, 1)
			assert.Equal(t, "Landlord", rent[0].Metadata["merchant"])
			assert.True(t, rent[0].Amount.Equal(decimal.NewFromInt(-1200)))

			n, err := s.DeleteEntriesByDocument(ctx, "doc-a")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			left, err := s.ListEntries(ctx, EntryFilter{})
			require.NoError(t, err)
			assert.Len(t, left, 2)
		})
	}
}

func TestStore_ChatMessages(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
			for i := 0; i < 3; i++ {
				require.NoError(t, s.CreateChatMessage(ctx, &ChatMessage{
					Message:   fmt.Sprintf("q%d", i),
					Response:  fmt.Sprintf("a%d", i),
					Timestamp: base.Add(time.Duration(i) * time.Minute),
				}))
			}

			msgs, err := s.ListChatMessages(ctx, 2)
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			assert.Equal(t, "q2", msgs[0].Message)
			assert.Equal(t, "q1", msgs[1].Message)

			msgs, err = s.ListChatMessages(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, msgs, 3)
		})
	}
}

func TestEntryFilter_Match(t *testing.T) {
	e := &FinancialEntry{
		Category:    "food",
		Amount:      decimal.NewFromInt(-10),
		Date:        time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Description: "Coffee Shop",
	}
	assert.True(t, EntryFilter{}.Match(e))
	assert.True(t, EntryFilter{Categories: []string{"income", "food"}}.Match(e))
	assert.False(t, EntryFilter{Categories: []string{"income"}}.Match(e))
	assert.False(t, EntryFilter{Sign: 1}.Match(e))
	assert.True(t, EntryFilter{Query: "COFFEE"}.Match(e))
	assert.False(t, EntryFilter{DocumentID: "x"}.Match(e))
}

func TestPageToken(t *testing.T) {
	assert.Empty(t, EncodePageToken(""))
	id, err := DecodePageToken(EncodePageToken("doc-1"))
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)

	_, err = DecodePageToken("%%%")
	assert.Error(t, err)
}

func timePtr(t time.Time) *time.Time { return &t }
