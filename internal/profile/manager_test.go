package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/castlemilk/finagent/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) (*Manager, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	m := NewManager(s, zap.NewNop())
	m.now = func() time.Time { return fixedNow }
	return m, s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMapCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"food", CategoryExpenses},
		{"Gas", CategoryExpenses},
		{"shopping", CategoryExpenses},
		{"entertainment", CategoryExpenses},
		{"income", CategoryIncome},
		{"SALARY", CategoryIncome},
		{"investment", CategoryInvestments},
		{"stock", CategoryInvestments},
		{"bond", CategoryInvestments},
		{"credit", CategoryLiabilities},
		{"loan", CategoryLiabilities},
		{" mortgage ", CategoryLiabilities},
		{"groceries", CategoryOther},
		{"", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MapCategory(tt.in))
		})
	}
}

func TestProcessDocumentAnalysis(t *testing.T) {
	ctx := context.Background()
	m, s := newTestManager(t)

	result := &extraction.ProcessResult{
		Success: true,
		Analysis: &extraction.DocumentAnalysis{
			Transactions: []extraction.Transaction{
				{Date: "2024-06-01", Description: "Salary", Amount: dec("5000"), Category: "salary", Type: "credit"},
				// Positive debit is flipped.
				{Date: "2024-06-02", Description: "Groceries", Amount: dec("80.25"), Category: "food", Type: "debit"},
				// Unmapped category falls back on the merchant category.
				{Date: "2024-06-03", Description: "Power bill", Amount: dec("-120"), Category: "utilities", Type: "debit",
					Merchant: "Origin", MerchantCategory: "utilities"},
				{Date: "not a date", Description: "Mystery", Amount: dec("-5"), Category: "misc"},
				{Description: "", Amount: decimal.Zero},
			},
			Investments: []extraction.Investment{
				{Symbol: "VTI", Shares: dec("10"), Price: dec("250"), Value: dec("2500"), Type: "etf"},
				{Symbol: "", Value: dec("1")},
			},
		},
	}

	counts, err := m.ProcessDocumentAnalysis(ctx, "doc-1", result)
	require.NoError(t, err)
	assert.Equal(t, ImportCounts{Transactions: 4, Investments: 1, Skipped: 2}, counts)
	assert.Equal(t, 5, counts.Total())

	entries, err := s.ListEntries(ctx, store.EntryFilter{DocumentID: "doc-1"})
	require.NoError(t, err)
	require.Len(t, entries, 5)

	byDesc := make(map[string]*store.FinancialEntry)
	for _, e := range entries {
		byDesc[e.Description] = e
	}

	salary := byDesc["Salary"]
	require.NotNil(t, salary)
	assert.Equal(t, CategoryIncome, salary.Category)
	assert.Equal(t, "credit", salary.Subcategory)
	assert.Equal(t, "salary", salary.Metadata["original_category"])

	groceries := byDesc["Groceries"]
	require.NotNil(t, groceries)
	assert.Equal(t, CategoryExpenses, groceries.Category)
	assert.True(t, groceries.Amount.Equal(dec("-80.25")))

	power := byDesc["Power bill"]
	require.NotNil(t, power)
	assert.Equal(t, CategoryExpenses, power.Category)
	assert.Equal(t, "Origin", power.Metadata["merchant"])

	mystery := byDesc["Mystery"]
	require.NotNil(t, mystery)
	assert.Equal(t, CategoryOther, mystery.Category)
	assert.Equal(t, "unknown", mystery.Subcategory)
	assert.True(t, mystery.Date.Equal(fixedNow))

	vti := byDesc["VTI - 10 shares"]
	require.NotNil(t, vti)
	assert.Equal(t, CategoryInvestments, vti.Category)
	assert.Equal(t, "etf", vti.Subcategory)
	assert.Equal(t, "VTI", vti.Metadata["symbol"])
	assert.Equal(t, "250", vti.Metadata["price"])
}

func TestProcessDocumentAnalysis_Ignored(t *testing.T) {
	tests := []struct {
		name   string
		result *extraction.ProcessResult
	}{
		{"nil", nil},
		{"failed", &extraction.ProcessResult{Success: false}},
		{"no analysis", &extraction.ProcessResult{Success: true}},
		{"parsing error", &extraction.ProcessResult{Success: true, Analysis: &extraction.DocumentAnalysis{
			ParsingError: true, RawAnalysis: "oops",
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockStore := store.NewMockStore(ctrl)
			m := NewManager(mockStore, zap.NewNop())

			counts, err := m.ProcessDocumentAnalysis(context.Background(), "doc", tt.result)
			require.NoError(t, err)
			assert.Zero(t, counts.Total())
		})
	}
}

func TestProcessDocumentAnalysis_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().
		CreateEntries(gomock.Any(), gomock.Len(1)).
		Return(errors.New("disk full"))

	m := NewManager(mockStore, zap.NewNop())
	_, err := m.ProcessDocumentAnalysis(context.Background(), "doc", &extraction.ProcessResult{
		Success: true,
		Analysis: &extraction.DocumentAnalysis{Transactions: []extraction.Transaction{
			{Date: "2024-01-01", Description: "Coffee", Amount: dec("-4")},
		}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestAddEntry(t *testing.T) {
	ctx := context.Background()
	m, s := newTestManager(t)

	require.Error(t, m.AddEntry(ctx, &store.FinancialEntry{Amount: dec("1")}))

	require.NoError(t, m.AddEntry(ctx, &store.FinancialEntry{Category: CategoryAssets, Amount: dec("1000"), Description: "House deposit"}))
	entries, err := s.ListEntries(ctx, store.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Date.Equal(fixedNow))
}

func TestDeleteDocumentEntries(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().DeleteEntriesByDocument(gomock.Any(), "doc-9").Return(3, nil)

	m := NewManager(mockStore, zap.NewNop())
	n, err := m.DeleteDocumentEntries(context.Background(), "doc-9")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
