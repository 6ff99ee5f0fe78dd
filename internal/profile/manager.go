// Package profile maintains the finance profile ledger built from ingested
// documents and derives summaries from it.
package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/castlemilk/finagent/internal/store"
	"go.uber.org/zap"
)

// Ledger categories.
const (
	CategoryIncome      = "income"
	CategoryExpenses    = "expenses"
	CategoryInvestments = "investments"
	CategoryAssets      = "assets"
	CategoryLiabilities = "liabilities"
	CategoryOther       = "other"
)

var categoryMapping = map[string]string{
	"food":          CategoryExpenses,
	"gas":           CategoryExpenses,
	"shopping":      CategoryExpenses,
	"entertainment": CategoryExpenses,
	"income":        CategoryIncome,
	"salary":        CategoryIncome,
	"investment":    CategoryInvestments,
	"stock":         CategoryInvestments,
	"bond":          CategoryInvestments,
	"credit":        CategoryLiabilities,
	"loan":          CategoryLiabilities,
	"mortgage":      CategoryLiabilities,
}

// expenseCategories are the ledger categories counted as spending.
var expenseCategories = []string{CategoryExpenses, "food", "gas", "shopping", "entertainment"}

// MapCategory maps a model-assigned transaction category onto a ledger category.
func MapCategory(category string) string {
	if c, ok := categoryMapping[strings.ToLower(strings.TrimSpace(category))]; ok {
		return c
	}
	return CategoryOther
}

// Manager owns the ledger.
type Manager struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(s store.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  s,
		logger: logger.Named("profile"),
		now:    time.Now,
	}
}

// AddEntry records a single ledger row.
func (m *Manager) AddEntry(ctx context.Context, entry *store.FinancialEntry) error {
	if entry.Category == "" {
		return fmt.Errorf("entry category is required")
	}
	if entry.Date.IsZero() {
		entry.Date = m.now()
	}
	return m.store.CreateEntries(ctx, []*store.FinancialEntry{entry})
}

// ImportCounts reports how many ledger rows a document produced.
type ImportCounts struct {
	Transactions int `json:"transactions"`
	Investments  int `json:"investments"`
	Skipped      int `json:"skipped"`
}

// Total is the number of rows written.
func (c ImportCounts) Total() int { return c.Transactions + c.Investments }

// ProcessDocumentAnalysis turns the transactions and holdings of a processed
// document into ledger rows. Results without a usable analysis are ignored.
func (m *Manager) ProcessDocumentAnalysis(ctx context.Context, documentID string, result *extraction.ProcessResult) (ImportCounts, error) {
	var counts ImportCounts
	if result == nil || !result.Success || result.Analysis == nil || result.Analysis.ParsingError {
		return counts, nil
	}
	analysis := result.Analysis
	log := m.logger.With(zap.String("document_id", documentID))
	now := m.now()

	var entries []*store.FinancialEntry
	for i, txn := range analysis.Transactions {
		entry, err := m.transactionEntry(documentID, txn, now)
		if err != nil {
			log.Warn("skipping transaction", zap.Int("index", i), zap.Error(err))
			counts.Skipped++
			continue
		}
		entries = append(entries, entry)
		counts.Transactions++
	}

	for i, inv := range analysis.Investments {
		if strings.TrimSpace(inv.Symbol) == "" {
			log.Warn("skipping investment without symbol", zap.Int("index", i))
			counts.Skipped++
			continue
		}
		entries = append(entries, &store.FinancialEntry{
			Category:         CategoryInvestments,
			Subcategory:      orDefault(inv.Type, "unknown"),
			Amount:           inv.Value,
			Date:             now,
			Description:      fmt.Sprintf("%s - %s shares", inv.Symbol, inv.Shares.String()),
			SourceDocumentID: documentID,
			Metadata: map[string]string{
				"symbol": inv.Symbol,
				"shares": inv.Shares.String(),
				"price":  inv.Price.String(),
			},
		})
		counts.Investments++
	}

	if len(entries) == 0 {
		return counts, nil
	}
	if err := m.store.CreateEntries(ctx, entries); err != nil {
		return ImportCounts{}, fmt.Errorf("failed to save ledger entries: %w", err)
	}
	log.Info("ledger updated",
		zap.Int("transactions", counts.Transactions),
		zap.Int("investments", counts.Investments),
		zap.Int("skipped", counts.Skipped))
	return counts, nil
}

func (m *Manager) transactionEntry(documentID string, txn extraction.Transaction, now time.Time) (*store.FinancialEntry, error) {
	if strings.TrimSpace(txn.Description) == "" && txn.Amount.IsZero() {
		return nil, fmt.Errorf("transaction has neither description nor amount")
	}

	txnType := strings.ToLower(strings.TrimSpace(txn.Type))
	amount := txn.Amount
	switch {
	case txnType == "debit" && amount.IsPositive():
		amount = amount.Neg()
	case txnType == "credit" && amount.IsNegative():
		amount = amount.Neg()
	}

	category := MapCategory(txn.Category)
	if category == CategoryOther && amount.IsNegative() && isSpendCategory(txn.MerchantCategory) {
		category = CategoryExpenses
	}

	date := now
	if txn.Date != "" {
		if parsed, ok := parseEntryDate(txn.Date); ok {
			date = parsed
		}
	}

	return &store.FinancialEntry{
		Category:         category,
		Subcategory:      orDefault(txnType, "unknown"),
		Amount:           amount,
		Date:             date,
		Description:      txn.Description,
		SourceDocumentID: documentID,
		Metadata: map[string]string{
			"transaction_type":  txnType,
			"original_category": txn.Category,
			"merchant":          txn.Merchant,
			"merchant_category": txn.MerchantCategory,
		},
	}, nil
}

// DeleteDocumentEntries removes every ledger row sourced from documentID.
func (m *Manager) DeleteDocumentEntries(ctx context.Context, documentID string) (int, error) {
	n, err := m.store.DeleteEntriesByDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ledger entries: %w", err)
	}
	return n, nil
}

func isSpendCategory(merchantCategory string) bool {
	switch extraction.SpendCategory(merchantCategory) {
	case "", extraction.CategoryOther:
		return false
	}
	return true
}

var entryDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

func parseEntryDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range entryDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
