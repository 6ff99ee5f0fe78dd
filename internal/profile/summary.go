package profile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/castlemilk/finagent/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	recentTransactionLimit = 20
	chatTransactionLimit   = 5
	averagingWindow        = 90 * 24 * time.Hour
	averagingMonths        = 3
	DefaultTrendDays       = 30
)

// RecentTransaction is a ledger row as shown in summaries.
type RecentTransaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
}

// CreditAccount is a credit account seen on an ingested statement.
type CreditAccount struct {
	DocumentID    string          `json:"document_id"`
	Institution   string          `json:"institution"`
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	StatementEnd  string          `json:"statement_end,omitempty"`
}

// Summary is the aggregate view of the ledger.
type Summary struct {
	TotalAssets         decimal.Decimal            `json:"total_assets"`
	TotalLiabilities    decimal.Decimal            `json:"total_liabilities"`
	NetWorth            decimal.Decimal            `json:"net_worth"`
	MonthlyIncome       decimal.Decimal            `json:"monthly_income"`
	MonthlyExpenses     decimal.Decimal            `json:"monthly_expenses"`
	InvestmentPortfolio map[string]decimal.Decimal `json:"investment_portfolio"`
	CreditAccounts      []CreditAccount            `json:"credit_accounts"`
	RecentTransactions  []RecentTransaction        `json:"recent_transactions"`
	LastUpdated         time.Time                  `json:"last_updated"`
}

// ChatContext is the slice of the profile handed to the model during chat.
type ChatContext struct {
	NetWorth            decimal.Decimal
	MonthlyIncome       decimal.Decimal
	MonthlyExpenses     decimal.Decimal
	InvestmentPortfolio map[string]decimal.Decimal
	RecentTransactions  []RecentTransaction
}

// SpendingTrends breaks down outflows over a trailing window.
type SpendingTrends struct {
	PeriodDays           int                        `json:"period_days"`
	CategoryTotals       map[string]decimal.Decimal `json:"category_totals"`
	DailySpending        map[string]decimal.Decimal `json:"daily_spending"`
	TotalSpending        decimal.Decimal            `json:"total_spending"`
	AverageDailySpending decimal.Decimal            `json:"average_daily_spending"`
}

// Summary computes totals over the whole ledger and monthly averages over
// the 90 days before now.
func (m *Manager) Summary(ctx context.Context, now time.Time) (*Summary, error) {
	entries, err := m.store.ListEntries(ctx, store.EntryFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	s := &Summary{
		TotalAssets:         decimal.Zero,
		TotalLiabilities:    decimal.Zero,
		InvestmentPortfolio: make(map[string]decimal.Decimal),
		CreditAccounts:      []CreditAccount{},
		RecentTransactions:  []RecentTransaction{},
		LastUpdated:         now,
	}

	windowStart := now.Add(-averagingWindow)
	income := decimal.Zero
	expenses := decimal.Zero

	for _, e := range entries {
		switch {
		case (e.Category == CategoryAssets || e.Category == CategoryInvestments) && e.Amount.IsPositive():
			s.TotalAssets = s.TotalAssets.Add(e.Amount)
		case e.Category == CategoryLiabilities && e.Amount.IsNegative():
			s.TotalLiabilities = s.TotalLiabilities.Add(e.Amount.Abs())
		}

		if e.Category == CategoryInvestments {
			if symbol := e.Metadata["symbol"]; symbol != "" {
				s.InvestmentPortfolio[symbol] = s.InvestmentPortfolio[symbol].Add(e.Amount)
			}
		}

		if e.Date.Before(windowStart) {
			continue
		}
		switch {
		case e.Category == CategoryIncome && e.Amount.IsPositive():
			income = income.Add(e.Amount)
		case isExpenseCategory(e.Category) && e.Amount.IsNegative():
			expenses = expenses.Add(e.Amount.Abs())
		}
	}

	months := decimal.NewFromInt(averagingMonths)
	s.NetWorth = s.TotalAssets.Sub(s.TotalLiabilities)
	s.MonthlyIncome = income.Div(months).Round(2)
	s.MonthlyExpenses = expenses.Div(months).Round(2)

	// ListEntries returns newest first.
	for i, e := range entries {
		if i == recentTransactionLimit {
			break
		}
		s.RecentTransactions = append(s.RecentTransactions, toRecent(e))
	}

	accounts, err := m.creditAccounts(ctx)
	if err != nil {
		return nil, err
	}
	s.CreditAccounts = accounts
	return s, nil
}

// creditAccounts collects accounts from processed documents whose account
// type mentions credit.
func (m *Manager) creditAccounts(ctx context.Context) ([]CreditAccount, error) {
	accounts := []CreditAccount{}
	token := ""
	for {
		docs, next, err := m.store.ListDocuments(ctx, 100, token)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		for _, doc := range docs {
			if doc.Analysis == nil {
				continue
			}
			info := doc.Analysis.AccountInfo
			if !strings.Contains(strings.ToLower(info.AccountType), "credit") {
				continue
			}
			accounts = append(accounts, CreditAccount{
				DocumentID:    doc.ID,
				Institution:   info.Institution,
				AccountNumber: info.AccountNumber,
				Balance:       doc.Analysis.Summary.EndingBalance,
				StatementEnd:  doc.Analysis.DateRange.EndDate,
			})
		}
		if next == "" {
			return accounts, nil
		}
		token = next
	}
}

// ChatContext trims the summary down to what the advisor prompt needs.
func (m *Manager) ChatContext(ctx context.Context, now time.Time) (*ChatContext, error) {
	s, err := m.Summary(ctx, now)
	if err != nil {
		return nil, err
	}
	recent := s.RecentTransactions
	if len(recent) > chatTransactionLimit {
		recent = recent[:chatTransactionLimit]
	}
	return &ChatContext{
		NetWorth:            s.NetWorth,
		MonthlyIncome:       s.MonthlyIncome,
		MonthlyExpenses:     s.MonthlyExpenses,
		InvestmentPortfolio: s.InvestmentPortfolio,
		RecentTransactions:  recent,
	}, nil
}

// String renders the context as the plain-text block embedded in prompts.
func (c *ChatContext) String() string {
	if c == nil {
		return ""
	}
	p := message.NewPrinter(language.English)
	money := func(d decimal.Decimal) string {
		return "$" + p.Sprintf("%.2f", d.InexactFloat64())
	}

	lines := []string{
		"Net Worth: " + money(c.NetWorth),
		"Monthly Income: " + money(c.MonthlyIncome),
		"Monthly Expenses: " + money(c.MonthlyExpenses),
	}

	if len(c.InvestmentPortfolio) > 0 {
		lines = append(lines, "Investment Portfolio:")
		symbols := make([]string, 0, len(c.InvestmentPortfolio))
		for symbol := range c.InvestmentPortfolio {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			lines = append(lines, fmt.Sprintf("  - %s: %s", symbol, money(c.InvestmentPortfolio[symbol])))
		}
	}

	if len(c.RecentTransactions) > 0 {
		lines = append(lines, "Recent Transactions:")
		for i, txn := range c.RecentTransactions {
			if i == chatTransactionLimit {
				break
			}
			lines = append(lines, fmt.Sprintf("  - %s: %s %s", orDefault(txn.Date, "N/A"), orDefault(txn.Description, "N/A"), money(txn.Amount)))
		}
	}
	return strings.Join(lines, "\n")
}

// SpendingTrends totals negative ledger rows dated within the last days.
func (m *Manager) SpendingTrends(ctx context.Context, days int, now time.Time) (*SpendingTrends, error) {
	if days <= 0 {
		days = DefaultTrendDays
	}
	since := now.AddDate(0, 0, -days)
	entries, err := m.store.ListEntries(ctx, store.EntryFilter{Since: &since, Sign: -1})
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	t := &SpendingTrends{
		PeriodDays:           days,
		CategoryTotals:       make(map[string]decimal.Decimal),
		DailySpending:        make(map[string]decimal.Decimal),
		TotalSpending:        decimal.Zero,
		AverageDailySpending: decimal.Zero,
	}
	for _, e := range entries {
		spent := e.Amount.Abs()
		t.CategoryTotals[e.Category] = t.CategoryTotals[e.Category].Add(spent)
		day := e.Date.Format("2006-01-02")
		t.DailySpending[day] = t.DailySpending[day].Add(spent)
		t.TotalSpending = t.TotalSpending.Add(spent)
	}
	if n := len(t.DailySpending); n > 0 {
		t.AverageDailySpending = t.TotalSpending.Div(decimal.NewFromInt(int64(n))).Round(2)
	}
	return t, nil
}

func toRecent(e *store.FinancialEntry) RecentTransaction {
	return RecentTransaction{
		Date:        e.Date.Format("2006-01-02"),
		Description: e.Description,
		Amount:      e.Amount,
		Category:    e.Category,
		Subcategory: e.Subcategory,
	}
}

func isExpenseCategory(category string) bool {
	for _, c := range expenseCategories {
		if c == category {
			return true
		}
	}
	return false
}
