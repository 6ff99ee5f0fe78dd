package extraction

import (
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DocumentType is the coarse label assigned to an ingested document.
type DocumentType string

const (
	DocumentTypeCreditCard    DocumentType = "credit_card"
	DocumentTypeBankStatement DocumentType = "bank_statement"
	DocumentTypeInvestment    DocumentType = "investment"
	DocumentTypeTax           DocumentType = "tax_document"
	DocumentTypeInsurance     DocumentType = "insurance"
	DocumentTypeLoan          DocumentType = "loan"
	DocumentTypeOther         DocumentType = "other"
)

// ParseDocumentType maps a free-form label onto a known DocumentType.
func ParseDocumentType(s string) DocumentType {
	switch DocumentType(s) {
	case DocumentTypeCreditCard, DocumentTypeBankStatement, DocumentTypeInvestment,
		DocumentTypeTax, DocumentTypeInsurance, DocumentTypeLoan:
		return DocumentType(s)
	}
	return DocumentTypeOther
}

// DocumentAnalysis is the structured view of a financial document returned
// by the LLM (or the rule-based parser when no LLM is configured).
type DocumentAnalysis struct {
	DocumentType DocumentType  `json:"document_type"`
	DateRange    DateRange     `json:"date_range"`
	AccountInfo  AccountInfo   `json:"account_info"`
	Transactions []Transaction `json:"transactions"`
	Summary      Summary       `json:"summary"`
	Investments  []Investment  `json:"investments"`
	KeyInsights  []string      `json:"key_insights"`

	// Set when the model answered but its output could not be decoded.
	RawAnalysis  string `json:"raw_analysis,omitempty"`
	ParsingError bool   `json:"parsing_error,omitempty"`

	ModelUsed string `json:"model_used,omitempty"`
}

type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type AccountInfo struct {
	AccountNumber string `json:"account_number"`
	Institution   string `json:"institution"`
	AccountType   string `json:"account_type"`
}

// Transaction amounts are signed: credits positive, debits negative.
type Transaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Type        string          `json:"type"`

	Merchant         string  `json:"merchant,omitempty"`
	MerchantCategory string  `json:"merchant_category,omitempty"`
	MerchantScore    float64 `json:"merchant_confidence,omitempty"`
}

type Summary struct {
	TotalDebits     decimal.Decimal `json:"total_debits"`
	TotalCredits    decimal.Decimal `json:"total_credits"`
	NetChange       decimal.Decimal `json:"net_change"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	EndingBalance   decimal.Decimal `json:"ending_balance"`
}

type Investment struct {
	Symbol string          `json:"symbol"`
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
	Type   string          `json:"type"`
}

// ProcessResult is the outcome of running a single file through the pipeline.
type ProcessResult struct {
	FilePath      string            `json:"file_path"`
	DocumentType  DocumentType      `json:"document_type"`
	Text          string            `json:"-"`
	TextLength    int               `json:"text_length"`
	PageCount     int               `json:"page_count"`
	Method        string            `json:"extraction_method"`
	Analysis      *DocumentAnalysis `json:"analysis,omitempty"`
	AnalysisError string            `json:"ai_analysis_error,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
	Success       bool              `json:"success"`
	Error         string            `json:"error,omitempty"`
}

// Insights summarizes a processed document in a few human readable lines.
func Insights(result *ProcessResult) []string {
	if result == nil || !result.Success {
		return []string{"Document processing failed"}
	}

	p := message.NewPrinter(language.English)
	dollars := func(d decimal.Decimal) string {
		return "$" + p.Sprintf("%.2f", d.InexactFloat64())
	}

	var insights []string
	analysis := result.Analysis
	if analysis != nil && !analysis.ParsingError {
		net := analysis.Summary.NetChange
		if net.IsPositive() {
			insights = append(insights, "Net increase of "+dollars(net))
		} else if net.IsNegative() {
			insights = append(insights, "Net decrease of "+dollars(net.Abs()))
		}

		// A nil slice means the analysis had no transactions section.
		if analysis.Transactions != nil {
			insights = append(insights, strconv.Itoa(len(analysis.Transactions))+" transactions processed")
		}
		if len(analysis.Transactions) > 0 {
			largestExpense := analysis.Transactions[0]
			largestIncome := analysis.Transactions[0]
			for _, txn := range analysis.Transactions[1:] {
				if txn.Amount.LessThan(largestExpense.Amount) {
					largestExpense = txn
				}
				if txn.Amount.GreaterThan(largestIncome.Amount) {
					largestIncome = txn
				}
			}
			if largestExpense.Amount.LessThan(decimal.NewFromInt(-100)) {
				insights = append(insights, "Largest expense: "+dollars(largestExpense.Amount.Abs())+" - "+orUnknown(largestExpense.Description))
			}
			if largestIncome.Amount.GreaterThan(decimal.NewFromInt(100)) {
				insights = append(insights, "Largest income: "+dollars(largestIncome.Amount)+" - "+orUnknown(largestIncome.Description))
			}
		}

		if len(analysis.Investments) > 0 {
			total := decimal.Zero
			for _, inv := range analysis.Investments {
				total = total.Add(inv.Value)
			}
			insights = append(insights, "Total investment value: "+dollars(total))
		}

		insights = append(insights, analysis.KeyInsights...)
	}

	if len(insights) == 0 {
		return []string{"Document processed successfully"}
	}
	return insights
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
