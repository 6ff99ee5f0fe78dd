package extraction

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// ModelLineParser is reported as DocumentAnalysis.ModelUsed when no LLM was involved.
	ModelLineParser = "text-extraction"
	minParseRate    = 0.50 // must parse at least 50% of estimated lines
)

// LineParser is the offline fallback analyzer: it pulls transactions out of
// statement lines shaped like "date description amount".
type LineParser struct{}

// transactionLineRe groups: (1) date, (2) description, (3) amount.
var transactionLineRe = regexp.MustCompile(
	`(?i)` +
		`(\d{1,2}[/\-\.]\d{1,2}[/\-\.]\d{2,4}|\d{4}[/\-]\d{2}[/\-]\d{2}|` +
		`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:[,\s]+\d{2,4})?|` +
		`\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?(?:[,\s]+\d{2,4})?)` +
		`\s+(.+?)\s+` +
		`(-?\$?\d{1,3}(?:,\d{3})*\.\d{2})\s*(?:CR|DR)?$`,
)

var dateFormats = []string{
	"02/01/2006", // DD/MM/YYYY
	"2/1/2006",   // D/M/YYYY
	"02-01-2006", // DD-MM-YYYY
	"02.01.2006", // DD.MM.YYYY
	"2006-01-02", // YYYY-MM-DD
	"2006/01/02", // YYYY/MM/DD
	"Jan 02 2006",
	"Jan 2 2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 02, 2006",
	"Jan 2, 2006",
	"02/01/06", // DD/MM/YY
	"2/1/06",   // D/M/YY
}

// Parse builds a best-effort DocumentAnalysis from statement lines. It returns
// an error when the text is too sparse or too few lines parse.
func (p *LineParser) Parse(analysis *PDFAnalysis, docType DocumentType) (*DocumentAnalysis, error) {
	if analysis == nil || analysis.IsScanned {
		return nil, fmt.Errorf("cannot parse lines from scanned PDF")
	}
	if analysis.PageCount > 0 && len(analysis.ExtractedText)/analysis.PageCount < textDenseMin {
		return nil, fmt.Errorf("text density too low for rule-based extraction")
	}

	result := &DocumentAnalysis{
		DocumentType: docType,
		ModelUsed:    ModelLineParser,
		KeyInsights:  []string{"Extracted using rule-based text parser (no AI model used)"},
	}

	var first, last time.Time
	for _, line := range analysis.TextLines {
		matches := transactionLineRe.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		description := strings.TrimSpace(matches[2])
		amount, isDebit, ok := parseAmount(matches[3])
		if !ok || amount.IsZero() {
			continue
		}
		// Statement suffixes are outside the amount group.
		if strings.HasSuffix(strings.ToUpper(strings.TrimSpace(line)), "CR") {
			isDebit = false
		}

		date := parseFlexibleDate(matches[1])
		if !date.IsZero() {
			if first.IsZero() || date.Before(first) {
				first = date
			}
			if date.After(last) {
				last = date
			}
		}

		info := NormalizeMerchant(description)
		txn := Transaction{
			Date:             formatDate(date),
			Description:      description,
			Amount:           amount,
			Category:         string(info.Category),
			Type:             "credit",
			Merchant:         info.Name,
			MerchantCategory: string(info.Category),
			MerchantScore:    info.Confidence,
		}
		if isDebit {
			txn.Amount = amount.Neg()
			txn.Type = "debit"
			result.Summary.TotalDebits = result.Summary.TotalDebits.Add(amount)
		} else {
			result.Summary.TotalCredits = result.Summary.TotalCredits.Add(amount)
		}
		result.Transactions = append(result.Transactions, txn)
	}

	if analysis.EstimatedTxCount > 0 {
		parseRate := float64(len(result.Transactions)) / float64(analysis.EstimatedTxCount)
		if parseRate < minParseRate {
			return nil, fmt.Errorf("parse rate %.2f below threshold %.2f (%d/%d)",
				parseRate, minParseRate, len(result.Transactions), analysis.EstimatedTxCount)
		}
	}
	if len(result.Transactions) == 0 {
		return nil, fmt.Errorf("no transactions parsed from text")
	}

	result.Summary.NetChange = result.Summary.TotalCredits.Sub(result.Summary.TotalDebits)
	result.DateRange = DateRange{StartDate: formatDate(first), EndDate: formatDate(last)}
	return result, nil
}

// parseFlexibleDate tries multiple date formats and returns the parsed time.
func parseFlexibleDate(s string) time.Time {
	s = strings.Join(strings.Fields(s), " ")
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			if t.Year() < 100 {
				t = t.AddDate(2000, 0, 0)
			}
			return t
		}
	}
	return time.Time{}
}

// formatDate formats a time as YYYY-MM-DD, or returns empty string for zero time.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// parseAmount reads "$1,234.56", "-45.00" or "100.00CR" and returns the
// absolute amount and whether it is a debit. A leading minus or CR suffix
// marks a credit.
func parseAmount(s string) (decimal.Decimal, bool, bool) {
	s = strings.TrimSpace(s)

	isDebit := true
	upper := strings.ToUpper(s)
	if strings.HasSuffix(upper, "CR") {
		isDebit = false
		s = strings.TrimSpace(s[:len(s)-2])
	} else if strings.HasSuffix(upper, "DR") {
		s = strings.TrimSpace(s[:len(s)-2])
	}

	s = strings.NewReplacer("$", "", ",", "").Replace(s)
	if strings.HasPrefix(s, "-") {
		s = s[1:]
		isDebit = false
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false, false
	}
	return amount, isDebit, true
}
