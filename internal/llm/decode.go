package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/shopspring/decimal"
)

// Models often drift from the requested schema: account numbers come back as
// numbers, amounts as "$1,234.56", shares as "N/A". The wire types below
// accept those shapes so that one odd field never costs the whole analysis.

// looseString accepts a JSON string, number or bool. Anything else is empty.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*s = ""
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			*s = ""
			return nil
		}
		*s = looseString(v)
	case '{', '[', 'n':
		*s = ""
	default:
		*s = looseString(data)
	}
	return nil
}

// looseDecimal accepts a JSON number or a string such as "$1,234.56" or
// "(12.00)". Null and unparseable values decode as zero.
type looseDecimal decimal.Decimal

func (d *looseDecimal) UnmarshalJSON(data []byte) error {
	var s looseString
	_ = s.UnmarshalJSON(data)
	*d = looseDecimal(parseLooseAmount(string(s)))
	return nil
}

func parseLooseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		v = v.Neg()
	}
	return v
}

func (d looseDecimal) value() decimal.Decimal { return decimal.Decimal(d) }

type wireAnalysis struct {
	DocumentType looseString     `json:"document_type"`
	DateRange    json.RawMessage `json:"date_range"`
	AccountInfo  json.RawMessage `json:"account_info"`
	Transactions json.RawMessage `json:"transactions"`
	Summary      json.RawMessage `json:"summary"`
	Investments  json.RawMessage `json:"investments"`
	KeyInsights  json.RawMessage `json:"key_insights"`
}

type wireDateRange struct {
	StartDate looseString `json:"start_date"`
	EndDate   looseString `json:"end_date"`
}

type wireAccountInfo struct {
	AccountNumber looseString `json:"account_number"`
	Institution   looseString `json:"institution"`
	AccountType   looseString `json:"account_type"`
}

type wireTransaction struct {
	Date        looseString  `json:"date"`
	Description looseString  `json:"description"`
	Amount      looseDecimal `json:"amount"`
	Category    looseString  `json:"category"`
	Type        looseString  `json:"type"`
}

type wireSummary struct {
	TotalDebits     looseDecimal `json:"total_debits"`
	TotalCredits    looseDecimal `json:"total_credits"`
	NetChange       looseDecimal `json:"net_change"`
	StartingBalance looseDecimal `json:"starting_balance"`
	EndingBalance   looseDecimal `json:"ending_balance"`
}

type wireInvestment struct {
	Symbol looseString  `json:"symbol"`
	Shares looseDecimal `json:"shares"`
	Price  looseDecimal `json:"price"`
	Value  looseDecimal `json:"value"`
	Type   looseString  `json:"type"`
}

// decodeAnalysis builds a DocumentAnalysis from the first JSON object in
// text. It fails only when no JSON object can be parsed at all. Sections of
// the wrong shape are left empty and list items that are not objects are
// dropped; both are reported in skipped.
func decodeAnalysis(text string) (analysis *extraction.DocumentAnalysis, skipped []string, err error) {
	var wire wireAnalysis
	if err := extractJSON(text, &wire); err != nil {
		return nil, nil, err
	}

	analysis = &extraction.DocumentAnalysis{DocumentType: extraction.DocumentType(wire.DocumentType)}
	skip := func(format string, args ...any) {
		skipped = append(skipped, fmt.Sprintf(format, args...))
	}

	var dr wireDateRange
	if !decodeSection(wire.DateRange, &dr) {
		skip("date_range")
	}
	analysis.DateRange = extraction.DateRange{StartDate: string(dr.StartDate), EndDate: string(dr.EndDate)}

	var ai wireAccountInfo
	if !decodeSection(wire.AccountInfo, &ai) {
		skip("account_info")
	}
	analysis.AccountInfo = extraction.AccountInfo{
		AccountNumber: string(ai.AccountNumber),
		Institution:   string(ai.Institution),
		AccountType:   string(ai.AccountType),
	}

	var sum wireSummary
	if !decodeSection(wire.Summary, &sum) {
		skip("summary")
	}
	analysis.Summary = extraction.Summary{
		TotalDebits:     sum.TotalDebits.value(),
		TotalCredits:    sum.TotalCredits.value(),
		NetChange:       sum.NetChange.value(),
		StartingBalance: sum.StartingBalance.value(),
		EndingBalance:   sum.EndingBalance.value(),
	}

	if items, ok := decodeList(wire.Transactions); !ok {
		skip("transactions")
	} else if items != nil {
		analysis.Transactions = make([]extraction.Transaction, 0, len(items))
		for i, raw := range items {
			var t wireTransaction
			if !decodeSection(raw, &t) || isNull(raw) {
				skip("transactions[%d]", i)
				continue
			}
			analysis.Transactions = append(analysis.Transactions, extraction.Transaction{
				Date:        string(t.Date),
				Description: string(t.Description),
				Amount:      t.Amount.value(),
				Category:    string(t.Category),
				Type:        string(t.Type),
			})
		}
	}

	if items, ok := decodeList(wire.Investments); !ok {
		skip("investments")
	} else if items != nil {
		analysis.Investments = make([]extraction.Investment, 0, len(items))
		for i, raw := range items {
			var inv wireInvestment
			if !decodeSection(raw, &inv) || isNull(raw) {
				skip("investments[%d]", i)
				continue
			}
			analysis.Investments = append(analysis.Investments, extraction.Investment{
				Symbol: string(inv.Symbol),
				Shares: inv.Shares.value(),
				Price:  inv.Price.value(),
				Value:  inv.Value.value(),
				Type:   string(inv.Type),
			})
		}
	}

	if items, ok := decodeList(wire.KeyInsights); !ok {
		skip("key_insights")
	} else {
		for _, raw := range items {
			var s looseString
			_ = s.UnmarshalJSON(raw)
			if s != "" {
				analysis.KeyInsights = append(analysis.KeyInsights, string(s))
			}
		}
	}

	return analysis, skipped, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// decodeSection decodes an object section. Missing and null sections are fine.
func decodeSection(raw json.RawMessage, v any) bool {
	if isNull(raw) {
		return true
	}
	return json.Unmarshal(raw, v) == nil
}

// decodeList splits an array section into its items. A missing or null
// section yields nil, ok; a present but empty array yields an empty,
// non-nil slice.
func decodeList(raw json.RawMessage) ([]json.RawMessage, bool) {
	if isNull(raw) {
		return nil, true
	}
	items := []json.RawMessage{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}
