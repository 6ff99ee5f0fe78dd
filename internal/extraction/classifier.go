package extraction

import "strings"

// documentPatterns are checked in order; the first type with any keyword
// present in the text wins.
var documentPatterns = []struct {
	docType  DocumentType
	keywords []string
}{
	{DocumentTypeCreditCard, []string{
		"credit card", "statement balance", "minimum payment", "payment due",
		"available credit", "credit limit", "annual percentage rate",
	}},
	{DocumentTypeBankStatement, []string{
		"checking account", "savings account", "account balance", "deposits",
		"withdrawals", "opening balance", "closing balance",
	}},
	{DocumentTypeInvestment, []string{
		"portfolio", "securities", "dividend", "capital gains", "mutual fund",
		"stock", "bond", "investment account",
	}},
	{DocumentTypeTax, []string{
		"form 1040", "tax return", "w-2", "1099", "irs",
		"adjusted gross income", "taxable income",
	}},
	{DocumentTypeInsurance, []string{
		"insurance", "policy", "premium", "deductible", "coverage", "claim",
	}},
	{DocumentTypeLoan, []string{
		"mortgage", "loan", "principal", "interest rate", "monthly payment",
		"balance remaining",
	}},
}

// ClassifyDocument assigns a DocumentType by keyword matching on the
// lowercased text.
func ClassifyDocument(text string) DocumentType {
	lower := strings.ToLower(text)
	for _, p := range documentPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return p.docType
			}
		}
	}
	return DocumentTypeOther
}
