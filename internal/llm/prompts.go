package llm

import (
	"fmt"
	"strings"
)

const (
	analysisSystemPrompt = "You are a financial document analysis expert. Analyze documents and extract structured financial information."
	advisorSystemPrompt  = "You are a personal finance advisor with access to the user's financial profile. Provide helpful, specific advice based on their actual financial data."

	analysisTemperature = 0.1
	chatTemperature     = 0.3
	chatMaxTokens       = 2000
)

const analysisSchema = `{
    "document_type": "credit_card|bank_statement|investment|tax_document|other",
    "date_range": {
        "start_date": "YYYY-MM-DD",
        "end_date": "YYYY-MM-DD"
    },
    "account_info": {
        "account_number": "masked account number",
        "institution": "bank/credit card company name",
        "account_type": "checking|savings|credit|investment|other"
    },
    "transactions": [
        {
            "date": "YYYY-MM-DD",
            "description": "transaction description",
            "amount": -123.45,
            "category": "food|gas|shopping|entertainment|income|other",
            "type": "debit|credit"
        }
    ],
    "summary": {
        "total_debits": -1234.56,
        "total_credits": 5678.90,
        "net_change": 4444.34,
        "starting_balance": 1000.00,
        "ending_balance": 5444.34
    },
    "investments": [
        {
            "symbol": "AAPL",
            "shares": 10.5,
            "price": 150.00,
            "value": 1575.00,
            "type": "stock|bond|mutual_fund|etf"
        }
    ],
    "key_insights": [
        "Notable patterns or important information extracted from the document"
    ]
}`

func analysisPrompt(text, documentType string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following %s document and extract structured financial information.\n\n", documentType)
	fmt.Fprintf(&b, "Document Content:\n%s\n\n", text)
	b.WriteString("Please extract and return a JSON object with the following structure:\n")
	b.WriteString(analysisSchema)
	b.WriteString("\n\nEnsure all monetary amounts are properly formatted as numbers (positive for credits/income, negative for debits/expenses).\n")
	b.WriteString("If certain information is not available, use null or empty arrays as appropriate.\n")
	return b.String()
}

func chatPrompt(message, financialContext, documentContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Financial Context:\n%s\n\n", financialContext)
	if documentContext != "" {
		fmt.Fprintf(&b, "Relevant Document Excerpts:\n%s\n\n", documentContext)
	}
	fmt.Fprintf(&b, "User Question: %s\n\n", message)
	b.WriteString("Please provide a helpful response based on the financial context provided. ")
	b.WriteString("Be specific and reference actual numbers from the user's financial profile when relevant.\n")
	return b.String()
}
