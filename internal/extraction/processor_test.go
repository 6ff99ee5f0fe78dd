package extraction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAnalyzer struct {
	analysis *DocumentAnalysis
	err      error
	gotType  DocumentType
}

func (s *stubAnalyzer) AnalyzeFinancialDocument(ctx context.Context, text string, docType DocumentType) (*DocumentAnalysis, error) {
	s.gotType = docType
	return s.analysis, s.err
}

func writePDF(t *testing.T, pages ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statement.pdf")
	require.NoError(t, os.WriteFile(path, buildPDF(pages...), 0o644))
	return path
}

func TestProcessor_ProcessDocument_WithAnalyzer(t *testing.T) {
	path := writePDF(t, "Credit card statement balance and minimum payment due for this billing period")
	analyzer := &stubAnalyzer{analysis: &DocumentAnalysis{
		Transactions: []Transaction{
			{Date: "2024-05-01", Description: "NETFLIX.COM", Amount: decimal.NewFromFloat(15.99), Type: "Debit"},
			{Date: "2024-05-02", Description: "Payment thank you", Amount: decimal.NewFromInt(-200), Type: "credit", Category: "Credit"},
		},
	}}

	p := NewProcessor(zap.NewNop(), nil)
	result, err := p.ProcessDocument(context.Background(), path, analyzer)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, DocumentTypeCreditCard, result.DocumentType)
	assert.Equal(t, DocumentTypeCreditCard, analyzer.gotType)
	require.NotNil(t, result.Analysis)
	assert.Equal(t, DocumentTypeCreditCard, result.Analysis.DocumentType)

	netflix := result.Analysis.Transactions[0]
	assert.Equal(t, "debit", netflix.Type)
	assert.True(t, netflix.Amount.Equal(decimal.NewFromFloat(-15.99)))
	assert.Equal(t, "Netflix", netflix.Merchant)
	assert.Equal(t, "entertainment", netflix.Category)

	payment := result.Analysis.Transactions[1]
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "credit", payment.Category)
}

func TestProcessor_AnalyzerFailureIsNotFatal(t *testing.T) {
	path := writePDF(t, "Savings account opening balance and closing balance for the statement period")
	analyzer := &stubAnalyzer{err: errors.New("rate limited")}

	p := NewProcessor(zap.NewNop(), nil)
	result, err := p.ProcessDocument(context.Background(), path, analyzer)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, DocumentTypeBankStatement, result.DocumentType)
	assert.Equal(t, "rate limited", result.AnalysisError)
	assert.Equal(t, []string{"Document processed successfully"}, Insights(result))
}

func TestProcessor_ExtractionFailure(t *testing.T) {
	p := NewProcessor(zap.NewNop(), nil)
	result, err := p.ProcessDocument(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), nil)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, []string{"Document processing failed"}, Insights(result))
}

func TestNormalizeTransactions_InfersType(t *testing.T) {
	analysis := &DocumentAnalysis{Transactions: []Transaction{
		{Description: "WOOLWORTHS", Amount: decimal.NewFromInt(-10)},
		{Description: "Salary", Amount: decimal.NewFromInt(1000), Category: " Salary "},
	}}
	NormalizeTransactions(analysis)

	assert.Equal(t, "debit", analysis.Transactions[0].Type)
	assert.Equal(t, "food", analysis.Transactions[0].Category)
	assert.Equal(t, "credit", analysis.Transactions[1].Type)
	assert.Equal(t, "salary", analysis.Transactions[1].Category)
}
