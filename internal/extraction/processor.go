package extraction

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Analyzer produces a structured analysis of document text, usually via an LLM.
type Analyzer interface {
	AnalyzeFinancialDocument(ctx context.Context, text string, docType DocumentType) (*DocumentAnalysis, error)
}

// Processor runs the ingestion pipeline for a single document:
// text extraction, classification, analysis and transaction enrichment.
type Processor struct {
	extractor *TextExtractor
	parser    *LineParser
	logger    *zap.Logger
}

func NewProcessor(logger *zap.Logger, extractor *TextExtractor) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractor == nil {
		extractor = NewTextExtractor(logger, nil)
	}
	return &Processor{
		extractor: extractor,
		parser:    &LineParser{},
		logger:    logger.Named("processor"),
	}
}

// ProcessDocument processes the PDF at path. The returned result is never nil;
// on failure it carries Success=false and the error text.
func (p *Processor) ProcessDocument(ctx context.Context, path string, analyzer Analyzer) (*ProcessResult, error) {
	result := &ProcessResult{FilePath: path}
	text, err := p.extractor.ExtractText(ctx, path)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	return p.process(ctx, result, text, analyzer), nil
}

// ProcessBytes is ProcessDocument for an in-memory upload.
func (p *Processor) ProcessBytes(ctx context.Context, name string, data []byte, analyzer Analyzer) (*ProcessResult, error) {
	result := &ProcessResult{FilePath: name}
	text, err := p.extractor.ExtractBytes(ctx, data)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	return p.process(ctx, result, text, analyzer), nil
}

func (p *Processor) process(ctx context.Context, result *ProcessResult, text *TextResult, analyzer Analyzer) *ProcessResult {
	result.Text = text.Text
	result.TextLength = len(text.Text)
	result.PageCount = text.PageCount
	result.Method = text.Method
	result.Warnings = append(result.Warnings, text.Warnings...)
	result.DocumentType = ClassifyDocument(text.Text)
	result.Success = true

	log := p.logger.With(zap.String("file", result.FilePath), zap.String("document_type", string(result.DocumentType)))

	if analyzer != nil {
		analysis, err := analyzer.AnalyzeFinancialDocument(ctx, text.Text, result.DocumentType)
		if err != nil {
			log.Warn("ai analysis failed, falling back to line parser", zap.Error(err))
			result.AnalysisError = err.Error()
		} else {
			result.Analysis = analysis
		}
	}

	if result.Analysis == nil {
		parsed, err := p.parser.Parse(AnalyzeText(text.Text, text.PageCount), result.DocumentType)
		if err != nil {
			log.Debug("line parser found nothing", zap.Error(err))
		} else {
			result.Analysis = parsed
		}
	}

	if result.Analysis != nil {
		if result.Analysis.DocumentType == "" {
			result.Analysis.DocumentType = result.DocumentType
		}
		NormalizeTransactions(result.Analysis)
	}

	log.Info("document processed",
		zap.Int("pages", result.PageCount),
		zap.String("method", result.Method),
		zap.Bool("analyzed", result.Analysis != nil))
	return result
}

// NormalizeTransactions enforces the sign convention (credits positive,
// debits negative) and attaches the normalized merchant to each transaction.
func NormalizeTransactions(analysis *DocumentAnalysis) {
	for i := range analysis.Transactions {
		txn := &analysis.Transactions[i]
		txn.Type = strings.ToLower(strings.TrimSpace(txn.Type))
		switch {
		case txn.Type == "debit" && txn.Amount.IsPositive():
			txn.Amount = txn.Amount.Neg()
		case txn.Type == "credit" && txn.Amount.IsNegative():
			txn.Amount = txn.Amount.Neg()
		case txn.Type == "":
			txn.Type = "credit"
			if txn.Amount.IsNegative() {
				txn.Type = "debit"
			}
		}

		if txn.Merchant == "" && txn.Description != "" {
			info := NormalizeMerchant(txn.Description)
			txn.Merchant = info.Name
			txn.MerchantCategory = string(info.Category)
			txn.MerchantScore = info.Confidence
		}
		txn.Category = strings.ToLower(strings.TrimSpace(txn.Category))
		if txn.Category == "" && txn.MerchantCategory != "" {
			txn.Category = txn.MerchantCategory
		}
	}
}
