package extraction

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const (
	maxTextBytes     = 100 * 1024 // cap on text handed to the line parser
	defaultMaxTokens = 8192
	minMaxTokens     = 2048
	maxMaxTokens     = 32768
	tokenRoundTo     = 1024
	scannedThreshold = 50  // chars per page below which PDF is considered scanned
	textDenseMin     = 200 // chars per page for "dense text" classification
)

// Extraction methods reported in TextResult.Method.
const (
	MethodPlainText = "pdf-text"
	MethodRows      = "pdf-rows"
	MethodLLMReader = "llm-reader"
)

// DocumentReader transcribes a document the PDF text layer could not
// provide, typically a scanned statement sent to a multimodal model.
type DocumentReader interface {
	ReadDocument(ctx context.Context, data []byte, mimeType string) (string, error)
}

// TextResult is the raw text pulled out of a PDF.
type TextResult struct {
	Text      string
	PageCount int
	Method    string
	IsScanned bool
	Warnings  []string
}

// TextExtractor reads the text layer of a PDF, falling back from page plain
// text to row reconstruction, and finally to a DocumentReader for scans.
type TextExtractor struct {
	reader DocumentReader
	logger *zap.Logger
}

// NewTextExtractor creates a TextExtractor. reader may be nil.
func NewTextExtractor(logger *zap.Logger, reader DocumentReader) *TextExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextExtractor{reader: reader, logger: logger.Named("text-extractor")}
}

// ExtractText reads the PDF at path.
func (e *TextExtractor) ExtractText(ctx context.Context, path string) (*TextResult, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, &ExtractionError{
			Code:    ErrUnsupportedFormat,
			Message: fmt.Sprintf("unsupported file type %q, only PDF documents are accepted", filepath.Ext(path)),
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ExtractionError{Code: ErrFileNotFound, Message: "file not found: " + path, Cause: err}
		}
		return nil, &ExtractionError{Code: ErrTextExtractionFailed, Message: "read file", Cause: err}
	}
	return e.ExtractBytes(ctx, data)
}

// ExtractBytes runs the fallback chain over an in-memory PDF.
func (e *TextExtractor) ExtractBytes(ctx context.Context, data []byte) (*TextResult, error) {
	if len(data) == 0 {
		return nil, &ExtractionError{Code: ErrInvalidDocument, Message: "empty document"}
	}

	result := &TextResult{PageCount: 1}

	text, pages, err := pageText(data)
	if err == nil && strings.TrimSpace(text) != "" {
		result.Text, result.PageCount, result.Method = text, pages, MethodPlainText
	} else {
		if err != nil {
			e.logger.Debug("plain text extraction failed, trying rows", zap.Error(err))
			result.Warnings = append(result.Warnings, "plain text extraction failed: "+err.Error())
		}
		rowsText, rowPages, rowErr := rowText(data)
		if rowErr != nil {
			e.logger.Debug("row extraction failed", zap.Error(rowErr))
			result.Warnings = append(result.Warnings, "row extraction failed: "+rowErr.Error())
		} else {
			result.Text, result.PageCount, result.Method = rowsText, rowPages, MethodRows
		}
		if pages > result.PageCount {
			result.PageCount = pages
		}
	}

	result.IsScanned = isLikelyScanned(strings.TrimSpace(stripPageMarkers(result.Text)), result.PageCount)
	if result.IsScanned && e.reader != nil {
		transcribed, readErr := e.reader.ReadDocument(ctx, data, "application/pdf")
		switch {
		case readErr != nil:
			e.logger.Warn("document reader fallback failed", zap.Error(readErr))
			result.Warnings = append(result.Warnings, "document reader failed: "+readErr.Error())
		case strings.TrimSpace(transcribed) != "":
			result.Text, result.Method = transcribed, MethodLLMReader
		}
	}

	if strings.TrimSpace(result.Text) == "" {
		if result.Method == "" && err != nil {
			return nil, &ExtractionError{Code: ErrInvalidDocument, Message: "unreadable PDF", Cause: err}
		}
		return nil, &ExtractionError{
			Code:    ErrTextExtractionFailed,
			Message: "no text could be extracted from document",
			Method:  result.Method,
		}
	}

	e.logger.Debug("extracted text",
		zap.String("method", result.Method),
		zap.Int("pages", result.PageCount),
		zap.Int("chars", len(result.Text)),
		zap.Bool("scanned", result.IsScanned))
	return result, nil
}

func openPDF(data []byte) (*pdf.Reader, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF reader: %w", err)
	}
	return reader, nil
}

// pageText extracts each page's plain text, prefixed by a page marker.
// The pdf library panics on some malformed inputs; those become errors.
func pageText(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during text extraction: %v", r)
		}
	}()

	reader, err := openPDF(data)
	if err != nil {
		return "", 0, err
	}
	pages = reader.NumPage()

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, perr := page.GetPlainText(nil)
		if perr != nil {
			return "", pages, fmt.Errorf("page %d: %w", i, perr)
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n--- Page %d ---\n%s", i, content)
	}
	return sb.String(), pages, nil
}

// rowText rebuilds page text row by row from positioned glyph runs.
func rowText(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during row extraction: %v", r)
		}
	}()

	reader, err := openPDF(data)
	if err != nil {
		return "", 0, err
	}
	pages = reader.NumPage()

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, rerr := page.GetTextByRow()
		if rerr != nil {
			return "", pages, fmt.Errorf("page %d: %w", i, rerr)
		}
		fmt.Fprintf(&sb, "\n--- Page %d ---\n", i)
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, w := range row.Content {
				words = append(words, w.S)
			}
			sb.WriteString(strings.Join(words, " "))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), pages, nil
}

var pageMarkerRe = regexp.MustCompile(`(?m)^--- Page \d+ ---$`)

func stripPageMarkers(text string) string {
	return pageMarkerRe.ReplaceAllString(text, "")
}

// PDFAnalysis contains the line-level statistics of extracted text.
type PDFAnalysis struct {
	PageCount        int
	ExtractedText    string
	TextLines        []string
	EstimatedTxCount int
	IsScanned        bool
	MaxOutputTokens  int
}

// dateAmountPattern matches lines that contain a date-like pattern and a monetary amount.
// Covers: DD/MM/YYYY, DD-MM-YYYY, DD.MM.YYYY, YYYY-MM-DD, YYYY/MM/DD, "Jan 15", "15 Jan"
var datePattern = regexp.MustCompile(
	`(?i)` +
		`(?:\d{1,2}[/\-\.]\d{1,2}[/\-\.]\d{2,4})` + // DD/MM/YYYY variants
		`|(?:\d{4}[/\-]\d{2}[/\-]\d{2})` + // YYYY-MM-DD
		`|(?:(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2})` + // Mon DD
		`|(?:\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?)`, // DD Mon
)

var amountPattern = regexp.MustCompile(
	`[\$\-]?\d{1,3}(?:[,]\d{3})*(?:\.\d{1,2})` + // $1,234.56 or -1234.56
		`|\d+\.\d{2}`, // plain 123.45
)

// AnalyzeText computes line statistics for already extracted text.
func AnalyzeText(text string, pages int) *PDFAnalysis {
	if pages < 1 {
		pages = 1
	}
	if len(text) > maxTextBytes {
		text = text[:maxTextBytes]
	}
	body := stripPageMarkers(text)

	result := &PDFAnalysis{
		PageCount:     pages,
		ExtractedText: body,
		IsScanned:     isLikelyScanned(strings.TrimSpace(body), pages),
	}
	for _, line := range strings.Split(body, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			result.TextLines = append(result.TextLines, trimmed)
		}
	}
	result.EstimatedTxCount = countTransactionLines(result.TextLines)
	result.MaxOutputTokens = estimateOutputTokens(result.EstimatedTxCount)
	return result
}

// countTransactionLines counts lines that look like financial transactions
// (contain both a date-like pattern and a monetary amount).
func countTransactionLines(lines []string) int {
	count := 0
	for _, line := range lines {
		if datePattern.MatchString(line) && amountPattern.MatchString(line) {
			count++
		}
	}
	return count
}

// estimateOutputTokens sizes the model's output budget from the number of
// transaction-looking lines: (150 + n*100) * 1.5, clamped and rounded up
// to a multiple of 1024.
func estimateOutputTokens(txCount int) int {
	if txCount <= 0 {
		return defaultMaxTokens
	}

	tokens := int(float64(150+txCount*100) * 1.5)
	tokens = max(minMaxTokens, min(tokens, maxMaxTokens))
	if tokens%tokenRoundTo != 0 {
		tokens = ((tokens / tokenRoundTo) + 1) * tokenRoundTo
	}
	return tokens
}

// isLikelyScanned returns true if the PDF appears to be a scanned image
// (very little extractable text per page).
func isLikelyScanned(text string, pages int) bool {
	if pages <= 0 {
		pages = 1
	}
	return len(text)/pages < scannedThreshold
}

// CountPages returns the page count, falling back to counting page objects
// when the PDF cannot be parsed.
func CountPages(data []byte) (n int) {
	defer func() {
		if recover() != nil {
			n = countPageObjects(data)
		}
	}()

	reader, err := openPDF(data)
	if err != nil {
		return countPageObjects(data)
	}
	if n = reader.NumPage(); n < 1 {
		return 1
	}
	return n
}

var pageObjectRe = regexp.MustCompile(`/Type\s*/Page\b`)

func countPageObjects(data []byte) int {
	if n := len(pageObjectRe.FindAllIndex(data, -1)); n > 0 {
		return n
	}
	return 1
}
