// Package mcpserver exposes document extraction, classification, retrieval
// and the finance profile as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"connectrpc.com/connect"
	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/castlemilk/finagent/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Version is reported to MCP clients.
var Version = "dev"

const instructions = `finagent reads personal finance PDFs (bank, credit card, investment and tax statements).
Use extract_text to read a PDF, classify_document to label text, ingest_document to add a PDF to the
finance profile, search_documents to find passages in ingested documents, and get_profile for totals.`

// Tools holds the collaborators behind the MCP tools.
type Tools struct {
	svc       *service.AgentService
	extractor *extraction.TextExtractor
	logger    *zap.Logger
}

// New builds an MCP server with every finagent tool registered.
func New(svc *service.AgentService, extractor *extraction.TextExtractor, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractor == nil {
		extractor = extraction.NewTextExtractor(logger, nil)
	}
	t := &Tools{svc: svc, extractor: extractor, logger: logger.Named("mcp")}

	s := server.NewMCPServer(
		"finagent",
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	s.AddTool(mcp.NewTool("extract_text",
		mcp.WithDescription("Extract the text of a PDF file, falling back to row reconstruction and the configured LLM for scans."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path to a .pdf file")),
		mcp.WithReadOnlyHintAnnotation(true),
	), t.ExtractText)

	s.AddTool(mcp.NewTool("classify_document",
		mcp.WithDescription("Classify financial document text as credit_card, bank_statement, investment, tax_document, insurance, loan or other."),
		mcp.WithString("text", mcp.Description("Document text to classify")),
		mcp.WithString("path", mcp.Description("PDF to extract and classify when text is not given")),
		mcp.WithReadOnlyHintAnnotation(true),
	), t.ClassifyDocument)

	s.AddTool(mcp.NewTool("ingest_document",
		mcp.WithDescription("Add a PDF to the finance profile: extract, analyze, import transactions and index it for search."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path to a .pdf file")),
		mcp.WithString("document_type", mcp.Description("Optional document type hint")),
	), t.IngestDocument)

	s.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Semantic search over ingested documents."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to look for")),
		mcp.WithNumber("n", mcp.Description("Number of results"), mcp.DefaultNumber(5), mcp.Min(1), mcp.Max(50)),
		mcp.WithReadOnlyHintAnnotation(true),
	), t.SearchDocuments)

	s.AddTool(mcp.NewTool("get_profile",
		mcp.WithDescription("Summarize the finance profile: net worth, monthly income and expenses, portfolio and recent transactions."),
		mcp.WithReadOnlyHintAnnotation(true),
	), t.GetProfile)

	s.AddTool(mcp.NewTool("get_spending_trends",
		mcp.WithDescription("Spending by category and day over a trailing window."),
		mcp.WithNumber("days", mcp.Description("Window length in days"), mcp.DefaultNumber(30), mcp.Min(1), mcp.Max(365)),
		mcp.WithReadOnlyHintAnnotation(true),
	), t.GetSpendingTrends)

	return s
}

// Serve runs s over stdin and stdout until the input closes or a signal
// arrives.
func Serve(s *server.MCPServer, logger *zap.Logger) error {
	return server.ServeStdio(s, server.WithErrorLogger(zap.NewStdLog(logger.Named("mcp"))))
}

type extractTextResult struct {
	Path      string   `json:"path"`
	Text      string   `json:"text"`
	PageCount int      `json:"page_count"`
	Method    string   `json:"extraction_method"`
	IsScanned bool     `json:"is_scanned"`
	Warnings  []string `json:"warnings,omitempty"`
}

func (t *Tools) ExtractText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := t.extractor.ExtractText(ctx, path)
	if err != nil {
		return toolError("extract text", err), nil
	}
	return mcp.NewToolResultJSON(extractTextResult{
		Path:      path,
		Text:      result.Text,
		PageCount: result.PageCount,
		Method:    result.Method,
		IsScanned: result.IsScanned,
		Warnings:  result.Warnings,
	})
}

type classifyResult struct {
	DocumentType extraction.DocumentType `json:"document_type"`
}

func (t *Tools) ClassifyDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		path := req.GetString("path", "")
		if path == "" {
			return mcp.NewToolResultError("either text or path is required"), nil
		}
		result, err := t.extractor.ExtractText(ctx, path)
		if err != nil {
			return toolError("extract text", err), nil
		}
		text = result.Text
	}
	return mcp.NewToolResultJSON(classifyResult{DocumentType: extraction.ClassifyDocument(text)})
}

func (t *Tools) IngestDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("read file", err), nil
	}
	resp, err := t.svc.UploadDocument(ctx, connect.NewRequest(&service.UploadDocumentRequest{
		Filename:     filepath.Base(path),
		Data:         data,
		DocumentType: req.GetString("document_type", ""),
	}))
	if err != nil {
		return toolError("ingest document", err), nil
	}
	t.logger.Info("ingested document", zap.String("path", path), zap.String("document_id", resp.Msg.Document.ID))
	return mcp.NewToolResultJSON(resp.Msg)
}

func (t *Tools) SearchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := t.svc.SearchDocuments(ctx, connect.NewRequest(&service.SearchDocumentsRequest{
		Query: query,
		N:     req.GetInt("n", 0),
	}))
	if err != nil {
		return toolError("search documents", err), nil
	}
	return mcp.NewToolResultJSON(resp.Msg)
}

func (t *Tools) GetProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := t.svc.GetProfile(ctx, connect.NewRequest(&service.GetProfileRequest{}))
	if err != nil {
		return toolError("get profile", err), nil
	}
	return mcp.NewToolResultJSON(resp.Msg.Summary)
}

func (t *Tools) GetSpendingTrends(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := t.svc.GetSpendingTrends(ctx, connect.NewRequest(&service.GetSpendingTrendsRequest{
		Days: req.GetInt("days", 0),
	}))
	if err != nil {
		return toolError("get spending trends", err), nil
	}
	return mcp.NewToolResultJSON(resp.Msg.Trends)
}

// toolError reports err inside the tool result so the model can see it.
func toolError(action string, err error) *mcp.CallToolResult {
	var extErr *extraction.ExtractionError
	if errors.As(err, &extErr) {
		return mcp.NewToolResultError(fmt.Sprintf("%s failed (%s): %s", action, extErr.Code, extErr.Message))
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return mcp.NewToolResultError(fmt.Sprintf("%s failed (%s): %s", action, connectErr.Code(), connectErr.Message()))
	}
	return mcp.NewToolResultErrorFromErr(action+" failed", err)
}
