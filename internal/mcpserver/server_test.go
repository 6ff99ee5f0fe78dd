package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/castlemilk/finagent/internal/blob"
	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/castlemilk/finagent/internal/rag"
	"github.com/castlemilk/finagent/internal/service"
	"github.com/castlemilk/finagent/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const statementLine = "Credit card statement balance and minimum payment due for this billing period"

func newTools(t *testing.T) *Tools {
	t.Helper()
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	vectors, err := rag.NewVectorStore(nil, rag.NewHashEmbedder(0), zap.NewNop())
	require.NoError(t, err)
	svc, err := service.NewAgentService(service.Deps{
		Store:   store.NewMemoryStore(),
		Blobs:   blobs,
		Vectors: vectors,
	}, service.Options{})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return &Tools{svc: svc, extractor: extraction.NewTextExtractor(zap.NewNop(), nil), logger: zap.NewNop()}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", result.Content[0])
	return text.Text
}

func writePDF(t *testing.T, pages ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statement.pdf")
	require.NoError(t, os.WriteFile(path, buildPDF(pages...), 0o644))
	return path
}

func TestNew_RegistersTools(t *testing.T) {
	tools := newTools(t)
	s := New(tools.svc, nil, zap.NewNop())

	var names []string
	for name := range s.ListTools() {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"classify_document",
		"extract_text",
		"get_profile",
		"get_spending_trends",
		"ingest_document",
		"search_documents",
	}, names)
}

func TestExtractText(t *testing.T) {
	tools := New(newTools(t).svc, nil, zap.NewNop())
	handler := tools.GetTool("extract_text").Handler
	ctx := context.Background()

	t.Run("reads a pdf", func(t *testing.T) {
		result, err := handler(ctx, callRequest("extract_text", map[string]any{"path": writePDF(t, statementLine)}))
		require.NoError(t, err)
		require.False(t, result.IsError, resultText(t, result))

		var got extractTextResult
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
		assert.Contains(t, got.Text, "minimum payment")
		assert.Equal(t, 1, got.PageCount)
		assert.Equal(t, "pdf-text", got.Method)
	})

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing argument", map[string]any{}, "path"},
		{"missing file", map[string]any{"path": filepath.Join(t.TempDir(), "nope.pdf")}, "FILE_NOT_FOUND"},
		{"not a pdf", map[string]any{"path": "/tmp/notes.txt"}, "UNSUPPORTED_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handler(ctx, callRequest("extract_text", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestClassifyDocument(t *testing.T) {
	tools := newTools(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		args    map[string]any
		want    string
		isError bool
	}{
		{name: "from text", args: map[string]any{"text": "Your brokerage account holdings and dividend reinvestment summary"}, want: "investment"},
		{name: "from path", args: map[string]any{"path": writePDF(t, statementLine)}, want: "credit_card"},
		{name: "neither", args: map[string]any{}, isError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tools.ClassifyDocument(ctx, callRequest("classify_document", tt.args))
			require.NoError(t, err)
			if tt.isError {
				assert.True(t, result.IsError)
				return
			}
			require.False(t, result.IsError, resultText(t, result))
			var got classifyResult
			require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
			assert.Equal(t, tt.want, string(got.DocumentType))
		})
	}
}

func TestIngestSearchAndProfile(t *testing.T) {
	tools := newTools(t)
	ctx := context.Background()

	result, err := tools.IngestDocument(ctx, callRequest("ingest_document", map[string]any{"path": writePDF(t, statementLine)}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var upload service.UploadDocumentResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &upload))
	assert.Equal(t, "statement.pdf", upload.Document.Filename)
	assert.Equal(t, store.DocumentProcessed, upload.Document.Status)

	result, err = tools.SearchDocuments(ctx, callRequest("search_documents", map[string]any{"query": "minimum payment", "n": float64(3)}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	var found service.SearchDocumentsResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &found))
	require.Len(t, found.Results, 1)
	assert.Equal(t, upload.Document.ID, found.Results[0].DocumentID)

	result, err = tools.SearchDocuments(ctx, callRequest("search_documents", map[string]any{"query": "  "}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid_argument")

	result, err = tools.GetProfile(ctx, callRequest("get_profile", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Contains(t, resultText(t, result), "net_worth")

	result, err = tools.GetSpendingTrends(ctx, callRequest("get_spending_trends", map[string]any{"days": float64(7)}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Contains(t, resultText(t, result), `"period_days":7`)
}

func TestIngestDocument_Errors(t *testing.T) {
	tools := newTools(t)
	ctx := context.Background()

	result, err := tools.IngestDocument(ctx, callRequest("ingest_document", map[string]any{"path": filepath.Join(t.TempDir(), "missing.pdf")}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hello"), 0o644))
	result, err = tools.IngestDocument(ctx, callRequest("ingest_document", map[string]any{"path": notes}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.True(t, strings.Contains(resultText(t, result), "PDF"))
}

// buildPDF assembles a minimal PDF with one Helvetica text run per page.
func buildPDF(pages ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+i*2)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	for i, text := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>", 5+i*2))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
