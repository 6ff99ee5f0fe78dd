package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/castlemilk/finagent/internal/blob"
	"github.com/castlemilk/finagent/internal/llm"
	"github.com/castlemilk/finagent/internal/rag"
	"github.com/castlemilk/finagent/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const statementLine = "Credit card statement balance and minimum payment due for this billing period"

const analysisJSON = `{
  "document_type": "credit_card",
  "transactions": [
    {"date": "2024-05-01", "description": "NETFLIX.COM", "amount": -15.99, "category": "entertainment", "type": "debit"},
    {"date": "2024-05-03", "description": "Payment thank you", "amount": 200.00, "category": "income", "type": "credit"}
  ],
  "key_insights": ["Streaming subscription detected"]
}`

// fakeProvider answers analysis requests with analysisJSON and chat requests
// with a fixed reply, recording the prompts it saw.
type fakeProvider struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return "", f.err
	}
	if req.JSON {
		return analysisJSON, nil
	}
	return f.reply, nil
}

func (f *fakeProvider) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// factoryFor returns a ProviderFactory that hands out p once an API key is
// set, and otherwise behaves like llm.NewProvider without a key.
func factoryFor(p llm.Provider) ProviderFactory {
	return func(ctx context.Context, cfg llm.ProviderConfig) (llm.Provider, error) {
		if strings.TrimSpace(cfg.APIKey) == "" {
			return llm.NewProvider(ctx, cfg)
		}
		return p, nil
	}
}

type testEnv struct {
	svc      *AgentService
	store    *store.MemoryStore
	blobs    *blob.LocalStore
	vectors  *rag.VectorStore
	provider *fakeProvider
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	vectors, err := rag.NewVectorStore(nil, rag.NewHashEmbedder(0), zap.NewNop())
	require.NoError(t, err)

	provider := &fakeProvider{reply: "You spent $15.99 on streaming."}
	svc, err := NewAgentService(Deps{
		Store:       st,
		Blobs:       blobs,
		Vectors:     vectors,
		Logger:      zap.NewNop(),
		NewProvider: factoryFor(provider),
	}, opts)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return &testEnv{svc: svc, store: st, blobs: blobs, vectors: vectors, provider: provider}
}

// configureLLM saves settings with an API key so the fake provider is used.
func (e *testEnv) configureLLM(t *testing.T) {
	t.Helper()
	settings := store.DefaultSettings()
	settings.LLMAPIKey = "sk-test-1234567890"
	require.NoError(t, e.store.SaveSettings(context.Background(), settings))
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
