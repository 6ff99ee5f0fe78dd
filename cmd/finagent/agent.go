package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"connectrpc.com/connect"
	"github.com/castlemilk/finagent/internal/service"
	"github.com/spf13/cobra"
)

// agentAPI is the subset of the agent service the CLI commands use. It is
// served either in process or by a remote finagent server.
type agentAPI interface {
	UploadDocument(ctx context.Context, req *service.UploadDocumentRequest) (*service.UploadDocumentResponse, error)
	GetIngestionJob(ctx context.Context, req *service.GetIngestionJobRequest) (*service.GetIngestionJobResponse, error)
	GetDocument(ctx context.Context, req *service.GetDocumentRequest) (*service.GetDocumentResponse, error)
	GetProfile(ctx context.Context, req *service.GetProfileRequest) (*service.GetProfileResponse, error)
	GetSpendingTrends(ctx context.Context, req *service.GetSpendingTrendsRequest) (*service.GetSpendingTrendsResponse, error)
	Chat(ctx context.Context, req *service.ChatRequest) (*service.ChatResponse, error)
	SearchTransactions(ctx context.Context, req *service.SearchTransactionsRequest) (*service.SearchTransactionsResponse, error)
	SearchDocuments(ctx context.Context, req *service.SearchDocumentsRequest) (*service.SearchDocumentsResponse, error)
}

var (
	serverURL string
	apiKey    string
	jsonOut   bool
)

// addRemoteFlags registers --server, --api-key and --json on cmd.
func addRemoteFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serverURL, "server", "", "talk to a running finagent server instead of opening local storage")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API token for --server (default FINAGENT_API_TOKEN)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
}

// openAgent returns a remote client when --server is set and otherwise
// wires the service in process. The returned func releases resources.
func openAgent(ctx context.Context) (agentAPI, func(), error) {
	if serverURL != "" {
		key := apiKey
		if key == "" {
			key = os.Getenv("FINAGENT_API_TOKEN")
		}
		client := service.NewClient(http.DefaultClient, strings.TrimRight(serverURL, "/"), service.WithAPIKey(key))
		return client, func() {}, nil
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return localAgent{svc: a.svc}, a.Close, nil
}

// localAgent adapts the in-process service to agentAPI.
type localAgent struct {
	svc *service.AgentService
}

func unwrap[Res any](resp *connect.Response[Res], err error) (*Res, error) {
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (l localAgent) UploadDocument(ctx context.Context, req *service.UploadDocumentRequest) (*service.UploadDocumentResponse, error) {
	return unwrap(l.svc.UploadDocument(ctx, connect.NewRequest(req)))
}

func (l localAgent) GetIngestionJob(ctx context.Context, req *service.GetIngestionJobRequest) (*service.GetIngestionJobResponse, error) {
	return unwrap(l.svc.GetIngestionJob(ctx, connect.NewRequest(req)))
}

func (l localAgent) GetDocument(ctx context.Context, req *service.GetDocumentRequest) (*service.GetDocumentResponse, error) {
	return unwrap(l.svc.GetDocument(ctx, connect.NewRequest(req)))
}

func (l localAgent) GetProfile(ctx context.Context, req *service.GetProfileRequest) (*service.GetProfileResponse, error) {
	return unwrap(l.svc.GetProfile(ctx, connect.NewRequest(req)))
}

func (l localAgent) GetSpendingTrends(ctx context.Context, req *service.GetSpendingTrendsRequest) (*service.GetSpendingTrendsResponse, error) {
	return unwrap(l.svc.GetSpendingTrends(ctx, connect.NewRequest(req)))
}

func (l localAgent) Chat(ctx context.Context, req *service.ChatRequest) (*service.ChatResponse, error) {
	return unwrap(l.svc.Chat(ctx, connect.NewRequest(req)))
}

func (l localAgent) SearchTransactions(ctx context.Context, req *service.SearchTransactionsRequest) (*service.SearchTransactionsResponse, error) {
	return unwrap(l.svc.SearchTransactions(ctx, connect.NewRequest(req)))
}

func (l localAgent) SearchDocuments(ctx context.Context, req *service.SearchDocumentsRequest) (*service.SearchDocumentsResponse, error) {
	return unwrap(l.svc.SearchDocuments(ctx, connect.NewRequest(req)))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
