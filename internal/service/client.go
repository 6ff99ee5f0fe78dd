package service

import (
	"context"

	"connectrpc.com/connect"
	"github.com/castlemilk/finagent/internal/auth"
)

// Client is a typed connect client for the agent service.
type Client struct {
	getSettings        *connect.Client[GetSettingsRequest, GetSettingsResponse]
	updateSettings     *connect.Client[UpdateSettingsRequest, UpdateSettingsResponse]
	uploadDocument     *connect.Client[UploadDocumentRequest, UploadDocumentResponse]
	listDocuments      *connect.Client[ListDocumentsRequest, ListDocumentsResponse]
	getDocument        *connect.Client[GetDocumentRequest, GetDocumentResponse]
	deleteDocument     *connect.Client[DeleteDocumentRequest, DeleteDocumentResponse]
	getIngestionJob    *connect.Client[GetIngestionJobRequest, GetIngestionJobResponse]
	getProfile         *connect.Client[GetProfileRequest, GetProfileResponse]
	getSpendingTrends  *connect.Client[GetSpendingTrendsRequest, GetSpendingTrendsResponse]
	chat               *connect.Client[ChatRequest, ChatResponse]
	getChatHistory     *connect.Client[GetChatHistoryRequest, GetChatHistoryResponse]
	searchTransactions *connect.Client[SearchTransactionsRequest, SearchTransactionsResponse]
	searchDocuments    *connect.Client[SearchDocumentsRequest, SearchDocumentsResponse]
}

// NewClient builds a client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &Client{
		getSettings:        connect.NewClient[GetSettingsRequest, GetSettingsResponse](httpClient, baseURL+GetSettingsProcedure, opts...),
		updateSettings:     connect.NewClient[UpdateSettingsRequest, UpdateSettingsResponse](httpClient, baseURL+UpdateSettingsProcedure, opts...),
		uploadDocument:     connect.NewClient[UploadDocumentRequest, UploadDocumentResponse](httpClient, baseURL+UploadDocumentProcedure, opts...),
		listDocuments:      connect.NewClient[ListDocumentsRequest, ListDocumentsResponse](httpClient, baseURL+ListDocumentsProcedure, opts...),
		getDocument:        connect.NewClient[GetDocumentRequest, GetDocumentResponse](httpClient, baseURL+GetDocumentProcedure, opts...),
		deleteDocument:     connect.NewClient[DeleteDocumentRequest, DeleteDocumentResponse](httpClient, baseURL+DeleteDocumentProcedure, opts...),
		getIngestionJob:    connect.NewClient[GetIngestionJobRequest, GetIngestionJobResponse](httpClient, baseURL+GetIngestionJobProcedure, opts...),
		getProfile:         connect.NewClient[GetProfileRequest, GetProfileResponse](httpClient, baseURL+GetProfileProcedure, opts...),
		getSpendingTrends:  connect.NewClient[GetSpendingTrendsRequest, GetSpendingTrendsResponse](httpClient, baseURL+GetSpendingTrendsProcedure, opts...),
		chat:               connect.NewClient[ChatRequest, ChatResponse](httpClient, baseURL+ChatProcedure, opts...),
		getChatHistory:     connect.NewClient[GetChatHistoryRequest, GetChatHistoryResponse](httpClient, baseURL+GetChatHistoryProcedure, opts...),
		searchTransactions: connect.NewClient[SearchTransactionsRequest, SearchTransactionsResponse](httpClient, baseURL+SearchTransactionsProcedure, opts...),
		searchDocuments:    connect.NewClient[SearchDocumentsRequest, SearchDocumentsResponse](httpClient, baseURL+SearchDocumentsProcedure, opts...),
	}
}

func (c *Client) GetSettings(ctx context.Context, req *GetSettingsRequest) (*GetSettingsResponse, error) {
	return call(ctx, c.getSettings, req)
}

func (c *Client) UpdateSettings(ctx context.Context, req *UpdateSettingsRequest) (*UpdateSettingsResponse, error) {
	return call(ctx, c.updateSettings, req)
}

func (c *Client) UploadDocument(ctx context.Context, req *UploadDocumentRequest) (*UploadDocumentResponse, error) {
	return call(ctx, c.uploadDocument, req)
}

func (c *Client) ListDocuments(ctx context.Context, req *ListDocumentsRequest) (*ListDocumentsResponse, error) {
	return call(ctx, c.listDocuments, req)
}

func (c *Client) GetDocument(ctx context.Context, req *GetDocumentRequest) (*GetDocumentResponse, error) {
	return call(ctx, c.getDocument, req)
}

func (c *Client) DeleteDocument(ctx context.Context, req *DeleteDocumentRequest) (*DeleteDocumentResponse, error) {
	return call(ctx, c.deleteDocument, req)
}

func (c *Client) GetIngestionJob(ctx context.Context, req *GetIngestionJobRequest) (*GetIngestionJobResponse, error) {
	return call(ctx, c.getIngestionJob, req)
}

func (c *Client) GetProfile(ctx context.Context, req *GetProfileRequest) (*GetProfileResponse, error) {
	return call(ctx, c.getProfile, req)
}

func (c *Client) GetSpendingTrends(ctx context.Context, req *GetSpendingTrendsRequest) (*GetSpendingTrendsResponse, error) {
	return call(ctx, c.getSpendingTrends, req)
}

func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return call(ctx, c.chat, req)
}

func (c *Client) GetChatHistory(ctx context.Context, req *GetChatHistoryRequest) (*GetChatHistoryResponse, error) {
	return call(ctx, c.getChatHistory, req)
}

func (c *Client) SearchTransactions(ctx context.Context, req *SearchTransactionsRequest) (*SearchTransactionsResponse, error) {
	return call(ctx, c.searchTransactions, req)
}

func (c *Client) SearchDocuments(ctx context.Context, req *SearchDocumentsRequest) (*SearchDocumentsResponse, error) {
	return call(ctx, c.searchDocuments, req)
}

func call[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// WithAPIKey sets the X-API-Key header on every call.
func WithAPIKey(token string) connect.ClientOption {
	return connect.WithInterceptors(connect.UnaryInterceptorFunc(func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token != "" && req.Spec().IsClient {
				req.Header().Set(auth.APIKeyHeader, token)
			}
			return next(ctx, req)
		}
	}))
}
