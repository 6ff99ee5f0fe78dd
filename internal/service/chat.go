package service

import (
	"context"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"github.com/castlemilk/finagent/internal/auth"
	"github.com/castlemilk/finagent/internal/profile"
	"github.com/castlemilk/finagent/internal/rag"
	"github.com/castlemilk/finagent/internal/search"
	"github.com/castlemilk/finagent/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxTrendDays        = 365
	defaultHistoryLimit = 20
	maxHistoryLimit     = 50
	maxDocumentResults  = 50
)

func (s *AgentService) GetProfile(ctx context.Context, req *connect.Request[GetProfileRequest]) (*connect.Response[GetProfileResponse], error) {
	summary, err := s.profile.Summary(ctx, s.now())
	if err != nil {
		return nil, toConnectError("build profile summary", err)
	}
	return connect.NewResponse(&GetProfileResponse{Summary: summary}), nil
}

func (s *AgentService) GetSpendingTrends(ctx context.Context, req *connect.Request[GetSpendingTrendsRequest]) (*connect.Response[GetSpendingTrendsResponse], error) {
	days := req.Msg.Days
	if days <= 0 {
		days = profile.DefaultTrendDays
	}
	if days > maxTrendDays {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("days must be at most %d", maxTrendDays))
	}
	trends, err := s.profile.SpendingTrends(ctx, days, s.now())
	if err != nil {
		return nil, toConnectError("compute spending trends", err)
	}
	return connect.NewResponse(&GetSpendingTrendsResponse{Trends: trends}), nil
}

// Chat answers a question from the finance profile and, unless disabled,
// excerpts retrieved from indexed documents. Each exchange is recorded.
func (s *AgentService) Chat(ctx context.Context, req *connect.Request[ChatRequest]) (*connect.Response[ChatResponse], error) {
	message := strings.TrimSpace(req.Msg.Message)
	if message == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("message is required"))
	}

	client, err := s.llmClient(ctx)
	if err != nil {
		return nil, toConnectError("configure llm", err)
	}

	financial, err := s.profile.ChatContext(ctx, s.now())
	if err != nil {
		return nil, toConnectError("build chat context", err)
	}

	var docContext string
	if req.Msg.UseRAG == nil || *req.Msg.UseRAG {
		docContext, err = s.vectors.ContextForQuery(ctx, message, s.opts.MaxContextTokens)
		if err != nil {
			// Retrieval is best effort; answer from the profile alone.
			s.logger.Warn("document retrieval failed", zap.Error(err))
			docContext = ""
		}
	}

	answer, err := client.ChatWithContext(ctx, message, financial, docContext)
	if err != nil {
		return nil, toConnectError("chat", err)
	}

	record := &store.ChatMessage{
		ID:          uuid.NewString(),
		Message:     message,
		Response:    answer,
		ContextUsed: docContext,
		Timestamp:   s.now().UTC(),
	}
	if err := s.store.CreateChatMessage(ctx, record); err != nil {
		s.logger.Warn("failed to record chat message", zap.Error(err))
	}

	return connect.NewResponse(&ChatResponse{
		Response:    answer,
		ContextUsed: docContext,
		MessageID:   record.ID,
		Timestamp:   record.Timestamp,
	}), nil
}

func (s *AgentService) GetChatHistory(ctx context.Context, req *connect.Request[GetChatHistoryRequest]) (*connect.Response[GetChatHistoryResponse], error) {
	limit := req.Msg.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	messages, err := s.store.ListChatMessages(ctx, limit)
	if err != nil {
		return nil, toConnectError("list chat messages", err)
	}
	return connect.NewResponse(&GetChatHistoryResponse{Messages: messages}), nil
}

// SearchTransactions searches ledger entries through the configured index.
func (s *AgentService) SearchTransactions(ctx context.Context, req *connect.Request[SearchTransactionsRequest]) (*connect.Response[SearchTransactionsResponse], error) {
	start, end, err := auth.ConvertDateRange(req.Msg.StartDate, req.Msg.EndDate)
	if err != nil {
		return nil, err
	}
	results, err := s.search.Search(ctx, search.Params{
		Query:     strings.TrimSpace(req.Msg.Query),
		Category:  req.Msg.Category,
		StartDate: start,
		EndDate:   end,
		Page:      req.Msg.Page,
		PageSize:  req.Msg.PageSize,
	})
	if err != nil {
		return nil, toConnectError("search transactions", err)
	}
	return connect.NewResponse(&SearchTransactionsResponse{Results: results}), nil
}

// SearchDocuments returns the document chunks most similar to the query.
func (s *AgentService) SearchDocuments(ctx context.Context, req *connect.Request[SearchDocumentsRequest]) (*connect.Response[SearchDocumentsResponse], error) {
	query := strings.TrimSpace(req.Msg.Query)
	if query == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("query is required"))
	}
	n := req.Msg.N
	if n <= 0 {
		n = s.opts.SearchResults
	}
	n = min(n, maxDocumentResults)

	results, err := s.vectors.Search(ctx, query, n)
	if err != nil {
		return nil, toConnectError("search documents", err)
	}
	if results == nil {
		results = []rag.SearchResult{}
	}
	return connect.NewResponse(&SearchDocumentsResponse{Results: results}), nil
}
