package service

import (
	"net/http"

	"connectrpc.com/connect"
)

// ServiceName is the fully-qualified name of the agent service.
const ServiceName = "finagent.v1.AgentService"

// Procedure paths, one per RPC.
const (
	GetSettingsProcedure        = "/" + ServiceName + "/GetSettings"
	UpdateSettingsProcedure     = "/" + ServiceName + "/UpdateSettings"
	UploadDocumentProcedure     = "/" + ServiceName + "/UploadDocument"
	ListDocumentsProcedure      = "/" + ServiceName + "/ListDocuments"
	GetDocumentProcedure        = "/" + ServiceName + "/GetDocument"
	DeleteDocumentProcedure     = "/" + ServiceName + "/DeleteDocument"
	GetIngestionJobProcedure    = "/" + ServiceName + "/GetIngestionJob"
	GetProfileProcedure         = "/" + ServiceName + "/GetProfile"
	GetSpendingTrendsProcedure  = "/" + ServiceName + "/GetSpendingTrends"
	ChatProcedure               = "/" + ServiceName + "/Chat"
	GetChatHistoryProcedure     = "/" + ServiceName + "/GetChatHistory"
	SearchTransactionsProcedure = "/" + ServiceName + "/SearchTransactions"
	SearchDocumentsProcedure    = "/" + ServiceName + "/SearchDocuments"
)

// NewHandler builds an HTTP handler serving every AgentService RPC. It
// returns the path prefix to mount the handler on.
func NewHandler(svc *AgentService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(GetSettingsProcedure, connect.NewUnaryHandler(GetSettingsProcedure, svc.GetSettings, opts...))
	mux.Handle(UpdateSettingsProcedure, connect.NewUnaryHandler(UpdateSettingsProcedure, svc.UpdateSettings, opts...))
	mux.Handle(UploadDocumentProcedure, connect.NewUnaryHandler(UploadDocumentProcedure, svc.UploadDocument, opts...))
	mux.Handle(ListDocumentsProcedure, connect.NewUnaryHandler(ListDocumentsProcedure, svc.ListDocuments, opts...))
	mux.Handle(GetDocumentProcedure, connect.NewUnaryHandler(GetDocumentProcedure, svc.GetDocument, opts...))
	mux.Handle(DeleteDocumentProcedure, connect.NewUnaryHandler(DeleteDocumentProcedure, svc.DeleteDocument, opts...))
	mux.Handle(GetIngestionJobProcedure, connect.NewUnaryHandler(GetIngestionJobProcedure, svc.GetIngestionJob, opts...))
	mux.Handle(GetProfileProcedure, connect.NewUnaryHandler(GetProfileProcedure, svc.GetProfile, opts...))
	mux.Handle(GetSpendingTrendsProcedure, connect.NewUnaryHandler(GetSpendingTrendsProcedure, svc.GetSpendingTrends, opts...))
	mux.Handle(ChatProcedure, connect.NewUnaryHandler(ChatProcedure, svc.Chat, opts...))
	mux.Handle(GetChatHistoryProcedure, connect.NewUnaryHandler(GetChatHistoryProcedure, svc.GetChatHistory, opts...))
	mux.Handle(SearchTransactionsProcedure, connect.NewUnaryHandler(SearchTransactionsProcedure, svc.SearchTransactions, opts...))
	mux.Handle(SearchDocumentsProcedure, connect.NewUnaryHandler(SearchDocumentsProcedure, svc.SearchDocuments, opts...))

	return "/" + ServiceName + "/", mux
}

// HealthHandler answers plain HTTP health checks.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
