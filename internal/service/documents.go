package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/castlemilk/finagent/internal/auth"
	"github.com/castlemilk/finagent/internal/blob"
	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/castlemilk/finagent/internal/profile"
	"github.com/castlemilk/finagent/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var pdfMagic = []byte("%PDF")

// UploadDocument stores a PDF and ingests it. Large documents, or uploads
// that ask for it, are ingested in the background and tracked as a job.
func (s *AgentService) UploadDocument(ctx context.Context, req *connect.Request[UploadDocumentRequest]) (*connect.Response[UploadDocumentResponse], error) {
	msg := req.Msg
	filename := filepath.Base(strings.TrimSpace(msg.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("filename is required"))
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("only PDF files are supported, got %q", filename))
	}
	if len(msg.Data) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("document data is empty"))
	}
	if int64(len(msg.Data)) > s.opts.MaxUploadBytes {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("document is %d bytes, the limit is %d", len(msg.Data), s.opts.MaxUploadBytes))
	}
	if !bytes.HasPrefix(msg.Data, pdfMagic) {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s is not a PDF", filename))
	}

	doc := &store.Document{
		ID:         uuid.NewString(),
		Filename:   filename,
		FileSize:   int64(len(msg.Data)),
		PageCount:  extraction.CountPages(msg.Data),
		Status:     store.DocumentPending,
		UploadedAt: s.now().UTC(),
	}
	if msg.DocumentType != "" {
		doc.DocumentType = extraction.ParseDocumentType(msg.DocumentType)
	}
	doc.BlobKey = blob.DocumentKey(doc.ID, filename)

	if err := s.blobs.Put(ctx, doc.BlobKey, msg.Data, "application/pdf"); err != nil {
		return nil, toConnectError("store upload", err)
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		_ = s.blobs.Delete(ctx, doc.BlobKey)
		return nil, toConnectError("create document", err)
	}

	log := s.logger.With(zap.String("document_id", doc.ID), zap.String("filename", filename))

	async := msg.Async || (s.opts.AsyncPageThreshold > 0 && doc.PageCount > s.opts.AsyncPageThreshold)
	if async {
		job := &extraction.Job{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Filename:   filename,
			Status:     extraction.JobPending,
			PageCount:  doc.PageCount,
		}
		if err := s.jobs.Create(job); err != nil {
			return nil, toConnectError("create job", err)
		}
		log.Info("queued background ingestion", zap.String("job_id", job.ID), zap.Int("pages", doc.PageCount))

		// The goroutine owns its own copy; doc is serialized into the response.
		work := *doc
		s.wg.Add(1)
		go s.runJob(job.ID, &work, msg.Data)

		return connect.NewResponse(&UploadDocumentResponse{
			Document: doc,
			JobID:    job.ID,
			Status:   extraction.JobPending,
		}), nil
	}

	counts, err := s.Ingest(ctx, doc, msg.Data)
	if err != nil {
		return nil, toConnectError("process document", err)
	}
	return connect.NewResponse(&UploadDocumentResponse{
		Document: doc,
		Status:   extraction.JobCompleted,
		Imported: counts,
	}), nil
}

func (s *AgentService) runJob(jobID string, doc *store.Document, data []byte) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.IngestTimeout)
	defer cancel()

	_ = s.jobs.Update(jobID, func(j *extraction.Job) { j.Status = extraction.JobProcessing })
	_, err := s.Ingest(ctx, doc, data)
	if err != nil {
		s.logger.Warn("background ingestion failed", zap.String("job_id", jobID), zap.Error(err))
	}
	_ = s.jobs.Finish(jobID, err)
}

// Ingest runs the pipeline over an already stored document: extraction,
// analysis, ledger import, search indexing and retrieval indexing. The
// document row is updated with the outcome either way.
func (s *AgentService) Ingest(ctx context.Context, doc *store.Document, data []byte) (profile.ImportCounts, error) {
	log := s.logger.With(zap.String("document_id", doc.ID))

	doc.Status = store.DocumentProcessing
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return profile.ImportCounts{}, err
	}

	settings, err := s.loadSettings(ctx)
	if err != nil {
		return profile.ImportCounts{}, s.failDocument(ctx, doc, err)
	}

	var (
		analyzer extraction.Analyzer
		reader   extraction.DocumentReader
	)
	client, err := s.clientFor(ctx, settings)
	switch {
	case err == nil:
		analyzer = client
		reader = client.DocumentReader()
	case extraction.HasCode(err, extraction.ErrLLMNotConfigured):
		log.Info("no llm configured, using rule-based extraction")
	default:
		log.Warn("llm client unavailable, using rule-based extraction", zap.Error(err))
	}

	processor := extraction.NewProcessor(s.logger, extraction.NewTextExtractor(s.logger, reader))
	result, err := processor.ProcessBytes(ctx, doc.Filename, data, analyzer)
	if err != nil {
		return profile.ImportCounts{}, s.failDocument(ctx, doc, err)
	}
	if doc.DocumentType != "" && doc.DocumentType != extraction.DocumentTypeOther {
		result.DocumentType = doc.DocumentType
	}

	counts, err := s.profile.ProcessDocumentAnalysis(ctx, doc.ID, result)
	if err != nil {
		return profile.ImportCounts{}, s.failDocument(ctx, doc, err)
	}

	if counts.Total() > 0 {
		entries, err := s.store.ListEntries(ctx, store.EntryFilter{DocumentID: doc.ID})
		if err == nil {
			err = s.search.IndexEntries(ctx, entries)
		}
		if err != nil {
			log.Warn("search indexing failed", zap.Error(err))
		}
	}

	if settings.AutoIndex {
		ids, err := s.vectors.AddDocument(ctx, doc.ID, result.Text, map[string]string{
			"filename":      doc.Filename,
			"document_type": string(result.DocumentType),
		})
		if err != nil {
			log.Warn("retrieval indexing failed", zap.Error(err))
		} else {
			doc.ChunkCount = len(ids)
		}
	}

	now := s.now().UTC()
	doc.DocumentType = result.DocumentType
	doc.PageCount = result.PageCount
	doc.Method = result.Method
	doc.Analysis = result.Analysis
	doc.Insights = extraction.Insights(result)
	doc.EntryCount = counts.Total()
	doc.Status = store.DocumentProcessed
	doc.Processed = true
	doc.Error = result.AnalysisError
	doc.ProcessedAt = &now
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return counts, err
	}

	log.Info("document ingested",
		zap.String("document_type", string(doc.DocumentType)),
		zap.String("method", doc.Method),
		zap.Int("entries", doc.EntryCount),
		zap.Int("chunks", doc.ChunkCount))
	return counts, nil
}

// failDocument marks doc failed and returns cause.
func (s *AgentService) failDocument(ctx context.Context, doc *store.Document, cause error) error {
	doc.Status = store.DocumentFailed
	doc.Error = cause.Error()
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		s.logger.Warn("failed to record document failure", zap.String("document_id", doc.ID), zap.Error(err))
	}
	return cause
}

func (s *AgentService) ListDocuments(ctx context.Context, req *connect.Request[ListDocumentsRequest]) (*connect.Response[ListDocumentsResponse], error) {
	docs, next, err := s.store.ListDocuments(ctx, auth.NormalizePageSize(req.Msg.PageSize), req.Msg.PageToken)
	if err != nil {
		return nil, toConnectError("list documents", err)
	}
	return connect.NewResponse(&ListDocumentsResponse{Documents: docs, NextPageToken: next}), nil
}

// GetDocument returns a document with its analysis, insights and retrieval
// index state.
func (s *AgentService) GetDocument(ctx context.Context, req *connect.Request[GetDocumentRequest]) (*connect.Response[GetDocumentResponse], error) {
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("id is required"))
	}
	doc, err := s.store.GetDocument(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError("get document", err)
	}
	info, err := s.vectors.DocumentInfo(ctx, doc.ID)
	if err != nil {
		return nil, toConnectError("get index info", err)
	}
	return connect.NewResponse(&GetDocumentResponse{Document: doc, Index: info}), nil
}

// DeleteDocument removes a document and everything derived from it.
func (s *AgentService) DeleteDocument(ctx context.Context, req *connect.Request[DeleteDocumentRequest]) (*connect.Response[DeleteDocumentResponse], error) {
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("id is required"))
	}
	doc, err := s.store.GetDocument(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError("get document", err)
	}
	log := s.logger.With(zap.String("document_id", doc.ID))

	chunks, err := s.vectors.DeleteDocument(ctx, doc.ID)
	if err != nil {
		return nil, toConnectError("delete chunks", err)
	}
	removed, err := s.profile.DeleteDocumentEntries(ctx, doc.ID)
	if err != nil {
		return nil, toConnectError("delete entries", err)
	}
	if err := s.search.DeleteDocumentEntries(ctx, doc.ID); err != nil {
		log.Warn("failed to remove document from search index", zap.Error(err))
	}
	if doc.BlobKey != "" {
		if err := s.blobs.Delete(ctx, doc.BlobKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
			log.Warn("failed to delete upload", zap.Error(err))
		}
	}
	if err := s.store.DeleteDocument(ctx, doc.ID); err != nil {
		return nil, toConnectError("delete document", err)
	}

	log.Info("document deleted", zap.Int("entries_removed", removed), zap.Bool("chunks_removed", chunks))
	return connect.NewResponse(&DeleteDocumentResponse{EntriesRemoved: removed, ChunksRemoved: chunks}), nil
}

func (s *AgentService) GetIngestionJob(ctx context.Context, req *connect.Request[GetIngestionJobRequest]) (*connect.Response[GetIngestionJobResponse], error) {
	if req.Msg.JobID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("job_id is required"))
	}
	job, err := s.jobs.Get(req.Msg.JobID)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	return connect.NewResponse(&GetIngestionJobResponse{Job: job}), nil
}

// toConnectError maps domain errors onto connect codes.
func toConnectError(operation string, err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return connect.NewError(connect.CodeCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, blob.ErrNotFound) {
		return connect.NewError(connect.CodeNotFound, auth.WrapStoreError(operation, err))
	}

	var extErr *extraction.ExtractionError
	if errors.As(err, &extErr) {
		switch extErr.Code {
		case extraction.ErrFileNotFound:
			return connect.NewError(connect.CodeNotFound, err)
		case extraction.ErrUnsupportedFormat, extraction.ErrInvalidDocument, extraction.ErrTextExtractionFailed:
			return connect.NewError(connect.CodeInvalidArgument, err)
		case extraction.ErrLLMNotConfigured:
			return connect.NewError(connect.CodeFailedPrecondition, err)
		case extraction.ErrLLMRateLimited:
			return connect.NewError(connect.CodeResourceExhausted, err)
		case extraction.ErrLLMUnavailable:
			return connect.NewError(connect.CodeUnavailable, err)
		}
	}
	return connect.NewError(connect.CodeInternal, auth.WrapStoreError(operation, err))
}

// pollInterval is how often WaitForJob checks job status.
const pollInterval = 200 * time.Millisecond

// WaitForJob blocks until the job completes or fails, or ctx ends.
func (s *AgentService) WaitForJob(ctx context.Context, jobID string) (*extraction.Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		job, err := s.jobs.Get(jobID)
		if err != nil {
			return nil, err
		}
		if job.Status == extraction.JobCompleted || job.Status == extraction.JobFailed {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
