package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	settingsCollection = "settings"
	settingsDocID      = "default"
	documentCollection = "documents"
	entryCollection    = "financialEntries"
	chatCollection     = "chatMessages"

	// Firestore caps "in" filters at 30 values.
	maxInValues = 30
)

// FirestoreStore implements the Store interface using Firestore
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// Records mirror the domain types with Firestore-friendly field types.
// Amounts are stored as strings to keep exact decimal values.

type settingsRecord struct {
	LLMProvider       string    `firestore:"llmProvider"`
	LLMAPIKey         string    `firestore:"llmApiKey"`
	LLMModel          string    `firestore:"llmModel"`
	EmbeddingProvider string    `firestore:"embeddingProvider"`
	AutoIndex         bool      `firestore:"autoIndex"`
	CheckInterval     int       `firestore:"checkInterval"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

type documentRecord struct {
	Filename     string     `firestore:"filename"`
	BlobKey      string     `firestore:"blobKey"`
	DocumentType string     `firestore:"documentType"`
	FileSize     int64      `firestore:"fileSize"`
	PageCount    int        `firestore:"pageCount"`
	Status       string     `firestore:"status"`
	Processed    bool       `firestore:"processed"`
	Error        string     `firestore:"error"`
	Method       string     `firestore:"method"`
	AnalysisJSON string     `firestore:"analysisJson"`
	Insights     []string   `firestore:"insights"`
	ChunkCount   int        `firestore:"chunkCount"`
	EntryCount   int        `firestore:"entryCount"`
	UploadedAt   time.Time  `firestore:"uploadedAt"`
	ProcessedAt  *time.Time `firestore:"processedAt"`
}

type entryRecord struct {
	Category         string            `firestore:"category"`
	Subcategory      string            `firestore:"subcategory"`
	Amount           string            `firestore:"amount"`
	Date             time.Time         `firestore:"date"`
	Description      string            `firestore:"description"`
	SourceDocumentID string            `firestore:"sourceDocumentId"`
	Metadata         map[string]string `firestore:"metadata"`
	CreatedAt        time.Time         `firestore:"createdAt"`
}

type chatRecord struct {
	Message     string    `firestore:"message"`
	Response    string    `firestore:"response"`
	ContextUsed string    `firestore:"contextUsed"`
	Timestamp   time.Time `firestore:"timestamp"`
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// Settings

func (s *FirestoreStore) GetSettings(ctx context.Context) (*Settings, error) {
	doc, err := s.client.Collection(settingsCollection).Doc(settingsDocID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	var rec settingsRecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return &Settings{
		LLMProvider:       rec.LLMProvider,
		LLMAPIKey:         rec.LLMAPIKey,
		LLMModel:          rec.LLMModel,
		EmbeddingProvider: rec.EmbeddingProvider,
		AutoIndex:         rec.AutoIndex,
		CheckInterval:     rec.CheckInterval,
		UpdatedAt:         rec.UpdatedAt,
	}, nil
}

func (s *FirestoreStore) SaveSettings(ctx context.Context, settings *Settings) error {
	updated := settings.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	rec := settingsRecord{
		LLMProvider:       settings.LLMProvider,
		LLMAPIKey:         settings.LLMAPIKey,
		LLMModel:          settings.LLMModel,
		EmbeddingProvider: settings.EmbeddingProvider,
		AutoIndex:         settings.AutoIndex,
		CheckInterval:     settings.CheckInterval,
		UpdatedAt:         updated,
	}
	_, err := s.client.Collection(settingsCollection).Doc(settingsDocID).Set(ctx, rec)
	return err
}

// Documents

func toDocumentRecord(doc *Document) (*documentRecord, error) {
	rec := &documentRecord{
		Filename:     doc.Filename,
		BlobKey:      doc.BlobKey,
		DocumentType: string(doc.DocumentType),
		FileSize:     doc.FileSize,
		PageCount:    doc.PageCount,
		Status:       string(doc.Status),
		Processed:    doc.Processed,
		Error:        doc.Error,
		Method:       doc.Method,
		Insights:     doc.Insights,
		ChunkCount:   doc.ChunkCount,
		EntryCount:   doc.EntryCount,
		UploadedAt:   doc.UploadedAt,
		ProcessedAt:  doc.ProcessedAt,
	}
	if doc.Analysis != nil {
		b, err := json.Marshal(doc.Analysis)
		if err != nil {
			return nil, fmt.Errorf("failed to encode analysis: %w", err)
		}
		rec.AnalysisJSON = string(b)
	}
	return rec, nil
}

func fromDocumentSnapshot(snap *firestore.DocumentSnapshot) (*Document, error) {
	var rec documentRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	doc := &Document{
		ID:           snap.Ref.ID,
		Filename:     rec.Filename,
		BlobKey:      rec.BlobKey,
		DocumentType: extraction.DocumentType(rec.DocumentType),
		FileSize:     rec.FileSize,
		PageCount:    rec.PageCount,
		Status:       DocumentStatus(rec.Status),
		Processed:    rec.Processed,
		Error:        rec.Error,
		Method:       rec.Method,
		Insights:     rec.Insights,
		ChunkCount:   rec.ChunkCount,
		EntryCount:   rec.EntryCount,
		UploadedAt:   rec.UploadedAt,
		ProcessedAt:  rec.ProcessedAt,
	}
	if rec.AnalysisJSON != "" {
		var analysis extraction.DocumentAnalysis
		if err := json.Unmarshal([]byte(rec.AnalysisJSON), &analysis); err != nil {
			return nil, fmt.Errorf("failed to decode analysis: %w", err)
		}
		doc.Analysis = &analysis
	}
	return doc, nil
}

func (s *FirestoreStore) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	rec, err := toDocumentRecord(doc)
	if err != nil {
		return err
	}
	_, err = s.client.Collection(documentCollection).Doc(doc.ID).Create(ctx, rec)
	return err
}

func (s *FirestoreStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	snap, err := s.client.Collection(documentCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return fromDocumentSnapshot(snap)
}

func (s *FirestoreStore) UpdateDocument(ctx context.Context, doc *Document) error {
	ref := s.client.Collection(documentCollection).Doc(doc.ID)
	if _, err := ref.Get(ctx); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	rec, err := toDocumentRecord(doc)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, rec)
	return err
}

func (s *FirestoreStore) DeleteDocument(ctx context.Context, id string) error {
	ref := s.client.Collection(documentCollection).Doc(id)
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// ListDocuments returns documents newest first using a (uploadedAt, id) cursor.
func (s *FirestoreStore) ListDocuments(ctx context.Context, pageSize int32, pageToken string) ([]*Document, string, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	query := s.client.Collection(documentCollection).
		OrderBy("uploadedAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc)

	if pageToken != "" {
		docID, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		cursorDoc, err := s.client.Collection(documentCollection).Doc(docID).Get(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch cursor document: %w", err)
		}
		query = query.StartAfter(cursorDoc.Data()["uploadedAt"], docID)
	}

	snaps, err := query.Limit(int(pageSize) + 1).Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list documents: %w", err)
	}

	var nextPageToken string
	if len(snaps) > int(pageSize) {
		snaps = snaps[:pageSize]
		nextPageToken = EncodePageToken(snaps[pageSize-1].Ref.ID)
	}

	results := make([]*Document, 0, len(snaps))
	for _, snap := range snaps {
		doc, err := fromDocumentSnapshot(snap)
		if err != nil {
			return nil, "", err
		}
		results = append(results, doc)
	}
	return results, nextPageToken, nil
}

// Entries

func (s *FirestoreStore) CreateEntries(ctx context.Context, entries []*FinancialEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now()
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		rec := entryRecord{
			Category:         e.Category,
			Subcategory:      e.Subcategory,
			Amount:           e.Amount.String(),
			Date:             e.Date,
			Description:      e.Description,
			SourceDocumentID: e.SourceDocumentID,
			Metadata:         e.Metadata,
			CreatedAt:        e.CreatedAt,
		}
		job, err := bw.Set(s.client.Collection(entryCollection).Doc(e.ID), rec)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue entry: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func fromEntrySnapshot(snap *firestore.DocumentSnapshot) (*FinancialEntry, error) {
	var rec entryRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to parse entry: %w", err)
	}
	amount, err := decimal.NewFromString(rec.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount on entry %s: %w", snap.Ref.ID, err)
	}
	return &FinancialEntry{
		ID:               snap.Ref.ID,
		Category:         rec.Category,
		Subcategory:      rec.Subcategory,
		Amount:           amount,
		Date:             rec.Date,
		Description:      rec.Description,
		SourceDocumentID: rec.SourceDocumentID,
		Metadata:         rec.Metadata,
		CreatedAt:        rec.CreatedAt,
	}, nil
}

// ListEntries pushes category, date and document filters to Firestore.
// Sign and text filters are applied on the returned rows.
func (s *FirestoreStore) ListEntries(ctx context.Context, filter EntryFilter) ([]*FinancialEntry, error) {
	query := s.client.Collection(entryCollection).Query

	if len(filter.Categories) > 0 && len(filter.Categories) <= maxInValues {
		query = query.Where("category", "in", filter.Categories)
	}
	if filter.DocumentID != "" {
		query = query.Where("sourceDocumentId", "==", filter.DocumentID)
	}
	if filter.Since != nil {
		query = query.Where("date", ">=", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("date", "<=", *filter.Until)
	}
	query = query.OrderBy("date", firestore.Desc)

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	results := make([]*FinancialEntry, 0, len(snaps))
	for _, snap := range snaps {
		e, err := fromEntrySnapshot(snap)
		if err != nil {
			return nil, err
		}
		if filter.Match(e) {
			results = append(results, e)
		}
	}
	sortEntries(results)
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

func (s *FirestoreStore) DeleteEntriesByDocument(ctx context.Context, documentID string) (int, error) {
	snaps, err := s.client.Collection(entryCollection).
		Where("sourceDocumentId", "==", documentID).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to find entries: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(snaps))
	for _, snap := range snaps {
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("failed to queue delete: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// Chat

func (s *FirestoreStore) CreateChatMessage(ctx context.Context, msg *ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	rec := chatRecord{
		Message:     msg.Message,
		Response:    msg.Response,
		ContextUsed: msg.ContextUsed,
		Timestamp:   msg.Timestamp,
	}
	_, err := s.client.Collection(chatCollection).Doc(msg.ID).Set(ctx, rec)
	return err
}

func (s *FirestoreStore) ListChatMessages(ctx context.Context, limit int) ([]*ChatMessage, error) {
	query := s.client.Collection(chatCollection).OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}

	results := make([]*ChatMessage, 0, len(snaps))
	for _, snap := range snaps {
		var rec chatRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to parse chat message: %w", err)
		}
		results = append(results, &ChatMessage{
			ID:          snap.Ref.ID,
			Message:     rec.Message,
			Response:    rec.Response,
			ContextUsed: rec.ContextUsed,
			Timestamp:   rec.Timestamp,
		})
	}
	return results, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
