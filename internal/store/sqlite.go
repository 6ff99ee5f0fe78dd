package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// OpenSQLite opens (or creates) the SQLite database at path. Use ":memory:"
// for a throwaway database. The handle is shared by the store and the vector
// index, so writes are serialized on one connection.
func OpenSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure db: %w", err)
	}
	return db, nil
}

// SQLiteStore implements the Store interface on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the schema if needed and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			llm_provider TEXT NOT NULL,
			llm_api_key TEXT NOT NULL DEFAULT '',
			llm_model TEXT NOT NULL DEFAULT '',
			embedding_provider TEXT NOT NULL DEFAULT '',
			auto_index INTEGER NOT NULL DEFAULT 1,
			check_interval INTEGER NOT NULL DEFAULT 60,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			blob_key TEXT NOT NULL DEFAULT '',
			document_type TEXT NOT NULL DEFAULT '',
			file_size INTEGER NOT NULL DEFAULT 0,
			page_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			processed INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL DEFAULT '',
			analysis TEXT,
			insights TEXT,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			entry_count INTEGER NOT NULL DEFAULT 0,
			uploaded_at TEXT NOT NULL,
			processed_at TEXT
		);

		CREATE TABLE IF NOT EXISTS financial_entries (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			subcategory TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL,
			date TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			source_document_id TEXT NOT NULL DEFAULT '',
			metadata TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			context_used TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_documents_uploaded ON documents(uploaded_at);
		CREATE INDEX IF NOT EXISTS idx_entries_category ON financial_entries(category);
		CREATE INDEX IF NOT EXISTS idx_entries_date ON financial_entries(date);
		CREATE INDEX IF NOT EXISTS idx_entries_document ON financial_entries(source_document_id);
		CREATE INDEX IF NOT EXISTS idx_chat_timestamp ON chat_messages(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Settings

func (s *SQLiteStore) GetSettings(ctx context.Context) (*Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT llm_provider, llm_api_key, llm_model, embedding_provider, auto_index, check_interval, updated_at
		FROM settings WHERE id = 1`)

	var st Settings
	var updated string
	err := row.Scan(&st.LLMProvider, &st.LLMAPIKey, &st.LLMModel, &st.EmbeddingProvider, &st.AutoIndex, &st.CheckInterval, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	if st.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse settings timestamp: %w", err)
	}
	return &st, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, settings *Settings) error {
	updated := settings.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, llm_provider, llm_api_key, llm_model, embedding_provider, auto_index, check_interval, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			llm_provider = excluded.llm_provider,
			llm_api_key = excluded.llm_api_key,
			llm_model = excluded.llm_model,
			embedding_provider = excluded.embedding_provider,
			auto_index = excluded.auto_index,
			check_interval = excluded.check_interval,
			updated_at = excluded.updated_at`,
		settings.LLMProvider, settings.LLMAPIKey, settings.LLMModel, settings.EmbeddingProvider,
		settings.AutoIndex, settings.CheckInterval, formatTime(updated))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Documents

const documentColumns = `id, filename, blob_key, document_type, file_size, page_count, status, processed,
	error, method, analysis, insights, chunk_count, entry_count, uploaded_at, processed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc                Document
		docType, status    string
		analysis, insights sql.NullString
		uploaded           string
		processedAt        sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.Filename, &doc.BlobKey, &docType, &doc.FileSize, &doc.PageCount, &status,
		&doc.Processed, &doc.Error, &doc.Method, &analysis, &insights, &doc.ChunkCount, &doc.EntryCount,
		&uploaded, &processedAt)
	if err != nil {
		return nil, err
	}
	doc.DocumentType = extraction.DocumentType(docType)
	doc.Status = DocumentStatus(status)

	if doc.UploadedAt, err = parseTime(uploaded); err != nil {
		return nil, fmt.Errorf("parse uploaded_at: %w", err)
	}
	if processedAt.Valid && processedAt.String != "" {
		t, err := parseTime(processedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse processed_at: %w", err)
		}
		doc.ProcessedAt = &t
	}
	if analysis.Valid && analysis.String != "" {
		var a extraction.DocumentAnalysis
		if err := json.Unmarshal([]byte(analysis.String), &a); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
		doc.Analysis = &a
	}
	if insights.Valid && insights.String != "" {
		if err := json.Unmarshal([]byte(insights.String), &doc.Insights); err != nil {
			return nil, fmt.Errorf("decode insights: %w", err)
		}
	}
	return &doc, nil
}

func documentArgs(doc *Document) ([]any, error) {
	var analysis, insights, processedAt sql.NullString
	if doc.Analysis != nil {
		b, err := json.Marshal(doc.Analysis)
		if err != nil {
			return nil, fmt.Errorf("encode analysis: %w", err)
		}
		analysis = sql.NullString{String: string(b), Valid: true}
	}
	if len(doc.Insights) > 0 {
		b, err := json.Marshal(doc.Insights)
		if err != nil {
			return nil, fmt.Errorf("encode insights: %w", err)
		}
		insights = sql.NullString{String: string(b), Valid: true}
	}
	if doc.ProcessedAt != nil {
		processedAt = sql.NullString{String: formatTime(*doc.ProcessedAt), Valid: true}
	}
	return []any{
		doc.Filename, doc.BlobKey, string(doc.DocumentType), doc.FileSize, doc.PageCount, string(doc.Status),
		doc.Processed, doc.Error, doc.Method, analysis, insights, doc.ChunkCount, doc.EntryCount,
		formatTime(doc.UploadedAt), processedAt,
	}, nil
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	args, err := documentArgs(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, append([]any{doc.ID}, args...)...)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) UpdateDocument(ctx context.Context, doc *Document) error {
	args, err := documentArgs(doc)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET filename = ?, blob_key = ?, document_type = ?, file_size = ?, page_count = ?,
			status = ?, processed = ?, error = ?, method = ?, analysis = ?, insights = ?, chunk_count = ?,
			entry_count = ?, uploaded_at = ?, processed_at = ?
		WHERE id = ?`, append(args, doc.ID)...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDocuments returns documents newest first. The page token holds the ID of
// the last document on the previous page.
func (s *SQLiteStore) ListDocuments(ctx context.Context, pageSize int32, pageToken string) ([]*Document, string, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []any
	if pageToken != "" {
		cursorID, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		var cursorUploaded string
		err = s.db.QueryRowContext(ctx, `SELECT uploaded_at FROM documents WHERE id = ?`, cursorID).Scan(&cursorUploaded)
		if errors.Is(err, sql.ErrNoRows) {
			return []*Document{}, "", nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("fetch cursor document: %w", err)
		}
		query += ` WHERE uploaded_at < ? OR (uploaded_at = ? AND id > ?)`
		args = append(args, cursorUploaded, cursorUploaded, cursorID)
	}
	query += ` ORDER BY uploaded_at DESC, id ASC LIMIT ?`
	args = append(args, int(pageSize)+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*Document, 0, pageSize)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, "", fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextPageToken string
	if len(docs) > int(pageSize) {
		docs = docs[:pageSize]
		nextPageToken = EncodePageToken(docs[pageSize-1].ID)
	}
	return docs, nextPageToken, nil
}

// Entries

func (s *SQLiteStore) CreateEntries(ctx context.Context, entries []*FinancialEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO financial_entries (id, category, subcategory, amount, date, description, source_document_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		var metadata sql.NullString
		if len(e.Metadata) > 0 {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata: %w", err)
			}
			metadata = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.Category, e.Subcategory, e.Amount.String(), formatTime(e.Date),
			e.Description, e.SourceDocumentID, metadata, formatTime(e.CreatedAt)); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}
	return tx.Commit()
}

// ListEntries pushes category, date and document filters into SQL. Sign and
// text filters run on the scanned rows.
func (s *SQLiteStore) ListEntries(ctx context.Context, filter EntryFilter) ([]*FinancialEntry, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Categories) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Categories)), ",")
		where = append(where, "category IN ("+placeholders+")")
		for _, c := range filter.Categories {
			args = append(args, c)
		}
	}
	if filter.Since != nil {
		where = append(where, "date >= ?")
		args = append(args, formatTime(*filter.Since))
	}
	if filter.Until != nil {
		where = append(where, "date <= ?")
		args = append(args, formatTime(*filter.Until))
	}
	if filter.DocumentID != "" {
		where = append(where, "source_document_id = ?")
		args = append(args, filter.DocumentID)
	}

	query := `SELECT id, category, subcategory, amount, date, description, source_document_id, metadata, created_at
		FROM financial_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, id ASC"
	if filter.Limit > 0 && filter.Sign == 0 && filter.Query == "" {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []*FinancialEntry
	for rows.Next() {
		var (
			e                     FinancialEntry
			amount, date, created string
			metadata              sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.Subcategory, &amount, &date, &e.Description,
			&e.SourceDocumentID, &metadata, &created); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("entry %s amount: %w", e.ID, err)
		}
		if e.Date, err = parseTime(date); err != nil {
			return nil, fmt.Errorf("entry %s date: %w", e.ID, err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("entry %s created_at: %w", e.ID, err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("entry %s metadata: %w", e.ID, err)
			}
		}
		if filter.Match(&e) {
			out = append(out, &e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *SQLiteStore) DeleteEntriesByDocument(ctx context.Context, documentID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM financial_entries WHERE source_document_id = ?`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Chat

func (s *SQLiteStore) CreateChatMessage(ctx context.Context, msg *ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, message, response, context_used, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.Message, msg.Response, msg.ContextUsed, formatTime(msg.Timestamp))
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListChatMessages(ctx context.Context, limit int) ([]*ChatMessage, error) {
	query := `SELECT id, message, response, context_used, timestamp FROM chat_messages ORDER BY timestamp DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var out []*ChatMessage
	for rows.Next() {
		var m ChatMessage
		var ts string
		if err := rows.Scan(&m.ID, &m.Message, &m.Response, &m.ContextUsed, &ts); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if m.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("chat message %s timestamp: %w", m.ID, err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
