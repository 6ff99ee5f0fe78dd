package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store interface with in-memory storage
type MemoryStore struct {
	mu sync.RWMutex

	settings  *Settings
	documents map[string]*Document
	entries   map[string]*FinancialEntry
	messages  []*ChatMessage
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*Document),
		entries:   make(map[string]*FinancialEntry),
	}
}

func (m *MemoryStore) GetSettings(ctx context.Context) (*Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return nil, ErrNotFound
	}
	s := *m.settings
	return &s, nil
}

func (m *MemoryStore) SaveSettings(ctx context.Context, settings *Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *settings
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	m.settings = &s
	return nil
}

// Document operations

func (m *MemoryStore) CreateDocument(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	d := *doc
	m.documents[doc.ID] = &d
	return nil
}

func (m *MemoryStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	d := *doc
	return &d, nil
}

func (m *MemoryStore) UpdateDocument(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[doc.ID]; !ok {
		return ErrNotFound
	}
	d := *doc
	m.documents[doc.ID] = &d
	return nil
}

func (m *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[id]; !ok {
		return ErrNotFound
	}
	delete(m.documents, id)
	return nil
}

// ListDocuments returns documents newest first.
func (m *MemoryStore) ListDocuments(ctx context.Context, pageSize int32, pageToken string) ([]*Document, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]*Document, 0, len(m.documents))
	for _, d := range m.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.After(docs[j].UploadedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}

	paginatedIDs, nextToken := paginateOrdered(ids, pageSize, pageToken)
	result := make([]*Document, 0, len(paginatedIDs))
	for _, id := range paginatedIDs {
		d := *m.documents[id]
		result = append(result, &d)
	}
	return result, nextToken, nil
}

// Entry operations

func (m *MemoryStore) CreateEntries(ctx context.Context, entries []*FinancialEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		copied := *e
		m.entries[e.ID] = &copied
	}
	return nil
}

func (m *MemoryStore) ListEntries(ctx context.Context, filter EntryFilter) ([]*FinancialEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*FinancialEntry
	for _, e := range m.entries {
		if filter.Match(e) {
			copied := *e
			result = append(result, &copied)
		}
	}
	sortEntries(result)
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MemoryStore) DeleteEntriesByDocument(ctx context.Context, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.entries {
		if e.SourceDocumentID == documentID {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

// Chat operations

func (m *MemoryStore) CreateChatMessage(ctx context.Context, msg *ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	copied := *msg
	m.messages = append(m.messages, &copied)
	return nil
}

// ListChatMessages returns up to limit messages, newest first.
func (m *MemoryStore) ListChatMessages(ctx context.Context, limit int) ([]*ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*ChatMessage, 0, len(m.messages))
	for i := len(m.messages) - 1; i >= 0; i-- {
		copied := *m.messages[i]
		result = append(result, &copied)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) Close() error { return nil }

// sortEntries orders entries newest first, then by ID for stability.
func sortEntries(entries []*FinancialEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].ID < entries[j].ID
	})
}
