package rag

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	DefaultSearchResults    = 5
	DefaultContextResults   = 10
	DefaultMaxContextTokens = 2000
)

// SearchResult is one retrieved chunk.
type SearchResult struct {
	ID             string            `json:"id"`
	DocumentID     string            `json:"document_id"`
	Document       string            `json:"document"`
	Metadata       map[string]string `json:"metadata"`
	Distance       float64           `json:"distance"`
	RelevanceScore float64           `json:"relevance_score"`
}

// DocumentInfo describes the chunks indexed for one document.
type DocumentInfo struct {
	DocumentID string            `json:"document_id"`
	Exists     bool              `json:"exists"`
	ChunkCount int               `json:"chunk_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type chunk struct {
	id         string
	documentID string
	index      int
	text       string
	metadata   map[string]string
	vector     []float32 // normalized
}

// VectorStore indexes document chunks for similarity search. Vectors are
// persisted as SQLite BLOBs and searched in memory; a nil db keeps
// everything in memory.
type VectorStore struct {
	db       *sql.DB
	embedder Embedder
	logger   *zap.Logger

	chunkSize    int
	chunkOverlap int

	mu     sync.RWMutex
	chunks map[string]*chunk
}

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithChunking sets the chunk size and overlap in characters.
func WithChunking(size, overlap int) Option {
	return func(vs *VectorStore) {
		if size > 0 {
			vs.chunkSize = size
		}
		if overlap >= 0 {
			vs.chunkOverlap = overlap
		}
	}
}

// NewVectorStore creates the chunk table if needed and loads existing
// vectors into memory.
func NewVectorStore(db *sql.DB, embedder Embedder, logger *zap.Logger, opts ...Option) (*VectorStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("vector store requires an embedder")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	vs := &VectorStore{
		db:           db,
		embedder:     embedder,
		logger:       logger.Named("rag"),
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		chunks:       make(map[string]*chunk),
	}
	for _, opt := range opts {
		opt(vs)
	}
	if db == nil {
		return vs, nil
	}
	if err := vs.migrate(); err != nil {
		return nil, fmt.Errorf("vecstore migrate: %w", err)
	}
	if err := vs.loadAll(); err != nil {
		return nil, fmt.Errorf("vecstore load: %w", err)
	}
	vs.logger.Info("vector store loaded",
		zap.Int("chunks", len(vs.chunks)),
		zap.String("embedder", embedder.Name()))
	return vs, nil
}

func (vs *VectorStore) migrate() error {
	_, err := vs.db.Exec(`
		CREATE TABLE IF NOT EXISTS rag_chunks (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content     TEXT NOT NULL,
			metadata    TEXT NOT NULL DEFAULT '{}',
			embedding   BLOB NOT NULL,
			dimensions  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_rag_chunks_document ON rag_chunks(document_id);
	`)
	return err
}

func (vs *VectorStore) loadAll() error {
	rows, err := vs.db.Query("SELECT id, document_id, chunk_index, content, metadata, embedding, dimensions FROM rag_chunks")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c        chunk
			metaJSON string
			blob     []byte
			dims     int
		)
		if err := rows.Scan(&c.id, &c.documentID, &c.index, &c.text, &metaJSON, &blob, &dims); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(metaJSON), &c.metadata); err != nil {
			return fmt.Errorf("chunk %s metadata: %w", c.id, err)
		}
		c.vector = blobToFloat32(blob, dims)
		vs.chunks[c.id] = &c
	}
	return rows.Err()
}

// AddDocument chunks and embeds text, replacing any chunks previously
// stored for docID. It returns the new chunk IDs in order.
func (vs *VectorStore) AddDocument(ctx context.Context, docID, text string, metadata map[string]string) ([]string, error) {
	if docID == "" {
		return nil, fmt.Errorf("document id is required")
	}
	texts := ChunkText(text, vs.chunkSize, vs.chunkOverlap)

	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = vs.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed document %s: %w", docID, err)
		}
	}

	added := make([]*chunk, len(texts))
	ids := make([]string, len(texts))
	for i, t := range texts {
		meta := make(map[string]string, len(metadata)+3)
		for k, v := range metadata {
			meta[k] = v
		}
		meta["document_id"] = docID
		meta["chunk_index"] = strconv.Itoa(i)
		meta["total_chunks"] = strconv.Itoa(len(texts))

		ids[i] = fmt.Sprintf("%s_chunk_%d", docID, i)
		added[i] = &chunk{
			id:         ids[i],
			documentID: docID,
			index:      i,
			text:       t,
			metadata:   meta,
			vector:     normalize(vectors[i]),
		}
	}

	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.db != nil {
		if err := vs.replaceRows(ctx, docID, added); err != nil {
			return nil, fmt.Errorf("store chunks for %s: %w", docID, err)
		}
	}
	vs.dropLocked(docID)
	for _, c := range added {
		vs.chunks[c.id] = c
	}

	vs.logger.Debug("document indexed", zap.String("document_id", docID), zap.Int("chunks", len(added)))
	return ids, nil
}

func (vs *VectorStore) replaceRows(ctx context.Context, docID string, chunks []*chunk) error {
	tx, err := vs.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM rag_chunks WHERE document_id = ?", docID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rag_chunks (id, document_id, chunk_index, content, metadata, embedding, dimensions)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := json.Marshal(c.metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.id, c.documentID, c.index, c.text, string(meta), float32ToBlob(c.vector), len(c.vector)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// dropLocked removes docID's chunks from memory. Callers hold mu.
func (vs *VectorStore) dropLocked(docID string) int {
	n := 0
	for id, c := range vs.chunks {
		if c.documentID == docID {
			delete(vs.chunks, id)
			n++
		}
	}
	return n
}

// Search returns the n chunks most similar to query, most relevant first.
func (vs *VectorStore) Search(ctx context.Context, query string, n int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if n <= 0 {
		n = DefaultSearchResults
	}
	qvec, err := vs.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	qvec = normalize(qvec)

	vs.mu.RLock()
	h := &minHeap{}
	skipped := 0
	for _, c := range vs.chunks {
		if len(c.vector) != len(qvec) {
			skipped++
			continue
		}
		score := dotProduct(qvec, c.vector)
		if h.Len() < n {
			heap.Push(h, scored{chunk: c, score: score})
		} else if better(score, c.id, (*h)[0]) {
			(*h)[0] = scored{chunk: c, score: score}
			heap.Fix(h, 0)
		}
	}
	vs.mu.RUnlock()

	if skipped > 0 {
		vs.logger.Warn("skipped chunks embedded with different dimensions",
			zap.Int("skipped", skipped), zap.Int("query_dims", len(qvec)))
	}

	results := make([]SearchResult, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		s := heap.Pop(h).(scored)
		results[i] = SearchResult{
			ID:             s.chunk.id,
			DocumentID:     s.chunk.documentID,
			Document:       s.chunk.text,
			Metadata:       copyMeta(s.chunk.metadata),
			Distance:       1 - s.score,
			RelevanceScore: s.score,
		}
	}
	return results, nil
}

// ContextForQuery formats the most relevant chunks for a prompt, stopping at
// the first chunk that would exceed maxTokens.
func (vs *VectorStore) ContextForQuery(ctx context.Context, query string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	results, err := vs.Search(ctx, query, DefaultContextResults)
	if err != nil {
		return "", err
	}

	var parts []string
	used := 0
	for _, r := range results {
		tokens := estimateTokens(r.Document)
		if used+tokens > maxTokens {
			break
		}
		parts = append(parts, fmt.Sprintf("[Relevance: %.2f] %s", r.RelevanceScore, r.Document))
		used += tokens
	}
	return strings.Join(parts, "\n\n"), nil
}

// DeleteDocument removes all chunks for docID and reports whether any existed.
func (vs *VectorStore) DeleteDocument(ctx context.Context, docID string) (bool, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.db != nil {
		if _, err := vs.db.ExecContext(ctx, "DELETE FROM rag_chunks WHERE document_id = ?", docID); err != nil {
			return false, fmt.Errorf("delete chunks for %s: %w", docID, err)
		}
	}
	return vs.dropLocked(docID) > 0, nil
}

// DocumentInfo reports whether docID is indexed, with its first chunk's metadata.
func (vs *VectorStore) DocumentInfo(ctx context.Context, docID string) (DocumentInfo, error) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	info := DocumentInfo{DocumentID: docID}
	var first *chunk
	for _, c := range vs.chunks {
		if c.documentID != docID {
			continue
		}
		info.ChunkCount++
		if first == nil || c.index < first.index {
			first = c
		}
	}
	if first != nil {
		info.Exists = true
		info.Metadata = copyMeta(first.metadata)
	}
	return info, nil
}

// ListDocuments groups indexed chunks by document, ordered by document ID.
func (vs *VectorStore) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	vs.mu.RLock()
	byDoc := make(map[string]*DocumentInfo)
	for _, c := range vs.chunks {
		info, ok := byDoc[c.documentID]
		if !ok {
			info = &DocumentInfo{DocumentID: c.documentID, Exists: true}
			byDoc[c.documentID] = info
		}
		info.ChunkCount++
		if c.index == 0 {
			info.Metadata = copyMeta(c.metadata)
		}
	}
	vs.mu.RUnlock()

	out := make([]DocumentInfo, 0, len(byDoc))
	for _, info := range byDoc {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

// Count returns the number of indexed chunks.
func (vs *VectorStore) Count() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.chunks)
}

// Reset removes every chunk.
func (vs *VectorStore) Reset(ctx context.Context) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.db != nil {
		if _, err := vs.db.ExecContext(ctx, "DELETE FROM rag_chunks"); err != nil {
			return fmt.Errorf("reset chunks: %w", err)
		}
	}
	vs.chunks = make(map[string]*chunk)
	vs.logger.Info("vector store reset")
	return nil
}

// Embedder returns the embedder used for documents and queries.
func (vs *VectorStore) Embedder() Embedder { return vs.embedder }

func copyMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type scored struct {
	chunk *chunk
	score float64
}

// better reports whether a candidate outranks the heap root. Ties go to the
// lower chunk ID so results are deterministic.
func better(score float64, id string, root scored) bool {
	if score != root.score {
		return score > root.score
	}
	return id < root.chunk.id
}

// minHeap keeps the top-K results with the weakest at the root.
type minHeap []scored

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return better(h[j].score, h[j].chunk.id, h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(scored)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func float32ToBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func blobToFloat32(b []byte, dims int) []float32 {
	v := make([]float32, dims)
	for i := 0; i < dims && i*4+4 <= len(b); i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
