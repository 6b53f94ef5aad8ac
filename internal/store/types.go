// Package store provides the Embedding Store: SQLite-backed metadata
// persistence (documents, chunks, folder state), an HNSW vector index for
// similarity search, and a Bleve keyword/regex index, kept in sync as an
// independent secondary index over the same chunks.
package store

import (
	"context"
	"fmt"
	"time"
)

// CurrentSchemaVersion is the current metadata database schema version.
const CurrentSchemaVersion = 1

// Document is one parsed file belonging to exactly one folder.
type Document struct {
	ID          string // stable hash of (folder id, relative path)
	FolderID    string
	Path        string // relative to the folder root
	ContentHash string // sha256 of raw bytes
	Size        int64
	ModTime     time.Time
	ParserType  string // "text" or "csv"; the pdf, pptx and xlsx parsers always fail
	Status      string // pending|parsing|chunking|embedding|ready|failed
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	DocumentStatusPending   = "pending"
	DocumentStatusParsing   = "parsing"
	DocumentStatusChunking  = "chunking"
	DocumentStatusEmbedding = "embedding"
	DocumentStatusReady     = "ready"
	DocumentStatusFailed    = "failed"
)

// ChunkRecord is the persisted form of a chunk.Chunk: ordinal position plus
// the JSON-encoded location and semantic metadata blobs the store doesn't
// need to interpret.
type ChunkRecord struct {
	ID           string
	DocumentID   string
	Ordinal      int
	Content      string
	ContentHash  string
	TokenCount   int
	LocationJSON string
	SemanticJSON string
}

// EmbeddingRecord binds one vector to one chunk under one model.
type EmbeddingRecord struct {
	ChunkID   string
	Model     string
	Dimension int
	Vector    []float32
}

// FolderMeta tracks per-folder snapshot and schema bookkeeping the
// Folder Lifecycle state machine consults on startup.
type FolderMeta struct {
	FolderID        string
	SnapshotVersion int64
	LastScanTime    time.Time
	SchemaVersion   int
}

// DocumentOutline is a cheap, metadata-only read: no chunk content.
type DocumentOutline struct {
	Document   Document
	ChunkCount int
	Headings   []string // heading_context of chunks carrying one, in ordinal order
}

// SimilarityResult is one hit from similaritySearch.
type SimilarityResult struct {
	ChunkID    string
	DocumentID string
	Score      float32 // cosine similarity, higher is more similar
	Ordinal    int
	LocationJSON string
	Preview    string
}

// SearchFilters narrows similaritySearch to a subset of folders/documents.
type SearchFilters struct {
	FolderIDs   []string
	DocumentIDs []string
}

// MetadataStore persists documents, chunks, embeddings, and folder state in
// SQLite with WAL journaling. All write operations are atomic per call.
type MetadataStore interface {
	UpsertDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	GetDocumentByPath(ctx context.Context, folderID, path string) (*Document, error)
	ListDocuments(ctx context.Context, folderID string, cursor string, limit int) ([]*Document, string, error)
	DeleteDocument(ctx context.Context, id string) error // cascades to chunks and embeddings

	// UpsertChunks atomically replaces all chunks (and their embeddings) for
	// a document with the given set.
	UpsertChunks(ctx context.Context, documentID string, chunks []*ChunkRecord) error
	GetChunk(ctx context.Context, id string) (*ChunkRecord, error)
	GetChunksByDocument(ctx context.Context, documentID string) ([]*ChunkRecord, error)
	IterateChunks(ctx context.Context, documentID string, cursor string, limit int) ([]*ChunkRecord, string, error)
	GetDocumentOutline(ctx context.Context, documentID string) (*DocumentOutline, error)

	UpsertEmbeddings(ctx context.Context, rows []*EmbeddingRecord) error
	GetEmbedding(ctx context.Context, chunkID string) (*EmbeddingRecord, error)

	GetFolderMeta(ctx context.Context, folderID string) (*FolderMeta, error)
	SaveFolderMeta(ctx context.Context, meta *FolderMeta) error
	DeleteFolderMeta(ctx context.Context, folderID string) error

	Close() error
}

// VectorResult is one hit from a VectorStore.Search call.
type VectorResult struct {
	ID       string  // chunk ID
	Distance float32 // lower is more similar (0-2 for cosine)
	Score    float32 // normalized similarity (0-1), higher is more similar
}

// VectorStoreConfig configures the vector index.
type VectorStoreConfig struct {
	Dimensions     int
	Metric         string // "cos" (cosine, default) or "l2" (euclidean)
	M              int    // HNSW max connections per layer
	EfConstruction int    // HNSW build-time search width
	EfSearch       int    // HNSW query-time search width
}

// DefaultVectorStoreConfig returns sensible defaults for the given dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              16,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides nearest-neighbor similarity search over embeddings.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector's dimension doesn't match the
// store's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run a reindex)", e.Expected, e.Got)
}

// KeywordResult is one hit from a KeywordIndex search.
type KeywordResult struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// KeywordIndexStats reports coarse index size for diagnostics.
type KeywordIndexStats struct {
	ChunkCount int
}

// KeywordIndex provides exact keyword and regex search over chunk content,
// maintained as an index independent of the vector store.
type KeywordIndex interface {
	Index(ctx context.Context, chunks []*ChunkRecord) error
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)
	SearchRegexp(ctx context.Context, pattern string, limit int) ([]*KeywordResult, error)
	Delete(ctx context.Context, chunkIDs []string) error
	Stats() *KeywordIndexStats
	Close() error
}
