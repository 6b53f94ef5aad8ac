package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SQLiteMetadataStore implements MetadataStore over SQLite in WAL mode.
// A single writer connection is enforced via db.SetMaxOpenConns(1); readers
// share the same pool since WAL allows concurrent readers without blocking
// the writer.
type SQLiteMetadataStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)

// NewSQLiteMetadataStore opens (creating if necessary) the metadata database
// at path, enables WAL mode and foreign keys, and runs pending migrations.
// An empty path opens an in-memory database, for tests.
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create metadata dir: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open(sqlDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA mmap_size = 268435456", // 256MB memory-mapped read window
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &SQLiteMetadataStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate metadata store: %w", err)
	}
	return s, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		folder_id TEXT NOT NULL,
		path TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		size INTEGER NOT NULL,
		mtime INTEGER NOT NULL,
		parser_type TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(folder_id, path)
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		ordinal INTEGER NOT NULL,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		location_json TEXT NOT NULL,
		semantic_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, ordinal);

	CREATE TABLE IF NOT EXISTS embeddings (
		chunk_id TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
		model TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		vector BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS folder_meta (
		folder_id TEXT PRIMARY KEY,
		snapshot_version INTEGER NOT NULL,
		last_scan_time INTEGER NOT NULL,
		schema_version INTEGER NOT NULL
	);

	INSERT INTO schema_version(version) SELECT 1 WHERE NOT EXISTS (SELECT 1 FROM schema_version);`,
}

// migrate runs any migrations with an index past the stored schema version,
// each batch inside its own transaction.
func (s *SQLiteMetadataStore) migrate() error {
	var current int
	row := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`)
	if err := row.Scan(&current); err != nil {
		current = 0 // no schema_version row yet: brand new database
	}

	for i := current; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: stamp version: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", i+1, err)
		}
	}
	return nil
}

func (s *SQLiteMetadataStore) UpsertDocument(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents(id, folder_id, path, content_hash, size, mtime, parser_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_hash = excluded.content_hash,
			size = excluded.size,
			mtime = excluded.mtime,
			parser_type = excluded.parser_type,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		doc.ID, doc.FolderID, doc.Path, doc.ContentHash, doc.Size,
		doc.ModTime.UnixNano(), doc.ParserType, doc.Status,
		doc.CreatedAt.UnixNano(), doc.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

func scanDocument(row interface {
	Scan(dest ...any) error
}) (*Document, error) {
	var d Document
	var modTime, createdAt, updatedAt int64
	if err := row.Scan(&d.ID, &d.FolderID, &d.Path, &d.ContentHash, &d.Size,
		&modTime, &d.ParserType, &d.Status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.ModTime = time.Unix(0, modTime)
	d.CreatedAt = time.Unix(0, createdAt)
	d.UpdatedAt = time.Unix(0, updatedAt)
	return &d, nil
}

func (s *SQLiteMetadataStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, folder_id, path, content_hash, size, mtime, parser_type, status, created_at, updated_at
		FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

func (s *SQLiteMetadataStore) GetDocumentByPath(ctx context.Context, folderID, path string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, folder_id, path, content_hash, size, mtime, parser_type, status, created_at, updated_at
		FROM documents WHERE folder_id = ? AND path = ?`, folderID, path)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s/%s: %w", folderID, path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document by path: %w", err)
	}
	return doc, nil
}

// ListDocuments pages through folderID's documents ordered by id, with an
// opaque base64 cursor carrying the last-seen id.
func (s *SQLiteMetadataStore) ListDocuments(ctx context.Context, folderID string, cursor string, limit int) ([]*Document, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, "", fmt.Errorf("metadata store is closed")
	}
	if limit <= 0 {
		limit = 100
	}

	after := ""
	if cursor != "" {
		decoded, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
		after = decoded
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, folder_id, path, content_hash, size, mtime, parser_type, status, created_at, updated_at
		FROM documents WHERE folder_id = ? AND id > ? ORDER BY id LIMIT ?`,
		folderID, after, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
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

	var next string
	if len(docs) > limit {
		docs = docs[:limit]
		next = encodeCursor(docs[len(docs)-1].ID)
	}
	return docs, next, nil
}

func (s *SQLiteMetadataStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// UpsertChunks atomically replaces all chunks for documentID: deletes the
// existing rows (cascading to embeddings) and inserts the new set in the
// same transaction.
func (s *SQLiteMetadataStore) UpsertChunks(ctx context.Context, documentID string, chunks []*ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clear existing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks(id, document_id, ordinal, content, content_hash, token_count, location_json, semantic_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, documentID, i, c.Content, c.ContentHash,
			c.TokenCount, c.LocationJSON, c.SemanticJSON); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func scanChunk(row interface{ Scan(dest ...any) error }) (*ChunkRecord, error) {
	var c ChunkRecord
	if err := row.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Content, &c.ContentHash,
		&c.TokenCount, &c.LocationJSON, &c.SemanticJSON); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteMetadataStore) GetChunk(ctx context.Context, id string) (*ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, ordinal, content, content_hash, token_count, location_json, semantic_json
		FROM chunks WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk %s: %w", id, err)
	}
	return c, nil
}

func (s *SQLiteMetadataStore) GetChunksByDocument(ctx context.Context, documentID string) ([]*ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, ordinal, content, content_hash, token_count, location_json, semantic_json
		FROM chunks WHERE document_id = ? ORDER BY ordinal`, documentID)
	if err != nil {
		return nil, fmt.Errorf("get chunks for %s: %w", documentID, err)
	}
	defer rows.Close()

	var chunks []*ChunkRecord
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// IterateChunks pages through documentID's chunks in ordinal order, using
// the ordinal itself as the cursor so resuming after a restart is cheap.
func (s *SQLiteMetadataStore) IterateChunks(ctx context.Context, documentID string, cursor string, limit int) ([]*ChunkRecord, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, "", fmt.Errorf("metadata store is closed")
	}
	if limit <= 0 {
		limit = 100
	}

	afterOrdinal := -1
	if cursor != "" {
		decoded, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
		if _, err := fmt.Sscanf(decoded, "%d", &afterOrdinal); err != nil {
			return nil, "", fmt.Errorf("invalid cursor ordinal: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, ordinal, content, content_hash, token_count, location_json, semantic_json
		FROM chunks WHERE document_id = ? AND ordinal > ? ORDER BY ordinal LIMIT ?`,
		documentID, afterOrdinal, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("iterate chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*ChunkRecord
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, "", fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(chunks) > limit {
		chunks = chunks[:limit]
		next = encodeCursor(fmt.Sprintf("%d", chunks[len(chunks)-1].Ordinal))
	}
	return chunks, next, nil
}

func (s *SQLiteMetadataStore) GetDocumentOutline(ctx context.Context, documentID string) (*DocumentOutline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, folder_id, path, content_hash, size, mtime, parser_type, status, created_at, updated_at
		FROM documents WHERE id = ?`, documentID)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document outline: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT semantic_json FROM chunks WHERE document_id = ? ORDER BY ordinal`, documentID)
	if err != nil {
		return nil, fmt.Errorf("get outline chunks: %w", err)
	}
	defer rows.Close()

	var count int
	var headings []string
	for rows.Next() {
		var semanticJSON string
		if err := rows.Scan(&semanticJSON); err != nil {
			return nil, fmt.Errorf("scan outline chunk: %w", err)
		}
		count++
		var meta struct {
			HeadingContext string `json:"heading_context"`
		}
		if json.Unmarshal([]byte(semanticJSON), &meta) == nil && meta.HeadingContext != "" {
			headings = append(headings, meta.HeadingContext)
		}
	}

	return &DocumentOutline{Document: *doc, ChunkCount: count, Headings: headings}, rows.Err()
}

func (s *SQLiteMetadataStore) UpsertEmbeddings(ctx context.Context, rows []*EmbeddingRecord) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin embedding transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings(chunk_id, model, dimension, vector)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET model = excluded.model, dimension = excluded.dimension, vector = excluded.vector`)
	if err != nil {
		return fmt.Errorf("prepare embedding upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ChunkID, r.Model, r.Dimension, encodeVector(r.Vector)); err != nil {
			return fmt.Errorf("upsert embedding for chunk %s: %w", r.ChunkID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteMetadataStore) GetEmbedding(ctx context.Context, chunkID string) (*EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	var r EmbeddingRecord
	var vec []byte
	err := s.db.QueryRowContext(ctx, `SELECT chunk_id, model, dimension, vector FROM embeddings WHERE chunk_id = ?`, chunkID).
		Scan(&r.ChunkID, &r.Model, &r.Dimension, &vec)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("embedding for chunk %s: %w", chunkID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding: %w", err)
	}
	r.Vector = decodeVector(vec)
	return &r, nil
}

func (s *SQLiteMetadataStore) GetFolderMeta(ctx context.Context, folderID string) (*FolderMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	var m FolderMeta
	var lastScan int64
	err := s.db.QueryRowContext(ctx, `
		SELECT folder_id, snapshot_version, last_scan_time, schema_version
		FROM folder_meta WHERE folder_id = ?`, folderID).
		Scan(&m.FolderID, &m.SnapshotVersion, &lastScan, &m.SchemaVersion)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("folder meta for %s: %w", folderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get folder meta: %w", err)
	}
	m.LastScanTime = time.Unix(0, lastScan)
	return &m, nil
}

func (s *SQLiteMetadataStore) SaveFolderMeta(ctx context.Context, meta *FolderMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folder_meta(folder_id, snapshot_version, last_scan_time, schema_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(folder_id) DO UPDATE SET
			snapshot_version = excluded.snapshot_version,
			last_scan_time = excluded.last_scan_time,
			schema_version = excluded.schema_version`,
		meta.FolderID, meta.SnapshotVersion, meta.LastScanTime.UnixNano(), meta.SchemaVersion)
	if err != nil {
		return fmt.Errorf("save folder meta: %w", err)
	}
	return nil
}

func (s *SQLiteMetadataStore) DeleteFolderMeta(ctx context.Context, folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM folder_meta WHERE folder_id = ?`, folderID); err != nil {
		return fmt.Errorf("delete folder meta: %w", err)
	}
	return nil
}

// Close drains writers, checkpoints and truncates the WAL, then closes the
// connection. Callers on platforms with mandatory file locking should
// follow this with a touch-and-delete probe on the auxiliary files before
// removing the folder's persistence directory.
func (s *SQLiteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// ErrNotFound is returned by read operations when the requested row doesn't
// exist.
var ErrNotFound = fmt.Errorf("not found")

func encodeCursor(raw string) string {
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		v[i] = math.Float32frombits(bits)
	}
	return v
}

// WaitForHandleRelease polls for path and its SQLite WAL/SHM siblings to
// become deletable, for Windows teardown where the OS holds file handles
// briefly after Close returns. It retries with bounded exponential backoff
// up to ceiling before giving up.
func WaitForHandleRelease(ctx context.Context, path string, ceiling time.Duration) error {
	siblings := []string{path, path + "-wal", path + "-shm"}
	backoff := 50 * time.Millisecond
	deadline := time.Now().Add(ceiling)

	for {
		if allDeletable(siblings) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for database handles to release: %s", path)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 2*time.Second {
			backoff = 2 * time.Second
		}
	}
}

func allDeletable(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue // doesn't exist, nothing to probe
		}
		f, err := os.OpenFile(p, os.O_RDWR, 0)
		if err != nil {
			return false
		}
		_ = f.Close()
	}
	return true
}
