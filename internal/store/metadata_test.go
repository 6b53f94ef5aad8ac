package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestMetadataStore(t *testing.T) *SQLiteMetadataStore {
	t.Helper()
	s, err := NewSQLiteMetadataStore(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatalf("NewSQLiteMetadataStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteMetadataStore_UpsertAndGetDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestMetadataStore(t)

	doc := &Document{
		ID: "doc-1", FolderID: "folder-1", Path: "notes.md",
		ContentHash: "abc123", Size: 42, ModTime: time.Now(),
		ParserType: "markdown", Status: DocumentStatusPending,
	}
	if err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Path != "notes.md" || got.Status != DocumentStatusPending {
		t.Errorf("unexpected document: %+v", got)
	}

	doc.Status = DocumentStatusReady
	if err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, _ = s.GetDocument(ctx, "doc-1")
	if got.Status != DocumentStatusReady {
		t.Errorf("expected status ready after re-upsert, got %s", got.Status)
	}
}

func TestSQLiteMetadataStore_GetDocument_NotFound(t *testing.T) {
	s := newTestMetadataStore(t)
	if _, err := s.GetDocument(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing document")
	}
}

func TestSQLiteMetadataStore_DeleteDocumentCascadesChunksAndEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := newTestMetadataStore(t)

	doc := &Document{ID: "doc-1", FolderID: "f1", Path: "a.txt", ModTime: time.Now(), ParserType: "text", Status: "ready"}
	if err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("upsert doc: %v", err)
	}
	chunks := []*ChunkRecord{
		{ID: "c1", Content: "hello", ContentHash: "h1", TokenCount: 1, LocationJSON: "{}", SemanticJSON: "{}"},
	}
	if err := s.UpsertChunks(ctx, "doc-1", chunks); err != nil {
		t.Fatalf("upsert chunks: %v", err)
	}
	if err := s.UpsertEmbeddings(ctx, []*EmbeddingRecord{{ChunkID: "c1", Model: "m", Dimension: 3, Vector: []float32{1, 2, 3}}}); err != nil {
		t.Fatalf("upsert embeddings: %v", err)
	}

	if err := s.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("delete document: %v", err)
	}

	if _, err := s.GetChunk(ctx, "c1"); err == nil {
		t.Error("expected chunk to be cascade-deleted")
	}
	if _, err := s.GetEmbedding(ctx, "c1"); err == nil {
		t.Error("expected embedding to be cascade-deleted")
	}
}

func TestSQLiteMetadataStore_UpsertChunksReplacesPriorSet(t *testing.T) {
	ctx := context.Background()
	s := newTestMetadataStore(t)

	doc := &Document{ID: "doc-1", FolderID: "f1", Path: "a.txt", ModTime: time.Now(), ParserType: "text", Status: "ready"}
	if err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("upsert doc: %v", err)
	}

	first := []*ChunkRecord{{ID: "c1", Content: "v1", ContentHash: "h1", LocationJSON: "{}", SemanticJSON: "{}"}}
	if err := s.UpsertChunks(ctx, "doc-1", first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := []*ChunkRecord{{ID: "c2", Content: "v2", ContentHash: "h2", LocationJSON: "{}", SemanticJSON: "{}"}}
	if err := s.UpsertChunks(ctx, "doc-1", second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	chunks, err := s.GetChunksByDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}
	if len(chunks) != 1 || chunks[0].ID != "c2" {
		t.Fatalf("expected only c2 to survive replace, got %+v", chunks)
	}
	if _, err := s.GetChunk(ctx, "c1"); err == nil {
		t.Error("expected c1 to be gone after replace")
	}
}

func TestSQLiteMetadataStore_IterateChunksPages(t *testing.T) {
	ctx := context.Background()
	s := newTestMetadataStore(t)

	doc := &Document{ID: "doc-1", FolderID: "f1", Path: "a.txt", ModTime: time.Now(), ParserType: "text", Status: "ready"}
	_ = s.UpsertDocument(ctx, doc)

	var chunks []*ChunkRecord
	for i := 0; i < 5; i++ {
		chunks = append(chunks, &ChunkRecord{ID: "c" + string(rune('a'+i)), Content: "x", ContentHash: "h", LocationJSON: "{}", SemanticJSON: "{}"})
	}
	if err := s.UpsertChunks(ctx, "doc-1", chunks); err != nil {
		t.Fatalf("upsert chunks: %v", err)
	}

	page1, cursor, err := s.IterateChunks(ctx, "doc-1", "", 2)
	if err != nil {
		t.Fatalf("iterate page 1: %v", err)
	}
	if len(page1) != 2 || cursor == "" {
		t.Fatalf("expected 2 results and a cursor, got %d results cursor=%q", len(page1), cursor)
	}

	page2, cursor2, err := s.IterateChunks(ctx, "doc-1", cursor, 2)
	if err != nil {
		t.Fatalf("iterate page 2: %v", err)
	}
	if len(page2) != 2 || cursor2 == "" {
		t.Fatalf("expected 2 more results, got %d", len(page2))
	}

	page3, cursor3, err := s.IterateChunks(ctx, "doc-1", cursor2, 2)
	if err != nil {
		t.Fatalf("iterate page 3: %v", err)
	}
	if len(page3) != 1 || cursor3 != "" {
		t.Fatalf("expected final page of 1 with no next cursor, got %d cursor=%q", len(page3), cursor3)
	}
}

func TestSQLiteMetadataStore_GetDocumentOutline(t *testing.T) {
	ctx := context.Background()
	s := newTestMetadataStore(t)

	doc := &Document{ID: "doc-1", FolderID: "f1", Path: "a.md", ModTime: time.Now(), ParserType: "markdown", Status: "ready"}
	_ = s.UpsertDocument(ctx, doc)

	chunks := []*ChunkRecord{
		{ID: "c1", Content: "intro", ContentHash: "h1", LocationJSON: "{}", SemanticJSON: `{"heading_context":"Introduction"}`},
		{ID: "c2", Content: "body", ContentHash: "h2", LocationJSON: "{}", SemanticJSON: `{"heading_context":"Details"}`},
	}
	if err := s.UpsertChunks(ctx, "doc-1", chunks); err != nil {
		t.Fatalf("upsert chunks: %v", err)
	}

	outline, err := s.GetDocumentOutline(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get outline: %v", err)
	}
	if outline.ChunkCount != 2 {
		t.Errorf("expected 2 chunks, got %d", outline.ChunkCount)
	}
	if len(outline.Headings) != 2 || outline.Headings[0] != "Introduction" {
		t.Errorf("unexpected headings: %+v", outline.Headings)
	}
}

func TestSQLiteMetadataStore_FolderMetaRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newTestMetadataStore(t)

	meta := &FolderMeta{FolderID: "f1", SnapshotVersion: 3, LastScanTime: time.Now(), SchemaVersion: CurrentSchemaVersion}
	if err := s.SaveFolderMeta(ctx, meta); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetFolderMeta(ctx, "f1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SnapshotVersion != 3 {
		t.Errorf("expected snapshot version 3, got %d", got.SnapshotVersion)
	}

	if err := s.DeleteFolderMeta(ctx, "f1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetFolderMeta(ctx, "f1"); err == nil {
		t.Error("expected not-found after delete")
	}
}

func TestSQLiteMetadataStore_ListDocumentsPages(t *testing.T) {
	ctx := context.Background()
	s := newTestMetadataStore(t)

	for i := 0; i < 3; i++ {
		doc := &Document{ID: "doc-" + string(rune('a'+i)), FolderID: "f1", Path: "a.txt", ModTime: time.Now(), ParserType: "text", Status: "ready"}
		if err := s.UpsertDocument(ctx, doc); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	page1, cursor, err := s.ListDocuments(ctx, "f1", "", 2)
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if len(page1) != 2 || cursor == "" {
		t.Fatalf("expected 2 with cursor, got %d", len(page1))
	}

	page2, cursor2, err := s.ListDocuments(ctx, "f1", cursor, 2)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page2) != 1 || cursor2 != "" {
		t.Fatalf("expected final page of 1, got %d cursor=%q", len(page2), cursor2)
	}
}

func TestEncodeDecodeVector_RoundTrips(t *testing.T) {
	original := []float32{1.5, -2.25, 0, 3.125}
	decoded := decodeVector(encodeVector(original))
	if len(decoded) != len(original) {
		t.Fatalf("length mismatch: got %d want %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("index %d: got %v want %v", i, decoded[i], original[i])
		}
	}
}
