package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okets/folder-mcp/internal/chunk"
	"github.com/okets/folder-mcp/internal/folder"
	"github.com/okets/folder-mcp/internal/parser"
	"github.com/okets/folder-mcp/internal/store"
)

// fakeEmbedder returns a deterministic low-dimensional vector per text so
// tests don't depend on a real model.
type fakeEmbedder struct {
	dim int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dim)
		for j := range v {
			v[j] = float32(len(t)%7+j) / 10
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                    { return f.dim }
func (f *fakeEmbedder) ModelName() string                  { return "fake-embedder" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                       { return nil }
func (f *fakeEmbedder) SetBatchIndex(idx int)              {}
func (f *fakeEmbedder) SetFinalBatch(isFinal bool)         {}

func newTestPipeline(t *testing.T) (*Pipeline, store.MetadataStore, func()) {
	t.Helper()
	dir := t.TempDir()

	meta, err := store.NewSQLiteMetadataStore(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)

	vec, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(4))
	require.NoError(t, err)

	kw, err := store.NewBleveKeywordIndex(filepath.Join(dir, "bleve"))
	require.NoError(t, err)

	chunker := chunk.NewMultiChunker()

	deps := Deps{
		FolderID: "f1",
		Metadata: meta,
		Vector:   vec,
		Keyword:  kw,
		Embedder: &fakeEmbedder{dim: 4},
		Chunker:  chunker,
		Parsers:  parser.NewRegistry(),
	}
	cleanup := func() {
		chunker.Close()
		meta.Close()
		vec.Close()
		kw.Close()
	}
	return New(deps), meta, cleanup
}

func writeIndexFile(t *testing.T, dir, name, content string) folder.ObservedFile {
	t.Helper()
	abs := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	info, err := os.Stat(abs)
	require.NoError(t, err)
	return folder.ObservedFile{Path: name, AbsPath: abs, Size: info.Size(), ModTime: info.ModTime().UnixNano()}
}

func TestPipeline_IndexNewDocumentPersistsChunksAndEmbeddings(t *testing.T) {
	p, meta, cleanup := newTestPipeline(t)
	defer cleanup()

	dir := t.TempDir()
	obs := writeIndexFile(t, dir, "notes.md", "# Title\n\nSome notes about the project go here.\n")

	var progressCalls int
	err := p.Index(context.Background(), []folder.ObservedFile{obs}, nil, func(folder.Progress) { progressCalls++ })
	require.NoError(t, err)
	assert.GreaterOrEqual(t, progressCalls, 1)

	docID := documentID("f1", "notes.md")
	doc, err := meta.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, store.DocumentStatusReady, doc.Status)
	assert.NotEmpty(t, doc.ContentHash)

	chunks, err := meta.GetChunksByDocument(context.Background(), docID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		emb, err := meta.GetEmbedding(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, emb.Dimension)
	}
}

func TestPipeline_SecondPassWithNoChangesIsNoop(t *testing.T) {
	p, meta, cleanup := newTestPipeline(t)
	defer cleanup()

	dir := t.TempDir()
	obs := writeIndexFile(t, dir, "notes.md", "hello world\n")

	ctx := context.Background()
	require.NoError(t, p.Index(ctx, []folder.ObservedFile{obs}, nil, func(folder.Progress) {}))

	docID := documentID("f1", "notes.md")
	doc, err := meta.GetDocument(ctx, docID)
	require.NoError(t, err)

	persisted := []folder.PersistedFile{{Path: "notes.md", ContentHash: doc.ContentHash, Size: obs.Size, ModTime: obs.ModTime}}
	require.NoError(t, p.Index(ctx, []folder.ObservedFile{obs}, persisted, func(folder.Progress) {}))

	doc2, err := meta.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, doc.ContentHash, doc2.ContentHash)
}

func TestPipeline_DeletedDocumentIsPurged(t *testing.T) {
	p, meta, cleanup := newTestPipeline(t)
	defer cleanup()

	dir := t.TempDir()
	obs := writeIndexFile(t, dir, "gone.txt", "temporary content\n")
	ctx := context.Background()
	require.NoError(t, p.Index(ctx, []folder.ObservedFile{obs}, nil, func(folder.Progress) {}))

	docID := documentID("f1", "gone.txt")
	doc, err := meta.GetDocument(ctx, docID)
	require.NoError(t, err)

	persisted := []folder.PersistedFile{{Path: "gone.txt", ContentHash: doc.ContentHash, Size: obs.Size, ModTime: obs.ModTime}}
	require.NoError(t, p.Index(ctx, nil, persisted, func(folder.Progress) {}))

	_, err = meta.GetDocument(ctx, docID)
	assert.Error(t, err)
}

func TestPipeline_UnsupportedFormatMarksDocumentFailedWithoutAborting(t *testing.T) {
	p, meta, cleanup := newTestPipeline(t)
	defer cleanup()

	dir := t.TempDir()
	badPDF := writeIndexFile(t, dir, "report.pdf", "not a real pdf")
	goodTxt := writeIndexFile(t, dir, "ok.txt", "plain content\n")

	ctx := context.Background()
	err := p.Index(ctx, []folder.ObservedFile{badPDF, goodTxt}, nil, func(folder.Progress) {})
	require.NoError(t, err, "one document failing to parse should not abort the whole run")

	failedDoc, err := meta.GetDocument(ctx, documentID("f1", "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, store.DocumentStatusFailed, failedDoc.Status)

	okDoc, err := meta.GetDocument(ctx, documentID("f1", "ok.txt"))
	require.NoError(t, err)
	assert.Equal(t, store.DocumentStatusReady, okDoc.Status)
}
