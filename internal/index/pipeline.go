// Package index implements the Indexing Pipeline: Detect, Parse, Chunk,
// Embed, and Persist stages run over one folder's change set.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okets/folder-mcp/internal/change"
	"github.com/okets/folder-mcp/internal/chunk"
	"github.com/okets/folder-mcp/internal/embed"
	"github.com/okets/folder-mcp/internal/errors"
	"github.com/okets/folder-mcp/internal/folder"
	"github.com/okets/folder-mcp/internal/parser"
	"github.com/okets/folder-mcp/internal/store"
)

// EmbedBatchSize matches the embed stage's batching: embeddings are
// generated in batches of this size, flushed to the store as each batch
// completes rather than waiting for the whole document set.
const EmbedBatchSize = 32

// ProgressInterval is the minimum cadence at which Pipeline.Run reports a
// progress snapshot while work remains.
const ProgressInterval = 500 * time.Millisecond

// Chunker is the subset of chunk.MultiChunker the pipeline needs: dispatch
// a parsed file to its per-kind chunker and finalize the result. A plain
// interface keeps this package from depending on the concrete
// *chunk.MultiChunker type.
type Chunker interface {
	ChunkDocument(ctx context.Context, file *chunk.FileInput) ([]*chunk.Chunk, error)
}

// Deps are the Pipeline's collaborators, one set per folder.
type Deps struct {
	FolderID string
	Metadata store.MetadataStore
	Vector   store.VectorStore
	Keyword  store.KeywordIndex
	Embedder embed.Embedder
	Chunker  Chunker
	Parsers  *parser.Registry
}

// Pipeline drives Detect/Parse/Chunk/Embed/Persist over one folder's
// observed and persisted file sets. It implements folder.Driver's Index
// method signature so it can be wired directly into a folder.Lifecycle.
type Pipeline struct {
	deps  Deps
	retry errors.RetryConfig
}

// New builds a Pipeline over deps, using the default embed-stage retry
// policy (3 tries, 100ms -> 1s -> 10s backoff).
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps, retry: errors.DefaultRetryConfig()}
}

// Index runs one full pipeline pass: Detect classifies observed against
// persisted, then Parse/Chunk/Embed/Persist run over every new or modified
// document while deleted documents are purged from all three stores.
// Unchanged documents are skipped entirely, making repeated calls with the
// same inputs idempotent no-ops beyond the initial Detect pass.
func (p *Pipeline) Index(ctx context.Context, observed []folder.ObservedFile, persisted []folder.PersistedFile, progress func(folder.Progress)) error {
	cs, err := change.NewDetector().Detect(toObserved(observed), toPersisted(persisted))
	if err != nil {
		return fmt.Errorf("detecting changes: %w", err)
	}

	byPath := make(map[string]folder.ObservedFile, len(observed))
	for _, o := range observed {
		byPath[o.Path] = o
	}

	total := len(cs.New) + len(cs.Modified) + len(cs.Deleted)
	var processed int
	lastReport := time.Now()
	report := func() {
		pct := 0.0
		if total > 0 {
			pct = float64(processed) / float64(total) * 100
		}
		progress(folder.Progress{TotalFiles: total, ProcessedFiles: processed, Percentage: pct})
	}
	report()

	for _, path := range cs.Deleted {
		docID := documentID(p.deps.FolderID, path)
		if err := p.purge(ctx, docID); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		processed++
		if time.Since(lastReport) >= ProgressInterval {
			report()
			lastReport = time.Now()
		}
	}

	changedPaths := append(append([]string{}, cs.New...), cs.Modified...)
	for _, path := range changedPaths {
		obs, ok := byPath[path]
		if !ok {
			processed++
			continue
		}
		if err := p.indexOne(ctx, obs); err != nil {
			return fmt.Errorf("indexing %s: %w", path, err)
		}
		processed++
		if time.Since(lastReport) >= ProgressInterval {
			report()
			lastReport = time.Now()
		}
	}

	report()
	return nil
}

// indexOne runs Parse -> Chunk -> Embed -> Persist for a single document.
func (p *Pipeline) indexOne(ctx context.Context, obs folder.ObservedFile) error {
	docID := documentID(p.deps.FolderID, obs.Path)

	parsed, err := p.deps.Parsers.Parse(obs.AbsPath)
	if err != nil {
		return p.markFailed(ctx, docID, obs, err)
	}

	content, language := flatten(parsed)
	input := &chunk.FileInput{Path: obs.Path, DocumentID: docID, Content: content, Language: language}
	chunks, err := p.deps.Chunker.ChunkDocument(ctx, input)
	if err != nil {
		return p.markFailed(ctx, docID, obs, err)
	}

	if err := p.embedAndPersist(ctx, docID, obs, parsed.ParserType, parsed.ByteHash, chunks); err != nil {
		return p.markFailed(ctx, docID, obs, err)
	}
	return nil
}

func (p *Pipeline) embedAndPersist(ctx context.Context, docID string, obs folder.ObservedFile, parserType, contentHash string, chunks []*chunk.Chunk) error {
	records := make([]*store.ChunkRecord, len(chunks))
	for i, c := range chunks {
		rec, err := toChunkRecord(c, i)
		if err != nil {
			return fmt.Errorf("encoding chunk %s: %w", c.ID, err)
		}
		records[i] = rec
	}

	for start := 0; start < len(chunks); start += EmbedBatchSize {
		end := start + EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		p.deps.Embedder.SetBatchIndex(start / EmbedBatchSize)
		p.deps.Embedder.SetFinalBatch(end >= len(chunks))

		vectors, err := errors.RetryWithResult(ctx, p.retry, func() ([][]float32, error) {
			return p.deps.Embedder.EmbedBatch(ctx, texts)
		})
		if err != nil {
			return fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}

		rows := make([]*store.EmbeddingRecord, len(batch))
		for i, c := range batch {
			rows[i] = &store.EmbeddingRecord{
				ChunkID:   c.ID,
				Model:     p.deps.Embedder.ModelName(),
				Dimension: p.deps.Embedder.Dimensions(),
				Vector:    vectors[i],
			}
		}
		if err := p.deps.Metadata.UpsertEmbeddings(ctx, rows); err != nil {
			return fmt.Errorf("persisting embeddings batch %d-%d: %w", start, end, err)
		}

		ids := make([]string, len(batch))
		vecs := make([][]float32, len(batch))
		for i, c := range batch {
			ids[i] = c.ID
			vecs[i] = vectors[i]
		}
		if err := p.deps.Vector.Add(ctx, ids, vecs); err != nil {
			return fmt.Errorf("persisting vectors batch %d-%d: %w", start, end, err)
		}
	}

	if err := p.deps.Keyword.Index(ctx, records); err != nil {
		return fmt.Errorf("persisting keyword index: %w", err)
	}

	doc := &store.Document{
		ID:          docID,
		FolderID:    p.deps.FolderID,
		Path:        obs.Path,
		ContentHash: contentHash,
		Size:        obs.Size,
		ModTime:     time.Unix(0, obs.ModTime),
		ParserType:  parserType,
		Status:      store.DocumentStatusReady,
	}
	if err := p.deps.Metadata.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("persisting document: %w", err)
	}
	return p.deps.Metadata.UpsertChunks(ctx, docID, records)
}

func (p *Pipeline) markFailed(ctx context.Context, docID string, obs folder.ObservedFile, cause error) error {
	doc := &store.Document{
		ID:       docID,
		FolderID: p.deps.FolderID,
		Path:     obs.Path,
		Size:     obs.Size,
		ModTime:  time.Unix(0, obs.ModTime),
		Status:   store.DocumentStatusFailed,
	}
	// A failed document doesn't abort the folder's indexing run: the
	// lifecycle stays Active/Watching and other documents continue
	// processing. Only the failure to persist the failure marker itself is
	// surfaced to the caller.
	if err := p.deps.Metadata.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("recording failure for %s (original cause: %v): %w", obs.Path, cause, err)
	}
	return nil
}

func (p *Pipeline) purge(ctx context.Context, docID string) error {
	chunks, err := p.deps.Metadata.GetChunksByDocument(ctx, docID)
	if err != nil {
		return err
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if len(ids) > 0 {
		if err := p.deps.Vector.Delete(ctx, ids); err != nil {
			return err
		}
		if err := p.deps.Keyword.Delete(ctx, ids); err != nil {
			return err
		}
	}
	return p.deps.Metadata.DeleteDocument(ctx, docID)
}

func toChunkRecord(c *chunk.Chunk, ordinal int) (*store.ChunkRecord, error) {
	loc, err := json.Marshal(c.Location)
	if err != nil {
		return nil, err
	}
	sem, err := json.Marshal(c.Semantic)
	if err != nil {
		return nil, err
	}
	return &store.ChunkRecord{
		ID:           c.ID,
		DocumentID:   c.DocumentID,
		Ordinal:      ordinal,
		Content:      c.Content,
		ContentHash:  c.ContentHash,
		TokenCount:   c.TokenCount,
		LocationJSON: string(loc),
		SemanticJSON: string(sem),
	}, nil
}

// flatten collapses a parser.ParsedDocument's kind-specific shape into the
// plain text + language pair the Chunker's FileInput expects; the
// chunker's own extension-based dispatch still determines whether it
// treats that text as code, markdown, or prose.
func flatten(doc *parser.ParsedDocument) (content []byte, language string) {
	switch doc.Kind {
	case parser.KindPaginated:
		var buf []byte
		for _, pg := range doc.Pages {
			buf = append(buf, []byte(pg.Content)...)
			buf = append(buf, '\n')
		}
		return buf, ""
	case parser.KindSlides:
		var buf []byte
		for _, sl := range doc.Slides {
			buf = append(buf, []byte(sl.Title)...)
			buf = append(buf, '\n')
			buf = append(buf, []byte(sl.Body)...)
			buf = append(buf, '\n')
		}
		return buf, ""
	case parser.KindSpreadsheet:
		// CSVChunker reads raw bytes itself; reconstruct a minimal CSV so
		// it can re-derive headers/rows rather than duplicating that logic
		// here.
		var buf []byte
		for _, sheet := range doc.Sheets {
			buf = append(buf, []byte(joinCSVRow(sheet.Headers))...)
			buf = append(buf, '\n')
			for _, row := range sheet.Rows {
				buf = append(buf, []byte(joinCSVRow(row))...)
				buf = append(buf, '\n')
			}
			break // one sheet per document in the current spreadsheet parsers
		}
		return buf, ""
	default:
		return []byte(doc.Content), ""
	}
}

func joinCSVRow(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += ","
		}
		out += f
	}
	return out
}

func documentID(folderID, path string) string {
	sum := sha256.Sum256([]byte(folderID + ":" + path))
	return hex.EncodeToString(sum[:])[:16]
}

func toObserved(in []folder.ObservedFile) []change.Observed {
	out := make([]change.Observed, len(in))
	for i, o := range in {
		out[i] = change.Observed{Path: o.Path, AbsPath: o.AbsPath, Size: o.Size, ModTime: o.ModTime}
	}
	return out
}

func toPersisted(in []folder.PersistedFile) []change.Persisted {
	out := make([]change.Persisted, len(in))
	for i, pfile := range in {
		out[i] = change.Persisted{Path: pfile.Path, ContentHash: pfile.ContentHash, Size: pfile.Size, ModTime: pfile.ModTime}
	}
	return out
}
