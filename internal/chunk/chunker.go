package chunk

import (
	"context"
	"path/filepath"
	"strings"
)

// Kind names the document-level shape a set of chunks was produced from,
// stored in each chunk's SemanticMetadata.Kind.
const (
	KindText     = "text"
	KindCode     = "code"
	KindMarkdown = "markdown"
	KindRow      = "row" // one CSV/spreadsheet row
)

// MultiChunker dispatches to the markdown, code, CSV, or plain-text chunker
// by file extension and stamps the result with document identity and
// semantic metadata. It owns the underlying CodeChunker's tree-sitter
// parser and must be closed when no longer needed.
type MultiChunker struct {
	markdown *MarkdownChunker
	code     *CodeChunker
	text     *TextChunker
	csv      *CSVChunker
}

// NewMultiChunker builds a MultiChunker with default options for every
// per-kind chunker.
func NewMultiChunker() *MultiChunker {
	return &MultiChunker{
		markdown: NewMarkdownChunker(),
		code:     NewCodeChunker(),
		text:     NewTextChunker(),
		csv:      NewCSVChunker(),
	}
}

// Close releases the tree-sitter parser owned by the code chunker.
func (m *MultiChunker) Close() {
	m.code.Close()
}

// ChunkDocument dispatches file to the chunker matching its extension and
// finalizes the result (document id, location, semantic metadata, content
// hash, token count).
func (m *MultiChunker) ChunkDocument(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	ext := strings.ToLower(filepath.Ext(file.Path))

	switch {
	case contains(m.markdown.SupportedExtensions(), ext):
		chunks, err := m.markdown.Chunk(ctx, file)
		if err != nil {
			return nil, err
		}
		return finalize(chunks, file.DocumentID, KindMarkdown, "markdown"), nil

	case contains(m.code.SupportedExtensions(), ext):
		chunks, err := m.code.Chunk(ctx, file)
		if err != nil {
			return nil, err
		}
		return finalize(chunks, file.DocumentID, KindCode, file.Language), nil

	case ext == ".csv":
		chunks, err := m.csv.Chunk(ctx, file)
		if err != nil {
			return nil, err
		}
		return finalize(chunks, file.DocumentID, KindRow, "csv"), nil

	default:
		chunks, err := m.text.Chunk(ctx, file)
		if err != nil {
			return nil, err
		}
		return finalize(chunks, file.DocumentID, KindText, file.Language), nil
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
