package chunk

import (
	"context"
	"time"
)

// Chunk size defaults.
const (
	DefaultMaxChunkTokens = 512
	DefaultOverlapTokens  = 64
	MinChunkTokens        = 100
	TokensPerChar         = 4 // rough approximation: 4 chars = 1 token
)

// ContentType represents the type of content in a chunk.
type ContentType string

const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
	ContentTypeRow      ContentType = "row" // a single spreadsheet/CSV row
)

// CurrentSemanticMetadataVersion is bumped whenever SemanticMetadata's shape
// changes, so stored rows carrying an older version can be migrated.
const CurrentSemanticMetadataVersion = 1

// SemanticMetadata is the chunk's document-kind-agnostic semantic envelope:
// where it sits in the document's structure, what language it's in, and
// what kind of unit it is.
type SemanticMetadata struct {
	SchemaVersion  int      `json:"schema_version"`
	SectionPath    []string `json:"section_path,omitempty"`
	HeadingContext string   `json:"heading_context,omitempty"`
	Language       string   `json:"language,omitempty"`
	Kind           string   `json:"kind"`
}

// Location pins a chunk to a position within its owning document. Only the
// fields relevant to the document's kind are populated: StartLine/EndLine
// for text/code/markdown, Page for paginated documents, Slide for slide
// decks, Sheet/Row for spreadsheets.
type Location struct {
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Page      int    `json:"page,omitempty"`
	Slide     int    `json:"slide,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
	Row       int    `json:"row,omitempty"`
}

// Chunk is a retrievable unit of content belonging to one Document.
type Chunk struct {
	ID          string // set by finalize from document ID, content hash and start line
	DocumentID  string
	FilePath    string // relative to the folder root
	Content     string // full content with context (what gets embedded)
	RawContent  string // just the symbol/paragraph, no surrounding context
	Context     string // imports, package decl, header path, etc.
	ContentType ContentType
	Language    string
	StartLine   int // 1-indexed, kept for chunkers that work in lines
	EndLine     int // inclusive
	Symbols     []*Symbol
	Metadata    map[string]string
	Location    Location
	Semantic    SemanticMetadata
	ContentHash string // sha256 of NFC-normalized Content
	TokenCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FileInput is input to a Chunker.
type FileInput struct {
	Path       string
	DocumentID string
	Content    []byte
	Language   string
}

// Chunker splits a file into semantic chunks.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
	SupportedExtensions() []string
}

// SymbolType represents the kind of code symbol.
type SymbolType string

const (
	SymbolTypeFunction  SymbolType = "function"
	SymbolTypeClass     SymbolType = "class"
	SymbolTypeInterface SymbolType = "interface"
	SymbolTypeType      SymbolType = "type"
	SymbolTypeVariable  SymbolType = "variable"
	SymbolTypeConstant  SymbolType = "constant"
	SymbolTypeMethod    SymbolType = "method"
)

// Symbol represents a code symbol extracted from parsing.
type Symbol struct {
	Name       string
	Type       SymbolType
	StartLine  int
	EndLine    int
	Signature  string
	DocComment string
}

// Tree represents a parsed AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code.
type Point struct {
	Row    uint32
	Column uint32
}

// LanguageConfig holds tree-sitter node-type configuration for one language.
type LanguageConfig struct {
	Name           string
	Extensions     []string
	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string
	NameField      string
}
