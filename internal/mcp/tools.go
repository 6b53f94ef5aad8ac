package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SearchInput is the search endpoint's request shape.
type SearchInput struct {
	Query     string   `json:"query" jsonschema:"the search query"`
	Mode      string   `json:"mode,omitempty" jsonschema:"semantic or regex, default semantic"`
	Scope     string   `json:"scope,omitempty" jsonschema:"documents or chunks, default chunks; accepted but not applied: results are always chunk hits"`
	Folder    string   `json:"folder,omitempty" jsonschema:"restrict to one configured folder by name"`
	FileType  string   `json:"file_type,omitempty" jsonschema:"restrict to one parser type: text or csv"`
	MaxTokens int      `json:"max_tokens,omitempty" jsonschema:"token budget for the response, default 2000"`
	Token     string   `json:"token,omitempty" jsonschema:"continuation token from a prior partial response"`
	_         struct{} `json:"-"`
}

// OutlineInput is get_document_outline's request shape.
type OutlineInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to outline"`
}

// SheetDataInput is get_sheet_data's request shape.
type SheetDataInput struct {
	DocumentID string `json:"document_id"`
	SheetName  string `json:"sheet_name,omitempty"`
	CellRange  string `json:"cell_range,omitempty"`
	MaxTokens  int    `json:"max_tokens,omitempty"`
}

// SlidesInput is get_slides' request shape.
type SlidesInput struct {
	DocumentID    string `json:"document_id"`
	SlideNumbers  string `json:"slide_numbers,omitempty" jsonschema:"e.g. 1,3-5"`
	MaxTokens     int    `json:"max_tokens,omitempty"`
}

// PagesInput is get_pages' request shape.
type PagesInput struct {
	DocumentID string `json:"document_id"`
	PageRange  string `json:"page_range,omitempty" jsonschema:"e.g. 1,3-5"`
	MaxTokens  int    `json:"max_tokens,omitempty"`
}

// ListFoldersInput is list_folders' (empty) request shape.
type ListFoldersInput struct{}

// ListDocumentsInput is list_documents' request shape.
type ListDocumentsInput struct {
	Folder    string `json:"folder" jsonschema:"folder name from list_folders"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	Token     string `json:"token,omitempty"`
}

// GetEmbeddingInput is get_embedding's request shape.
type GetEmbeddingInput struct {
	Text string `json:"text"`
}

// GetStatusInput is get_status' request shape.
type GetStatusInput struct {
	DocumentID string `json:"document_id,omitempty"`
}

// DocumentDataInput is get_document_data's request shape.
type DocumentDataInput struct {
	DocumentID string `json:"document_id"`
	Format     string `json:"format" jsonschema:"raw, chunks, or metadata"`
	MaxTokens  int    `json:"max_tokens,omitempty"`
}

// registerTools binds all ten endpoints to the underlying MCP server.
func (s *Server) registerTools() {
	type reg struct {
		name, desc string
	}
	s.logger.Debug("registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid semantic/regex search over indexed documents across all monitored folders.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, *Envelope, error) {
		return nil, s.handleSearch(ctx, in), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_document_outline",
		Description: "Returns a document's parser type, MIME type, chunk count and headings without its full content; no page, sheet or slide listing is included.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in OutlineInput) (*mcp.CallToolResult, *Envelope, error) {
		return nil, s.handleGetDocumentOutline(ctx, in), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_sheet_data",
		Description: "Returns header and row data for one sheet of a spreadsheet document.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in SheetDataInput) (*mcp.CallToolResult, *Envelope, error) {
		return nil, s.handleGetSheetData(ctx, in), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_slides",
		Description: "Returns slide title/body/notes for a slide deck document, optionally restricted to a slide range.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in SlidesInput) (*mcp.CallToolResult, *Envelope, error) {
		return nil, s.handleGetSlides(ctx, in), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_pages",
		Description: "Returns page content for a paginated document, optionally restricted to a page range.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in PagesInput) (*mcp.CallToolResult, *Envelope, error) {
		return nil, s.handleGetPages(ctx, in), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_folders",
		Description: "Lists the folders this daemon is monitoring.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ListFoldersInput) (*mcp.CallToolResult, *Envelope, error) {
		return nil, s.handleListFolders(ctx, in), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_documents",
		Description: "Lists the documents indexed under one monitored folder.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ListDocumentsInput) (*mcp.CallToolResult, *Envelope, error) {
		return nil, s.handleListDocuments(ctx, in), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_embedding",
		Description: "Returns the embedding vector for arbitrary text using the active embedding provider.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in GetEmbeddingInput) (*mcp.CallToolResult, *Envelope, error) {
		return nil, s.handleGetEmbedding(ctx, in), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_status",
		Description: "Reports the indexing status of one document, or the lifecycle state of each monitored folder; no progress figure is included.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in GetStatusInput) (*mcp.CallToolResult, *Envelope, error) {
		return nil, s.handleGetStatus(ctx, in), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_document_data",
		Description: "Returns a document's raw content, its chunks, or its parser-reported metadata.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in DocumentDataInput) (*mcp.CallToolResult, *Envelope, error) {
		return nil, s.handleGetDocumentData(ctx, in), nil
	})

	names := []reg{
		{"search", ""}, {"get_document_outline", ""}, {"get_sheet_data", ""}, {"get_slides", ""},
		{"get_pages", ""}, {"list_folders", ""}, {"list_documents", ""}, {"get_embedding", ""},
		{"get_status", ""}, {"get_document_data", ""},
	}
	s.logger.Info("MCP tools registered", slog.Int("count", len(names)))
}
