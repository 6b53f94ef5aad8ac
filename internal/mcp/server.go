// Package mcp implements the MCP Endpoint Layer: ten JSON-RPC tools exposing
// the indexed folder corpus to LLM agents, each returning a uniform envelope
// (see envelope.go). Tool bodies live in endpoints.go; schema wiring in
// tools.go.
package mcp

import (
	"context"
	"log/slog"

	gosdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/okets/folder-mcp/internal/embed"
	"github.com/okets/folder-mcp/internal/orchestrator"
	"github.com/okets/folder-mcp/internal/parser"
	"github.com/okets/folder-mcp/internal/search"
	"github.com/okets/folder-mcp/internal/store"
	"github.com/okets/folder-mcp/pkg/version"
)

// Server is the MCP Endpoint Layer: it answers the ten tool calls against
// the Monitored-Folders Orchestrator and the Embedding Store, re-parsing
// original files on demand for document-structure endpoints.
type Server struct {
	mcp *gosdk.Server

	orch     *orchestrator.Orchestrator
	meta     store.MetadataStore
	vectors  store.VectorStore
	keywords store.KeywordIndex
	embedder embed.Embedder
	parsers  *parser.Registry
	fusion   *search.RRFFusion
	weights  search.Weights
	logger   *slog.Logger
}

// Deps bundles Server's collaborators so construction reads as one call
// instead of a long positional argument list.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Metadata     store.MetadataStore
	Vectors      store.VectorStore
	Keywords     store.KeywordIndex
	Embedder     embed.Embedder
	Parsers      *parser.Registry
	Logger       *slog.Logger
}

// NewServer builds the endpoint layer and registers its tools against a
// fresh go-sdk server instance. Serve still needs to be called to bind it
// to a transport.
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		orch:     d.Orchestrator,
		meta:     d.Metadata,
		vectors:  d.Vectors,
		keywords: d.Keywords,
		embedder: d.Embedder,
		parsers:  d.Parsers,
		fusion:   search.NewRRFFusion(),
		weights:  search.DefaultWeights(),
		logger:   logger,
		mcp: gosdk.NewServer(&gosdk.Implementation{
			Name:    "folder-mcp",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Serve blocks, answering tool calls over transport until ctx is cancelled
// or the transport closes.
func (s *Server) Serve(ctx context.Context, transport gosdk.Transport) error {
	s.logger.Info("mcp server starting")
	err := s.mcp.Run(ctx, transport)
	s.logger.Info("mcp server stopped", slog.Any("err", err))
	return err
}

// Close releases the embedder the server was given; the metadata, vector
// and keyword stores are not closed here. The orchestrator's own Shutdown is the caller's responsibility since it may
// outlive one Server instance across MCP reconnects.
func (s *Server) Close() error {
	if s.embedder != nil {
		return s.embedder.Close()
	}
	return nil
}
