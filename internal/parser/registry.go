package parser

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/okets/folder-mcp/internal/errors"
)

// Registry is the polymorphic {parse, supports, listExtensions} surface
// every concrete parser is registered behind. Extensions not claimed by any
// registered parser fall back to the registry's default (plain text).
type Registry struct {
	byExt    map[string]Parser
	fallback Parser
}

// NewRegistry builds the default registry: CSV as a real spreadsheet
// parser, PDF/PPTX/XLSX as capability-contract stubs that fail with
// UnsupportedType until a real backend is wired, and plain text as the
// fallback for every other extension (source code, markdown, config files,
// anything the scanner decided wasn't binary).
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	r.register(NewCSVParser())
	r.register(NewPDFParser())
	r.register(NewPPTXParser())
	r.register(NewXLSXParser())
	r.fallback = NewTextParser()
	return r
}

func (r *Registry) register(p Parser) {
	for _, ext := range p.Extensions() {
		r.byExt[ext] = p
	}
}

// Parse dispatches path to the parser matching its extension, or the
// fallback text parser if no specific parser claims it.
func (r *Registry) Parse(path string) (*ParsedDocument, error) {
	return r.parserFor(path).Parse(path)
}

// Supports reports whether ext (case-insensitive, dot-prefixed) has a
// concrete parser registered. The fallback text parser always handles
// unclaimed extensions, so this only distinguishes "has a dedicated
// parser" from "falls back to text".
func (r *Registry) Supports(ext string) bool {
	_, ok := r.byExt[strings.ToLower(ext)]
	return ok
}

// ListExtensions returns the extensions with a dedicated parser, sorted.
// It does not include the fallback text parser, which has none.
func (r *Registry) ListExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (r *Registry) parserFor(path string) Parser {
	ext := strings.ToLower(filepath.Ext(path))
	if p, ok := r.byExt[ext]; ok {
		return p
	}
	return r.fallback
}

// unsupportedType builds the UnsupportedType failure for a stub parser.
func unsupportedType(parserType, path string) error {
	return errors.InvalidInput("unsupported format: " + parserType + " extraction is not implemented (" + path + ")")
}
