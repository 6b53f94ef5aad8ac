// Package parser implements the Parser Registry: given a path and its
// extension, produce a ParsedDocument shaped for that file family, or a
// typed failure. Parsers are pure with respect to the filesystem beyond
// reading the one file they're given — no network calls, no reaching into
// sibling files.
package parser

import "time"

// DocumentKind names the shape a ParsedDocument carries. Exactly one of the
// corresponding fields on ParsedDocument is populated per kind.
type DocumentKind string

const (
	KindText        DocumentKind = "text"
	KindPaginated   DocumentKind = "paginated"
	KindSlides      DocumentKind = "slides"
	KindSpreadsheet DocumentKind = "spreadsheet"
)

// Page is one page of a paginated document (e.g. PDF).
type Page struct {
	Number  int
	Content string
}

// Slide is one slide of a slide deck (e.g. PPTX).
type Slide struct {
	Number int
	Title  string
	Body   string
	Notes  string
}

// Sheet is one named sheet of a spreadsheet: a header row plus data rows.
type Sheet struct {
	Headers []string
	Rows    [][]string
}

// ParsedDocument is the Parser Registry's output: a tagged union over the
// four document shapes, plus metadata shared by all of them.
type ParsedDocument struct {
	Kind DocumentKind

	// Content is populated when Kind == KindText.
	Content string
	// Pages is populated when Kind == KindPaginated.
	Pages []Page
	// Slides is populated when Kind == KindSlides.
	Slides []Slide
	// Sheets is populated when Kind == KindSpreadsheet, keyed by sheet name.
	Sheets map[string]Sheet

	Size       int64
	ModTime    time.Time
	ParserType string
	ByteHash   string // sha256 hex of the raw file bytes, before any decoding
}

// Parser handles one file family (text, CSV, PDF, ...).
type Parser interface {
	// Parse reads path and returns its ParsedDocument, or a typed failure
	// (errors.InvalidInput for UnsupportedType, errors.ParseFailed for a
	// malformed file, or a wrapped os error for an IOError).
	Parse(path string) (*ParsedDocument, error)
	// Extensions lists the lowercase, dot-prefixed extensions this parser
	// claims (e.g. ".csv"). A parser registered as the registry's fallback
	// may return nil here since it claims whatever nothing else does.
	Extensions() []string
}
