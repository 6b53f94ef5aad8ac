package parser

// PDFParser defines the paginated-document capability contract for PDF
// files. Real text extraction is out of scope; Parse always fails with
// UnsupportedType so callers can distinguish "this document exists and
// folder-mcp knows it's a PDF" from a genuine parse failure, and so the
// registry's Supports/ListExtensions surface accurately advertises PDF as a
// recognized (if unimplemented) family.
type PDFParser struct{}

// NewPDFParser creates the PDF capability stub.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Extensions returns the extensions this parser claims.
func (p *PDFParser) Extensions() []string { return []string{".pdf"} }

// Parse always fails with UnsupportedType.
func (p *PDFParser) Parse(path string) (*ParsedDocument, error) {
	return nil, unsupportedType("pdf", path)
}
