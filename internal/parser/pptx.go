package parser

// PPTXParser defines the slide-deck capability contract for PowerPoint
// files. Real extraction is out of scope; see PDFParser for why Parse
// always fails with UnsupportedType rather than the type being unregistered.
type PPTXParser struct{}

// NewPPTXParser creates the PPTX capability stub.
func NewPPTXParser() *PPTXParser {
	return &PPTXParser{}
}

// Extensions returns the extensions this parser claims.
func (p *PPTXParser) Extensions() []string { return []string{".pptx"} }

// Parse always fails with UnsupportedType.
func (p *PPTXParser) Parse(path string) (*ParsedDocument, error) {
	return nil, unsupportedType("pptx", path)
}
