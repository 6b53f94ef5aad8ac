package parser

// XLSXParser defines the spreadsheet capability contract for Excel files.
// Real extraction is out of scope; see PDFParser for why Parse always fails
// with UnsupportedType rather than the type being unregistered.
type XLSXParser struct{}

// NewXLSXParser creates the XLSX capability stub.
func NewXLSXParser() *XLSXParser {
	return &XLSXParser{}
}

// Extensions returns the extensions this parser claims.
func (p *XLSXParser) Extensions() []string { return []string{".xlsx"} }

// Parse always fails with UnsupportedType.
func (p *XLSXParser) Parse(path string) (*ParsedDocument, error) {
	return nil, unsupportedType("xlsx", path)
}
