package parser

// TextParser handles every extension not claimed by a more specific parser:
// source code, markdown, plain text, and structured config formats alike.
// The Parser Registry only distinguishes file *family* (text vs. paginated
// vs. slides vs. spreadsheet); it's the Chunker that tells code from
// markdown from plain prose by extension and language.
type TextParser struct{}

// NewTextParser creates the fallback text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Extensions returns nil: TextParser is never registered by extension, it's
// the registry's fallback for everything unclaimed.
func (p *TextParser) Extensions() []string { return nil }

// Parse reads path as UTF-8 text and returns a KindText document.
func (p *TextParser) Parse(path string) (*ParsedDocument, error) {
	data, doc, err := readFile(path, "text")
	if err != nil {
		return nil, err
	}
	doc.Kind = KindText
	doc.Content = string(data)
	return &doc, nil
}
