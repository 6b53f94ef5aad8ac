package parser

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/okets/folder-mcp/internal/errors"
)

// CSVParser treats a CSV file as a spreadsheet with a single sheet named "Sheet1".
type CSVParser struct{}

// NewCSVParser creates the CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Extensions returns the extensions this parser claims.
func (p *CSVParser) Extensions() []string { return []string{".csv"} }

// Parse reads path as CSV and returns a KindSpreadsheet document with one
// sheet named "Sheet1". An empty or header-only file yields a sheet with no
// rows, not a ParseError.
func (p *CSVParser) Parse(path string) (*ParsedDocument, error) {
	data, doc, err := readFile(path, "csv")
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		doc.Kind = KindSpreadsheet
		doc.Sheets = map[string]Sheet{"Sheet1": {}}
		return &doc, nil
	}
	if err != nil {
		return nil, errors.ParseFailed("malformed CSV in "+path, err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ParseFailed("malformed CSV in "+path, err)
		}
		rows = append(rows, record)
	}

	doc.Kind = KindSpreadsheet
	doc.Sheets = map[string]Sheet{"Sheet1": {Headers: headers, Rows: rows}}
	return &doc, nil
}
