package chunk

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
)

// CSVChunker treats a CSV file as a single-sheet spreadsheet: one chunk per
// data row, each stamped with its row number and rendered as
// "header: value" pairs so the embedding carries column context.
type CSVChunker struct{}

// NewCSVChunker creates a CSV chunker.
func NewCSVChunker() *CSVChunker {
	return &CSVChunker{}
}

// SupportedExtensions returns the extensions this chunker handles.
func (c *CSVChunker) SupportedExtensions() []string {
	return []string{".csv"}
}

// Chunk splits a CSV file into one chunk per row.
func (c *CSVChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	reader := csv.NewReader(strings.NewReader(string(file.Content)))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil // empty or unreadable CSV yields no chunks
	}

	now := time.Now()
	var chunks []*Chunk
	rowNum := 0

	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		rowNum++

		var b strings.Builder
		for i, val := range record {
			if i >= len(header) {
				break
			}
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s: %s", header[i], val)
		}
		content := b.String()

		chunks = append(chunks, &Chunk{
			FilePath:    file.Path,
			Content:     content,
			RawContent:  content,
			ContentType: ContentTypeRow,
			StartLine:   rowNum + 1, // +1 for the header row
			EndLine:     rowNum + 1,
			Metadata:    map[string]string{"sheet": "", "row": fmt.Sprintf("%d", rowNum)},
			Location:    Location{Sheet: "Sheet1", Row: rowNum},
			CreatedAt:   now,
		})
	}

	return chunks, nil
}
