package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/okets/folder-mcp/internal/errors"
)

// readFile reads path and stamps the metadata shared by every ParsedDocument
// shape: size, mtime, and a byte hash of the raw (pre-decode) content.
func readFile(path, parserType string) ([]byte, ParsedDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, ParsedDocument{}, errors.ParseFailed("stat failed for "+path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ParsedDocument{}, errors.ParseFailed("read failed for "+path, err)
	}

	sum := sha256.Sum256(data)
	doc := ParsedDocument{
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		ParserType: parserType,
		ByteHash:   hex.EncodeToString(sum[:]),
	}
	return data, doc, nil
}
