package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// finalize stamps document identity, location, semantic metadata, content
// hash, and token count onto chunks returned by a per-kind chunker. Callers
// own DocumentID/kind/language; everything else is derived from the chunk's
// own fields.
func finalize(chunks []*Chunk, documentID, kind, language string) []*Chunk {
	for _, c := range chunks {
		c.DocumentID = documentID
		if c.Location.StartLine == 0 && c.Location.EndLine == 0 {
			c.Location.StartLine = c.StartLine
			c.Location.EndLine = c.EndLine
		}
		c.Semantic = semanticMetadataFor(c, kind, language)
		c.ContentHash = contentHash(c.Content)
		c.TokenCount = estimateTokens(c.Content)
		c.ID = stableChunkID(documentID, c.ContentHash, c.StartLine)
		c.UpdatedAt = c.CreatedAt
	}
	return chunks
}

func semanticMetadataFor(c *Chunk, kind, language string) SemanticMetadata {
	meta := SemanticMetadata{
		SchemaVersion: CurrentSemanticMetadataVersion,
		Language:      language,
		Kind:          kind,
	}
	if headerPath := c.Metadata["header_path"]; headerPath != "" {
		meta.SectionPath = strings.Split(headerPath, " > ")
	}
	if title := c.Metadata["section_title"]; title != "" {
		meta.HeadingContext = title
	}
	return meta
}

// contentHash hashes the NFC-normalized content so that Unicode-equivalent
// byte sequences (e.g. combining vs. precomposed accents) hash identically,
// which keeps idempotent re-indexing from duplicating rows.
func contentHash(content string) string {
	normalized := norm.NFC.String(content)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// stableChunkID derives a chunk ID from the owning document and the
// chunk's content hash, so identical content re-produces the same ID across
// re-indexing runs (the idempotence law) while differing by position only
// when two chunks in the same document hash identically.
func stableChunkID(documentID, contentHash string, startLine int) string {
	input := fmt.Sprintf("%s:%s:%d", documentID, contentHash, startLine)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
