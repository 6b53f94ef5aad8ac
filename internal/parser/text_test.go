package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextParser_ReadsFileVerbatim(t *testing.T) {
	path := writeTempFile(t, "notes.md", "# Title\n\nSome body text.\n")

	doc, err := NewTextParser().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, KindText, doc.Kind)
	assert.Equal(t, "# Title\n\nSome body text.\n", doc.Content)
	assert.Equal(t, int64(len("# Title\n\nSome body text.\n")), doc.Size)
}

func TestTextParser_MissingFileReturnsError(t *testing.T) {
	_, err := NewTextParser().Parse("/nonexistent/path/file.txt")
	assert.Error(t, err)
}
