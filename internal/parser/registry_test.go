package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistry_FallsBackToTextForUnknownExtensions(t *testing.T) {
	r := NewRegistry()
	path := writeTempFile(t, "main.go", "package main\n")

	doc, err := r.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, KindText, doc.Kind)
	assert.Equal(t, "package main\n", doc.Content)
	assert.Equal(t, "text", doc.ParserType)
	assert.NotEmpty(t, doc.ByteHash)
}

func TestRegistry_DispatchesCSVToSpreadsheetParser(t *testing.T) {
	r := NewRegistry()
	path := writeTempFile(t, "data.csv", "name,age\nalice,30\n")

	doc, err := r.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, KindSpreadsheet, doc.Kind)
	sheet, ok := doc.Sheets["Sheet1"]
	require.True(t, ok)
	assert.Equal(t, []string{"name", "age"}, sheet.Headers)
	assert.Equal(t, [][]string{{"alice", "30"}}, sheet.Rows)
}

func TestRegistry_PDFPPTXXLSXFailUnsupportedType(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"x.pdf", "x.pptx", "x.xlsx"} {
		path := writeTempFile(t, name, "not really binary but irrelevant")
		_, err := r.Parse(path)
		require.Error(t, err, name)
	}
}

func TestRegistry_SupportsAndListExtensions(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Supports(".csv"))
	assert.True(t, r.Supports(".PDF"))
	assert.False(t, r.Supports(".go"), "text handling is the fallback, not a dedicated parser")

	exts := r.ListExtensions()
	assert.Contains(t, exts, ".csv")
	assert.Contains(t, exts, ".pdf")
	assert.Contains(t, exts, ".pptx")
	assert.Contains(t, exts, ".xlsx")
}

func TestRegistry_ParseMissingFileReturnsError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Parse(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	assert.Error(t, err)
}
