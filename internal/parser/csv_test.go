package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVParser_EmptyFileYieldsEmptySheet(t *testing.T) {
	path := writeTempFile(t, "empty.csv", "")

	doc, err := NewCSVParser().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, KindSpreadsheet, doc.Kind)
	sheet := doc.Sheets["Sheet1"]
	assert.Nil(t, sheet.Headers)
	assert.Nil(t, sheet.Rows)
}

func TestCSVParser_HeaderOnlyYieldsNoRows(t *testing.T) {
	path := writeTempFile(t, "header.csv", "a,b,c\n")

	doc, err := NewCSVParser().Parse(path)
	require.NoError(t, err)
	sheet := doc.Sheets["Sheet1"]
	assert.Equal(t, []string{"a", "b", "c"}, sheet.Headers)
	assert.Empty(t, sheet.Rows)
}

func TestCSVParser_RaggedRowsAreKeptAsIs(t *testing.T) {
	path := writeTempFile(t, "ragged.csv", "a,b\n1\n2,3,4\n")

	doc, err := NewCSVParser().Parse(path)
	require.NoError(t, err)
	sheet := doc.Sheets["Sheet1"]
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, []string{"1"}, sheet.Rows[0])
	assert.Equal(t, []string{"2", "3", "4"}, sheet.Rows[1])
}
