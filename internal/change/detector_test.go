package change

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) (absPath string, size int64) {
	t.Helper()
	absPath = filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(absPath, []byte(content), 0o644))
	info, err := os.Stat(absPath)
	require.NoError(t, err)
	return absPath, info.Size()
}

func TestDetect_FirstRunClassifiesEverythingNew(t *testing.T) {
	dir := t.TempDir()
	abs, size := writeFile(t, dir, "a.txt", "hello")

	cs, err := NewDetector().Detect([]Observed{{Path: "a.txt", AbsPath: abs, Size: size, ModTime: 1}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, cs.New)
	assert.Empty(t, cs.Modified)
	assert.Empty(t, cs.Deleted)
	assert.Empty(t, cs.Unchanged)
	assert.False(t, cs.RequiresFullReindex, "first observation is never a reindex")
}

func TestDetect_MatchingSizeAndModTimeIsUnchanged(t *testing.T) {
	dir := t.TempDir()
	abs, size := writeFile(t, dir, "a.txt", "hello")

	persisted := []Persisted{{Path: "a.txt", ContentHash: "whatever-stale-hash", Size: size, ModTime: 42}}
	cs, err := NewDetector().Detect([]Observed{{Path: "a.txt", AbsPath: abs, Size: size, ModTime: 42}}, persisted)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, cs.Unchanged)
}

func TestDetect_MTimeChangedButContentSameIsUnchanged(t *testing.T) {
	dir := t.TempDir()
	abs, size := writeFile(t, dir, "a.txt", "hello")
	hash, err := hashFile(abs)
	require.NoError(t, err)

	persisted := []Persisted{{Path: "a.txt", ContentHash: hash, Size: size, ModTime: 1}}
	cs, err := NewDetector().Detect([]Observed{{Path: "a.txt", AbsPath: abs, Size: size, ModTime: 2}}, persisted)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, cs.Unchanged)
}

func TestDetect_ContentChangedIsModified(t *testing.T) {
	dir := t.TempDir()
	abs, size := writeFile(t, dir, "a.txt", "hello world")

	persisted := []Persisted{{Path: "a.txt", ContentHash: "stale", Size: 5, ModTime: 1}}
	cs, err := NewDetector().Detect([]Observed{{Path: "a.txt", AbsPath: abs, Size: size, ModTime: 2}}, persisted)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, cs.Modified)
	assert.Equal(t, size, cs.EstimatedCost)
}

func TestDetect_MissingObservedPathIsDeleted(t *testing.T) {
	persisted := []Persisted{{Path: "gone.txt", ContentHash: "x", Size: 1, ModTime: 1}}
	cs, err := NewDetector().Detect(nil, persisted)
	require.NoError(t, err)
	assert.Equal(t, []string{"gone.txt"}, cs.Deleted)
	assert.Equal(t, 1, cs.TotalChanges)
}

func TestDetect_MajorityChangedRequiresFullReindex(t *testing.T) {
	dir := t.TempDir()
	var observed []Observed
	var persisted []Persisted
	for i := 0; i < 10; i++ {
		name := filepath.Join("f", string(rune('a'+i))+".txt")
		abs, size := writeFile(t, dir, string(rune('a'+i))+".txt", "new content")
		observed = append(observed, Observed{Path: name, AbsPath: abs, Size: size, ModTime: int64(i)})
		persisted = append(persisted, Persisted{Path: name, ContentHash: "stale", Size: 1, ModTime: -1})
	}

	cs, err := NewDetector().Detect(observed, persisted)
	require.NoError(t, err)
	assert.Equal(t, 10, len(cs.Modified))
	assert.True(t, cs.RequiresFullReindex)
}

func TestDetect_HashingMissingFileReturnsError(t *testing.T) {
	persisted := []Persisted{{Path: "a.txt", ContentHash: "stale", Size: 999, ModTime: -1}}
	_, err := NewDetector().Detect([]Observed{{Path: "a.txt", AbsPath: "/no/such/file", Size: 1, ModTime: 1}}, persisted)
	assert.Error(t, err)
}
