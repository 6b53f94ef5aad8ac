package change

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"

	"github.com/okets/folder-mcp/internal/errors"
)

// FullReindexThreshold is the fraction of persisted paths that must change
// in one detection pass before RequiresFullReindex is set, on the
// assumption that piecemeal incremental writes are no cheaper than a fresh
// pass once most of the folder has moved.
const FullReindexThreshold = 0.5

// Detector classifies an observed folder snapshot against what was last
// persisted for it.
type Detector struct{}

// NewDetector creates a Change Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect compares observed (the current scan) against persisted (the
// folder's last-known snapshot, empty on first run) and returns the
// resulting ChangeSet. A path is Unchanged if size and mtime both match the
// persisted record; otherwise its content is hashed and compared against
// the persisted hash, since a touch without a content change (or a
// sub-second mtime truncation) shouldn't trigger re-embedding.
func (d *Detector) Detect(observed []Observed, persisted []Persisted) (*ChangeSet, error) {
	persistedByPath := make(map[string]Persisted, len(persisted))
	for _, p := range persisted {
		persistedByPath[p.Path] = p
	}

	cs := &ChangeSet{}
	seen := make(map[string]bool, len(observed))

	for _, obs := range observed {
		seen[obs.Path] = true
		prior, existed := persistedByPath[obs.Path]
		if !existed {
			cs.New = append(cs.New, obs.Path)
			cs.EstimatedCost += obs.Size
			continue
		}

		if prior.Size == obs.Size && prior.ModTime == obs.ModTime {
			cs.Unchanged = append(cs.Unchanged, obs.Path)
			continue
		}

		hash, err := hashFile(obs.AbsPath)
		if err != nil {
			return nil, errors.ParseFailed("hashing "+obs.AbsPath, err)
		}
		if hash == prior.ContentHash {
			cs.Unchanged = append(cs.Unchanged, obs.Path)
			continue
		}

		cs.Modified = append(cs.Modified, obs.Path)
		cs.EstimatedCost += obs.Size
	}

	for path := range persistedByPath {
		if !seen[path] {
			cs.Deleted = append(cs.Deleted, path)
		}
	}

	sort.Strings(cs.New)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Deleted)
	sort.Strings(cs.Unchanged)

	cs.TotalChanges = len(cs.New) + len(cs.Modified) + len(cs.Deleted)
	cs.RequiresFullReindex = requiresFullReindex(cs, len(persisted))

	return cs, nil
}

func requiresFullReindex(cs *ChangeSet, persistedCount int) bool {
	if persistedCount == 0 {
		// First observation of this folder: everything is "new", not a
		// reindex of anything, so there's nothing to treat as "full".
		return false
	}
	return float64(cs.TotalChanges)/float64(persistedCount) >= FullReindexThreshold
}

func hashFile(absPath string) (string, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
