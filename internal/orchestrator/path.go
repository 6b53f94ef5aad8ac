package orchestrator

import (
	"path/filepath"
	"runtime"
	"strings"
)

// CanonicalPath resolves path to an absolute, cleaned form. filepath.Clean
// already strips trailing separators except for a filesystem root, so no
// extra handling is needed for that part of the folder-path invariant.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// comparisonKey returns the key used to detect duplicate folder
// registrations. Comparison is case-insensitive on Windows and macOS
// (matching their default filesystems) and case-sensitive everywhere else.
func comparisonKey(path string) string {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return strings.ToLower(path)
	}
	return path
}
