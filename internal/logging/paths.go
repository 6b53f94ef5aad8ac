// Package logging provides the daemon's structured logging setup: a
// rotating JSON file writer plus the MCP-safe mode that never writes to
// stdout/stderr.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultStateDir returns the process-wide state directory, ~/.folder-mcp
// on Unix-likes, falling back to a temp dir.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".folder-mcp")
	}
	return filepath.Join(home, ".folder-mcp")
}

// DefaultLogDir returns the default log directory.
func DefaultLogDir() string {
	return filepath.Join(DefaultStateDir(), "logs")
}

// DefaultLogPath returns the default daemon log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "daemon.log")
}

// FindLogFile resolves the log file to display, preferring an explicit path.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}
	global := DefaultLogPath()
	if _, err := os.Stat(global); err == nil {
		return global, nil
	}
	return "", fmt.Errorf("no log file found at %s; the daemon may not have run yet", global)
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}
