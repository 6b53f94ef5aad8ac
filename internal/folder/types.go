// Package folder implements the Folder Lifecycle: a per-folder state
// machine coordinating scanning, change detection, indexing, and
// filesystem watching, with pause/resume and a crash-safe teardown path.
package folder

import (
	"context"
	"time"
)

// State is one node of the Folder Lifecycle state machine.
type State string

const (
	StateCreated   State = "created"
	StateScanning  State = "scanning"
	StateDetecting State = "detecting"
	StateIndexing  State = "indexing"
	StateActive    State = "active"
	StateWatching  State = "watching"
	StatePaused    State = "paused"
	StateStopping  State = "stopping"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// terminal reports whether state has no outgoing transitions.
func (s State) terminal() bool {
	return s == StateStopped || s == StateFailed
}

// Folder is the monitored-folder record: identity, per-folder embedding
// configuration, and current lifecycle state. Comparison of Path is
// OS-aware (callers should canonicalize via CanonicalPath before using a
// Folder as a map key).
type Folder struct {
	Path             string // absolute, canonical
	DisplayName      string
	Enabled          bool
	EmbeddingBackend string
	Model            string
	State            State
}

// EventType names one Folder Lifecycle notification delivered to
// subscribers (the Monitored-Folders Orchestrator, ultimately MCP clients
// via get_status).
type EventType string

const (
	EventAdded            EventType = "added"
	EventIndexingStarted  EventType = "indexing-started"
	EventProgress         EventType = "progress"
	EventIndexingComplete EventType = "indexing-complete"
	EventError            EventType = "error"
	EventRemoved          EventType = "removed"
)

// Progress is an Indexing Pipeline progress snapshot, forwarded verbatim
// from the Driver's Index call.
type Progress struct {
	TotalFiles      int
	ProcessedFiles  int
	TotalChunks     int
	ProcessedChunks int
	Percentage      float64
}

// Event is one lifecycle notification. At most one of Progress/Err is set:
// Progress for EventProgress, Err for EventError.
type Event struct {
	FolderPath string
	Type       EventType
	Progress   *Progress
	Err        error
	At         time.Time
}

// Driver performs the actual work behind each lifecycle state; Lifecycle
// only sequences calls to it and manages the state machine. This keeps the
// state machine testable with a fake and keeps internal/folder decoupled
// from the scanner/store/index/watcher packages it would otherwise need to
// import directly.
type Driver interface {
	// Scan enumerates the folder's current files (the Scanning entry
	// action).
	Scan(ctx context.Context) ([]ObservedFile, error)
	// LoadSnapshot returns what was last persisted for this folder, empty
	// on first run.
	LoadSnapshot(ctx context.Context) ([]PersistedFile, error)
	// Index drives the Indexing Pipeline over the given changes, invoking
	// progress for each snapshot the pipeline emits.
	Index(ctx context.Context, observed []ObservedFile, persisted []PersistedFile, progress func(Progress)) error
	// Watch subscribes to filesystem notifications for the folder and
	// returns a channel that receives a value once per debounced burst of
	// changes, plus a function to unsubscribe. The channel closes when
	// watching stops.
	Watch(ctx context.Context) (changes <-chan struct{}, stop func() error, err error)
	// Teardown cancels in-flight work, drains pending writes, checkpoints
	// the store, and releases database handles (including, on Windows,
	// waiting for WAL/SHM handle release before the folder's persistence
	// directory can be safely deleted).
	Teardown(ctx context.Context) error
}

// ObservedFile and PersistedFile mirror change.Observed/change.Persisted so
// this package doesn't need to import internal/change just to describe its
// Driver contract; callers that do use internal/change convert its types
// with a plain type conversion, which the identical field sets allow.
type ObservedFile struct {
	Path    string
	AbsPath string
	Size    int64
	ModTime int64
}

type PersistedFile struct {
	Path        string
	ContentHash string
	Size        int64
	ModTime     int64
}
