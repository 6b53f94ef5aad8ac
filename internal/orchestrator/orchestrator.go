// Package orchestrator owns the set of monitored folders: it maps each
// folder's canonical path to a running internal/folder.Lifecycle, bounds
// how many folders may be Indexing at once (Watching is unbounded), and
// fans out each folder's lifecycle events to a single subscriber in
// per-folder order.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okets/folder-mcp/internal/errors"
	"github.com/okets/folder-mcp/internal/folder"
)

// DriverFactory builds the Driver that will back a newly added folder's
// Lifecycle. Supplied by the daemon, which has the scanner/change/index/
// watcher/store wiring the folder package itself deliberately doesn't
// import.
type DriverFactory func(f folder.Folder) (folder.Driver, error)

// DefaultIndexConcurrency bounds how many folders may be in the Indexing
// state at once when no explicit limit is configured.
const DefaultIndexConcurrency = 4

type entry struct {
	lc     *folder.Lifecycle
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator is the Monitored-Folders Orchestrator: the single owner of
// all per-folder Lifecycles.
type Orchestrator struct {
	mu       sync.Mutex
	folders  map[string]*entry // keyed by comparisonKey(canonical path)
	factory  DriverFactory
	onEvent  func(folder.Event)
	indexSem chan struct{}
}

// New constructs an Orchestrator. indexConcurrency bounds concurrent
// Indexing across all folders; values <= 0 use DefaultIndexConcurrency.
// onEvent may be nil, in which case lifecycle events are dropped.
func New(factory DriverFactory, indexConcurrency int, onEvent func(folder.Event)) *Orchestrator {
	if indexConcurrency <= 0 {
		indexConcurrency = DefaultIndexConcurrency
	}
	if onEvent == nil {
		onEvent = func(folder.Event) {}
	}
	return &Orchestrator{
		folders:  make(map[string]*entry),
		factory:  factory,
		onEvent:  onEvent,
		indexSem: make(chan struct{}, indexConcurrency),
	}
}

// AddFolder registers f and starts its Lifecycle in the background.
// Idempotent: adding a path that is already registered with the same
// enabled/backend/model attributes is a no-op; adding it with different
// attributes is equivalent to ReloadFolder.
func (o *Orchestrator) AddFolder(ctx context.Context, f folder.Folder) error {
	canon, err := CanonicalPath(f.Path)
	if err != nil {
		return errors.InvalidInput(fmt.Sprintf("resolving folder path %q: %v", f.Path, err))
	}
	f.Path = canon
	key := comparisonKey(canon)

	o.mu.Lock()
	if existing, ok := o.folders[key]; ok {
		current := existing.lc.Folder()
		o.mu.Unlock()
		if sameConfig(current, f) {
			return nil
		}
		return o.ReloadFolder(ctx, f)
	}
	o.mu.Unlock()

	driver, err := o.factory(f)
	if err != nil {
		return fmt.Errorf("building driver for %s: %w", canon, err)
	}
	driver = boundedIndexDriver{Driver: driver, sem: o.indexSem}

	lc := folder.New(f, driver, o.onEvent)
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	o.mu.Lock()
	if _, ok := o.folders[key]; ok {
		o.mu.Unlock()
		cancel()
		return errors.InvalidInput(fmt.Sprintf("folder %s was added concurrently", canon))
	}
	o.folders[key] = &entry{lc: lc, cancel: cancel, done: done}
	o.mu.Unlock()

	go func() {
		defer close(done)
		_ = lc.Run(runCtx)
	}()

	return nil
}

// RemoveFolder stops the folder's Lifecycle (running its Driver's
// Teardown) and deregisters it. Removing an unregistered path is a no-op.
func (o *Orchestrator) RemoveFolder(ctx context.Context, path string) error {
	canon, err := CanonicalPath(path)
	if err != nil {
		return errors.InvalidInput(fmt.Sprintf("resolving folder path %q: %v", path, err))
	}
	key := comparisonKey(canon)

	o.mu.Lock()
	e, ok := o.folders[key]
	if ok {
		delete(o.folders, key)
	}
	o.mu.Unlock()
	if !ok {
		return nil
	}

	if err := e.lc.Stop(ctx); err != nil {
		return fmt.Errorf("stopping %s: %w", canon, err)
	}
	return nil
}

// ReloadFolder applies updated attributes (display name, enabled,
// embedding backend, model) to an already-registered folder by stopping
// its current Lifecycle and starting a fresh one; registering f if it
// wasn't already present.
func (o *Orchestrator) ReloadFolder(ctx context.Context, f folder.Folder) error {
	if err := o.RemoveFolder(ctx, f.Path); err != nil {
		return err
	}
	return o.AddFolder(ctx, f)
}

// ListFolders returns a snapshot of every registered folder's current
// state, sorted by path.
func (o *Orchestrator) ListFolders() []folder.Folder {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]folder.Folder, 0, len(o.folders))
	for _, e := range o.folders {
		out = append(out, e.lc.Folder())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// GetFolderStatus returns the current state of one registered folder.
func (o *Orchestrator) GetFolderStatus(path string) (folder.Folder, bool) {
	canon, err := CanonicalPath(path)
	if err != nil {
		return folder.Folder{}, false
	}
	o.mu.Lock()
	e, ok := o.folders[comparisonKey(canon)]
	o.mu.Unlock()
	if !ok {
		return folder.Folder{}, false
	}
	return e.lc.Folder(), true
}

// Shutdown stops every registered folder, one at a time, in path order.
// Serializing teardown avoids contending store/database handles that
// multiple folders' Drivers might share (e.g. a shared SQLite connection
// pool), unlike normal operation where folders run fully independently.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	paths := make([]string, 0, len(o.folders))
	for _, e := range o.folders {
		paths = append(paths, e.lc.Folder().Path)
	}
	o.mu.Unlock()
	sort.Strings(paths)

	var firstErr error
	for _, p := range paths {
		if err := o.RemoveFolder(ctx, p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func sameConfig(a, b folder.Folder) bool {
	return a.DisplayName == b.DisplayName &&
		a.Enabled == b.Enabled &&
		a.EmbeddingBackend == b.EmbeddingBackend &&
		a.Model == b.Model
}

// boundedIndexDriver wraps a Driver so that Index acquires a slot from a
// shared semaphore before running and releases it afterward, bounding how
// many folders across the whole Orchestrator may be Indexing
// concurrently. Scanning, Detecting, and Watching are left unbounded.
type boundedIndexDriver struct {
	folder.Driver
	sem chan struct{}
}

func (d boundedIndexDriver) Index(ctx context.Context, observed []folder.ObservedFile, persisted []folder.PersistedFile, progress func(folder.Progress)) error {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-d.sem }()
	return d.Driver.Index(ctx, observed, persisted, progress)
}
