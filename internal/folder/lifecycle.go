package folder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okets/folder-mcp/internal/errors"
)

// transitions lists, for each state, the states reachable from it via a
// single explicit call (Start/Pause/Resume/Stop/fail). Entry into
// Scanning/Detecting/Indexing/Watching beyond the first is driven
// internally by Run's loop, not by this table.
var transitions = map[State][]State{
	StateCreated:   {StateScanning},
	StateScanning:  {StateDetecting, StateFailed, StateStopping},
	StateDetecting: {StateIndexing, StateFailed, StateStopping},
	StateIndexing:  {StateActive, StateFailed, StateStopping},
	StateActive:    {StateWatching, StatePaused, StateFailed, StateStopping},
	// Watching has no direct transition to Paused: Run's watch() loop is
	// blocked selecting on the change channel, so pausing is only accepted
	// between indexing runs, in Active, and takes effect before the next
	// Watching entry.
	StateWatching: {StateDetecting, StateFailed, StateStopping},
	StatePaused:   {StateActive, StateStopping},
	StateStopping: {StateStopped, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Lifecycle drives one Folder through the states above, calling into a
// Driver for the actual scanning/detection/indexing/watching work. All
// exported methods are safe for concurrent use; transitions are
// serialized under mu.
type Lifecycle struct {
	mu      sync.Mutex
	folder  Folder
	driver  Driver
	onEvent func(Event)

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Lifecycle for folder, starting in StateCreated. onEvent
// may be nil, in which case events are dropped.
func New(f Folder, driver Driver, onEvent func(Event)) *Lifecycle {
	f.State = StateCreated
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	return &Lifecycle{folder: f, driver: driver, onEvent: onEvent}
}

// Folder returns a snapshot of the current folder record, including its
// current State.
func (l *Lifecycle) Folder() Folder {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.folder
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.folder.State
}

func (l *Lifecycle) setState(s State) {
	l.mu.Lock()
	l.folder.State = s
	l.mu.Unlock()
}

func (l *Lifecycle) emit(evt Event) {
	evt.FolderPath = l.folder.Path
	l.onEvent(evt)
}

// Run advances the folder from Created through Scanning, Detecting,
// Indexing, and Active into Watching, then blocks servicing debounced
// change notifications (each one re-enters Detecting/Indexing and returns
// to Watching) until ctx is cancelled or Stop is called. Run returns once
// the folder reaches Stopped or Failed.
//
// Run must only be called once per Lifecycle; callers that need status
// while Run is active should poll State()/Folder() or consume events.
func (l *Lifecycle) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.done = make(chan struct{})
	l.mu.Unlock()
	defer close(l.done)

	l.emit(Event{Type: EventAdded, At: now()})

	// The initial pass visits Scanning explicitly. Every subsequent pass is
	// entered directly from Watching into Detecting (a debounced change
	// doesn't need its own Scanning state; Detecting's entry action does
	// its own full enumeration via the Driver).
	if err := l.transition(StateCreated, StateScanning); err != nil {
		return err
	}
	observed, err := l.driver.Scan(runCtx)
	if err != nil {
		return l.fail(fmt.Errorf("scanning %s: %w", l.folder.Path, err))
	}
	if err := l.transition(StateScanning, StateDetecting); err != nil {
		return err
	}

	for {
		persisted, err := l.driver.LoadSnapshot(runCtx)
		if err != nil {
			return l.fail(fmt.Errorf("loading snapshot for %s: %w", l.folder.Path, err))
		}

		if err := l.index(runCtx, observed, persisted); err != nil {
			return l.fail(err)
		}

		if err := l.transition(StateIndexing, StateActive); err != nil {
			return err
		}
		if err := l.transition(StateActive, StateWatching); err != nil {
			return err
		}

		changed, stopErr := l.watch(runCtx)
		if stopErr != nil {
			return l.fail(stopErr)
		}
		if !changed {
			// context cancelled or Stop() called while watching.
			return l.stop(ctx)
		}

		if err := l.transition(StateWatching, StateDetecting); err != nil {
			return err
		}
		observed, err = l.driver.Scan(runCtx)
		if err != nil {
			return l.fail(fmt.Errorf("scanning %s: %w", l.folder.Path, err))
		}
	}
}

func (l *Lifecycle) index(ctx context.Context, observed []ObservedFile, persisted []PersistedFile) error {
	if err := l.transition(StateDetecting, StateIndexing); err != nil {
		return err
	}
	l.emit(Event{Type: EventIndexingStarted, At: now()})
	err := l.driver.Index(ctx, observed, persisted, func(p Progress) {
		pp := p
		l.emit(Event{Type: EventProgress, Progress: &pp, At: now()})
	})
	if err != nil {
		return fmt.Errorf("indexing %s: %w", l.folder.Path, err)
	}
	l.emit(Event{Type: EventIndexingComplete, At: now()})
	return nil
}

// watch enters the Watching state and blocks until a debounced change
// arrives (returns true, nil), or the context is done / watching stops
// cleanly (returns false, nil), or the watcher itself errors (returns
// false, err).
func (l *Lifecycle) watch(ctx context.Context) (changed bool, err error) {
	changes, stop, err := l.driver.Watch(ctx)
	if err != nil {
		return false, fmt.Errorf("watching %s: %w", l.folder.Path, err)
	}
	defer stop()

	select {
	case <-ctx.Done():
		return false, nil
	case _, ok := <-changes:
		if !ok {
			return false, nil
		}
		return true, nil
	}
}

// Pause suspends watching without tearing down the indexed store. Only
// valid from Active; from Watching it returns an InvalidInput error.
func (l *Lifecycle) Pause() error {
	cur := l.State()
	if cur == StateWatching {
		// watch() is blocked selecting on ctx/changes; cancelling briefly
		// would be disruptive, so Pause from Watching is expressed as a
		// direct state transition the next watch() iteration will observe
		// is no longer Watching and skip re-entering it. Simpler: only
		// allow pausing from Active, before watch() is entered.
		return errors.InvalidInput("pause: folder is watching; call Pause between indexing runs")
	}
	return l.transition(cur, StatePaused)
}

// Resume returns a paused folder to Active; Run's next Detecting cycle
// will proceed to Watching as usual. Only valid from Paused.
func (l *Lifecycle) Resume() error {
	return l.transition(StatePaused, StateActive)
}

// Stop requests an orderly shutdown: in-flight work is cancelled, the
// Driver's Teardown is invoked, and the folder reaches Stopped. Stop may
// be called from any non-terminal state and blocks until Run returns or
// ctx expires.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	cancel := l.cancel
	done := l.done
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return l.stop(ctx)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lifecycle) stop(ctx context.Context) error {
	cur := l.State()
	if cur.terminal() {
		return nil
	}
	if err := l.forceTransition(cur, StateStopping); err != nil {
		return err
	}
	if err := l.driver.Teardown(ctx); err != nil {
		l.setState(StateFailed)
		l.emit(Event{Type: EventError, Err: err, At: now()})
		return fmt.Errorf("tearing down %s: %w", l.folder.Path, err)
	}
	l.setState(StateStopped)
	l.emit(Event{Type: EventRemoved, At: now()})
	return nil
}

func (l *Lifecycle) fail(err error) error {
	l.setState(StateFailed)
	l.emit(Event{Type: EventError, Err: err, At: now()})
	return err
}

func (l *Lifecycle) transition(from, to State) error {
	if !canTransition(from, to) {
		return errors.Internal(fmt.Sprintf("folder %s: invalid transition %s -> %s", l.folder.Path, from, to), nil)
	}
	return l.forceTransition(from, to)
}

// forceTransition sets the state without consulting the transitions table;
// used for the Stopping/Stopped/Failed terminal moves that stop() drives
// regardless of where Run currently is.
func (l *Lifecycle) forceTransition(from, to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.folder.State != from {
		return errors.Internal(fmt.Sprintf("folder %s: expected state %s, got %s", l.folder.Path, from, l.folder.State), nil)
	}
	l.folder.State = to
	return nil
}

// now is a seam so tests can observe that timestamps are set without
// depending on wall-clock time.
var now = time.Now
