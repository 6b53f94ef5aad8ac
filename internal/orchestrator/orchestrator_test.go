package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okets/folder-mcp/internal/folder"
)

// stubDriver is a minimal Driver that reaches Watching immediately and
// never produces changes, so tests can drive Add/Remove/Reload without a
// real filesystem.
type stubDriver struct {
	indexing     *int32 // shared counter across all stubDrivers in a test, to assert concurrency bounds
	maxObserved  *int32
	indexDelay   time.Duration
	teardownDone chan struct{}
}

func (d *stubDriver) Scan(ctx context.Context) ([]folder.ObservedFile, error) {
	return nil, nil
}

func (d *stubDriver) LoadSnapshot(ctx context.Context) ([]folder.PersistedFile, error) {
	return nil, nil
}

func (d *stubDriver) Index(ctx context.Context, observed []folder.ObservedFile, persisted []folder.PersistedFile, progress func(folder.Progress)) error {
	if d.indexing != nil {
		cur := atomic.AddInt32(d.indexing, 1)
		defer atomic.AddInt32(d.indexing, -1)
		for {
			max := atomic.LoadInt32(d.maxObserved)
			if cur <= max || atomic.CompareAndSwapInt32(d.maxObserved, max, cur) {
				break
			}
		}
	}
	if d.indexDelay > 0 {
		select {
		case <-time.After(d.indexDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (d *stubDriver) Watch(ctx context.Context) (<-chan struct{}, func() error, error) {
	ch := make(chan struct{})
	return ch, func() error { return nil }, nil
}

func (d *stubDriver) Teardown(ctx context.Context) error {
	if d.teardownDone != nil {
		close(d.teardownDone)
	}
	return nil
}

func newStubFactory() DriverFactory {
	return func(f folder.Folder) (folder.Driver, error) {
		return &stubDriver{}, nil
	}
}

func TestOrchestrator_AddListRemove(t *testing.T) {
	o := New(newStubFactory(), 0, nil)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, o.AddFolder(ctx, folder.Folder{Path: dir, DisplayName: "docs", Enabled: true}))

	require.Eventually(t, func() bool {
		f, ok := o.GetFolderStatus(dir)
		return ok && f.State == folder.StateWatching
	}, 2*time.Second, 5*time.Millisecond)

	list := o.ListFolders()
	require.Len(t, list, 1)
	assert.Equal(t, "docs", list[0].DisplayName)

	require.NoError(t, o.RemoveFolder(ctx, dir))
	_, ok := o.GetFolderStatus(dir)
	assert.False(t, ok)
	assert.Empty(t, o.ListFolders())
}

func TestOrchestrator_AddIsIdempotentForSameConfig(t *testing.T) {
	var calls int32
	factory := func(f folder.Folder) (folder.Driver, error) {
		atomic.AddInt32(&calls, 1)
		return &stubDriver{}, nil
	}
	o := New(factory, 0, nil)
	ctx := context.Background()
	dir := t.TempDir()

	f := folder.Folder{Path: dir, DisplayName: "docs", Enabled: true, EmbeddingBackend: "ollama", Model: "m1"}
	require.NoError(t, o.AddFolder(ctx, f))
	require.Eventually(t, func() bool {
		fl, ok := o.GetFolderStatus(dir)
		return ok && fl.State == folder.StateWatching
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, o.AddFolder(ctx, f))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "re-adding identical config should not rebuild the driver")
}

func TestOrchestrator_AddWithChangedConfigReloads(t *testing.T) {
	var calls int32
	factory := func(f folder.Folder) (folder.Driver, error) {
		atomic.AddInt32(&calls, 1)
		return &stubDriver{}, nil
	}
	o := New(factory, 0, nil)
	ctx := context.Background()
	dir := t.TempDir()

	f := folder.Folder{Path: dir, DisplayName: "docs", Enabled: true, Model: "m1"}
	require.NoError(t, o.AddFolder(ctx, f))
	require.Eventually(t, func() bool {
		fl, ok := o.GetFolderStatus(dir)
		return ok && fl.State == folder.StateWatching
	}, 2*time.Second, 5*time.Millisecond)

	f.Model = "m2"
	require.NoError(t, o.AddFolder(ctx, f))
	require.Eventually(t, func() bool {
		fl, ok := o.GetFolderStatus(dir)
		return ok && fl.State == folder.StateWatching && fl.Model == "m2"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOrchestrator_IndexConcurrencyIsBounded(t *testing.T) {
	var indexing, maxObserved int32
	factory := func(f folder.Folder) (folder.Driver, error) {
		return &stubDriver{indexing: &indexing, maxObserved: &maxObserved, indexDelay: 50 * time.Millisecond}, nil
	}
	o := New(factory, 2, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		dir := t.TempDir()
		wg.Add(1)
		go func(dir string) {
			defer wg.Done()
			_ = o.AddFolder(ctx, folder.Folder{Path: dir, DisplayName: dir, Enabled: true})
		}(dir)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		for _, f := range o.ListFolders() {
			if f.State != folder.StateWatching {
				return false
			}
		}
		return len(o.ListFolders()) == 5
	}, 3*time.Second, 10*time.Millisecond)

	assert.LessOrEqual(t, atomic.LoadInt32(&maxObserved), int32(2))
}

func TestOrchestrator_ShutdownStopsAllFolders(t *testing.T) {
	o := New(newStubFactory(), 0, nil)
	ctx := context.Background()

	var dirs []string
	for i := 0; i < 3; i++ {
		dir := t.TempDir()
		dirs = append(dirs, dir)
		require.NoError(t, o.AddFolder(ctx, folder.Folder{Path: dir, DisplayName: dir, Enabled: true}))
	}

	require.Eventually(t, func() bool { return len(o.ListFolders()) == 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, o.Shutdown(ctx))
	assert.Empty(t, o.ListFolders())
}

func TestCanonicalPath_StripsTrailingSeparator(t *testing.T) {
	dir := t.TempDir()
	canon, err := CanonicalPath(dir + "/")
	require.NoError(t, err)
	assert.Equal(t, dir, canon)
}
