package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raoulx24/save-archiver/internal/config"
	"github.com/raoulx24/save-archiver/internal/logging"
	"github.com/raoulx24/save-archiver/internal/mailbox"
	"github.com/raoulx24/save-archiver/internal/worker"
)

type fakeSource struct {
	events chan string
	errs   chan error
	closed atomic.Bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan string), errs: make(chan error)}
}

func (f *fakeSource) Events() <-chan string { return f.events }
func (f *fakeSource) Errors() <-chan error  { return f.errs }
func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return nil
}

func newWatcher(t *testing.T, dir string, settle time.Duration) (*Watcher, *mailbox.Mailbox[string, worker.Job]) {
	t.Helper()
	mb := mailbox.New[string, worker.Job]()
	cfg := config.SourceConfig{
		Path:     dir,
		Patterns: []string{"*.save"},
		Watch:    config.WatchConfig{Mode: "poll", PollInterval: 20 * time.Millisecond, SettleDelay: settle},
	}
	return New(cfg, logging.Discard(), mb), mb
}

func TestSettlerCoalescesBurst(t *testing.T) {
	var mu sync.Mutex
	fired := map[string]int{}
	s := newSettler(50*time.Millisecond, func(p string) {
		mu.Lock()
		fired[p]++
		mu.Unlock()
	})

	for i := 0; i < 20; i++ {
		s.touch("a.save")
		time.Sleep(2 * time.Millisecond)
	}
	s.touch("b.save")

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"a.save": 1, "b.save": 1}, fired)
}

func TestSettlerStopDropsPending(t *testing.T) {
	var n atomic.Int32
	s := newSettler(20*time.Millisecond, func(string) { n.Add(1) })
	s.touch("a.save")
	s.stop()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, n.Load())
}

func TestRunQueuesOneJobPerSettledSave(t *testing.T) {
	dir := t.TempDir()
	w, mb := newWatcher(t, dir, 30*time.Millisecond)
	src := newFakeSource()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, src) }()

	p := filepath.Join(dir, "Slot_1.save")
	for i := 0; i < 10; i++ {
		src.events <- p
	}
	src.events <- filepath.Join(dir, "notes.txt")
	src.events <- filepath.Join(dir, ".tmp-1234-Slot_1.save")

	require.Eventually(t, func() bool { return mb.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	job, ok := mb.TryTake()
	require.True(t, ok)
	assert.Equal(t, worker.Job{Slot: "Slot_1.save", Path: p}, job)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, mb.Len())

	cancel()
	require.NoError(t, <-done)
	assert.True(t, src.closed.Load())
}

func TestRunStopsOnFatalSourceError(t *testing.T) {
	w, _ := newWatcher(t, t.TempDir(), time.Millisecond)
	src := newFakeSource()

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), src) }()

	src.errs <- errors.New("queue overflow")
	src.errs <- fmt.Errorf("%w: directory removed", ErrFatal)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrFatal)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.True(t, src.closed.Load())
}

func TestScanListsTrackedSaves(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.save", "a.save", "a.save.pre-restore-20240101-000000", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.save"), 0o755))

	w, _ := newWatcher(t, dir, time.Millisecond)
	got, err := w.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.save"), filepath.Join(dir, "b.save")}, got)
}

func TestScanMissingDirIsFatal(t *testing.T) {
	w, _ := newWatcher(t, filepath.Join(t.TempDir(), "gone"), time.Millisecond)
	_, err := w.Scan()
	assert.ErrorIs(t, err, ErrFatal)
}

func TestPollSourceReportsChanges(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.save")
	require.NoError(t, os.WriteFile(existing, []byte("1"), 0o644))

	src, err := NewPollSource(dir, 10*time.Millisecond)
	require.NoError(t, err)
	defer src.Close()

	created := filepath.Join(dir, "new.save")
	require.NoError(t, os.WriteFile(created, []byte("x"), 0o644))

	select {
	case p := <-src.Events():
		assert.Equal(t, created, p)
	case <-time.After(2 * time.Second):
		t.Fatal("no event for new file")
	}

	require.NoError(t, os.WriteFile(existing, []byte("12"), 0o644))
	select {
	case p := <-src.Events():
		assert.Equal(t, existing, p)
	case <-time.After(2 * time.Second):
		t.Fatal("no event for modified file")
	}
}

func TestPollSourceDirectoryRemovedIsFatal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "saves")
	require.NoError(t, os.Mkdir(dir, 0o755))

	src, err := NewPollSource(dir, 10*time.Millisecond)
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, os.RemoveAll(dir))
	select {
	case err := <-src.Errors():
		assert.ErrorIs(t, err, ErrFatal)
	case <-time.After(2 * time.Second):
		t.Fatal("no fatal error after directory removal")
	}
}

func TestNotifySourceReportsWrites(t *testing.T) {
	dir := t.TempDir()
	src, err := NewNotifySource(dir, 50*time.Millisecond)
	require.NoError(t, err)
	defer src.Close()

	p := filepath.Join(dir, "Slot_9.save")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	select {
	case got := <-src.Events():
		assert.Equal(t, p, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no fsnotify event")
	}
}

func TestNotifySourceDirectoryRemovedIsFatal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "saves")
	require.NoError(t, os.Mkdir(dir, 0o755))

	src, err := NewNotifySource(dir, 20*time.Millisecond)
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, os.RemoveAll(dir))
	for {
		select {
		case <-src.Events():
		case err := <-src.Errors():
			if errors.Is(err, ErrFatal) {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no fatal error after directory removal")
		}
	}
}

func TestOpenUnknownMode(t *testing.T) {
	mb := mailbox.New[string, worker.Job]()
	w := New(config.SourceConfig{Path: t.TempDir(), Watch: config.WatchConfig{Mode: "magic"}}, logging.Discard(), mb)
	_, err := w.Open()
	assert.Error(t, err)
}

func TestOpenAutoChecksScratchDir(t *testing.T) {
	saves, scratch := t.TempDir(), t.TempDir()
	mb := mailbox.New[string, worker.Job]()
	w := New(config.SourceConfig{Path: saves, Watch: config.WatchConfig{Mode: "auto", PollInterval: time.Second}}, logging.Discard(), mb)
	w.SetScratchDir(scratch)

	src, err := w.Open()
	require.NoError(t, err)
	require.NoError(t, src.Close())

	for _, dir := range []string{saves, scratch} {
		des, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, des)
	}
}
