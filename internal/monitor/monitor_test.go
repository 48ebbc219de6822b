package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raoulx24/save-archiver/internal/catalog"
	"github.com/raoulx24/save-archiver/internal/config"
	"github.com/raoulx24/save-archiver/internal/events"
	"github.com/raoulx24/save-archiver/internal/logging"
	"github.com/raoulx24/save-archiver/internal/watcher"
	"github.com/raoulx24/save-archiver/internal/worker"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Source.Path = t.TempDir()
	cfg.Destination.Path = filepath.Join(t.TempDir(), "backups")
	cfg.Source.Watch.Mode = "poll"
	cfg.Source.Watch.PollInterval = 20 * time.Millisecond
	cfg.Source.Watch.SettleDelay = 20 * time.Millisecond
	cfg.Retry = config.RetryConfig{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return cfg
}

func write(t *testing.T, cfg *config.Config, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Source.Path, name), []byte(content), 0o644))
}

func newMonitor(cfg *config.Config, rec *events.Recorder) *Monitor {
	cat := catalog.New(cfg.Destination.Path, nil)
	return New(cfg, nil, cat, rec, logging.Discard())
}

func TestStartBacksUpThenWatches(t *testing.T) {
	cfg := testConfig(t)
	write(t, cfg, "Slot_1.save", "one")
	write(t, cfg, "Slot_2.save", "two")
	write(t, cfg, "options.ini", "ignored")

	rec := &events.Recorder{}
	m := newMonitor(cfg, rec)
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, Running, m.State())

	require.Len(t, rec.Of(events.MonitoringStarted), 1)
	scan := rec.Of(events.InitialScanComplete)
	require.Len(t, scan, 1)
	assert.Equal(t, 2, scan[0].SlotCount)
	assert.Len(t, rec.Of(events.BackupCreated), 2)

	write(t, cfg, "Slot_1.save", "one, later")
	require.Eventually(t, func() bool {
		return len(rec.Of(events.BackupCreated)) == 3
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, m.Catalog().Entries("Slot_1.save"), 2)

	m.Stop()
	assert.Equal(t, Stopped, m.State())
	stopped := rec.Of(events.MonitoringStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, ReasonUser, stopped[0].Reason)
	assert.NoError(t, m.Err())
}

func TestRestartSkipsUnchangedSaves(t *testing.T) {
	cfg := testConfig(t)
	cfg.Destination.Compress = true
	write(t, cfg, "Slot_1.save", "stable")

	first := newMonitor(cfg, &events.Recorder{})
	require.NoError(t, first.Start(context.Background()))
	first.Stop()

	rec := &events.Recorder{}
	second := newMonitor(cfg, rec)
	require.NoError(t, second.Start(context.Background()))
	defer second.Stop()

	assert.Empty(t, rec.Of(events.BackupCreated))
	assert.Len(t, rec.Of(events.BackupSkipped), 1)
}

func TestWatchedDirectoryRemovalStopsMonitoring(t *testing.T) {
	cfg := testConfig(t)
	saves := filepath.Join(cfg.Source.Path, "saves")
	require.NoError(t, os.Mkdir(saves, 0o755))
	cfg.Source.Path = saves

	rec := &events.Recorder{}
	m := newMonitor(cfg, rec)
	require.NoError(t, m.Start(context.Background()))

	require.NoError(t, os.RemoveAll(saves))

	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("monitoring did not stop")
	}
	assert.Equal(t, Stopped, m.State())
	assert.ErrorIs(t, m.Err(), watcher.ErrFatal)

	stopped := rec.Of(events.MonitoringStopped)
	require.Len(t, stopped, 1)
	assert.NotEqual(t, ReasonUser, stopped[0].Reason)
	assert.ErrorIs(t, stopped[0].Err, watcher.ErrFatal)
}

func TestStartFailsOnMissingSaveDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.Path = filepath.Join(cfg.Source.Path, "missing")

	rec := &events.Recorder{}
	m := newMonitor(cfg, rec)
	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, Stopped, m.State())
	assert.Empty(t, rec.Of(events.MonitoringStarted))
}

func TestStartTwiceFails(t *testing.T) {
	cfg := testConfig(t)
	m := newMonitor(cfg, &events.Recorder{})
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	assert.ErrorIs(t, m.Start(context.Background()), ErrRunning)
}

func TestReloadSwitchesBackupDirectory(t *testing.T) {
	cfg := testConfig(t)
	write(t, cfg, "Slot_1.save", "data")

	rec := &events.Recorder{}
	m := newMonitor(cfg, rec)
	require.NoError(t, m.Start(context.Background()))

	next := *cfg
	next.Destination.Path = filepath.Join(t.TempDir(), "elsewhere")
	require.NoError(t, m.Reload(context.Background(), &next))
	defer m.Stop()

	assert.Equal(t, next.Destination.Path, m.Catalog().Dir())
	assert.Len(t, m.Catalog().Entries("Slot_1.save"), 1)
	assert.Len(t, rec.Of(events.MonitoringStarted), 2)
	assert.Len(t, rec.Of(events.MonitoringStopped), 1)
}

func TestCancelDuringInitialScanIsUserStop(t *testing.T) {
	cfg := testConfig(t)
	write(t, cfg, "Slot_1.save", "one")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &events.Recorder{}
	m := newMonitor(cfg, rec)
	err := m.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	<-m.Done()
	assert.Equal(t, Stopped, m.State())
	assert.NoError(t, m.Err())
	assert.Empty(t, rec.Of(events.InitialScanComplete))
	assert.Empty(t, rec.Of(events.BackupFailed))

	stopped := rec.Of(events.MonitoringStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, ReasonUser, stopped[0].Reason)
	assert.NoError(t, stopped[0].Err)
}

func TestSaveWrittenDuringInitialScanIsBackedUp(t *testing.T) {
	cfg := testConfig(t)
	write(t, cfg, "Slot_1.save", "one")

	// the clock is read while the first backup is being written
	var once sync.Once
	now := func() time.Time {
		once.Do(func() {
			_ = os.WriteFile(filepath.Join(cfg.Source.Path, "Slot_2.save"), []byte("two"), 0o644)
		})
		return time.Now()
	}

	rec := &events.Recorder{}
	cat := catalog.New(cfg.Destination.Path, nil)
	m := New(cfg, nil, cat, rec, logging.Discard(), WithWriterOptions(worker.WithClock(now)))
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	require.Eventually(t, func() bool {
		return len(m.Catalog().Entries("Slot_2.save")) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, m.Catalog().Entries("Slot_1.save"), 1)
}

func TestStartRemovesOnlyStaleTemps(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Destination.Path, 0o755))
	stale := filepath.Join(cfg.Destination.Path, catalog.TempPrefix+"old-Slot_1.save_2024-01-01_00-00-00.bak")
	fresh := filepath.Join(cfg.Destination.Path, catalog.TempPrefix+"new-Slot_1.save_2024-01-01_00-00-01.bak")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("partial"), 0o644))
	old := time.Now().Add(-2 * catalog.StaleTempAge)
	require.NoError(t, os.Chtimes(stale, old, old))

	m := newMonitor(cfg, &events.Recorder{})
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}
