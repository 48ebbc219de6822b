package fsprobe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingDirIsUnsupported(t *testing.T) {
	res := Probe(filepath.Join(t.TempDir(), "missing"), "", DefaultTimeout)
	assert.False(t, res.FsnotifySupported)
	assert.Contains(t, res.Reason, "stat failed")
}

func TestRegularFileIsUnsupported(t *testing.T) {
	p := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(p, nil, 0o644))

	res := Probe(p, "", DefaultTimeout)
	assert.False(t, res.FsnotifySupported)
	assert.Contains(t, res.Reason, "not a directory")
}

func TestWithoutScratchOnlyRegisters(t *testing.T) {
	dir := t.TempDir()
	res := Probe(dir, "", DefaultTimeout)
	assert.True(t, res.FsnotifySupported, res.Reason)

	des, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, des)
}

func TestScratchWriteIsReported(t *testing.T) {
	saves, scratch := t.TempDir(), t.TempDir()

	res := Probe(saves, scratch, 5*time.Second)
	assert.True(t, res.FsnotifySupported, res.Reason)

	for _, dir := range []string{saves, scratch} {
		des, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, des, "nothing left behind in %s", dir)
	}
}

func TestMissingScratchIsUnsupported(t *testing.T) {
	res := Probe(t.TempDir(), filepath.Join(t.TempDir(), "missing"), DefaultTimeout)
	assert.False(t, res.FsnotifySupported)
	assert.Contains(t, res.Reason, "stat failed")
}

func TestRoundTripTimesOutWithoutEvents(t *testing.T) {
	// a watcher with no directories registered never reports the write
	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	scratch := t.TempDir()
	res := roundTrip(w, scratch, 50*time.Millisecond)
	assert.False(t, res.FsnotifySupported)
	assert.Contains(t, res.Reason, "no write event")

	des, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, des)
}
